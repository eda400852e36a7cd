package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loykin/updatewatch"
	"github.com/loykin/updatewatch/internal/config"
	"github.com/loykin/updatewatch/internal/display"
	"github.com/loykin/updatewatch/internal/fileio"
	"github.com/loykin/updatewatch/internal/logger"
	"github.com/loykin/updatewatch/internal/scheduler"
	"github.com/loykin/updatewatch/internal/simulator"
	"github.com/loykin/updatewatch/internal/status"
	"github.com/loykin/updatewatch/internal/watcher"
	"github.com/loykin/updatewatch/pkg/client"
)

const shutdownTimeout = 5 * time.Second

func overrides(g GlobalFlags) config.Overrides {
	set := config.Overrides{}
	if g.Path != "" {
		set["watch.path"] = g.Path
	}
	return set
}

func buildLogger(c *config.Config) (*slog.Logger, io.Closer, error) {
	l, closer, err := logger.New(c.Log.Logger(), os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return l, closer, nil
}

func cmdRun(ctx context.Context, g GlobalFlags, f RunFlags, out io.Writer) error {
	set := overrides(g)
	if f.Interval > 0 {
		set["watch.interval"] = f.Interval
	}
	if f.Simulate {
		set["simulator.enabled"] = true
	}
	if f.Listen != "" {
		set["server.listen"] = f.Listen
	}
	if f.Terminal {
		set["display.terminal"] = true
	}

	var (
		running atomic.Pointer[updatewatch.App]
		log     atomic.Pointer[slog.Logger]
		c       *config.Config
		err     error
	)
	if g.ConfigPath != "" {
		c, err = updatewatch.WatchConfig(g.ConfigPath, set, func(next *config.Config) {
			app := running.Load()
			if app == nil || next.Watch.Interval == app.Watcher().Interval() {
				return
			}
			if err := app.SetInterval(next.Watch.Interval); err != nil {
				if l := log.Load(); l != nil {
					l.Warn("Failed to apply reloaded interval", "error", err)
				}
			}
		})
	} else {
		c, err = updatewatch.LoadConfig("", set)
	}
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	l, closer, err := buildLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	log.Store(l)

	app, err := updatewatch.New(c, updatewatch.WithLogger(l), updatewatch.WithOutput(out))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		_ = app.Stop(context.Background())
		return err
	}
	running.Store(app)

	<-ctx.Done()
	l.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Stop(sctx)
}

func cmdInit(g GlobalFlags, out io.Writer) error {
	c, err := updatewatch.LoadConfig(g.ConfigPath, overrides(g))
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	l, closer, err := buildLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	fs := fileio.NewOS()
	w := watcher.New(watcher.Config{Path: c.Watch.Path, FS: fs, Logger: l})
	w.Bootstrap()
	if fs.Timestamp(c.Watch.Path) == 0 {
		return fmt.Errorf("status file %s could not be created", c.Watch.Path)
	}
	_, err = fmt.Fprintln(out, c.Watch.Path)
	return err
}

func cmdSimulate(ctx context.Context, g GlobalFlags, f SimulateFlags, out io.Writer) error {
	if f.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", f.Interval)
	}
	set := overrides(g)
	set["simulator.enabled"] = true
	set["simulator.interval"] = f.Interval
	c, err := updatewatch.LoadConfig(g.ConfigPath, set)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	l, closer, err := buildLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	gen := simulator.New(fileio.NewOS(), c.Watch.Path, l)

	if f.Count > 0 {
		for i := 0; i < f.Count; i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(f.Interval):
				}
			}
			st := gen.Tick()
			if _, err := fmt.Fprintf(out, "%4s  %s\n", st.Percent(), st.Step); err != nil {
				return err
			}
		}
		return nil
	}

	r, err := scheduler.New()
	if err != nil {
		return err
	}
	if err := gen.Start(r, f.Interval); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	r.Start()
	<-ctx.Done()
	return errors.Join(gen.Stop(), r.Stop())
}

func cmdShow(g GlobalFlags, f ShowFlags, out io.Writer) error {
	c, err := updatewatch.LoadConfig(g.ConfigPath, overrides(g))
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	payload, err := fileio.NewOS().Read(c.Watch.Path, watcher.BufferSize)
	if err != nil {
		return err
	}
	st := status.Merge(status.Default(), string(payload))

	if f.Terminal {
		width := f.Width
		if width == 0 {
			width = c.Display.Width
		}
		return display.NewTerminal(out, width).Publish(context.Background(), st)
	}
	return printStatus(out, c.Watch.Path, st.Status, st.Step, st.Percent())
}

func printStatus(out io.Writer, path, st, step, percent string) error {
	_, err := fmt.Fprintf(out, "File:     %s\nStatus:   %s\nStep:     %s\nProgress: %s\n", path, st, step, percent)
	return err
}

func newClient(f APIFlags) *client.Client {
	cfg := client.DefaultConfig()
	if f.APIUrl != "" {
		cfg.BaseURL = f.APIUrl
	}
	if f.APITimeout > 0 {
		cfg.Timeout = f.APITimeout
	}
	return client.New(cfg)
}

func cmdStatus(ctx context.Context, f APIFlags, out io.Writer) error {
	st, err := newClient(f).GetStatus(ctx)
	if err != nil {
		return err
	}
	return printStatus(out, st.Path, st.Status, st.Step, st.Percent)
}

func cmdInterval(ctx context.Context, f IntervalFlags, out io.Writer) error {
	c := newClient(f.APIFlags)
	if f.MS < 0 {
		return fmt.Errorf("--ms must be > 0, got %d", f.MS)
	}
	if f.MS == 0 {
		d, err := c.GetInterval(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "interval: %s\n", d)
		return err
	}
	d, err := c.SetInterval(ctx, time.Duration(f.MS)*time.Millisecond)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "interval set to %s\n", d)
	return err
}
