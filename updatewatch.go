// Package updatewatch mirrors an externally written update status file into
// a live status value and pushes every change to displays, history sinks
// and an HTTP control surface.
package updatewatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/updatewatch/internal/config"
	"github.com/loykin/updatewatch/internal/display"
	"github.com/loykin/updatewatch/internal/fileio"
	"github.com/loykin/updatewatch/internal/history"
	"github.com/loykin/updatewatch/internal/history/factory"
	"github.com/loykin/updatewatch/internal/metrics"
	"github.com/loykin/updatewatch/internal/scheduler"
	iapi "github.com/loykin/updatewatch/internal/server"
	"github.com/loykin/updatewatch/internal/simulator"
	"github.com/loykin/updatewatch/internal/status"
	"github.com/loykin/updatewatch/internal/watcher"
)

// Re-export core types for external consumers.

type Status = status.Status

type Config = cfg.Config

type Overrides = cfg.Overrides

type Sink = watcher.Sink

type HistorySink = history.Sink

type HistoryEvent = history.Event

func DefaultStatus() Status { return status.Default() }

func LoadConfig(path string, set Overrides) (*Config, error) { return cfg.Load(path, set) }

func WatchConfig(path string, set Overrides, fn func(*Config)) (*Config, error) {
	return cfg.Watch(path, set, fn)
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// App wires a watcher, an optional simulator and the configured outputs
// onto one cooperative scheduler.
type App struct {
	cfg    Config
	logger *slog.Logger
	fs     fileio.FS
	out    io.Writer
	clock  clockwork.Clock
	extra  []Sink

	runner  *scheduler.Runner
	watcher *watcher.Watcher
	sim     *simulator.Generator
	server  *iapi.Server
	msrv    *http.Server
	mln     net.Listener
	closers []io.Closer

	mu      sync.Mutex
	started bool
}

// Option customizes an App.
type Option func(*App)

func WithLogger(l *slog.Logger) Option { return func(a *App) { a.logger = l } }

// WithFS replaces the OS filesystem, e.g. with an in-memory one.
func WithFS(fs fileio.FS) Option { return func(a *App) { a.fs = fs } }

// WithOutput sets where the terminal display renders. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(a *App) { a.out = w } }

func WithClock(c clockwork.Clock) Option { return func(a *App) { a.clock = c } }

// WithSink adds a presentation sink that receives every applied status.
func WithSink(s Sink) Option { return func(a *App) { a.extra = append(a.extra, s) } }

// New assembles an App from c. Nothing runs until Start.
func New(c *Config, opts ...Option) (*App, error) {
	if c == nil {
		return nil, errors.New("nil config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: *c}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.fs == nil {
		a.fs = fileio.NewOS()
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}

	runner, err := scheduler.New(scheduler.WithClock(a.clock))
	if err != nil {
		return nil, err
	}
	a.runner = runner

	sinks := append([]Sink(nil), a.extra...)
	if a.cfg.Display.Terminal {
		sinks = append(sinks, display.NewTerminal(a.out, a.cfg.Display.Width))
	}
	if a.cfg.History.DSN != "" {
		hs, err := factory.NewSinkFromDSN(a.cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open history sink: %w", err)
		}
		if cl, ok := hs.(io.Closer); ok {
			a.closers = append(a.closers, cl)
		}
		sinks = append(sinks, history.NewRecorder(hs, a.cfg.Watch.Path, a.clock))
	}

	a.watcher = watcher.New(watcher.Config{
		Path:     a.cfg.Watch.Path,
		FS:       a.fs,
		Sinks:    sinks,
		Interval: a.cfg.Watch.Interval,
		Clock:    a.clock,
		Logger:   a.logger,
	})
	if a.cfg.Simulator.Enabled {
		a.sim = simulator.New(a.fs, a.cfg.Watch.Path, a.logger)
	}
	return a, nil
}

// Watcher exposes the underlying watcher.
func (a *App) Watcher() *watcher.Watcher { return a.watcher }

// Status returns the last applied status.
func (a *App) Status() Status { return a.watcher.Status() }

// SetInterval changes the polling interval of a started App.
func (a *App) SetInterval(d time.Duration) error { return a.watcher.SetInterval(d) }

// Start bootstraps the status file, schedules the periodic tasks and brings
// up the optional metrics and HTTP listeners.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("already started")
	}

	if a.cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			a.logger.Warn("Failed to register metrics", "error", err)
		} else {
			ln, err := net.Listen("tcp", a.cfg.Metrics.Listen)
			if err != nil {
				return fmt.Errorf("failed to listen for metrics on %s: %w", a.cfg.Metrics.Listen, err)
			}
			srv := metrics.NewServer(a.cfg.Metrics.Listen)
			a.msrv, a.mln = srv, ln
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("Metrics server error", "error", err)
				}
			}()
		}
	}

	if a.sim != nil {
		if err := a.sim.Start(a.runner, a.cfg.Simulator.Interval); err != nil {
			return err
		}
	}
	if a.cfg.Watch.Bootstrap {
		a.watcher.Bootstrap()
	}
	// initial check; the first scheduled tick is one interval away
	a.watcher.Tick(ctx)
	if err := a.watcher.Start(ctx, a.runner); err != nil {
		return err
	}
	a.runner.Start()

	if a.cfg.Server.Listen != "" {
		r := iapi.NewRouter(a.watcher, a.cfg.Server.BasePath)
		if a.cfg.Metrics.Enabled {
			r.WithMetrics()
		}
		a.server = iapi.NewServer(a.cfg.Server.Listen, r)
		a.server.Start(func(err error) { a.logger.Error("HTTP server error", "error", err) })
		a.logger.Info("Control surface listening", "addr", a.cfg.Server.Listen, "base", a.cfg.Server.BasePath)
	}
	a.started = true
	return nil
}

// Stop shuts everything down and releases history sinks. It is safe to
// call on an App that never started.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
		a.server = nil
	}
	if a.msrv != nil {
		errs = append(errs, a.msrv.Shutdown(ctx))
		// Shutdown can win the race against Serve taking ownership of ln
		_ = a.mln.Close()
		a.msrv, a.mln = nil, nil
	}
	errs = append(errs, a.watcher.Stop())
	if a.sim != nil {
		errs = append(errs, a.sim.Stop())
	}
	if a.started {
		errs = append(errs, a.runner.Stop())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	a.started = false
	return errors.Join(errs...)
}
