// Package watcher polls a status file and applies its content to a status
// store whenever the file's modification time changes.
package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/loykin/updatewatch/internal/fileio"
	"github.com/loykin/updatewatch/internal/metrics"
	"github.com/loykin/updatewatch/internal/scheduler"
	"github.com/loykin/updatewatch/internal/status"
)

const (
	// BufferSize bounds a single read of the status file, terminator included.
	BufferSize = 512
	// DefaultInterval is the polling cadence when none is configured.
	DefaultInterval = 2 * time.Second

	waitLogEvery = 10 * time.Second
)

// ErrNotStarted is returned by SetInterval before Start.
var ErrNotStarted = errors.New("watcher not started")

// Sink receives every applied status.
type Sink interface {
	Publish(ctx context.Context, st status.Status) error
}

// Config describes a Watcher. Only Path is required.
type Config struct {
	Path     string
	FS       fileio.FS
	Store    *status.Store
	Sinks    []Sink
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Watcher owns the watch state for one status file.
type Watcher struct {
	path   string
	fs     fileio.FS
	store  *status.Store
	sinks  []Sink
	clock  clockwork.Clock
	logger *slog.Logger

	tickMu       sync.Mutex
	lastModified int64
	waitLogged   bool
	lastWaitLog  time.Time

	mu       sync.Mutex
	interval time.Duration
	task     *scheduler.Task
}

func New(cfg Config) *Watcher {
	w := &Watcher{
		path:     cfg.Path,
		fs:       cfg.FS,
		store:    cfg.Store,
		sinks:    cfg.Sinks,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: cfg.Interval,
	}
	if w.fs == nil {
		w.fs = fileio.NewOS()
	}
	if w.store == nil {
		w.store = status.NewStore()
	}
	if w.clock == nil {
		w.clock = clockwork.NewRealClock()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	return w
}

// Path returns the watched file path.
func (w *Watcher) Path() string { return w.path }

// Status returns the last applied status.
func (w *Watcher) Status() status.Status { return w.store.Current() }

// Store exposes the backing store for read-only consumers.
func (w *Watcher) Store() *status.Store { return w.store }

// Tick performs one poll cycle. At most one read happens per call.
func (w *Watcher) Tick(ctx context.Context) {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	ts := w.fs.Timestamp(w.path)
	if ts == 0 {
		metrics.IncPoll("absent")
		w.logWaiting()
		return
	}
	if ts == w.lastModified {
		metrics.IncPoll("unchanged")
		return
	}
	metrics.IncPoll("changed")
	// advanced first: a failed read is not retried until the file changes again
	w.lastModified = ts

	metrics.IncRead()
	payload, err := w.fs.Read(w.path, BufferSize)
	if err != nil {
		metrics.IncReadFailure()
		w.logger.Warn("Failed to read status file", "path", w.path, "error", err)
		return
	}

	// content ends at the first NUL
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}
	next := status.Merge(w.store.Current(), string(payload))
	w.store.Replace(next)
	metrics.ObserveStatus(next.Progress)
	w.logger.Info("Status updated",
		"progress", next.Progress,
		"status", next.Status,
		"step", next.Step)

	for _, s := range w.sinks {
		if err := s.Publish(ctx, next); err != nil {
			w.logger.Warn("Failed to publish status", "error", err)
		}
	}
}

func (w *Watcher) logWaiting() {
	now := w.clock.Now()
	if w.waitLogged && now.Sub(w.lastWaitLog) < waitLogEvery {
		return
	}
	w.waitLogged = true
	w.lastWaitLog = now
	w.logger.Info("Waiting for status file", "path", w.path)
}

// Bootstrap writes the default status when the file does not exist yet.
// Failures are logged only.
func (w *Watcher) Bootstrap() {
	if w.fs.Timestamp(w.path) != 0 {
		return
	}
	err := w.fs.Write(w.path, status.Encode(status.Default()))
	metrics.IncWrite("bootstrap", err == nil)
	if err != nil {
		w.logger.Error("Failed to create default status file", "path", w.path, "error", err)
		return
	}
	w.logger.Info("Created default status file", "path", w.path)
}

// Start schedules Tick on r at the configured interval. The runner itself
// is started by the caller.
func (w *Watcher) Start(ctx context.Context, r *scheduler.Runner) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.task != nil {
		return errors.New("watcher already started")
	}
	task, err := r.Every("watch "+w.path, w.interval, func() { w.Tick(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule watcher: %w", err)
	}
	w.task = task
	metrics.SetPollInterval(w.interval)
	w.logger.Info("Monitoring "+w.path, "interval", w.interval)
	return nil
}

// Stop cancels the poll task. It is a no-op when not started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.task == nil {
		return nil
	}
	err := w.task.Cancel()
	w.task = nil
	return err
}

// Interval returns the current polling interval.
func (w *Watcher) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interval
}

// SetInterval changes the polling cadence. A tick already running is not
// interrupted; the next tick is scheduled with d.
func (w *Watcher) SetInterval(d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.task == nil {
		return ErrNotStarted
	}
	if err := w.task.Reschedule(d); err != nil {
		return err
	}
	w.interval = d
	metrics.SetPollInterval(d)
	w.logger.Info("Polling interval set", "interval", d)
	return nil
}
