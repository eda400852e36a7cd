// Package simulator fakes an update agent by cycling a status file through
// the phases of an update.
package simulator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/updatewatch/internal/fileio"
	"github.com/loykin/updatewatch/internal/metrics"
	"github.com/loykin/updatewatch/internal/scheduler"
	"github.com/loykin/updatewatch/internal/status"
)

// DefaultInterval is the time between two simulated phases.
const DefaultInterval = 3 * time.Second

// StatusText is written as the status field of every simulated phase.
const StatusText = "System Updating..."

var phases = [...]string{
	"Preparing for update",
	"Downloading packages",
	"Verifying download",
	"Installing updates",
	"Configuring system",
	"Finalizing installation",
	"Cleaning up",
	"Update complete.",
}

// Phases returns the step labels in cycle order.
func Phases() []string {
	out := make([]string, len(phases))
	copy(out, phases[:])
	return out
}

// Generator writes one phase per tick to path. It never reads the file.
type Generator struct {
	fs     fileio.FS
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	phase int
	task  *scheduler.Task
}

func New(fs fileio.FS, path string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{fs: fs, path: path, logger: logger}
}

// Phase returns the index of the phase the next Tick writes.
func (g *Generator) Phase() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Tick writes the current phase and advances to the next one, wrapping
// after the last. A failed write still advances. It returns the status
// it attempted to write.
func (g *Generator) Tick() status.Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	progress := g.phase * 100 / len(phases)
	if progress > 100 {
		progress = 100
	}
	st := status.Status{Progress: progress, Status: StatusText, Step: phases[g.phase]}

	err := g.fs.Write(g.path, status.Encode(st))
	metrics.IncWrite("simulator", err == nil)
	if err != nil {
		g.logger.Error("Failed to write simulated status", "path", g.path, "error", err)
	} else {
		g.logger.Debug("Simulated status written", "progress", st.Progress, "step", st.Step)
	}

	g.phase = (g.phase + 1) % len(phases)
	return st
}

// Start schedules Tick on r every interval.
func (g *Generator) Start(r *scheduler.Runner, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	task, err := r.Every("simulate "+g.path, interval, func() { g.Tick() })
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.task = task
	g.mu.Unlock()
	g.logger.Info("SIMULATOR MODE", "path", g.path, "interval", interval)
	return nil
}

// Stop cancels the scheduled task, if any.
func (g *Generator) Stop() error {
	g.mu.Lock()
	task := g.task
	g.task = nil
	g.mu.Unlock()
	if task == nil {
		return nil
	}
	return task.Cancel()
}
