package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Runner is a cooperative periodic task runner.
// Only one task body executes at a time; a task whose timer fires while
// another is running waits for it to finish.
type Runner struct {
	s gocron.Scheduler

	mu      sync.Mutex
	started bool
}

// Task is a periodic job registered on a Runner.
type Task struct {
	r    *Runner
	id   uuid.UUID
	name string
	fn   func()

	mu       sync.Mutex
	interval time.Duration
}

// Option customizes a Runner.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates a stopped runner.
func New(opts ...Option) (*Runner, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	sopts := []gocron.SchedulerOption{
		gocron.WithLimitConcurrentJobs(1, gocron.LimitModeWait),
	}
	if o.clock != nil {
		sopts = append(sopts, gocron.WithClock(o.clock))
	}
	s, err := gocron.NewScheduler(sopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Runner{s: s}, nil
}

// Every registers fn to run every interval. The first run happens one
// interval after the runner starts.
func (r *Runner) Every(name string, interval time.Duration, fn func()) (*Task, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("task %s: interval must be > 0, got %s", name, interval)
	}
	if fn == nil {
		return nil, errors.New("task " + name + ": nil function")
	}
	t := &Task{r: r, name: name, fn: fn, interval: interval}
	job, err := r.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(t.run),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task %s: %w", name, err)
	}
	t.id = job.ID()
	return t, nil
}

// Start begins scheduling. Calling it twice is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	slog.Debug("Starting scheduler", "jobs", len(r.s.Jobs()))
	r.s.Start()
}

// Stop shuts the scheduler down and waits for a running task to return.
func (r *Runner) Stop() error {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	return r.s.Shutdown()
}

func (t *Task) run() {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Scheduled task panicked", "task", t.name, "panic", rec)
		}
	}()
	t.fn()
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Interval returns the interval the task is currently scheduled with.
func (t *Task) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Reschedule changes the interval. A run already in progress is not
// affected; the next run is computed from the new interval.
func (t *Task) Reschedule(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be > 0, got %s", t.name, interval)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.r.s.Update(
		t.id,
		gocron.DurationJob(interval),
		gocron.NewTask(t.run),
		gocron.WithName(t.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to reschedule task %s: %w", t.name, err)
	}
	t.interval = interval
	return nil
}

// Cancel removes the task from its runner.
func (t *Task) Cancel() error {
	if err := t.r.s.RemoveJob(t.id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return fmt.Errorf("failed to cancel task %s: %w", t.name, err)
	}
	return nil
}
