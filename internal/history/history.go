package history

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/loykin/updatewatch/internal/status"
)

// Event is one applied status change, exported to external systems.
type Event struct {
	OccurredAt time.Time     `json:"occurred_at"`
	Path       string        `json:"path"`
	Status     status.Status `json:"status"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Recorder turns published statuses into history events for a sink.
type Recorder struct {
	sink  Sink
	path  string
	clock clockwork.Clock
}

// NewRecorder records statuses read from path into sink.
// A nil clock uses the wall clock.
func NewRecorder(sink Sink, path string, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recorder{sink: sink, path: path, clock: clock}
}

func (r *Recorder) Publish(ctx context.Context, st status.Status) error {
	return r.sink.Send(ctx, Event{OccurredAt: r.clock.Now().UTC(), Path: r.path, Status: st})
}
