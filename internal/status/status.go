package status

import (
	"fmt"
	"sync"

	"github.com/loykin/updatewatch/internal/extract"
)

// Field size limits of the status payload, including the terminator slot.
const (
	TextMaxLen     = 64
	ProgressMaxLen = 32
)

// Status is the record an external update agent reports.
type Status struct {
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Step     string `json:"step"`
}

// Default is the status shown before anything has been read.
func Default() Status {
	return Status{Progress: 0, Status: "System Ready", Step: "Waiting for update"}
}

// Percent formats the progress the way the display label shows it.
func (s Status) Percent() string { return fmt.Sprintf("%d%%", s.Progress) }

// Encode renders s in the status file layout.
// Text fields are written verbatim; callers must not pass quotes.
func Encode(s Status) string {
	return fmt.Sprintf("{\n"+
		"    \"progress\": %d,\n"+
		"    \"status\": \"%s\",\n"+
		"    \"step\": \"%s\"\n"+
		"}\n", s.Progress, s.Status, s.Step)
}

// Merge returns prev with every field found in payload overwritten.
// Fields that cannot be extracted keep their previous value.
func Merge(prev Status, payload string) Status {
	next := prev
	if v, err := extract.Field(payload, "progress", ProgressMaxLen); err == nil {
		next.Progress = extract.Int(v)
	}
	if v, err := extract.Field(payload, "status", TextMaxLen); err == nil {
		next.Status = v
	}
	if v, err := extract.Field(payload, "step", TextMaxLen); err == nil {
		next.Step = v
	}
	return next
}

// Store holds the last successfully parsed status.
type Store struct {
	mu  sync.RWMutex
	cur Status
}

// NewStore returns a store seeded with Default.
func NewStore() *Store { return &Store{cur: Default()} }

func (s *Store) Current() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) Replace(st Status) {
	s.mu.Lock()
	s.cur = st
	s.mu.Unlock()
}
