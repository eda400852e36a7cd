package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/updatewatch/internal/history"
	"github.com/loykin/updatewatch/internal/status"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	steps := []status.Status{
		{Progress: 0, Status: "System Updating...", Step: "Preparing for update"},
		{Progress: 12, Status: "System Updating...", Step: "Downloading packages"},
	}
	for _, st := range steps {
		e := history.Event{OccurredAt: time.Now().UTC(), Path: "current_update_step.json", Status: st}
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send event: %v", err)
		}
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM status_history WHERE path = ?", "current_update_step.json").Scan(&count); err != nil {
		t.Fatalf("Failed to query status_history: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events in history, got %d", count)
	}

	var (
		progress int
		step     string
	)
	if err := sink.db.QueryRowContext(ctx, "SELECT progress, step FROM status_history ORDER BY progress DESC LIMIT 1").Scan(&progress, &step); err != nil {
		t.Fatalf("Failed to query latest row: %v", err)
	}
	if progress != 12 || step != "Downloading packages" {
		t.Errorf("unexpected latest row: %d %q", progress, step)
	}
}

func TestSQLiteSink_Memory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Send(context.Background(), history.Event{OccurredAt: time.Now(), Path: "p", Status: status.Default()}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
