package fileio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestTimestampAbsentIsZero(t *testing.T) {
	fs := NewMemory()
	if ts := fs.Timestamp("/nope.json"); ts != 0 {
		t.Fatalf("expected 0 for missing file, got %d", ts)
	}
}

func TestTimestampDirectoryIsZero(t *testing.T) {
	fs := NewMemory()
	if err := fs.Fs().MkdirAll("/var/lib", 0o755); err != nil {
		t.Fatal(err)
	}
	if ts := fs.Timestamp("/var/lib"); ts != 0 {
		t.Fatalf("expected 0 for directory, got %d", ts)
	}
}

func TestTimestampTracksModTime(t *testing.T) {
	fs := NewMemory()
	if err := fs.Write("/s.json", "{}"); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := time.Unix(1700000000, 0)
	if err := fs.Fs().Chtimes("/s.json", first, first); err != nil {
		t.Fatal(err)
	}
	if got := fs.Timestamp("/s.json"); got != first.UnixNano() {
		t.Fatalf("timestamp = %d, want %d", got, first.UnixNano())
	}
	second := first.Add(time.Second)
	if err := fs.Fs().Chtimes("/s.json", second, second); err != nil {
		t.Fatal(err)
	}
	if got := fs.Timestamp("/s.json"); got != second.UnixNano() {
		t.Fatalf("timestamp = %d, want %d", got, second.UnixNano())
	}
}

func TestReadTruncatesToBufferSize(t *testing.T) {
	fs := NewMemory()
	content := strings.Repeat("x", 600)
	if err := fs.Write("/big.json", content); err != nil {
		t.Fatal(err)
	}
	b, err := fs.Read("/big.json", 512)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(b) != 511 {
		t.Fatalf("expected 511 bytes, got %d", len(b))
	}
}

func TestReadMissingFails(t *testing.T) {
	fs := NewMemory()
	if _, err := fs.Read("/missing.json", 512); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestReadEmptyFileIsFailure(t *testing.T) {
	fs := NewMemory()
	if err := afero.WriteFile(fs.Fs(), "/empty.json", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := fs.Read("/empty.json", 512)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestWriteOverwrites(t *testing.T) {
	fs := NewMemory()
	if err := fs.Write("/s.json", "first content that is long"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write("/s.json", "second"); err != nil {
		t.Fatal(err)
	}
	b, err := fs.Read("/s.json", 512)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "second" {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestWriteCreatesImmediateParentOnce(t *testing.T) {
	dir := t.TempDir()
	fs := NewOS()
	path := filepath.Join(dir, "tmp", "current_update_step.json")
	if err := fs.Write(path, "{}\n"); err != nil {
		t.Fatalf("write with missing parent: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}\n" {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestWriteFailsWhenGrandparentMissing(t *testing.T) {
	dir := t.TempDir()
	fs := NewOS()
	path := filepath.Join(dir, "a", "b", "current_update_step.json")
	if err := fs.Write(path, "{}"); err == nil {
		t.Fatalf("expected failure when more than one directory level is missing")
	}
}

func TestWriteReadOnlyFs(t *testing.T) {
	fs := New(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	if err := fs.Write("/s.json", "{}"); err == nil {
		t.Fatalf("expected write failure on read-only fs")
	}
}
