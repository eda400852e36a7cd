package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrEmpty is returned by Read when the file opened but yielded no bytes.
var ErrEmpty = errors.New("status file is empty")

// FS is the file capability used by the watcher and the simulator.
// Implementations must never report an existing file with a zero timestamp.
type FS interface {
	// Timestamp returns the modification time of path in nanoseconds,
	// or 0 if the path does not exist or cannot be inspected.
	Timestamp(path string) int64
	// Read returns at most maxSize-1 bytes from the start of path.
	// Larger files are truncated silently.
	Read(path string, maxSize int) ([]byte, error)
	// Write replaces the content of path, creating the immediate parent
	// directory once if the first attempt fails.
	Write(path, content string) error
}

// Afero implements FS on top of an afero.Fs.
type Afero struct {
	fs afero.Fs
}

// New wraps an arbitrary afero filesystem.
func New(fs afero.Fs) *Afero { return &Afero{fs: fs} }

// NewOS returns an FS backed by the host filesystem.
func NewOS() *Afero { return New(afero.NewOsFs()) }

// NewMemory returns an FS backed by an in-memory filesystem.
func NewMemory() *Afero { return New(afero.NewMemMapFs()) }

// Fs exposes the underlying afero filesystem.
func (a *Afero) Fs() afero.Fs { return a.fs }

func (a *Afero) Timestamp(path string) int64 {
	fi, err := a.fs.Stat(path)
	if err != nil || fi.IsDir() {
		return 0
	}
	ts := fi.ModTime().UnixNano()
	if ts <= 0 {
		// keep 0 reserved for "absent"
		return 1
	}
	return ts
}

func (a *Afero) Read(path string, maxSize int) ([]byte, error) {
	if maxSize < 2 {
		return nil, fmt.Errorf("read %s: buffer size %d too small", path, maxSize)
	}
	f, err := a.fs.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(io.LimitReader(f, int64(maxSize-1)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("read %s: %w", path, ErrEmpty)
	}
	return b, nil
}

func (a *Afero) Write(path, content string) error {
	path = filepath.Clean(path)
	f, err := a.open(path)
	if err != nil {
		// Try to create the parent directory, then once more.
		if mkErr := a.fs.Mkdir(filepath.Dir(path), 0o755); mkErr != nil && !os.IsExist(mkErr) {
			return fmt.Errorf("create %s: %w", path, err)
		}
		f, err = a.open(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	n, err := f.WriteString(content)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if n != len(content) {
		return fmt.Errorf("write %s: short write %d of %d bytes", path, n, len(content))
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}
	return nil
}

func (a *Afero) open(path string) (afero.File, error) {
	return a.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}
