package observability

import (
	"fmt"
	"os"
	"sync"
)

// RotatingFile is an io.WriteCloser that rotates the underlying file once it
// exceeds maxBytes, keeping up to maxBackups previous files suffixed .1..N
// (oldest highest-numbered). No third-party logging-rotation library
// appears anywhere in the reference corpus, so this small rotator is
// hand-written rather than reached for a dependency with no grounding.
type RotatingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	f          *os.File
	size       int64
}

// NewRotatingFile opens (or creates) path and prepares rotation bookkeeping.
func NewRotatingFile(path string, maxBytes int64, maxBackups int) (*RotatingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rotating file: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("rotating file: stat %q: %w", path, err)
	}
	return &RotatingFile{path: path, maxBytes: maxBytes, maxBackups: maxBackups, f: f, size: info.Size()}, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) rotateLocked() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	for i := r.maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.path, i)
		newPath := fmt.Sprintf("%s.%d", r.path, i+1)
		if i+1 > r.maxBackups {
			os.Remove(oldPath)
			continue
		}
		os.Rename(oldPath, newPath)
	}
	if r.maxBackups > 0 {
		os.Rename(r.path, fmt.Sprintf("%s.1", r.path))
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}

// Close closes the underlying file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
