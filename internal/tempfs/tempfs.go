// Package tempfs manages per-job scratch directories used to exchange files
// with external command-line tools. Every directory is owned by exactly one
// job; a periodic sweeper deletes anything older than the staleness
// threshold as a backstop against crash-induced leaks.
package tempfs

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	u "omniconvert/internal/utils"
)

// Manager allocates and cleans scratch directories under a single base path.
type Manager struct {
	base string
}

// NewManager creates the base directory if needed. An empty baseDir places
// workspaces under the system temp directory.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "omniconvert")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &Manager{base: baseDir}, nil
}

// Base returns the parent directory of all workspaces.
func (m *Manager) Base() string { return m.base }

// NewDir allocates a uniquely named scratch directory. Callers must pair
// every NewDir with a deferred Cleanup.
func (m *Manager) NewDir() (string, error) {
	dir := filepath.Join(m.base, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteFile materializes a buffer inside dir under the given name and
// returns the full path.
func (m *Manager) WriteFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadFile reads a file previously produced inside a workspace.
func (m *Manager) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Cleanup removes a workspace. Best-effort: failures are swallowed because
// the sweeper is the backstop.
func (m *Manager) Cleanup(dir string) {
	if dir == "" || dir == m.base {
		return
	}
	_ = os.RemoveAll(dir)
}

// Sweeper periodically deletes workspaces older than maxAge. It has an
// explicit Start/Stop lifecycle tied to process lifetime so shutdown and
// tests stay deterministic.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	maxAge   time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSweeper builds a sweeper for the manager's base directory.
func NewSweeper(mgr *Manager, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{mgr: mgr, interval: interval, maxAge: maxAge}
}

// Start launches the background sweep loop. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

// Stop terminates the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Sweeper) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-stop:
			return
		}
	}
}

// SweepOnce deletes every workspace whose mtime is older than maxAge.
// Exposed so tests can exercise the policy without waiting on the ticker.
func (s *Sweeper) SweepOnce() {
	entries, err := os.ReadDir(s.mgr.base)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			dir := filepath.Join(s.mgr.base, entry.Name())
			u.Warn("Sweeping stale temp workspace", "dir", dir, "age", time.Since(info.ModTime()).String())
			_ = os.RemoveAll(dir)
		}
	}
}
