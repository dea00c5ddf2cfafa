package tempfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)
	return mgr
}

func TestNewDir_UniqueAndCleanable(t *testing.T) {
	mgr := newTestManager(t)

	d1, err := mgr.NewDir()
	require.NoError(t, err)
	d2, err := mgr.NewDir()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	p, err := mgr.WriteFile(d1, "input.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	data, err := mgr.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	mgr.Cleanup(d1)
	_, err = os.Stat(d1)
	assert.True(t, os.IsNotExist(err))

	// Second cleanup is harmless.
	mgr.Cleanup(d1)
}

func TestWriteFile_StripsDirectoryComponents(t *testing.T) {
	mgr := newTestManager(t)
	dir, err := mgr.NewDir()
	require.NoError(t, err)
	defer mgr.Cleanup(dir)

	p, err := mgr.WriteFile(dir, "../../evil.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "evil.txt"), p)
}

func TestCleanup_NeverRemovesBase(t *testing.T) {
	mgr := newTestManager(t)
	mgr.Cleanup(mgr.Base())
	_, err := os.Stat(mgr.Base())
	assert.NoError(t, err)
}

func TestSweepOnce_RemovesOnlyStaleDirs(t *testing.T) {
	mgr := newTestManager(t)

	stale, err := mgr.NewDir()
	require.NoError(t, err)
	fresh, err := mgr.NewDir()
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	s := NewSweeper(mgr, time.Minute, 30*time.Minute)
	s.SweepOnce()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale dir should be swept")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh dir must survive the sweep")
}

func TestSweeper_StartStopLifecycle(t *testing.T) {
	mgr := newTestManager(t)
	s := NewSweeper(mgr, 10*time.Millisecond, time.Nanosecond)

	s.Start()
	s.Start() // second start is a no-op

	dir, err := mgr.NewDir()
	require.NoError(t, err)
	old := time.Now().Add(-time.Second)
	require.NoError(t, os.Chtimes(dir, old, old))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweeper never collected the stale dir")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()
	s.Stop() // idempotent
}
