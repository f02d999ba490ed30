package project

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/oraclelint/internal/testutil"
)

func TestWatchFS_DeliversEventsUntilDisposed(t *testing.T) {
	dir := t.TempDir()
	var events atomic.Int32

	sub, err := WatchFS(testutil.NewTestLogger(t))(dir, func(fsnotify.Event) { events.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, dir, sub.Path())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.sql"), []byte("x"), 0o600))
	require.Eventually(t, func() bool { return events.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	// Let the events of the first write drain.
	time.Sleep(50 * time.Millisecond)
	sub.Dispose()
	sub.Dispose()

	seen := events.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.sql"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, events.Load(), "no events after dispose")
}

func TestWatchFS_MissingPath(t *testing.T) {
	_, err := WatchFS(nil)(filepath.Join(t.TempDir(), "missing"), func(fsnotify.Event) {})
	assert.Error(t, err)
}
