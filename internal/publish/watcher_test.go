package publish

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDrainsOnMoveIn(t *testing.T) {
	spoolDir := t.TempDir()
	repoDir := initBareRemoteAndClone(t)
	p := newPublisher(t, spoolDir, repoDir)

	w, err := NewWatcher(testLogger(), p)
	require.NoError(t, err)
	defer w.Close()

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	// Give the startup drain (of an empty spool) a moment to complete,
	// then emit one spool entry via the same atomic-rename publication
	// the logger uses.
	time.Sleep(20 * time.Millisecond)
	tmp := filepath.Join(spoolDir, "0.partial")
	require.NoError(t, os.WriteFile(tmp, []byte("1622782862\nfred\nhello there"), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(spoolDir, "0")))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(repoDir, "2021/06-04.txt"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	default:
	}
}
