package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, events <-chan fsnotify.Event, name string) fsnotify.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Name == name {
				return e
			}
		case <-deadline:
			t.Fatalf("no event for %s", name)
		}
	}
}

func TestWatcherEmitsEvents(t *testing.T) {
	dir := t.TempDir()
	events := make(chan fsnotify.Event, 16)

	w, err := NewWatcher(func(e fsnotify.Event) { events <- e }, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddFolder(dir))

	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	e := waitForEvent(t, events, path)
	require.True(t, e.Op&fsnotify.Create == fsnotify.Create || e.Op&fsnotify.Write == fsnotify.Write)
}

func TestWatcherFollowsNewSubfolders(t *testing.T) {
	dir := t.TempDir()
	events := make(chan fsnotify.Event, 16)

	w, err := NewWatcher(func(e fsnotify.Event) { events <- e }, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddFolder(dir))

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new folder.
	time.Sleep(250 * time.Millisecond)

	path := filepath.Join(sub, "deep.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	waitForEvent(t, events, path)
}
