package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - New fails when no directory exists and skips missing ones otherwise
// - a single file change fires one callback after the debounce
// - rapid changes to several files collapse into one sorted batch
// - removed files are reported as removed
// - extension filtering and .storyshot files are ignored
// - a new directory is watched and its files reported
// - Pause accumulates; Resume fires immediately
// - Stop is idempotent and safe before Start

const testDebounce = 50 * time.Millisecond

func startWatcher(t *testing.T, dir string) (FileWatcher, <-chan []Change) {
	t.Helper()
	w, err := New([]string{dir}, Options{Debounce: testDebounce})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	batches := make(chan []Change, 10)
	require.NoError(t, w.Start(context.Background(), func(changes []Change) {
		batches <- changes
	}))
	time.Sleep(50 * time.Millisecond)
	return w, batches
}

func waitBatch(t *testing.T, batches <-chan []Change) []Change {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("callback not called after timeout")
		return nil
	}
}

func assertNoBatch(t *testing.T, batches <-chan []Change) {
	t.Helper()
	select {
	case b := <-batches:
		t.Fatalf("unexpected batch: %v", b)
	case <-time.After(4 * testDebounce):
	}
}

func TestNew_Directories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := New([]string{filepath.Join(dir, "missing")}, Options{})
	assert.Error(t, err)

	w, err := New([]string{dir, filepath.Join(dir, "missing")}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Stop())
}

func TestFileWatcher_SingleChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, batches := startWatcher(t, dir)

	file := filepath.Join(dir, "Button.stories.tsx")
	require.NoError(t, os.WriteFile(file, []byte("export default {}"), 0644))

	b := waitBatch(t, batches)
	assert.Equal(t, []Change{{Path: file, Removed: false}}, b)
}

func TestFileWatcher_Batching(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, batches := startWatcher(t, dir)

	b1 := filepath.Join(dir, "b.stories.js")
	a1 := filepath.Join(dir, "a.stories.js")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(b1, []byte("v"), 0644))
		require.NoError(t, os.WriteFile(a1, []byte("v"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	b := waitBatch(t, batches)
	assert.Equal(t, []Change{{Path: a1}, {Path: b1}}, b)
	assertNoBatch(t, batches)
}

func TestFileWatcher_Removed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "Gone.stories.js")
	require.NoError(t, os.WriteFile(file, []byte("v"), 0644))
	_, batches := startWatcher(t, dir)

	require.NoError(t, os.Remove(file))
	b := waitBatch(t, batches)
	assert.Equal(t, []Change{{Path: file, Removed: true}}, b)
}

func TestFileWatcher_Filtering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, batches := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("v"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Snap.stories.js.storyshot"), []byte("v"), 0644))
	assertNoBatch(t, batches)
}

func TestFileWatcher_NewDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, batches := startWatcher(t, dir)

	sub := filepath.Join(dir, "atoms")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "Icon.stories.tsx")
	require.NoError(t, os.WriteFile(file, []byte("v"), 0644))
	b := waitBatch(t, batches)
	assert.Contains(t, b, Change{Path: file})
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, batches := startWatcher(t, dir)

	w.Pause()
	file := filepath.Join(dir, "Paused.stories.js")
	require.NoError(t, os.WriteFile(file, []byte("v"), 0644))
	assertNoBatch(t, batches)

	w.Resume()
	b := waitBatch(t, batches)
	assert.Equal(t, []Change{{Path: file}}, b)
}

func TestFileWatcher_Stop(t *testing.T) {
	t.Parallel()

	w, err := New([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	w, err = New([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), func([]Change) {}))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Stop()
		}()
	}
	wg.Wait()
}
