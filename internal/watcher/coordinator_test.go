package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Coordinator:
// - a batch invalidates every changed file and notifies once
// - a batch that affects nothing does not notify
// - Rescan pauses the watcher, rescans, notifies and resumes
// - a watcher start error is propagated and the watcher stopped
// - context cancellation stops the watcher

type mockFileWatcher struct {
	mu       sync.Mutex
	startErr error
	callback func([]Change)
	started  chan struct{}
	stopped  bool
	calls    []string
}

func newMockFileWatcher() *mockFileWatcher {
	return &mockFileWatcher{started: make(chan struct{})}
}

func (m *mockFileWatcher) Start(ctx context.Context, callback func([]Change)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.callback = callback
	close(m.started)
	return nil
}

func (m *mockFileWatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockFileWatcher) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pause")
}

func (m *mockFileWatcher) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "resume")
}

func (m *mockFileWatcher) fire(changes []Change) {
	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	cb(changes)
}

type mockInvalidator struct {
	mu          sync.Mutex
	affected    map[string]bool
	invalidated []Change
	rescans     int
}

func (m *mockInvalidator) InvalidateFile(absPath string, removed bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, Change{Path: absPath, Removed: removed})
	return m.affected[absPath]
}

func (m *mockInvalidator) Rescan(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rescans++
	return nil
}

func TestCoordinator_HandleChanges(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	index := &mockInvalidator{affected: map[string]bool{"/a.stories.js": true, "/b.stories.js": true}}
	notified := 0
	c := NewCoordinator(files, index, func() { notified++ }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-files.started

	files.fire([]Change{{Path: "/a.stories.js"}, {Path: "/b.stories.js", Removed: true}, {Path: "/other.js"}})
	assert.Equal(t, 1, notified)
	assert.Equal(t, []Change{{Path: "/a.stories.js"}, {Path: "/b.stories.js", Removed: true}, {Path: "/other.js"}}, index.invalidated)

	files.fire([]Change{{Path: "/other.js"}})
	assert.Equal(t, 1, notified)

	files.fire(nil)
	assert.Equal(t, 1, notified)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop")
	}
	assert.True(t, files.stopped)
}

func TestCoordinator_Rescan(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	index := &mockInvalidator{}
	notified := 0
	c := NewCoordinator(files, index, func() { notified++ }, nil)

	require.NoError(t, c.Rescan(context.Background()))
	assert.Equal(t, 1, index.rescans)
	assert.Equal(t, 1, notified)
	assert.Equal(t, []string{"pause", "resume"}, files.calls)
}

func TestCoordinator_StartError(t *testing.T) {
	t.Parallel()

	files := newMockFileWatcher()
	files.startErr = errors.New("boom")
	c := NewCoordinator(files, &mockInvalidator{}, nil, nil)

	err := c.Start(context.Background())
	assert.EqualError(t, err, "boom")
	assert.True(t, files.stopped)
}
