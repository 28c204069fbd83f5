package watcher

import (
	"context"
	"log/slog"
)

// Coordinator routes debounced file changes to the story index and sends
// one notification per batch that affected it.
type Coordinator struct {
	files  FileWatcher
	index  Invalidator
	notify func()
	log    *slog.Logger
}

// NewCoordinator creates a coordinator. notify may be nil.
func NewCoordinator(files FileWatcher, index Invalidator, notify func(), logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if notify == nil {
		notify = func() {}
	}
	return &Coordinator{files: files, index: index, notify: notify, log: logger}
}

// Start begins routing changes. Blocks until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.files.Start(ctx, c.handleChanges); err != nil {
		c.cleanup()
		return err
	}
	<-ctx.Done()
	c.cleanup()
	return ctx.Err()
}

func (c *Coordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		c.log.Warn("file watcher stop failed", "error", err)
	}
}

// Rescan re-discovers the story files with file events held back, then
// notifies.
func (c *Coordinator) Rescan(ctx context.Context) error {
	c.files.Pause()
	defer c.files.Resume()

	if err := c.index.Rescan(ctx); err != nil {
		return err
	}
	c.notify()
	return nil
}

// handleChanges invalidates every changed file and notifies once.
func (c *Coordinator) handleChanges(changes []Change) {
	if len(changes) == 0 {
		return
	}

	affected := 0
	for _, ch := range changes {
		if c.index.InvalidateFile(ch.Path, ch.Removed) {
			affected++
		}
	}
	c.log.Debug("processed file changes", "changes", len(changes), "affected", affected)
	if affected > 0 {
		c.notify()
	}
}
