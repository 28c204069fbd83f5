package watcher

import "context"

// Change is one debounced file system change.
type Change struct {
	Path    string
	Removed bool
}

// FileWatcher monitors story directories for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching, calling callback with each debounced batch of changes.
	Start(ctx context.Context, callback func(changes []Change)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// Invalidator is the part of the story index the coordinator drives.
type Invalidator interface {
	// InvalidateFile reports whether the change affected the index.
	InvalidateFile(absPath string, removed bool) bool

	// Rescan re-discovers every specifier.
	Rescan(ctx context.Context) error
}
