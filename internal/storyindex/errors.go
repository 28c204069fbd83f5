package storyindex

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned by GetIndex before Initialize.
	ErrNotInitialized = errors.New("story index generator is not initialized")
	// ErrNoIndexer is returned for files no indexer handles.
	ErrNoIndexer = errors.New("no matching indexer found")
)

// MDXWithoutStoryStoreV7 is the soft error text for docs files in legacy
// store mode.
const MDXWithoutStoryStoreV7 = "You cannot use `.mdx` files without using `storyStoreV7`."

// IndexingError is a file-local extraction failure.
type IndexingError struct {
	Err         error
	ImportPaths []string
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s: %v", e.paths(), e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

func (e *IndexingError) paths() string {
	switch len(e.ImportPaths) {
	case 0:
		return "(unknown file)"
	case 1:
		return e.ImportPaths[0]
	default:
		return fmt.Sprintf("%s and %d more", e.ImportPaths[0], len(e.ImportPaths)-1)
	}
}

// LinkError reports a docs file whose `of` target is not an indexed CSF
// file. It fails the whole index.
type LinkError struct {
	Of       string
	DocsFile string
}

func (e *LinkError) Error() string {
	return strings.Join([]string{
		fmt.Sprintf("Could not find CSF file at path %q referenced by `of={}` in docs file %q.", e.Of, e.DocsFile),
		"  - Does that file exist?",
		"  - If so, is it a CSF file (`.stories.*`)?",
		"  - If so, is it matched by the `stories` glob in `main.js`?",
	}, "\n")
}

// DuplicateEntriesError carries two entries that resolve to the same id
// with no applicable tie-break.
type DuplicateEntriesError struct {
	Message string
	First   Entry
	Second  Entry
}

func (e *DuplicateEntriesError) Error() string {
	return fmt.Sprintf("%s (%s, %s)", e.Message, e.First.ImportPath, e.Second.ImportPath)
}

// SoftError is a user-facing message returned instead of an index.
type SoftError struct {
	Message string
}

func (e *SoftError) Error() string { return e.Message }
