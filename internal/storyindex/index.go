// Package storyindex builds the story index: it discovers story and docs
// files through specifiers, extracts them with the indexer registry, links
// docs files to the CSF files they reference, resolves duplicate ids, sorts
// the result and keeps it up to date under file invalidation.
package storyindex

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Version is the current index format version.
const Version = 4

// EntryType discriminates index entries.
type EntryType string

const (
	StoryType EntryType = "story"
	DocsType  EntryType = "docs"
)

// Reserved tags added by the generator.
const (
	TagStory         = "story"
	TagDocs          = "docs"
	TagAutodocs      = "autodocs"
	TagDocsPage      = "docsPage"
	TagStoriesMDX    = "stories-mdx"
	TagAttachedMDX   = "attached-mdx"
	TagUnattachedMDX = "unattached-mdx"
)

// Entry is one story or docs entry of the index.
type Entry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Name       string    `json:"name"`
	ImportPath string    `json:"importPath"`
	Tags       []string  `json:"tags"`
	Type       EntryType `json:"type"`
	// Standalone and StoriesImports are only meaningful for docs entries.
	Standalone     bool     `json:"standalone,omitempty"`
	StoriesImports []string `json:"storiesImports,omitempty"`
}

// IsMDX reports whether the entry comes from a standalone MDX docs file.
func (e Entry) IsMDX() bool {
	return e.Type == DocsType && (hasTag(e.Tags, TagAttachedMDX) || hasTag(e.Tags, TagUnattachedMDX))
}

// StoryIndex is an immutable, sorted snapshot of the index.
type StoryIndex struct {
	V       int
	Entries []Entry

	byID   map[string]int
	digest string
}

// NewStoryIndex builds an index from entries already in display order.
func NewStoryIndex(entries []Entry) *StoryIndex {
	ix := &StoryIndex{V: Version, Entries: entries, byID: make(map[string]int, len(entries))}
	for i, e := range entries {
		ix.byID[e.ID] = i
	}
	sum := sha256.New()
	enc := json.NewEncoder(sum)
	for _, e := range entries {
		_ = enc.Encode(e)
	}
	ix.digest = hex.EncodeToString(sum.Sum(nil))[:16]
	return ix
}

// Entry looks up an entry by id.
func (ix *StoryIndex) Entry(id string) (Entry, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return Entry{}, false
	}
	return ix.Entries[i], true
}

// Digest identifies the index content.
func (ix *StoryIndex) Digest() string {
	return ix.digest
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
