// Package search provides full-text search over story index entries.
package search

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/storyindex/internal/storyindex"
)

const (
	defaultLimit = 15
	maxLimit     = 100
	batchSize    = 1000
)

// Source supplies the current story index.
type Source interface {
	GetIndex(ctx context.Context) (*storyindex.StoryIndex, error)
}

// Options narrow a search. A nil Options applies the defaults.
type Options struct {
	Limit int
	// Type restricts hits to "story" or "docs".
	Type storyindex.EntryType
	// Tag restricts hits to entries carrying the tag.
	Tag string
}

// Result is a single hit.
type Result struct {
	Entry storyindex.Entry `json:"entry"`
	Score float64          `json:"score"`
}

// Searcher keeps a bleve in-memory index in step with a Source. The bleve
// index is brought up to date lazily, on the first search after the story
// index digest changes.
type Searcher struct {
	source Source

	mu      sync.RWMutex
	index   bleve.Index
	digest  string
	entries map[string]storyindex.Entry
}

// New creates a searcher over source.
func New(source Source) (*Searcher, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &Searcher{
		source:  source,
		index:   index,
		entries: make(map[string]storyindex.Entry),
	}, nil
}

// buildMapping indexes titles and names for prose search and keeps type and
// tags as keywords for filtering.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	text := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = "standard"
		m.Store = false
		m.Index = true
		return m
	}
	keyword := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = "keyword"
		m.Store = false
		m.Index = true
		return m
	}

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text())
	doc.AddFieldMappingsAt("name", text())
	doc.AddFieldMappingsAt("import_path", text())
	doc.AddFieldMappingsAt("type", keyword())
	doc.AddFieldMappingsAt("tags", keyword())

	indexMapping.DefaultMapping = doc
	return indexMapping
}

func toDocument(e storyindex.Entry) map[string]any {
	return map[string]any{
		"title":       e.Title,
		"name":        e.Name,
		"import_path": e.ImportPath,
		"type":        string(e.Type),
		"tags":        e.Tags,
	}
}

// Sync brings the bleve index up to date with the source. It is called by
// Search; callers only need it to pay the cost up front.
func (s *Searcher) Sync(ctx context.Context) error {
	ix, err := s.source.GetIndex(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	current := s.digest == ix.Digest()
	s.mu.RUnlock()
	if current {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.digest == ix.Digest() {
		return nil
	}

	next := make(map[string]storyindex.Entry, len(ix.Entries))
	batch := s.index.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute batch: %w", err)
		}
		batch = s.index.NewBatch()
		return nil
	}

	for i, e := range ix.Entries {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		next[e.ID] = e
		if old, ok := s.entries[e.ID]; ok && sameEntry(old, e) {
			continue
		}
		if err := batch.Index(e.ID, toDocument(e)); err != nil {
			return fmt.Errorf("failed to add entry %s to batch: %w", e.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	for id := range s.entries {
		if _, ok := next[id]; !ok {
			batch.Delete(id)
		}
	}
	if err := flush(); err != nil {
		return err
	}

	s.entries = next
	s.digest = ix.Digest()
	return nil
}

func sameEntry(a, b storyindex.Entry) bool {
	return a.Title == b.Title && a.Name == b.Name && a.ImportPath == b.ImportPath &&
		a.Type == b.Type && slices.Equal(a.Tags, b.Tags)
}

// Search runs a bleve query string query (field scoping, phrases, wildcards,
// fuzziness) over the current entries. Hits come back best first.
func (s *Searcher) Search(ctx context.Context, queryStr string, opts *Options) ([]Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	if err := s.Sync(ctx); err != nil {
		return nil, err
	}

	queries := []query.Query{bleve.NewQueryStringQuery(queryStr)}
	if opts.Type != "" {
		q := bleve.NewTermQuery(string(opts.Type))
		q.SetField("type")
		queries = append(queries, q)
	}
	if opts.Tag != "" {
		q := bleve.NewTermQuery(opts.Tag)
		q.SetField("tags")
		queries = append(queries, q)
	}

	var final query.Query = queries[0]
	if len(queries) > 1 {
		final = bleve.NewConjunctionQuery(queries...)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(final, limit, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		e, ok := s.entries[hit.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Entry: e, Score: hit.Score})
	}
	return results, nil
}

// Close releases the bleve index.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
