package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// Test Plan for Searcher:
// - a word in the title finds every entry under that title
// - field scoped queries (name:primary) narrow hits
// - Type and Tag options filter hits
// - a new index digest re-syncs: added entries appear, removed ones vanish
// - source errors are returned
// - limit is honoured

type fakeSource struct {
	mu  sync.Mutex
	ix  *storyindex.StoryIndex
	err error
}

func (f *fakeSource) GetIndex(ctx context.Context) (*storyindex.StoryIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ix, f.err
}

func (f *fakeSource) set(entries []storyindex.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ix = storyindex.NewStoryIndex(entries)
}

func story(id, title, name string, tags ...string) storyindex.Entry {
	return storyindex.Entry{
		ID:         id,
		Title:      title,
		Name:       name,
		ImportPath: "./src/" + name + ".stories.tsx",
		Type:       storyindex.StoryType,
		Tags:       append([]string{"story"}, tags...),
	}
}

func fixture() []storyindex.Entry {
	return []storyindex.Entry{
		story("atoms-button--primary", "Atoms/Button", "Primary"),
		story("atoms-button--secondary", "Atoms/Button", "Secondary"),
		story("molecules-card--basic", "Molecules/Card", "Basic", "beta"),
		{
			ID:         "atoms-button--docs",
			Title:      "Atoms/Button",
			Name:       "Docs",
			ImportPath: "./src/Button.stories.tsx",
			Type:       storyindex.DocsType,
			Tags:       []string{"autodocs", "docs"},
		},
	}
}

func newSearcher(t *testing.T, src Source) *Searcher {
	t.Helper()
	s, err := New(src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entry.ID
	}
	return out
}

func TestSearch_Title(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(fixture())
	s := newSearcher(t, src)

	results, err := s.Search(context.Background(), "button", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"atoms-button--primary", "atoms-button--secondary", "atoms-button--docs"}, ids(results))
}

func TestSearch_FieldScoped(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(fixture())
	s := newSearcher(t, src)

	results, err := s.Search(context.Background(), "name:primary", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"atoms-button--primary"}, ids(results))
}

func TestSearch_Filters(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(fixture())
	s := newSearcher(t, src)

	results, err := s.Search(context.Background(), "button", &Options{Type: storyindex.DocsType})
	require.NoError(t, err)
	assert.Equal(t, []string{"atoms-button--docs"}, ids(results))

	results, err = s.Search(context.Background(), "card", &Options{Tag: "beta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"molecules-card--basic"}, ids(results))

	results, err = s.Search(context.Background(), "button", &Options{Tag: "beta"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_Resync(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(fixture())
	s := newSearcher(t, src)

	_, err := s.Search(context.Background(), "button", nil)
	require.NoError(t, err)

	src.set([]storyindex.Entry{
		story("atoms-button--primary", "Atoms/Button", "Primary"),
		story("atoms-badge--default", "Atoms/Badge", "Default"),
	})

	results, err := s.Search(context.Background(), "button", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"atoms-button--primary"}, ids(results))

	results, err = s.Search(context.Background(), "badge", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"atoms-badge--default"}, ids(results))
}

func TestSearch_SourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := newSearcher(t, &fakeSource{err: boom})

	_, err := s.Search(context.Background(), "button", nil)
	assert.ErrorIs(t, err, boom)
}

func TestSearch_Limit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(fixture())
	s := newSearcher(t, src)

	results, err := s.Search(context.Background(), "button", &Options{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
