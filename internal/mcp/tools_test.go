package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/storyindex/internal/search"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// Test Plan for story tools:
// - NewServer registers the tools, search_stories only with a searcher
// - list_stories filters by title prefix, type and tags and honours limit
// - get_story returns the entry or a tool error for unknown ids
// - search_stories returns hits and requires a query
// - index_errors reports file errors and index-failing errors
// - index errors a user can fix are tool errors; others are system errors
// - bindArguments coerces stringly typed arguments

type fakeSource struct {
	ix         *storyindex.StoryIndex
	err        error
	fileErrors []*storyindex.IndexingError
}

func (f *fakeSource) GetIndex(ctx context.Context) (*storyindex.StoryIndex, error) {
	return f.ix, f.err
}

func (f *fakeSource) FileErrors() []*storyindex.IndexingError {
	return f.fileErrors
}

func testSource() *fakeSource {
	return &fakeSource{ix: storyindex.NewStoryIndex([]storyindex.Entry{
		{ID: "atoms-button--docs", Title: "Atoms/Button", Name: "Docs", ImportPath: "./src/Button.stories.tsx", Type: storyindex.DocsType, Tags: []string{"autodocs", "docs"}},
		{ID: "atoms-button--primary", Title: "Atoms/Button", Name: "Primary", ImportPath: "./src/Button.stories.tsx", Type: storyindex.StoryType, Tags: []string{"story"}},
		{ID: "molecules-card--basic", Title: "Molecules/Card", Name: "Basic", ImportPath: "./src/Card.stories.tsx", Type: storyindex.StoryType, Tags: []string{"beta", "story"}},
	})}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err, "should not return system error")
	require.NotNil(t, result)
	return result
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, "should not be error result")
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "should be text content")
	var v T
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &v))
	return v
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, result.IsError, "should be error result")
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

func TestNewServer_Tools(t *testing.T) {
	t.Parallel()

	tools := listTools(t, NewServer(testSource(), nil, "test", nil))
	assert.Contains(t, tools, `"list_stories"`)
	assert.Contains(t, tools, `"get_story"`)
	assert.Contains(t, tools, `"index_errors"`)
	assert.NotContains(t, tools, `"search_stories"`)

	searcher, err := search.New(testSource())
	require.NoError(t, err)
	defer searcher.Close()
	tools = listTools(t, NewServer(testSource(), searcher, "test", nil))
	assert.Contains(t, tools, `"search_stories"`)
}

func listTools(t *testing.T, s *Server) string {
	t.Helper()
	msg := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(out)
}

func TestListStories(t *testing.T) {
	t.Parallel()

	handler := createListStoriesHandler(testSource())

	tests := []struct {
		name    string
		args    map[string]any
		wantIDs []string
		total   int
	}{
		{"all", map[string]any{}, []string{"atoms-button--docs", "atoms-button--primary", "molecules-card--basic"}, 3},
		{"title prefix", map[string]any{"title_prefix": "Atoms/"}, []string{"atoms-button--docs", "atoms-button--primary"}, 2},
		{"type", map[string]any{"type": "docs"}, []string{"atoms-button--docs"}, 1},
		{"tags", map[string]any{"tags": []any{"story", "beta"}}, []string{"molecules-card--basic"}, 1},
		{"string tags", map[string]any{"tags": `["beta"]`}, []string{"molecules-card--basic"}, 1},
		{"limit", map[string]any{"limit": float64(1)}, []string{"atoms-button--docs"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := decode[ListStoriesResponse](t, call(t, handler, tt.args))
			ids := make([]string, len(resp.Entries))
			for i, e := range resp.Entries {
				ids[i] = e.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.total, resp.Total)
		})
	}
}

func TestGetStory(t *testing.T) {
	t.Parallel()

	handler := createGetStoryHandler(testSource())

	e := decode[storyindex.Entry](t, call(t, handler, map[string]any{"id": "atoms-button--primary"}))
	assert.Equal(t, "Primary", e.Name)
	assert.Equal(t, "Atoms/Button", e.Title)

	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"id": "nope"})), "no entry")
	assert.Contains(t, errorText(t, call(t, handler, map[string]any{})), "required")
}

func TestSearchStories(t *testing.T) {
	t.Parallel()

	searcher, err := search.New(testSource())
	require.NoError(t, err)
	defer searcher.Close()
	handler := createSearchStoriesHandler(searcher)

	resp := decode[SearchStoriesResponse](t, call(t, handler, map[string]any{"query": "card"}))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "molecules-card--basic", resp.Results[0].Entry.ID)

	resp = decode[SearchStoriesResponse](t, call(t, handler, map[string]any{"query": "button", "type": "docs", "limit": "5"}))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "atoms-button--docs", resp.Results[0].Entry.ID)

	assert.Contains(t, errorText(t, call(t, handler, map[string]any{})), "required")
}

func TestIndexErrors(t *testing.T) {
	t.Parallel()

	src := testSource()
	src.fileErrors = []*storyindex.IndexingError{
		{Err: errors.New("unexpected token"), ImportPaths: []string{"./src/Broken.stories.tsx"}},
	}
	resp := decode[IndexErrorsResponse](t, call(t, createIndexErrorsHandler(src), nil))
	assert.Empty(t, resp.IndexError)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, []string{"./src/Broken.stories.tsx"}, resp.Files[0].ImportPaths)
	assert.Equal(t, "unexpected token", resp.Files[0].Error)

	src = &fakeSource{err: &storyindex.LinkError{Of: "./Missing", DocsFile: "./Intro.mdx"}}
	resp = decode[IndexErrorsResponse](t, call(t, createIndexErrorsHandler(src), nil))
	assert.Contains(t, resp.IndexError, "Could not find CSF file")
}

func TestIndexErrorResult(t *testing.T) {
	t.Parallel()

	handler := createGetStoryHandler(&fakeSource{err: &storyindex.DuplicateEntriesError{Message: "Duplicate stories with id: a--b"}})
	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"id": "a--b"})), "Duplicate")

	boom := errors.New("disk on fire")
	handler = createGetStoryHandler(&fakeSource{err: boom})
	_, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: map[string]any{"id": "a--b"}},
	})
	assert.ErrorIs(t, err, boom)
}

type argsRequest map[string]any

func (a argsRequest) GetArguments() map[string]any { return a }

func TestBindArguments(t *testing.T) {
	t.Parallel()

	var req ListStoriesRequest
	require.NoError(t, bindArguments(argsRequest{
		"title_prefix": "Atoms",
		"tags":         `["a", "b"]`,
		"limit":        "10",
	}, &req))
	assert.Equal(t, ListStoriesRequest{TitlePrefix: "Atoms", Tags: []string{"a", "b"}, Limit: 10}, req)

	req = ListStoriesRequest{}
	require.NoError(t, bindArguments(argsRequest{
		"tags":  []string{"a"},
		"limit": 3,
	}, &req))
	assert.Equal(t, []string{"a"}, req.Tags)
	assert.Equal(t, 3, req.Limit)

	req = ListStoriesRequest{}
	require.NoError(t, bindArguments(argsRequest{"tags": "a,b"}, &req))
	assert.Equal(t, []string{"a", "b"}, req.Tags)
}
