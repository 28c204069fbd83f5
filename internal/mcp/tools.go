package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/storyindex/internal/search"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ListStoriesRequest are the list_stories arguments.
type ListStoriesRequest struct {
	TitlePrefix string   `json:"title_prefix,omitempty"`
	Type        string   `json:"type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// ListStoriesResponse is the list_stories result.
type ListStoriesResponse struct {
	Entries []storyindex.Entry `json:"entries"`
	Total   int                `json:"total"`
}

// GetStoryRequest are the get_story arguments.
type GetStoryRequest struct {
	ID string `json:"id"`
}

// SearchStoriesRequest are the search_stories arguments.
type SearchStoriesRequest struct {
	Query string `json:"query"`
	Type  string `json:"type,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SearchStoriesResponse is the search_stories result.
type SearchStoriesResponse struct {
	Results []search.Result `json:"results"`
	Total   int             `json:"total"`
}

// IndexErrorsResponse is the index_errors result.
type IndexErrorsResponse struct {
	// IndexError fails the whole index (broken links, duplicates).
	IndexError string      `json:"index_error,omitempty"`
	Files      []FileError `json:"files"`
}

// FileError is one file that could not be indexed.
type FileError struct {
	ImportPaths []string `json:"import_paths"`
	Error       string   `json:"error"`
}

// AddListStoriesTool registers list_stories.
func AddListStoriesTool(s *server.MCPServer, src Source) {
	tool := mcp.NewTool(
		"list_stories",
		mcp.WithDescription("List story and docs entries of the story index in sidebar order. Filter by title prefix (e.g. 'Atoms/'), entry type or tags."),
		mcp.WithString("title_prefix",
			mcp.Description("Only entries whose title starts with this prefix")),
		mcp.WithString("type",
			mcp.Description("Entry type: story or docs"),
			mcp.Enum("story", "docs")),
		mcp.WithArray("tags",
			mcp.Description("Only entries carrying ALL of these tags")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (1-1000, default: 100)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createListStoriesHandler(src))
}

func createListStoriesHandler(src Source) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req ListStoriesRequest
		if err := bindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if req.Limit <= 0 || req.Limit > maxListLimit {
			req.Limit = defaultListLimit
		}

		ix, err := src.GetIndex(ctx)
		if err != nil {
			return indexErrorResult(err)
		}

		resp := ListStoriesResponse{Entries: []storyindex.Entry{}}
		for _, e := range ix.Entries {
			if !strings.HasPrefix(e.Title, req.TitlePrefix) {
				continue
			}
			if req.Type != "" && string(e.Type) != req.Type {
				continue
			}
			if !hasAllTags(e.Tags, req.Tags) {
				continue
			}
			resp.Total++
			if len(resp.Entries) < req.Limit {
				resp.Entries = append(resp.Entries, e)
			}
		}
		return marshalToolResponse(resp)
	}
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// AddGetStoryTool registers get_story.
func AddGetStoryTool(s *server.MCPServer, src Source) {
	tool := mcp.NewTool(
		"get_story",
		mcp.WithDescription("Get one story index entry by id (e.g. 'atoms-button--primary')."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entry id")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createGetStoryHandler(src))
}

func createGetStoryHandler(src Source) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req GetStoryRequest
		if err := bindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if req.ID == "" {
			return mcp.NewToolResultError("id parameter is required"), nil
		}

		ix, err := src.GetIndex(ctx)
		if err != nil {
			return indexErrorResult(err)
		}
		e, ok := ix.Entry(req.ID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no entry with id %q", req.ID)), nil
		}
		return marshalToolResponse(e)
	}
}

// AddSearchStoriesTool registers search_stories.
func AddSearchStoriesTool(s *server.MCPServer, searcher *search.Searcher) {
	tool := mcp.NewTool(
		"search_stories",
		mcp.WithDescription("Full-text search over story titles, names, tags and import paths. Supports field scoping (title:button), phrases, wildcards and fuzzy matching."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (e.g. 'button', 'name:primary', 'tags:autodocs')")),
		mcp.WithString("type",
			mcp.Description("Entry type: story or docs"),
			mcp.Enum("story", "docs")),
		mcp.WithString("tag",
			mcp.Description("Only entries carrying this tag")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (1-100, default: 15)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createSearchStoriesHandler(searcher))
}

func createSearchStoriesHandler(searcher *search.Searcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req SearchStoriesRequest
		if err := bindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if req.Query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		results, err := searcher.Search(ctx, req.Query, &search.Options{
			Limit: req.Limit,
			Type:  storyindex.EntryType(req.Type),
			Tag:   req.Tag,
		})
		if err != nil {
			return indexErrorResult(err)
		}
		return marshalToolResponse(SearchStoriesResponse{Results: results, Total: len(results)})
	}
}

// AddIndexErrorsTool registers index_errors.
func AddIndexErrorsTool(s *server.MCPServer, src Source) {
	tool := mcp.NewTool(
		"index_errors",
		mcp.WithDescription("Report files that could not be indexed and any error that fails the whole story index."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createIndexErrorsHandler(src))
}

func createIndexErrorsHandler(src Source) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := IndexErrorsResponse{Files: []FileError{}}
		if _, err := src.GetIndex(ctx); err != nil {
			if res, sysErr := indexErrorResult(err); sysErr != nil {
				return res, sysErr
			}
			resp.IndexError = err.Error()
		}
		for _, fe := range src.FileErrors() {
			resp.Files = append(resp.Files, FileError{ImportPaths: fe.ImportPaths, Error: fe.Err.Error()})
		}
		return marshalToolResponse(resp)
	}
}
