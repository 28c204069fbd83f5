// Package mcp serves the story index to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/storyindex/internal/search"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// Source is the part of the story index generator the tools read.
type Source interface {
	GetIndex(ctx context.Context) (*storyindex.StoryIndex, error)
	FileErrors() []*storyindex.IndexingError
}

// Server owns the MCP server and its tools.
type Server struct {
	mcp *server.MCPServer
	log *slog.Logger
}

// NewServer registers the story tools. searcher may be nil, in which case
// search_stories is not offered.
func NewServer(src Source, searcher *search.Searcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := server.NewMCPServer(
		"storyindex",
		version,
		server.WithToolCapabilities(true),
	)

	AddListStoriesTool(s, src)
	AddGetStoryTool(s, src)
	AddIndexErrorsTool(s, src)
	if searcher != nil {
		AddSearchStoriesTool(s, searcher)
	}

	return &Server{mcp: s, log: logger}
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve runs the server on the given streams until ctx is cancelled or the
// input is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("starting MCP server on stdio")
	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
