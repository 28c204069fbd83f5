package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/storyindex/internal/mcp"
	"github.com/mvp-joe/storyindex/internal/search"
)

var mcpWatch bool

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: `Start a Model Context Protocol server that lets coding assistants list,
look up and search the stories of the project.

Tools:
  list_stories    list entries filtered by title prefix, type and tags
  get_story       fetch one entry by id
  search_stories  full text search over titles, names and import paths
  index_errors    report files that failed to index

Logs go to stderr; stdout carries the protocol.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVarP(&mcpWatch, "watch", "w", true, "watch story files for changes")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd.ErrOrStderr())
	p, err := loadProject()
	if err != nil {
		return err
	}

	gen := p.generator(logger, nil)
	if err := initialize(ctx, gen, logger); err != nil {
		return err
	}

	searcher, err := search.New(gen)
	if err != nil {
		return err
	}
	defer searcher.Close()

	if mcpWatch {
		if err := startWatching(ctx, p, gen, nil, logger); err != nil {
			return err
		}
	}

	return mcp.NewServer(gen, searcher, Version, logger).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
