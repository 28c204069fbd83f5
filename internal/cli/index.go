package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/storyindex/internal/storyindex"
	"github.com/mvp-joe/storyindex/internal/wire"
)

var (
	indexFormat string
	indexOut    string
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the story index and write it as JSON",
	Long: `Index discovers every story and docs file matched by the stories
configuration, extracts their entries and prints the index document.

Examples:
  # Print index.json to stdout
  storyindex index

  # Write the legacy stories.json format to a file
  storyindex index --format v3 --out storybook-static/stories.json
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexFormat, "format", "v4", "document format: v4 (index.json) or v3 (stories.json)")
	indexCmd.Flags().StringVarP(&indexOut, "out", "o", "", "output file (default is stdout)")
}

func marshalerFor(format string) (func(*storyindex.StoryIndex) ([]byte, error), error) {
	switch format {
	case "v4", "4":
		return wire.MarshalV4, nil
	case "v3", "3":
		return wire.MarshalV3, nil
	}
	return nil, fmt.Errorf("unknown format %q: expected v4 or v3", format)
}

func runIndex(cmd *cobra.Command, args []string) error {
	marshal, err := marshalerFor(indexFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd.ErrOrStderr())
	p, err := loadProject()
	if err != nil {
		return err
	}

	progress := NewCLIProgressReporter(cmd.ErrOrStderr(), quiet)
	gen := p.generator(logger, progress)
	if err := initialize(ctx, gen, logger); err != nil {
		return err
	}

	index, err := gen.GetIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to build story index: %w", err)
	}
	progress.Finish(len(index.Entries))

	data, err := marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode story index: %w", err)
	}

	if indexOut == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(indexOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", indexOut, err)
	}
	logger.Info("wrote story index", "path", indexOut, "entries", len(index.Entries))
	return nil
}
