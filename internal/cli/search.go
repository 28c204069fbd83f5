package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/storyindex/internal/search"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

var (
	searchLimit int
	searchType  string
	searchTag   string
	searchJSON  bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search story titles, names and import paths",
	Long: `Search builds the index and runs a query string query over it.

Queries support field scoping (title:, name:, import_path:), phrases,
wildcards and fuzziness (button~1).

Examples:
  storyindex search button
  storyindex search 'title:forms name:primary' --type story
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default 15)")
	searchCmd.Flags().StringVar(&searchType, "type", "", "only entries of this type (story or docs)")
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "only entries with this tag")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
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

	results, err := searcher.Search(ctx, strings.Join(args, " "), &search.Options{
		Limit: searchLimit,
		Type:  storyindex.EntryType(searchType),
		Tag:   searchTag,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No matching entries")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tTYPE\tIMPORT PATH")
	for _, r := range results {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", r.Score, r.Entry.ID, r.Entry.Type, r.Entry.ImportPath)
	}
	return tw.Flush()
}
