package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/storyindex/internal/config"
	"github.com/mvp-joe/storyindex/internal/specifier"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

var (
	cfgFile    string
	verbosity  int
	quiet      bool
	projectDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storyindex",
	Short: "Build and serve the story index of a Storybook project",
	Long: `storyindex discovers the CSF and MDX files matched by a project's stories
configuration, extracts their stories and docs entries, and produces the
index.json document a Storybook manager consumes.

Configuration is read from .storyindex/config.yml, STORYINDEX_* environment
variables, and the stories field of the main config in .storybook/.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .storyindex/config.yml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbose output (-vv for debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress and log output")
	rootCmd.PersistentFlags().StringVar(&projectDir, "dir", "", "project directory (default is the current directory)")
}

// levelFromVerbosity maps -v counts to a log level. Warnings show by default.
func levelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return slog.LevelError + 4
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromVerbosity(verbosity, quiet),
	}))
}

// project is a loaded configuration bound to its directory.
type project struct {
	dir   string
	cfg   *config.Config
	specs []specifier.Specifier
}

func resolveProjectDir() (string, error) {
	dir := projectDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

func loadProject() (*project, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader(dir, cfgFile).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	specs, err := cfg.Specifiers(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid stories configuration: %w", err)
	}

	return &project{dir: dir, cfg: cfg, specs: specs}, nil
}

func (p *project) generator(logger *slog.Logger, progress storyindex.Progress) *storyindex.Generator {
	opts := p.cfg.GeneratorOptions(p.dir, logger)
	opts.Progress = progress
	return storyindex.NewGenerator(p.specs, opts)
}

// watchDirs returns the distinct specifier directories that exist.
func (p *project) watchDirs() []string {
	seen := make(map[string]bool, len(p.specs))
	var dirs []string
	for _, spec := range p.specs {
		dir := spec.AbsDir(p.dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// initialize runs the initial extraction. Link errors are left for GetIndex
// to report; servers stay up so the files can be fixed.
func initialize(ctx context.Context, gen *storyindex.Generator, logger *slog.Logger) error {
	err := gen.Initialize(ctx)
	if err == nil {
		return nil
	}
	var linkErr *storyindex.LinkError
	if errors.As(err, &linkErr) {
		logger.Warn("docs files reference missing stories", "error", err)
		return nil
	}
	return fmt.Errorf("failed to initialize story index: %w", err)
}
