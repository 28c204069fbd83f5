package config

import (
	"log/slog"
	"time"

	"github.com/mvp-joe/storyindex/internal/indexers"
	"github.com/mvp-joe/storyindex/internal/specifier"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// Specifiers normalizes the stories entries against the config directory.
func (c *Config) Specifiers(workingDir string) ([]specifier.Specifier, error) {
	return specifier.NormalizeAll(c.Stories, c.ConfigDir, workingDir)
}

// GeneratorOptions converts a Config to storyindex.Options.
func (c *Config) GeneratorOptions(workingDir string, logger *slog.Logger) storyindex.Options {
	opts := storyindex.Options{
		WorkingDir: workingDir,
		Indexers:   indexers.New(),
		Docs: storyindex.DocsOptions{
			Enabled:     c.Docs.Enabled,
			Autodocs:    c.Docs.Autodocs,
			DefaultName: c.Docs.DefaultName,
		},
		StoryStoreV7:     c.StoryStoreV7,
		Logger:           logger,
		Concurrency:      c.Concurrency,
		RespectGitignore: c.RespectGitignore,
	}
	if c.StorySort != nil {
		sortOpts := *c.StorySort
		opts.StorySort = sortOpts.Comparator
	}
	return opts
}

// Debounce returns the watch debounce.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
