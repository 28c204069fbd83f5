package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/storyindex/internal/storyindex"
)

var (
	// ErrNoStories indicates neither the project config nor the main config
	// lists stories
	ErrNoStories = errors.New("no stories configured")

	// ErrInvalidStoriesEntry indicates an entry without glob or directory
	ErrInvalidStoriesEntry = errors.New("invalid stories entry")

	// ErrInvalidAutodocs indicates an unknown autodocs mode
	ErrInvalidAutodocs = errors.New("invalid autodocs mode")

	// ErrEmptyDocsName indicates a missing default docs name
	ErrEmptyDocsName = errors.New("empty default docs name")

	// ErrInvalidStorySort indicates a story_sort that cannot be compiled
	ErrInvalidStorySort = errors.New("invalid story_sort")

	// ErrInvalidServer indicates invalid server settings
	ErrInvalidServer = errors.New("invalid server settings")

	// ErrInvalidConcurrency indicates a negative worker count
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidDebounce indicates a negative debounce
	ErrInvalidDebounce = errors.New("invalid debounce")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateStories(cfg); err != nil {
		errs = append(errs, err)
	}

	if err := validateDocs(&cfg.Docs); err != nil {
		errs = append(errs, err)
	}

	if cfg.StorySort != nil {
		if _, err := cfg.StorySort.Comparator(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidStorySort, err))
		}
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: addr is required", ErrInvalidServer))
	}

	if cfg.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidDebounce, cfg.Watch.DebounceMS))
	}

	if cfg.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: concurrency cannot be negative, got %d", ErrInvalidConcurrency, cfg.Concurrency))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateStories(cfg *Config) error {
	if len(cfg.Stories) == 0 {
		return fmt.Errorf("%w: add stories to %s/config.yml or to the main config in %s", ErrNoStories, ProjectDir, cfg.ConfigDir)
	}

	var errs []error
	for i, e := range cfg.Stories {
		if e.Glob == "" && e.Directory == "" {
			errs = append(errs, fmt.Errorf("%w: stories[%d] needs a glob or a directory", ErrInvalidStoriesEntry, i))
		}
		if e.Glob != "" && e.Directory != "" {
			errs = append(errs, fmt.Errorf("%w: stories[%d] sets both glob and directory", ErrInvalidStoriesEntry, i))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateDocs(cfg *DocsConfig) error {
	var errs []error

	switch cfg.Autodocs {
	case storyindex.AutodocsOff, storyindex.AutodocsTag, storyindex.AutodocsOn:
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'true', 'false' or 'tag', got '%s'", ErrInvalidAutodocs, cfg.Autodocs))
	}

	if cfg.Enabled && strings.TrimSpace(cfg.DefaultName) == "" {
		errs = append(errs, fmt.Errorf("%w: default_name is required when docs are enabled", ErrEmptyDocsName))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear
// formatting. The result still matches every sentinel with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error { return e.errs }
