// Package config loads storyindex configuration.
//
// Settings come from three layers, highest priority first:
//
//  1. Environment variables (STORYINDEX_*, nested keys joined with "_")
//  2. Project config file (.storyindex/config.yml)
//  3. Built-in defaults
//
// When the project config lists no stories, the stories, docs and
// features.storyStoreV7 fields are read statically from the main config
// module in the config directory (main.js, main.ts, ...).
package config

import (
	"github.com/mvp-joe/storyindex/internal/specifier"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// Config represents the complete storyindex configuration.
type Config struct {
	// ConfigDir holds the main config module; stories paths are relative
	// to it.
	ConfigDir        string                       `yaml:"config_dir" mapstructure:"config_dir"`
	Stories          []specifier.Entry            `yaml:"stories" mapstructure:"stories"`
	Docs             DocsConfig                   `yaml:"docs" mapstructure:"docs"`
	StoryStoreV7     bool                         `yaml:"story_store_v7" mapstructure:"story_store_v7"`
	StorySort        *storyindex.StorySortOptions `yaml:"story_sort" mapstructure:"story_sort"`
	Server           ServerConfig                 `yaml:"server" mapstructure:"server"`
	Watch            WatchConfig                  `yaml:"watch" mapstructure:"watch"`
	RespectGitignore bool                         `yaml:"respect_gitignore" mapstructure:"respect_gitignore"`
	Concurrency      int                          `yaml:"concurrency" mapstructure:"concurrency"` // 0 means GOMAXPROCS

	// Source records where Stories came from: "config", "main" or "".
	Source string `yaml:"-" mapstructure:"-"`
}

// DocsConfig configures docs entries.
type DocsConfig struct {
	Enabled     bool                `yaml:"enabled" mapstructure:"enabled"`
	Autodocs    storyindex.Autodocs `yaml:"autodocs" mapstructure:"autodocs"` // "true", "false" or "tag"
	DefaultName string              `yaml:"default_name" mapstructure:"default_name"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// WatchConfig configures file watching.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		ConfigDir: ".storybook",
		Docs: DocsConfig{
			Enabled:     true,
			Autodocs:    storyindex.AutodocsTag,
			DefaultName: "Docs",
		},
		StoryStoreV7: true,
		Server: ServerConfig{
			Addr: "127.0.0.1:6007",
		},
		Watch: WatchConfig{
			DebounceMS: 100,
		},
	}
}
