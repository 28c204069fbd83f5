package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/mvp-joe/storyindex/internal/configfile"
	"github.com/mvp-joe/storyindex/internal/specifier"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// ProjectDir is the directory of the project config file.
const ProjectDir = ".storyindex"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
// configFile, when set, replaces the .storyindex/config.yml lookup.
func NewLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (STORYINDEX_*)
// 2. Config file (.storyindex/config.yml or .storyindex/config.yaml)
// 3. Default values
// An empty stories list is then filled from the main config module.
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ProjectDir))
	}

	v.SetEnvPrefix("STORYINDEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("config_dir")
	v.BindEnv("docs.enabled")
	v.BindEnv("docs.autodocs")
	v.BindEnv("docs.default_name")
	v.BindEnv("story_store_v7")
	v.BindEnv("server.addr")
	v.BindEnv("watch.debounce_ms")
	v.BindEnv("respect_gitignore")
	v.BindEnv("concurrency")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		storiesEntryHook,
		autodocsHook,
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !filepath.IsAbs(cfg.ConfigDir) {
		cfg.ConfigDir = filepath.Join(l.rootDir, cfg.ConfigDir)
	}

	if len(cfg.Stories) > 0 {
		cfg.Source = "config"
	} else if err := FromMainConfig(cfg); err != nil && !errors.Is(err, configfile.ErrNotFound) {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("config_dir", defaults.ConfigDir)

	v.SetDefault("docs.enabled", defaults.Docs.Enabled)
	v.SetDefault("docs.autodocs", string(defaults.Docs.Autodocs))
	v.SetDefault("docs.default_name", defaults.Docs.DefaultName)

	v.SetDefault("story_store_v7", defaults.StoryStoreV7)

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMS)

	v.SetDefault("respect_gitignore", defaults.RespectGitignore)
	v.SetDefault("concurrency", defaults.Concurrency)
}

// storiesEntryHook accepts a plain glob string wherever a stories entry is
// expected.
func storiesEntryHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != reflect.TypeOf(specifier.Entry{}) || f.Kind() != reflect.String {
		return data, nil
	}
	return specifier.Entry{Glob: data.(string)}, nil
}

// autodocsHook maps YAML booleans onto the autodocs modes.
func autodocsHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != reflect.TypeOf(storyindex.Autodocs("")) || f.Kind() != reflect.Bool {
		return data, nil
	}
	return storyindex.Autodocs(strconv.FormatBool(data.(bool))), nil
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd, "").Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir, "").Load()
}
