package config

import (
	"fmt"

	"github.com/mvp-joe/storyindex/internal/configfile"
	"github.com/mvp-joe/storyindex/internal/specifier"
	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// FromMainConfig fills stories, docs and storyStoreV7 from the main config
// module in cfg.ConfigDir. Fields the module does not set statically keep
// their current values. Returns configfile.ErrNotFound when there is no
// main config.
func FromMainConfig(cfg *Config) error {
	path, err := configfile.FindMainConfig(cfg.ConfigDir)
	if err != nil {
		return err
	}
	main, err := configfile.ReadConfig(path)
	if err != nil {
		return err
	}

	stories, err := main.GetFieldValue([]string{"stories"})
	if err != nil {
		return fmt.Errorf("%s: stories must be a static list: %w", path, err)
	}
	if stories != nil {
		entries, err := storiesEntries(stories)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cfg.Stories = entries
		cfg.Source = "main"
	}

	switch v := main.GetSafeFieldValue([]string{"docs", "autodocs"}).(type) {
	case bool:
		if v {
			cfg.Docs.Autodocs = storyindex.AutodocsOn
		} else {
			cfg.Docs.Autodocs = storyindex.AutodocsOff
		}
	case string:
		cfg.Docs.Autodocs = storyindex.Autodocs(v)
	}
	if name, ok := main.GetSafeFieldValue([]string{"docs", "defaultName"}).(string); ok {
		cfg.Docs.DefaultName = name
	}
	if v7, ok := main.GetSafeFieldValue([]string{"features", "storyStoreV7"}).(bool); ok {
		cfg.StoryStoreV7 = v7
	}
	return nil
}

func storiesEntries(v any) ([]specifier.Entry, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("stories must be an array, got %T", v)
	}
	entries := make([]specifier.Entry, 0, len(items))
	for i, item := range items {
		switch it := item.(type) {
		case string:
			entries = append(entries, specifier.Entry{Glob: it})
		case map[string]any:
			e := specifier.Entry{}
			e.Directory, _ = it["directory"].(string)
			e.Files, _ = it["files"].(string)
			e.TitlePrefix, _ = it["titlePrefix"].(string)
			entries = append(entries, e)
		default:
			return nil, fmt.Errorf("stories[%d]: unsupported entry %T", i, item)
		}
	}
	return entries, nil
}
