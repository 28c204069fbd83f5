package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/storyindex/internal/config"
	"github.com/mvp-joe/storyindex/internal/configfile"
)

var configDir string

// configCmd groups commands that read and edit the main config module.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or edit fields of the main config (.storybook/main.*)",
	Long: `Config reads and edits fields of the Storybook main config file in place,
keeping the rest of the file untouched. Field paths are dot separated.

Examples:
  storyindex config get stories
  storyindex config set docs.autodocs '"tag"'
  storyindex config set features.storyStoreV7 true
`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the static value of a field as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <path> <json-value>",
	Short: "Set a field to a JSON value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd, configSetCmd)
	configCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Storybook config directory (default is .storybook)")
}

// mainConfigPath locates the main config without loading the project
// configuration, which requires stories to be set.
func mainConfigPath() (string, error) {
	dir := configDir
	if dir == "" {
		dir = config.Default().ConfigDir
	}
	if !filepath.IsAbs(dir) {
		root, err := resolveProjectDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(root, dir)
	}
	return configfile.FindMainConfig(dir)
}

func fieldPath(arg string) []string {
	return strings.Split(arg, ".")
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	path, err := mainConfigPath()
	if err != nil {
		return err
	}
	cfg, err := configfile.ReadConfig(path)
	if err != nil {
		return err
	}

	value, err := cfg.GetFieldValue(fieldPath(args[0]))
	if err != nil {
		return fmt.Errorf("%s is not a static value: %w", args[0], err)
	}
	if value == nil && cfg.GetFieldNode(fieldPath(args[0])) == nil {
		return fmt.Errorf("%s is not set in %s", args[0], filepath.Base(path))
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	var value any
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		return fmt.Errorf("value must be JSON: %w", err)
	}

	path, err := mainConfigPath()
	if err != nil {
		return err
	}
	cfg, err := configfile.ReadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.SetFieldValue(fieldPath(args[0]), value); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	if err := configfile.WriteConfig(cfg, path); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Set %s in %s\n", args[0], filepath.Base(path))
	}
	return nil
}
