package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/storyindex/internal/config"
	"github.com/mvp-joe/storyindex/internal/specifier"
)

// Test Plan for CLI commands:
// - levelFromVerbosity maps -v counts and --quiet to levels
// - marshalerFor accepts v4/v3 and rejects other formats
// - index prints a v4 document, a v3 document, or writes --out
// - index over testdata/project yields CSF, autodocs, attached and unattached MDX entries
// - index fails with a configuration error when no stories are configured
// - search --json returns matching entries
// - config get prints JSON, config set rewrites the main config in place
// - config set rejects values that are not JSON
// - version prints the build information
// - watchDirs dedupes specifier directories and skips missing ones
//
// Commands share package-level flag variables, so tests that execute
// rootCmd do not run in parallel.

// executeCommand resets the flag variables and runs rootCmd with args.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cfgFile, verbosity, quiet, projectDir = "", 0, false, ""
	indexFormat, indexOut = "v4", ""
	searchLimit, searchType, searchTag, searchJSON = 0, "", "", false
	configDir = ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupProject creates a project whose main config lists one CSF glob.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".storybook", "main.js"),
		"module.exports = {\n  stories: ['../src/**/*.stories.js'],\n  docs: { autodocs: 'tag' },\n};\n")
	writeFile(t, filepath.Join(dir, "src", "Button.stories.js"), `
export default { title: 'Example/Button' };
export const Primary = {};
export const Secondary = { name: 'Second' };
`)
	return dir
}

func TestLevelFromVerbosity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{5, false, slog.LevelDebug},
		{2, true, slog.LevelError + 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelFromVerbosity(tt.verbosity, tt.quiet))
	}
}

func TestMarshalerFor(t *testing.T) {
	t.Parallel()

	for _, f := range []string{"v4", "4", "v3", "3"} {
		m, err := marshalerFor(f)
		require.NoError(t, err, f)
		assert.NotNil(t, m)
	}

	_, err := marshalerFor("v5")
	assert.ErrorContains(t, err, "unknown format")
}

func TestIndexCommand_V4(t *testing.T) {
	dir := setupProject(t)

	out, _, err := executeCommand(t, "index", "--quiet", "--dir", dir)
	require.NoError(t, err)

	var doc struct {
		V       int                        `json:"v"`
		Entries map[string]json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 4, doc.V)
	assert.Contains(t, doc.Entries, "example-button--primary")
	assert.Contains(t, doc.Entries, "example-button--secondary")
}

func TestIndexCommand_V3ToFile(t *testing.T) {
	dir := setupProject(t)
	outPath := filepath.Join(t.TempDir(), "stories.json")

	out, _, err := executeCommand(t, "index", "-q", "--dir", dir, "--format", "v3", "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var doc struct {
		V       int                        `json:"v"`
		Stories map[string]json.RawMessage `json:"stories"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.V)
	assert.Contains(t, doc.Stories, "example-button--primary")
}

func TestIndexCommand_FixtureProject(t *testing.T) {
	out, _, err := executeCommand(t, "index", "-q", "--dir", filepath.Join("..", "..", "testdata", "project"))
	require.NoError(t, err)

	var doc struct {
		Entries map[string]struct {
			Type       string   `json:"type"`
			Name       string   `json:"name"`
			ImportPath string   `json:"importPath"`
			Tags       []string `json:"tags"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	primary := doc.Entries["components-button--primary"]
	assert.Equal(t, "story", primary.Type)
	assert.Equal(t, "./src/components/Button.stories.tsx", primary.ImportPath)

	assert.Equal(t, "Large button", doc.Entries["components-button--large"].Name)

	autodocs := doc.Entries["components-button--docs"]
	assert.Equal(t, "docs", autodocs.Type)
	assert.Contains(t, autodocs.Tags, "autodocs")

	attached := doc.Entries["components-button--overview"]
	assert.Equal(t, "./src/components/Button.mdx", attached.ImportPath)
	assert.Contains(t, attached.Tags, "attached-mdx")

	intro := doc.Entries["introduction--docs"]
	assert.Equal(t, "./src/Introduction.mdx", intro.ImportPath)
	assert.Contains(t, intro.Tags, "unattached-mdx")
}

func TestIndexCommand_NoStories(t *testing.T) {
	_, _, err := executeCommand(t, "index", "-q", "--dir", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNoStories)
}

func TestSearchCommand_JSON(t *testing.T) {
	dir := setupProject(t)

	out, _, err := executeCommand(t, "search", "-q", "--dir", dir, "--json", "Second")
	require.NoError(t, err)

	var results []struct {
		Entry struct {
			ID string `json:"id"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "example-button--secondary", results[0].Entry.ID)
}

func TestConfigGetSet(t *testing.T) {
	dir := setupProject(t)

	out, _, err := executeCommand(t, "config", "get", "stories", "--dir", dir)
	require.NoError(t, err)
	var stories []string
	require.NoError(t, json.Unmarshal([]byte(out), &stories))
	assert.Equal(t, []string{"../src/**/*.stories.js"}, stories)

	_, _, err = executeCommand(t, "config", "set", "docs.autodocs", "true", "-q", "--dir", dir)
	require.NoError(t, err)

	out, _, err = executeCommand(t, "config", "get", "docs.autodocs", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	src, err := os.ReadFile(filepath.Join(dir, ".storybook", "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "autodocs: true")
	assert.Contains(t, string(src), "stories: ['../src/**/*.stories.js']", "other fields are untouched")

	_, _, err = executeCommand(t, "config", "get", "framework", "--dir", dir)
	assert.ErrorContains(t, err, "not set")
}

func TestConfigSet_InvalidJSON(t *testing.T) {
	dir := setupProject(t)

	_, _, err := executeCommand(t, "config", "set", "docs.autodocs", "tag", "--dir", dir)
	assert.ErrorContains(t, err, "value must be JSON")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "storyindex "+Version)
	assert.Contains(t, out, "Git commit:")
}

func TestWatchDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))

	p := &project{
		dir: dir,
		specs: []specifier.Specifier{
			{Directory: "./src", Files: "**/*.stories.tsx"},
			{Directory: "./src", Files: "**/*.mdx"},
			{Directory: "./missing", Files: "*.mdx"},
		},
	}
	assert.Equal(t, []string{filepath.Join(dir, "src")}, p.watchDirs())
}
