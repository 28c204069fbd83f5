package indexers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/storyindex/internal/csf"
	"github.com/mvp-joe/storyindex/internal/mdx"
)

// Test Plan for Registry:
// - default patterns match CSF and stories-MDX files and nothing else
// - custom indexers take precedence over defaults
// - the CSF indexer reads and extracts a file, applying MakeTitle
// - the stories-MDX indexer compiles before extracting and propagates compile errors unchanged
// - a cancelled context stops indexing

func TestRegistry_Find(t *testing.T) {
	t.Parallel()

	r := New()
	tests := map[string]string{
		"Button.stories.tsx": "csf",
		"Button.stories.js":  "csf",
		"Button.stories.mjs": "csf",
		"Button.story.ts":    "csf",
		"Button.stories.mdx": "stories-mdx",
		"Intro.mdx":          "",
		"Button.tsx":         "",
		"stories.json":       "",
	}
	for name, want := range tests {
		ix, ok := r.Find(name)
		if want == "" {
			assert.False(t, ok, name)
			continue
		}
		require.True(t, ok, name)
		assert.Equal(t, want, ix.Name, name)
	}
}

func TestRegistry_CustomFirst(t *testing.T) {
	t.Parallel()

	called := false
	custom := Indexer{
		Name: "custom",
		Test: regexp.MustCompile(`\.stories\.tsx$`),
		Index: func(ctx context.Context, fileName string, opts Options) (*csf.File, error) {
			called = true
			return &csf.File{FileName: fileName}, nil
		},
	}
	r := New(custom)

	ix, ok := r.Find("a/Button.stories.tsx")
	require.True(t, ok)
	assert.Equal(t, "custom", ix.Name)
	_, err := ix.Index(context.Background(), "a/Button.stories.tsx", Options{})
	require.NoError(t, err)
	assert.True(t, called)

	ix, ok = r.Find("a/Button.stories.js")
	require.True(t, ok)
	assert.Equal(t, "csf", ix.Name)

	assert.Len(t, r.Indexers(), 3)
}

func TestCSFIndexer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Button.stories.ts")
	require.NoError(t, os.WriteFile(path, []byte(`export default { component: Button }; export const Primary = {};`), 0644))

	f, err := CSF.Index(context.Background(), path, Options{
		MakeTitle: func(string) string { return "auto/Button" },
	})
	require.NoError(t, err)
	assert.Equal(t, "auto/Button", f.Meta.Title)
	require.Len(t, f.Stories, 1)
	assert.Equal(t, "auto-button--primary", f.Stories[0].ID)

	_, err = CSF.Index(context.Background(), filepath.Join(dir, "missing.stories.ts"), Options{})
	assert.Error(t, err)
}

func TestStoriesMDXIndexer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Intro.stories.mdx")
	require.NoError(t, os.WriteFile(path, []byte("import { Meta } from '@storybook/addon-docs';\n\n<Meta title=\"Intro\" />\n\n# Hello\n"), 0644))

	f, err := StoriesMDX.Index(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, f.Stories, 1)
	assert.True(t, f.Stories[0].Parameters.DocsOnly)
	assert.Contains(t, f.Meta.Tags, "stories-mdx")

	broken := filepath.Join(dir, "Broken.stories.mdx")
	require.NoError(t, os.WriteFile(broken, []byte("<Meta title=\"a\" />\n\n<Meta title=\"b\" />\n"), 0644))
	_, err = StoriesMDX.Index(context.Background(), broken, Options{})
	assert.True(t, errors.Is(err, mdx.ErrMultipleMeta))
}

func TestIndexer_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CSF.Index(ctx, "whatever.stories.js", Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
