package storyindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for ChooseDuplicate:
// - the same entry from one file is kept once
// - a story beats a generated docs page in either order, also from the same file
// - an MDX docs page beats a generated docs page
// - two MDX docs pages keep the first
// - two stories, or MDX docs over an autodocs-tagged CSF file, fail with both entries

func TestChooseDuplicate(t *testing.T) {
	t.Parallel()

	g := NewGenerator(nil, Options{WorkingDir: t.TempDir(), Docs: DocsOptions{DefaultName: "Docs", Autodocs: AutodocsTag}})

	st := Entry{ID: "x--docs", Title: "X", Name: "Docs", ImportPath: "./X.stories.js", Type: StoryType}
	generated := Entry{ID: "x--docs", Title: "X", Name: "Docs", ImportPath: "./Y.stories.js", Type: DocsType, Tags: []string{"docs"}}
	mdxA := Entry{ID: "x--docs", Title: "X", Name: "Docs", ImportPath: "./A.mdx", Type: DocsType, Standalone: true, Tags: []string{"attached-mdx", "docs"}}
	mdxB := mdxA
	mdxB.ImportPath = "./B.mdx"

	got, err := g.ChooseDuplicate(st, st)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	got, err = g.ChooseDuplicate(generated, st)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	got, err = g.ChooseDuplicate(st, generated)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	sameFile := generated
	sameFile.ImportPath = st.ImportPath
	got, err = g.ChooseDuplicate(sameFile, st)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	got, err = g.ChooseDuplicate(generated, mdxA)
	require.NoError(t, err)
	assert.Equal(t, mdxA, got)

	got, err = g.ChooseDuplicate(mdxA, mdxB)
	require.NoError(t, err)
	assert.Equal(t, mdxA, got)

	other := st
	other.ImportPath = "./Other.stories.js"
	_, err = g.ChooseDuplicate(st, other)
	var dup *DuplicateEntriesError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, st, dup.First)
	assert.Equal(t, other, dup.Second)

	tagged := generated
	tagged.Tags = []string{"autodocs", "docs"}
	_, err = g.ChooseDuplicate(tagged, mdxA)
	require.ErrorAs(t, err, &dup)
	assert.Contains(t, dup.Message, "also tagged the CSF file with 'autodocs'")

	other = generated
	other.ImportPath = "./Z.stories.js"
	_, err = g.ChooseDuplicate(generated, other)
	assert.ErrorAs(t, err, &dup)
}
