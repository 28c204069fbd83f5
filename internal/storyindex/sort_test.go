package storyindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for sorting:
// - the default comparator orders by title path, default-named docs first, then by name
// - configure keeps discovery order for unlisted names and honors order lists
// - nested order lists and the "*" wildcard apply per title level
// - alphabetical compares numerically and ignores case
// - includeNames sorts stories within a title
// - malformed options are rejected

func titles(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title+":"+e.Name)
	}
	return out
}

func story(title, name string) Entry {
	return Entry{ID: title + "--" + name, Title: title, Name: name, Type: StoryType}
}

func TestDefaultComparator(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		story("b", "Zed"),
		story("a/b", "One"),
		{ID: "b--docs", Title: "b", Name: "Docs", Type: DocsType},
		story("b", "Alpha"),
		story("a", "One"),
	}
	sortEntries(entries, DefaultComparator("Docs"))
	assert.Equal(t, []string{"a:One", "a/b:One", "b:Docs", "b:Alpha", "b:Zed"}, titles(entries))
}

func TestStorySort_Configure(t *testing.T) {
	t.Parallel()

	cmp, err := StorySortOptions{
		Order: []any{"Intro", "Components", []any{"Button", "*", "Zebra"}, "*"},
	}.Comparator()
	require.NoError(t, err)

	entries := []Entry{
		story("Other", "A"),
		story("Components/Zebra", "A"),
		story("Components/Card", "A"),
		story("Components/Button", "A"),
		story("Intro", "A"),
		story("Another", "A"),
	}
	sortEntries(entries, cmp)
	assert.Equal(t, []string{
		"Intro:A",
		"Components/Button:A",
		"Components/Card:A",
		"Components/Zebra:A",
		"Other:A",
		"Another:A",
	}, titles(entries))
}

func TestStorySort_Alphabetical(t *testing.T) {
	t.Parallel()

	cmp, err := StorySortOptions{Method: SortAlphabetical}.Comparator()
	require.NoError(t, err)

	entries := []Entry{
		story("item10", "A"),
		story("Item2", "A"),
		story("item1", "A"),
	}
	sortEntries(entries, cmp)
	assert.Equal(t, []string{"item1:A", "Item2:A", "item10:A"}, titles(entries))
}

func TestStorySort_IncludeNames(t *testing.T) {
	t.Parallel()

	cmp, err := StorySortOptions{Method: SortAlphabetical, IncludeNames: true}.Comparator()
	require.NoError(t, err)

	entries := []Entry{story("T", "b"), story("T", "a")}
	sortEntries(entries, cmp)
	assert.Equal(t, []string{"T:a", "T:b"}, titles(entries))

	plain, err := StorySortOptions{Method: SortAlphabetical}.Comparator()
	require.NoError(t, err)
	entries = []Entry{story("T", "b"), story("T", "a")}
	sortEntries(entries, plain)
	assert.Equal(t, []string{"T:b", "T:a"}, titles(entries))
}

func TestStorySort_Invalid(t *testing.T) {
	t.Parallel()

	_, err := StorySortOptions{Method: "random"}.Comparator()
	assert.Error(t, err)

	_, err = StorySortOptions{Order: []any{[]any{"a"}}}.Comparator()
	assert.ErrorIs(t, err, ErrSortOrder)

	_, err = StorySortOptions{Order: []any{1}}.Comparator()
	assert.ErrorIs(t, err, ErrSortOrder)

	_, err = StorySortOptions{Locales: "not a locale!"}.Comparator()
	assert.Error(t, err)
}
