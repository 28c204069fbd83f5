package csf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for naming helpers:
// - StoryNameFromExport splits camelCase, acronyms, digits and separators
// - Sanitize collapses punctuation into single dashes
// - ToID joins kind and name and rejects parts without alphanumerics
// - Matcher handles name lists and regexes

func TestStoryNameFromExport(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"A":              "A",
		"primaryButton":  "Primary Button",
		"PrimaryButton":  "Primary Button",
		"__page":         "Page",
		"snake_case_key": "Snake Case Key",
		"HTMLButton":     "HTML Button",
		"withIcon2":      "With Icon 2",
		"v2Layout":       "V 2 Layout",
		"the1stStory":    "The 1st Story",
		"ALLCAPS":        "ALLCAPS",
	}
	for in, want := range tests {
		assert.Equal(t, want, StoryNameFromExport(in), in)
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo-bar", Sanitize("foo/bar"))
	assert.Equal(t, "foo-bar", Sanitize("Foo Bar"))
	assert.Equal(t, "a-b-c", Sanitize("--a  //  b__c--"))
	assert.Equal(t, "émoji-🎉", Sanitize("Émoji 🎉"))
	assert.Equal(t, "", Sanitize("!!!"))
}

func TestToID(t *testing.T) {
	t.Parallel()

	id, err := ToID("foo/bar", "A")
	require.NoError(t, err)
	assert.Equal(t, "foo-bar--a", id)

	id, err = ToID("Components/Button", "")
	require.NoError(t, err)
	assert.Equal(t, "components-button", id)

	_, err = ToID("", "A")
	require.Error(t, err)
	assert.Equal(t, "Invalid kind '', must include alphanumeric characters", err.Error())

	_, err = ToID("kind", "???")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid name '???'")
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	names := NewNameMatcher("A", "B")
	assert.True(t, names.Match("A"))
	assert.False(t, names.Match("C"))

	re, err := NewRegexMatcher(`^mock`, "i")
	require.NoError(t, err)
	assert.True(t, re.Match("MockData"))
	assert.False(t, re.Match("Primary"))
	assert.Equal(t, "/^mock/i", re.String())

	dotAll, err := NewRegexMatcher(`^a.b$`, "s")
	require.NoError(t, err)
	assert.True(t, dotAll.Match("a\nb"))

	multi, err := NewRegexMatcher(`^b$`, "m")
	require.NoError(t, err)
	assert.True(t, multi.Match("a\nb"))

	_, err = NewRegexMatcher(`(`, "")
	assert.Error(t, err)

	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Match("A"))
}
