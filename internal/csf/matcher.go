package csf

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

// Matcher is an includeStories/excludeStories filter: either a list of
// export names or a JavaScript regular expression.
type Matcher struct {
	names  []string
	re     *regexp2.Regexp
	source string
}

// NewNameMatcher matches any of the given export names exactly.
func NewNameMatcher(names ...string) *Matcher {
	return &Matcher{names: names, source: "[" + strings.Join(names, ", ") + "]"}
}

// NewRegexMatcher compiles a JavaScript regex literal body and flags.
func NewRegexMatcher(pattern, flags string) (*Matcher, error) {
	var opts regexp2.RegexOptions = regexp2.ECMAScript
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			// dotall is not available together with ECMAScript mode
			opts = opts&^regexp2.ECMAScript | regexp2.Singleline
		}
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compile /%s/%s: %w", pattern, flags, err)
	}
	return &Matcher{re: re, source: "/" + pattern + "/" + flags}, nil
}

// matcherFromNode builds a Matcher from an array of string literals or a regex
// literal.
func matcherFromNode(n jsast.Node) (*Matcher, error) {
	val, err := jsast.LiteralValue(n)
	if err != nil {
		return nil, err
	}
	switch v := val.(type) {
	case jsast.RegexValue:
		return NewRegexMatcher(v.Pattern, v.Flags)
	case []any:
		names := make([]string, 0, len(v))
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", el)
			}
			names = append(names, s)
		}
		return NewNameMatcher(names...), nil
	}
	return nil, fmt.Errorf("expected array or regex, got %T", val)
}

// Match reports whether the export key matches.
func (m *Matcher) Match(key string) bool {
	if m == nil {
		return false
	}
	if m.re != nil {
		ok, err := m.re.MatchString(key)
		return err == nil && ok
	}
	for _, n := range m.names {
		if n == key {
			return true
		}
	}
	return false
}

func (m *Matcher) String() string {
	if m == nil {
		return ""
	}
	return m.source
}
