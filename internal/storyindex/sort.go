package storyindex

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator orders two entries like strings.Compare.
type Comparator func(a, b Entry) int

// Sort methods.
const (
	SortConfigure    = "configure"
	SortAlphabetical = "alphabetical"
)

// ErrSortOrder is returned for a malformed order list.
var ErrSortOrder = errors.New("storySort order must be a list of names, each optionally followed by a nested list")

// StorySortOptions configure the built-in title comparator.
type StorySortOptions struct {
	// Method is "configure" (keep discovery order for unlisted names) or
	// "alphabetical".
	Method string `mapstructure:"method" yaml:"method,omitempty" json:"method,omitempty"`
	// Order lists title segments; a name may be followed by a nested list
	// ordering its children. "*" stands for every unlisted name.
	Order        []any  `mapstructure:"order" yaml:"order,omitempty" json:"order,omitempty"`
	IncludeNames bool   `mapstructure:"include_names" yaml:"include_names,omitempty" json:"includeNames,omitempty"`
	Locales      string `mapstructure:"locales" yaml:"locales,omitempty" json:"locales,omitempty"`
}

// orderNode is a parsed order list.
type orderNode struct {
	names    []string
	children map[int]*orderNode
}

func parseOrder(items []any) (*orderNode, error) {
	n := &orderNode{children: map[int]*orderNode{}}
	for _, item := range items {
		switch v := item.(type) {
		case string:
			n.names = append(n.names, v)
		case []any:
			if len(n.names) == 0 {
				return nil, ErrSortOrder
			}
			child, err := parseOrder(v)
			if err != nil {
				return nil, err
			}
			n.children[len(n.names)-1] = child
		case []string:
			if len(n.names) == 0 {
				return nil, ErrSortOrder
			}
			child := &orderNode{names: v, children: map[int]*orderNode{}}
			n.children[len(n.names)-1] = child
		default:
			return nil, fmt.Errorf("%w: unexpected %T", ErrSortOrder, item)
		}
	}
	return n, nil
}

func (n *orderNode) index(name string) int {
	if n == nil {
		return -1
	}
	return slices.Index(n.names, name)
}

// Comparator builds the configured comparator.
func (o StorySortOptions) Comparator() (Comparator, error) {
	method := o.Method
	if method == "" {
		method = SortConfigure
	}
	if method != SortConfigure && method != SortAlphabetical {
		return nil, fmt.Errorf("unknown storySort method %q", o.Method)
	}
	order, err := parseOrder(o.Order)
	if err != nil {
		return nil, err
	}
	tag := language.Und
	if o.Locales != "" {
		if tag, err = language.Parse(o.Locales); err != nil {
			return nil, fmt.Errorf("invalid storySort locales %q: %w", o.Locales, err)
		}
	}

	var mu sync.Mutex
	col := collate.New(tag, collate.Numeric, collate.IgnoreCase)

	return func(a, b Entry) int {
		if a.Title == b.Title && !o.IncludeNames {
			return 0
		}
		pathA := strings.Split(strings.TrimSpace(a.Title), "/")
		pathB := strings.Split(strings.TrimSpace(b.Title), "/")
		if o.IncludeNames {
			pathA = append(pathA, a.Name)
			pathB = append(pathB, b.Name)
		}

		level := order
		for depth := 0; depth < len(pathA) || depth < len(pathB); depth++ {
			if depth >= len(pathA) {
				return -1
			}
			if depth >= len(pathB) {
				return 1
			}
			nameA, nameB := pathA[depth], pathB[depth]
			if nameA != nameB {
				ia, ib := level.index(nameA), level.index(nameB)
				if ia != -1 || ib != -1 {
					wildcard := level.index("*")
					fallback := len(level.names)
					if wildcard != -1 {
						fallback = wildcard
					}
					if ia == -1 {
						ia = fallback
					}
					if ib == -1 {
						ib = fallback
					}
					return ia - ib
				}
				if method == SortConfigure {
					return 0
				}
				mu.Lock()
				defer mu.Unlock()
				return col.CompareString(nameA, nameB)
			}
			i := level.index(nameA)
			if i == -1 {
				i = level.index("*")
			}
			if i == -1 || level == nil {
				level = nil
			} else {
				level = level.children[i]
			}
		}
		return 0
	}, nil
}

// DefaultComparator orders by title path, then puts docs entries named
// defaultName before their sibling stories, then by name, import path and
// id.
func DefaultComparator(defaultName string) Comparator {
	return func(a, b Entry) int {
		if c := compareTitles(a.Title, b.Title); c != 0 {
			return c
		}
		aFirst := a.Type == DocsType && a.Name == defaultName
		bFirst := b.Type == DocsType && b.Name == defaultName
		if aFirst != bFirst {
			if aFirst {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		if c := strings.Compare(a.ImportPath, b.ImportPath); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
}

func compareTitles(a, b string) int {
	pa, pb := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := strings.Compare(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	return len(pa) - len(pb)
}

func sortEntries(entries []Entry, cmp Comparator) {
	slices.SortStableFunc(entries, cmp)
}
