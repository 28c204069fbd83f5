package mdx

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

var (
	ErrMultipleMeta  = errors.New("MDX: <Meta> can only be declared once")
	ErrOfNotImported = errors.New("MDX: expected `of` to be an imported identifier")
)

// Analysis is the static description of an MDX docs file.
type Analysis struct {
	Title string
	// Of is the import path of the module referenced by `<Meta of={...} />`.
	Of         string
	Name       string
	IsTemplate bool
	// Imports lists every module specifier imported by the file.
	Imports []string
	Tags    []string
}

// Analyze reads the imports and the `<Meta>` element of an MDX docs file.
func Analyze(src []byte) (*Analysis, error) {
	d := scan(src)
	prelude, err := d.prelude()
	if err != nil {
		return nil, err
	}

	a := &Analysis{}
	for _, imp := range prelude.Imports() {
		a.Imports = append(a.Imports, imp.Source)
	}

	metas, err := d.elements("Meta")
	if err != nil {
		return nil, err
	}
	if len(metas) > 1 {
		return nil, ErrMultipleMeta
	}
	if len(metas) == 0 {
		return a, nil
	}

	meta := metas[0]
	for _, attr := range meta.node.Attrs {
		switch attr.Name {
		case "title":
			s, ok := jsast.StaticString(attr.Value)
			if !ok {
				return nil, fmt.Errorf("MDX: expected `title` to be a string literal, got %s", jsast.KindOf(attr.Value))
			}
			a.Title = s
		case "name":
			s, ok := jsast.StaticString(attr.Value)
			if !ok {
				return nil, fmt.Errorf("MDX: expected `name` to be a string literal, got %s", jsast.KindOf(attr.Value))
			}
			a.Name = s
		case "isTemplate":
			switch v := attr.Value.(type) {
			case nil:
				a.IsTemplate = true
			case *jsast.Bool:
				a.IsTemplate = v.Value
			default:
				return nil, fmt.Errorf("MDX: expected `isTemplate` to be a boolean, got %s", jsast.KindOf(attr.Value))
			}
		case "of":
			id, ok := attr.Value.(*jsast.Ident)
			if !ok {
				return nil, fmt.Errorf("%w, got %s", ErrOfNotImported, jsast.KindOf(attr.Value))
			}
			source := importSourceOf(prelude, id.Name)
			if source == "" {
				return nil, fmt.Errorf("%w: %s", ErrOfNotImported, id.Name)
			}
			a.Of = source
		case "tags":
			tags, err := stringArray(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("MDX: tags: %w", err)
			}
			a.Tags = tags
		}
	}
	return a, nil
}

// importSourceOf returns the module that binds local, or "".
func importSourceOf(mod *jsast.Module, local string) string {
	for _, imp := range mod.Imports() {
		if imp.Default == local || imp.Namespace == local {
			return imp.Source
		}
		for _, spec := range imp.Named {
			if spec.Local == local {
				return imp.Source
			}
		}
	}
	return ""
}

func stringArray(n jsast.Node) ([]string, error) {
	arr, ok := n.(*jsast.Array)
	if !ok {
		return nil, fmt.Errorf("expected an array of string literals, got %s", jsast.KindOf(n))
	}
	out := make([]string, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		s, ok := jsast.StaticString(el)
		if !ok {
			return nil, fmt.Errorf("expected a string literal, got %s", jsast.KindOf(el))
		}
		out = append(out, s)
	}
	return out, nil
}
