// Package csf extracts story metadata from Component Story Format modules
// without executing them: the default export describes the component (meta)
// and every qualifying named export is a story.
package csf

import (
	"fmt"
	"log/slog"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

// Reserved export names.
const (
	NamedExportsOrder = "__namedExportsOrder"
	PageExport        = "__page"
)

// Options configures Extract.
type Options struct {
	// FileName is used in errors and log records.
	FileName string
	// MakeTitle maps the user title (possibly empty) to the final title.
	MakeTitle func(userTitle string) string
	Logger    *slog.Logger
}

// Meta is the default export of a CSF module.
type Meta struct {
	Title          string
	ID             string
	Tags           []string
	Component      string
	IncludeStories *Matcher
	ExcludeStories *Matcher
	// Annotations holds every other meta property unevaluated.
	Annotations map[string]jsast.Node
}

// Parameters are the story parameters computed statically.
type Parameters struct {
	IsArgsStory bool   `json:"__isArgsStory"`
	ID          string `json:"__id"`
	DocsOnly    bool   `json:"docsOnly,omitempty"`
}

// Story is one named story export.
type Story struct {
	Key        string
	ID         string
	Name       string
	Tags       []string
	Parameters Parameters
	// Annotations holds the story object properties and `Story.x = ...`
	// assignments, unevaluated.
	Annotations map[string]jsast.Node
}

// File is the result of extracting one module.
type File struct {
	FileName string
	Meta     Meta
	Stories  []Story
	// Imports lists the module specifiers imported by the file.
	Imports []string
}

// candidate is a named export that may become a story.
type candidate struct {
	key  string
	init jsast.Node
	span jsast.Span
	// reexport is set for `export { x } from '...'`, whose value is unknown.
	reexport bool
}

type extractor struct {
	mod  *jsast.Module
	opts Options
	log  *slog.Logger
}

// Extract reads the meta and stories of a parsed module. The module is not
// modified and repeated calls yield identical results.
func Extract(mod *jsast.Module, opts Options) (*File, error) {
	if opts.FileName == "" {
		opts.FileName = mod.FileName
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	x := &extractor{mod: mod, opts: opts, log: log}
	return x.extract()
}

func (x *extractor) extract() (*File, error) {
	if x.mod.Calls("storiesOf") {
		return nil, at(ErrStoriesOf, x.opts.FileName, jsast.Span{})
	}

	meta, err := x.parseMeta()
	if err != nil {
		return nil, err
	}

	candidates, order, err := x.candidates()
	if err != nil {
		return nil, err
	}
	assigned := x.assignments()

	var stories []Story
	for _, c := range candidates {
		if c.key == "__esModule" {
			continue
		}
		if meta.IncludeStories != nil && !meta.IncludeStories.Match(c.key) {
			continue
		}
		if meta.ExcludeStories != nil && meta.ExcludeStories.Match(c.key) {
			continue
		}
		story, err := x.story(c, assigned[c.key])
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}

	if len(stories) == 1 && stories[0].Key == PageExport {
		stories[0].Parameters.DocsOnly = true
	}

	if order != nil {
		stories, err = x.sortByOrder(stories, candidates, order)
		if err != nil {
			return nil, err
		}
	}

	if x.opts.MakeTitle != nil {
		meta.Title = x.opts.MakeTitle(meta.Title)
	}
	if meta.Title == "" && meta.Component == "" {
		return nil, at(ErrMissingTitle, x.opts.FileName, jsast.Span{})
	}

	prefix := meta.ID
	if prefix == "" {
		prefix = meta.Title
	}
	for i := range stories {
		id, err := ToID(prefix, StoryNameFromExport(stories[i].Key))
		if err != nil {
			return nil, fmt.Errorf("%w: %v (%s)", ErrComponentID, err, x.opts.FileName)
		}
		stories[i].ID = id
		stories[i].Parameters.ID = id
	}

	file := &File{FileName: x.opts.FileName, Meta: *meta, Stories: stories}
	for _, imp := range x.mod.Imports() {
		file.Imports = append(file.Imports, imp.Source)
	}
	return file, nil
}

func (x *extractor) parseMeta() (*Meta, error) {
	def := jsast.FindExportDefault(x.mod)
	if def == nil {
		return nil, &NoMetaError{FileName: x.opts.FileName}
	}
	node := jsast.Resolve(x.mod, def)
	obj, ok := node.(*jsast.Object)
	if !ok {
		return nil, at(fmt.Errorf("%w, got %s", ErrUnexpectedDefaultExport, jsast.KindOf(node)), x.opts.FileName, def.Pos())
	}

	meta := &Meta{Annotations: make(map[string]jsast.Node)}
	for _, p := range obj.Props {
		if p.Computed {
			continue
		}
		switch p.Key {
		case "title":
			title, ok := jsast.StaticString(jsast.Resolve(x.mod, p.Value))
			if !ok {
				return nil, at(ErrDynamicTitle, x.opts.FileName, p.Span)
			}
			meta.Title = title
		case "id":
			id, ok := jsast.StaticString(jsast.Resolve(x.mod, p.Value))
			if !ok {
				return nil, at(ErrComponentID, x.opts.FileName, p.Span)
			}
			meta.ID = id
		case "tags":
			tags, err := x.parseTags(p.Value)
			if err != nil {
				return nil, err
			}
			meta.Tags = tags
		case "includeStories", "excludeStories":
			m, err := matcherFromNode(jsast.Resolve(x.mod, p.Value))
			if err != nil {
				return nil, at(fmt.Errorf("%w: %v", ErrIncludeExclude, err), x.opts.FileName, p.Span)
			}
			if p.Key == "includeStories" {
				meta.IncludeStories = m
			} else {
				meta.ExcludeStories = m
			}
		case "component":
			if p.Value != nil {
				meta.Component = x.mod.Text(p.Value.Pos())
			}
		default:
			meta.Annotations[p.Key] = p.Value
		}
	}
	if _, ok := meta.Annotations["play"]; ok {
		meta.Tags = append(meta.Tags, "play-fn")
	}
	return meta, nil
}

func (x *extractor) parseTags(n jsast.Node) ([]string, error) {
	resolved := jsast.Resolve(x.mod, n)
	arr, ok := resolved.(*jsast.Array)
	if !ok {
		return nil, at(ErrTagsFormat, x.opts.FileName, spanOf(n))
	}
	tags := make([]string, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		s, ok := el.(*jsast.String)
		if !ok {
			return nil, at(ErrTagsFormat, x.opts.FileName, spanOf(el))
		}
		tags = append(tags, s.Value)
	}
	return tags, nil
}

// candidates enumerates named exports in declaration order and returns the
// literal __namedExportsOrder array if present.
func (x *extractor) candidates() ([]candidate, []string, error) {
	var (
		out   []candidate
		order []string
	)
	add := func(c candidate) error {
		if c.key != NamedExportsOrder {
			out = append(out, c)
			return nil
		}
		val, err := jsast.LiteralValue(jsast.Resolve(x.mod, c.init))
		if err != nil {
			return at(fmt.Errorf("%w: %v", ErrNamedExportsOrder, err), x.opts.FileName, c.span)
		}
		list, ok := val.([]any)
		if !ok {
			return at(ErrNamedExportsOrder, x.opts.FileName, c.span)
		}
		order = make([]string, 0, len(list))
		for _, el := range list {
			s, ok := el.(string)
			if !ok {
				return at(ErrNamedExportsOrder, x.opts.FileName, c.span)
			}
			order = append(order, s)
		}
		return nil
	}

	for _, s := range x.mod.Body {
		st, ok := s.(*jsast.ExportNamed)
		if !ok {
			continue
		}
		switch d := st.Decl.(type) {
		case *jsast.VarDecl:
			for _, decl := range d.Decls {
				if decl.Name == "" {
					continue
				}
				if err := add(candidate{key: decl.Name, init: decl.Init, span: decl.Span}); err != nil {
					return nil, nil, err
				}
			}
			continue
		case *jsast.FuncDecl:
			if err := add(candidate{key: d.Func.Name, init: d.Func, span: d.Pos()}); err != nil {
				return nil, nil, err
			}
			continue
		case nil:
		default:
			continue
		}
		for _, spec := range st.Specifiers {
			if spec.Exported == "default" {
				continue
			}
			c := candidate{key: spec.Exported, span: st.Pos(), reexport: st.Source != ""}
			if !c.reexport {
				c.init = jsast.ResolveIdentifierInitializer(x.mod, spec.Local)
			}
			if err := add(c); err != nil {
				return nil, nil, err
			}
		}
	}
	return out, order, nil
}

// assignments collects `Story.prop = value` statements per export key.
func (x *extractor) assignments() map[string]map[string]*jsast.Assign {
	out := make(map[string]map[string]*jsast.Assign)
	for _, s := range x.mod.Body {
		es, ok := s.(*jsast.ExprStmt)
		if !ok {
			continue
		}
		a, ok := es.Expr.(*jsast.Assign)
		if !ok || a.Operator != "=" {
			continue
		}
		m, ok := a.Left.(*jsast.Member)
		if !ok || m.Property == "" {
			continue
		}
		obj, ok := m.Object.(*jsast.Ident)
		if !ok {
			continue
		}
		if out[obj.Name] == nil {
			out[obj.Name] = make(map[string]*jsast.Assign)
		}
		out[obj.Name][m.Property] = a
	}
	return out
}

func (x *extractor) story(c candidate, assigned map[string]*jsast.Assign) (Story, error) {
	story := Story{Key: c.key, Annotations: make(map[string]jsast.Node)}

	var (
		objName      string
		objStoryName string
		tagsNode     jsast.Node
	)
	switch v := c.init.(type) {
	case *jsast.Object:
		story.Parameters.IsArgsStory = true
		for _, p := range v.Props {
			if p.Computed {
				continue
			}
			story.Annotations[p.Key] = p.Value
			switch p.Key {
			case "render":
				story.Parameters.IsArgsStory = x.isArgsStory(p.Value)
			case "name":
				if s, ok := jsast.StaticString(p.Value); ok {
					objName = s
				}
			case "storyName":
				if s, ok := jsast.StaticString(p.Value); ok {
					objStoryName = s
				}
			case "tags":
				tagsNode = p.Value
			}
		}
	default:
		story.Parameters.IsArgsStory = x.isArgsStory(c.init)
	}

	for prop, a := range assigned {
		story.Annotations[prop] = a.Right
	}
	if a, ok := assigned["tags"]; ok {
		tagsNode = a.Right
	}

	story.Name = StoryNameFromExport(c.key)
	switch {
	case assignedString(assigned, "storyName") != "":
		story.Name = assignedString(assigned, "storyName")
	case legacyStoryName(assigned) != "":
		story.Name = legacyStoryName(assigned)
	case objName != "":
		story.Name = objName
	case objStoryName != "":
		x.log.Warn("storyName is deprecated, use name instead",
			"file", x.opts.FileName, "story", c.key, "name", objStoryName)
		story.Name = objStoryName
	}

	if tagsNode != nil {
		tags, err := x.parseTags(tagsNode)
		if err != nil {
			return Story{}, err
		}
		story.Tags = tags
	}
	if _, ok := story.Annotations["play"]; ok {
		story.Tags = append(story.Tags, "play-fn")
	}
	return story, nil
}

// isArgsStory reports whether a story function (or the template bound with
// `Template.bind({})`) declares at least one parameter.
func (x *extractor) isArgsStory(n jsast.Node) bool {
	if call, ok := n.(*jsast.Call); ok {
		name, ok := jsast.BindTarget(call)
		if !ok {
			return false
		}
		n = jsast.ResolveIdentifierInitializer(x.mod, name)
	}
	fn, ok := n.(*jsast.Func)
	return ok && fn.Params > 0
}

func assignedString(assigned map[string]*jsast.Assign, prop string) string {
	a, ok := assigned[prop]
	if !ok {
		return ""
	}
	s, _ := jsast.StaticString(a.Right)
	return s
}

// legacyStoryName reads `Story.story = { name: '...' }`.
func legacyStoryName(assigned map[string]*jsast.Assign) string {
	a, ok := assigned["story"]
	if !ok {
		return ""
	}
	obj, ok := a.Right.(*jsast.Object)
	if !ok {
		return ""
	}
	p := obj.Prop("name")
	if p == nil {
		return ""
	}
	s, _ := jsast.StaticString(p.Value)
	return s
}

// sortByOrder reorders stories to follow __namedExportsOrder. Every name in
// the order must be a named export and every retained story must be listed.
func (x *extractor) sortByOrder(stories []Story, candidates []candidate, order []string) ([]Story, error) {
	exported := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		exported[c.key] = true
	}
	for _, name := range order {
		if !exported[name] {
			return nil, at(fmt.Errorf("%w: unknown export %q", ErrNamedExportsOrder, name), x.opts.FileName, jsast.Span{})
		}
	}

	byKey := make(map[string]Story, len(stories))
	for _, s := range stories {
		byKey[s.Key] = s
	}
	sorted := make([]Story, 0, len(stories))
	for _, name := range order {
		if s, ok := byKey[name]; ok {
			sorted = append(sorted, s)
			delete(byKey, name)
		}
	}
	if len(byKey) > 0 {
		var missing []string
		for _, s := range stories {
			if _, ok := byKey[s.Key]; ok {
				missing = append(missing, s.Key)
			}
		}
		return nil, at(fmt.Errorf("%w: missing exports after sort: %v", ErrNamedExportsOrder, missing), x.opts.FileName, jsast.Span{})
	}
	return sorted, nil
}

func spanOf(n jsast.Node) jsast.Span {
	if n == nil {
		return jsast.Span{}
	}
	return n.Pos()
}
