package mdx

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

// storiesMDXTag marks every story compiled from a `.stories.mdx` file.
const storiesMDXTag = "stories-mdx"

// metaPassthrough are the <Meta> attributes copied into the default export.
var metaPassthrough = []string{"title", "id", "component", "subcomponents", "parameters", "decorators", "args", "argTypes", "loaders", "render", "play"}

// storyPassthrough are the <Story> attributes assigned onto the story export.
var storyPassthrough = []string{"parameters", "decorators", "args", "argTypes", "loaders", "render", "play", "tags"}

// Compile turns a `.stories.mdx` document into a CSF module: one named
// export per `<Story name>` element and a default export built from
// `<Meta>`. A document without stories compiles to a docs-only `__page`
// story.
func Compile(src []byte) ([]byte, error) {
	d := scan(src)
	if _, err := d.prelude(); err != nil {
		return nil, err
	}

	metas, err := d.elements("Meta")
	if err != nil {
		return nil, err
	}
	if len(metas) > 1 {
		return nil, ErrMultipleMeta
	}
	stories, err := d.elements("Story")
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for _, block := range d.esm {
		out.WriteString(block)
		if !strings.HasSuffix(block, "\n") {
			out.WriteByte('\n')
		}
	}
	out.WriteByte('\n')

	var keys []string
	used := make(map[string]bool)
	for _, st := range stories {
		nameAttr := st.node.Attr("name")
		if nameAttr == nil {
			// <Story id="..."/> embeds a story defined elsewhere
			continue
		}
		name, ok := jsast.StaticString(nameAttr.Value)
		if !ok {
			return nil, fmt.Errorf("MDX: expected <Story> `name` to be a string literal, got %s", jsast.KindOf(nameAttr.Value))
		}
		key := exportKey(name)
		if key == "" {
			return nil, fmt.Errorf("MDX: invalid story name %q", name)
		}
		if used[key] {
			return nil, fmt.Errorf("MDX: duplicate story name %q", name)
		}
		used[key] = true
		keys = append(keys, key)

		fmt.Fprintf(&out, "export const %s = %s;\n", key, storyFunction(st))
		fmt.Fprintf(&out, "%s.storyName = %s;\n", key, jsast.Quote(name, '\''))
		for _, attrName := range storyPassthrough {
			if a := st.node.Attr(attrName); a != nil && a.Value != nil {
				fmt.Fprintf(&out, "%s.%s = %s;\n", key, attrName, st.text(a.Value))
			}
		}
		out.WriteByte('\n')
	}

	if len(keys) == 0 {
		out.WriteString("export const __page = () => {\n  throw new Error(\"Docs-only story\");\n};\n")
		out.WriteString("__page.parameters = { docsOnly: true };\n\n")
		keys = []string{"__page"}
	}

	props := []string{}
	tags := []string{}
	if len(metas) == 1 {
		meta := metas[0]
		for _, attrName := range metaPassthrough {
			a := meta.node.Attr(attrName)
			if a == nil || a.Value == nil {
				continue
			}
			props = append(props, fmt.Sprintf("%s: %s", attrName, meta.text(a.Value)))
		}
		if a := meta.node.Attr("tags"); a != nil {
			userTags, err := stringArray(a.Value)
			if err != nil {
				return nil, fmt.Errorf("MDX: tags: %w", err)
			}
			tags = append(tags, userTags...)
		}
	}
	tags = append(tags, storiesMDXTag)
	props = append(props, "tags: "+stringList(tags), "includeStories: "+stringList(keys))

	out.WriteString("const componentMeta = {\n")
	for _, p := range props {
		fmt.Fprintf(&out, "  %s,\n", p)
	}
	out.WriteString("};\n\nexport default componentMeta;\n")
	return []byte(out.String()), nil
}

// storyFunction renders the story body. A single function or expression
// child is used as is, `Template.bind({})` included; other children are
// wrapped in a component returning them.
func storyFunction(st *element) string {
	children := st.node.Children
	if len(children) == 1 {
		switch c := children[0].(type) {
		case *jsast.Func, *jsast.Call, *jsast.Ident:
			return st.text(c)
		}
	}
	if st.node.SelfClosing {
		if st.node.Attr("args") != nil || st.node.Attr("render") != nil {
			return "(args) => {}"
		}
		return "() => {}"
	}
	inner := []byte(st.mod.Text(st.node.Pos()))
	body := ""
	open, _, ok := openTagEnd(inner, 1)
	closing := bytes.LastIndex(inner, []byte("</"))
	if ok && closing >= open {
		body = strings.TrimSpace(string(inner[open:closing]))
	}
	if st.node.Attr("args") != nil {
		return "(args) => (<>" + body + "</>)"
	}
	return "() => (<>" + body + "</>)"
}

// exportKey derives an export name from a story name: "Primary button" gives
// "primaryButton".
func exportKey(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		r := []rune(w)
		if i == 0 {
			r[0] = unicode.ToLower(r[0])
		} else {
			r[0] = unicode.ToUpper(r[0])
		}
		b.WriteString(string(r))
	}
	key := b.String()
	if key != "" && unicode.IsDigit([]rune(key)[0]) {
		key = "_" + key
	}
	return key
}

func stringList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = jsast.Quote(s, '\'')
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
