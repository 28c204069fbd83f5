// Package mdx statically reads MDX documents. Analyze extracts the
// `<Meta>` information of a docs file and Compile turns a legacy
// `.stories.mdx` file into an equivalent CSF module.
package mdx

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// document is an MDX source split into its ESM prelude and the markdown
// body, with code blocks, code spans and comments blanked out of the body.
type document struct {
	src    []byte
	masked []byte
	esm    []string
}

// element is one JSX element found in the body.
type element struct {
	start, end int
	node       *jsast.JSXElement
	mod        *jsast.Module
}

// text returns the source of an attribute value or child node.
func (e *element) text(n jsast.Node) string {
	return e.mod.Text(n.Pos())
}

func scan(src []byte) *document {
	d := &document{src: src, masked: append([]byte(nil), src...)}

	doc := markdown.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				d.mask(seg.Start, seg.Stop)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					d.mask(t.Segment.Start, t.Segment.Stop)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	d.maskComments()
	d.collectESM()
	return d
}

// mask blanks src[start:end] in the masked copy, keeping newlines.
func (d *document) mask(start, end int) {
	for i := start; i < end && i < len(d.masked); i++ {
		if d.masked[i] != '\n' {
			d.masked[i] = ' '
		}
	}
}

func (d *document) maskComments() {
	for _, delim := range [][2]string{{"<!--", "-->"}, {"{/*", "*/}"}} {
		from := 0
		for {
			i := bytes.Index(d.masked[from:], []byte(delim[0]))
			if i < 0 {
				break
			}
			start := from + i
			j := bytes.Index(d.masked[start:], []byte(delim[1]))
			end := len(d.masked)
			if j >= 0 {
				end = start + j + len(delim[1])
			}
			d.mask(start, end)
			from = end
		}
	}
}

// collectESM gathers top-level import/export blocks from the original text. A block starts at a
// line beginning with `import` or `export` and runs until a blank line or a
// line starting a JSX element.
func (d *document) collectESM() {
	lines := bytes.SplitAfter(d.masked, []byte("\n"))
	offset := 0
	var (
		block      bytes.Buffer
		blockStart = -1
	)
	flush := func(end int) {
		if blockStart >= 0 {
			d.esm = append(d.esm, block.String())
			d.mask(blockStart, end)
		}
		block.Reset()
		blockStart = -1
	}
	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		switch {
		case blockStart < 0 && isESMStart(line):
			blockStart = offset
			block.Write(d.src[offset : offset+len(line)])
		case blockStart >= 0 && (len(trimmed) == 0 || line[0] == '<'):
			flush(offset)
		case blockStart >= 0:
			// code spans inside template literals are masked, so copy the original
			block.Write(d.src[offset : offset+len(line)])
		}
		offset += len(line)
	}
	flush(offset)
}

func isESMStart(line []byte) bool {
	for _, kw := range []string{"import", "export"} {
		if bytes.HasPrefix(line, []byte(kw)) && len(line) > len(kw) {
			switch line[len(kw)] {
			case ' ', '\t', '{', '*', '\'', '"':
				return true
			}
		}
	}
	return false
}

// prelude parses the ESM blocks as one module.
func (d *document) prelude() (*jsast.Module, error) {
	var buf bytes.Buffer
	for _, b := range d.esm {
		buf.WriteString(b)
		if !bytes.HasSuffix([]byte(b), []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	mod, err := jsast.Parse(buf.Bytes(), "prelude.tsx")
	if err != nil {
		return nil, fmt.Errorf("failed to parse MDX imports/exports: %w", err)
	}
	return mod, nil
}

// elements finds every <name> JSX element in the body and parses it.
func (d *document) elements(name string) ([]*element, error) {
	var out []*element
	open := []byte("<" + name)
	from := 0
	for {
		i := bytes.Index(d.masked[from:], open)
		if i < 0 {
			return out, nil
		}
		start := from + i
		after := start + len(open)
		if after >= len(d.masked) || !isTagBoundary(d.masked[after]) {
			from = after
			continue
		}
		end, err := d.elementEnd(name, after)
		if err != nil {
			return nil, err
		}
		el, err := parseElement(d.src[start:end])
		if err != nil {
			return nil, err
		}
		el.start, el.end = start, end
		out = append(out, el)
		from = end
	}
}

func isTagBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/' || c == '>'
}

// elementEnd returns the offset just past the element whose opening tag
// name ends before i.
func (d *document) elementEnd(name string, i int) (int, error) {
	end, selfClosing, ok := openTagEnd(d.masked, i)
	if !ok {
		return 0, fmt.Errorf("unterminated <%s> tag", name)
	}
	if selfClosing {
		return end, nil
	}
	closing := []byte("</" + name)
	j := bytes.Index(d.masked[end:], closing)
	if j < 0 {
		return 0, fmt.Errorf("unclosed <%s> element at offset %d", name, end)
	}
	k := bytes.IndexByte(d.masked[end+j:], '>')
	if k < 0 {
		return 0, fmt.Errorf("unclosed <%s> element at offset %d", name, end)
	}
	return end + j + k + 1, nil
}

// openTagEnd scans an opening tag from i and returns the offset just past its
// closing `>`. Braces and quoted strings are skipped so `=>` and `>` inside
// attribute expressions do not end the tag.
func openTagEnd(b []byte, i int) (end int, selfClosing, ok bool) {
	depth := 0
	var quote byte
	for ; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '`':
			if depth > 0 {
				quote = c
			}
		case '{':
			depth++
		case '}':
			depth--
		case '>':
			if depth == 0 {
				return i + 1, i > 0 && b[i-1] == '/', true
			}
		}
	}
	return 0, false, false
}

// parseElement parses the JSX source of one element.
func parseElement(src []byte) (*element, error) {
	wrapped := make([]byte, 0, len(src)+3)
	wrapped = append(wrapped, '(')
	wrapped = append(wrapped, src...)
	wrapped = append(wrapped, ");"...)
	mod, err := jsast.Parse(wrapped, "element.tsx")
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSX: %w", err)
	}
	if len(mod.Body) == 1 {
		if es, ok := mod.Body[0].(*jsast.ExprStmt); ok {
			if el, ok := es.Expr.(*jsast.JSXElement); ok {
				return &element{node: el, mod: mod}, nil
			}
		}
	}
	return nil, fmt.Errorf("expected a single JSX element, got %q", src)
}
