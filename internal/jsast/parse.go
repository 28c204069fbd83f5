// Package jsast parses JavaScript and TypeScript modules with tree-sitter and
// lowers the concrete syntax tree into a small, closed set of Go node types.
//
// Only the constructs needed for static extraction (module imports/exports,
// literals, functions, calls, member accesses, assignments and JSX) get their
// own node type. Type annotations, `as`/`satisfies` casts, non-null assertions
// and parentheses are stripped while lowering.
package jsast

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// maxQuoteSamples bounds how many string literals are sampled for quote
// style inference.
const maxQuoteSamples = 500

var (
	tsLanguage  = sitter.NewLanguage(typescript.LanguageTypescript())
	tsxLanguage = sitter.NewLanguage(typescript.LanguageTSX())
)

// SyntaxError reports unparseable input.
type SyntaxError struct {
	File   string
	Line   int
	Column int
	Near   string
}

func (e *SyntaxError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("%s:%d:%d: syntax error near %q", e.File, e.Line, e.Column, e.Near)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error", e.File, e.Line, e.Column)
}

// languageFor picks the grammar for a file. Plain TypeScript files cannot use
// the TSX grammar because `<T>expr` assertions are ambiguous with JSX.
func languageFor(fileName string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".ts", ".mts", ".cts":
		return tsLanguage
	default:
		return tsxLanguage
	}
}

// Parse parses src as an ES module. fileName selects the grammar and is used
// in error messages.
func Parse(src []byte, fileName string) (*Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(languageFor(fileName)); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, &SyntaxError{File: fileName, Line: 1, Column: 1}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, src, fileName)
	}

	l := &lowerer{src: src}
	mod := &Module{FileName: fileName, Source: src}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		if s := l.stmt(root.NamedChild(i)); s != nil {
			mod.Body = append(mod.Body, s)
		}
	}

	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Kind() == "identifier" {
				mod.callees = append(mod.callees, l.text(fn))
			}
		case "string":
			if len(mod.quotes) < maxQuoteSamples && n.EndByte() > n.StartByte() {
				mod.quotes = append(mod.quotes, src[n.StartByte()])
			}
			return false
		}
		return true
	})

	return mod, nil
}

// syntaxError locates the first ERROR or MISSING node below root.
func syntaxError(root *sitter.Node, src []byte, fileName string) *SyntaxError {
	var bad *sitter.Node
	walkTree(root, func(n *sitter.Node) bool {
		if bad != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			bad = n
			return false
		}
		return n.HasError()
	})
	if bad == nil {
		bad = root
	}
	pos := bad.StartPosition()
	near := strings.TrimSpace(string(src[bad.StartByte():bad.EndByte()]))
	if len(near) > 40 {
		near = near[:40]
	}
	return &SyntaxError{File: fileName, Line: int(pos.Row) + 1, Column: int(pos.Column) + 1, Near: near}
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visitor(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), visitor)
	}
}

type lowerer struct {
	src []byte
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(l.src[n.StartByte():n.EndByte()])
}

func (l *lowerer) span(n *sitter.Node) Span {
	pos := n.StartPosition()
	return Span{
		Start:  int(n.StartByte()),
		End:    int(n.EndByte()),
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
	}
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Kind() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if cs := namedChildren(n); len(cs) > 0 {
		return cs[0]
	}
	return nil
}

func findChildByType(n *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

func (l *lowerer) stmt(n *sitter.Node) Stmt {
	sp := l.span(n)
	switch n.Kind() {
	case "comment", "empty_statement", "hash_bang_line":
		return nil
	case "import_statement":
		return l.importStmt(n)
	case "lexical_declaration", "variable_declaration":
		return l.varDecl(n)
	case "function_declaration", "generator_function_declaration":
		return &FuncDecl{stmt: stmt{sp}, Func: l.function(n)}
	case "class_declaration", "abstract_class_declaration":
		return &ClassDecl{stmt: stmt{sp}, Name: l.text(n.ChildByFieldName("name"))}
	case "export_statement":
		return l.exportStmt(n)
	case "expression_statement":
		if e := firstNamed(n); e != nil {
			return &ExprStmt{stmt: stmt{sp}, Expr: l.expr(e)}
		}
	}
	return &OtherStmt{stmt: stmt{sp}, Kind: n.Kind()}
}

func (l *lowerer) importStmt(n *sitter.Node) Stmt {
	imp := &Import{stmt: stmt{l.span(n)}}
	if src := n.ChildByFieldName("source"); src != nil {
		imp.Source = Unquote(l.text(src))
	}
	clause := findChildByType(n, "import_clause")
	if clause == nil {
		return imp
	}
	for _, c := range namedChildren(clause) {
		switch c.Kind() {
		case "identifier":
			imp.Default = l.text(c)
		case "namespace_import":
			if id := findChildByType(c, "identifier"); id != nil {
				imp.Namespace = l.text(id)
			}
		case "named_imports":
			for _, spec := range namedChildren(c) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				name := l.text(spec.ChildByFieldName("name"))
				local := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = l.text(alias)
				}
				imp.Named = append(imp.Named, ImportSpec{Imported: name, Local: local})
			}
		}
	}
	return imp
}

func (l *lowerer) varDecl(n *sitter.Node) *VarDecl {
	decl := &VarDecl{stmt: stmt{l.span(n)}}
	if n.ChildCount() > 0 {
		decl.Kind = l.text(n.Child(0))
	}
	for _, c := range namedChildren(n) {
		if c.Kind() != "variable_declarator" {
			continue
		}
		d := &Declarator{Span: l.span(c)}
		if name := c.ChildByFieldName("name"); name != nil {
			d.NameSpan = l.span(name)
			if name.Kind() == "identifier" {
				d.Name = l.text(name)
			}
		}
		if v := c.ChildByFieldName("value"); v != nil {
			d.Init = l.expr(v)
		}
		decl.Decls = append(decl.Decls, d)
	}
	return decl
}

func (l *lowerer) exportStmt(n *sitter.Node) Stmt {
	sp := l.span(n)
	isDefault := findChildByType(n, "default") != nil

	if d := n.ChildByFieldName("declaration"); d != nil {
		inner := l.stmt(d)
		if isDefault {
			return &ExportDefault{stmt: stmt{sp}, Decl: inner}
		}
		return &ExportNamed{stmt: stmt{sp}, Decl: inner}
	}
	if v := n.ChildByFieldName("value"); v != nil {
		return &ExportDefault{stmt: stmt{sp}, Value: l.expr(v)}
	}

	source := ""
	if src := n.ChildByFieldName("source"); src != nil {
		source = Unquote(l.text(src))
	}
	if clause := findChildByType(n, "export_clause"); clause != nil {
		named := &ExportNamed{stmt: stmt{sp}, Source: source}
		for _, spec := range namedChildren(clause) {
			if spec.Kind() != "export_specifier" {
				continue
			}
			local := exportName(l.text(spec.ChildByFieldName("name")))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = exportName(l.text(alias))
			}
			named.Specifiers = append(named.Specifiers, ExportSpec{Local: local, Exported: exported})
		}
		return named
	}
	if findChildByType(n, "*") != nil || findChildByType(n, "namespace_export") != nil {
		all := &ExportAll{stmt: stmt{sp}, Source: source}
		if ns := findChildByType(n, "namespace_export"); ns != nil {
			if id := firstNamed(ns); id != nil {
				all.Alias = exportName(l.text(id))
			}
		}
		return all
	}
	return &OtherStmt{stmt: stmt{sp}, Kind: n.Kind()}
}

// exportName unquotes string export names (`export { a as "b" }`).
func exportName(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return Unquote(s)
	}
	return s
}

func (l *lowerer) expr(n *sitter.Node) Node {
	sp := l.span(n)
	switch n.Kind() {
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		if inner := firstNamed(n); inner != nil {
			return l.expr(inner)
		}
	case "type_assertion":
		cs := namedChildren(n)
		if len(cs) > 0 {
			return l.expr(cs[len(cs)-1])
		}
	case "object":
		return l.object(n)
	case "array":
		arr := &Array{expr: expr{sp}}
		for _, c := range namedChildren(n) {
			arr.Elements = append(arr.Elements, l.expr(c))
		}
		return arr
	case "string":
		raw := l.text(n)
		var quote byte = '"'
		if len(raw) > 0 {
			quote = raw[0]
		}
		return &String{expr: expr{sp}, Value: Unquote(raw), Quote: quote}
	case "template_string":
		return l.template(n)
	case "number":
		return &Number{expr: expr{sp}, Value: parseNumber(l.text(n)), Raw: l.text(n)}
	case "unary_expression":
		op := l.text(n.ChildByFieldName("operator"))
		arg := n.ChildByFieldName("argument")
		if arg != nil && arg.Kind() == "number" && (op == "-" || op == "+") {
			v := parseNumber(l.text(arg))
			if op == "-" {
				v = -v
			}
			return &Number{expr: expr{sp}, Value: v, Raw: l.text(n)}
		}
	case "true", "false":
		return &Bool{expr: expr{sp}, Value: n.Kind() == "true"}
	case "null":
		return &Null{expr: expr{sp}}
	case "undefined", "identifier", "shorthand_property_identifier", "property_identifier":
		return &Ident{expr: expr{sp}, Name: l.text(n)}
	case "regex":
		return &Regex{
			expr:    expr{sp},
			Pattern: l.text(n.ChildByFieldName("pattern")),
			Flags:   l.text(n.ChildByFieldName("flags")),
		}
	case "call_expression":
		args := n.ChildByFieldName("arguments")
		if args == nil || args.Kind() != "arguments" {
			break
		}
		call := &Call{expr: expr{sp}, Callee: l.expr(n.ChildByFieldName("function"))}
		for _, a := range namedChildren(args) {
			call.Args = append(call.Args, l.expr(a))
		}
		return call
	case "member_expression":
		return &Member{
			expr:     expr{sp},
			Object:   l.expr(n.ChildByFieldName("object")),
			Property: l.text(n.ChildByFieldName("property")),
		}
	case "subscript_expression":
		m := &Member{expr: expr{sp}, Object: l.expr(n.ChildByFieldName("object")), Computed: true}
		if idx := n.ChildByFieldName("index"); idx != nil && idx.Kind() == "string" {
			m.Property = Unquote(l.text(idx))
		}
		return m
	case "arrow_function", "function", "function_expression", "generator_function":
		return l.function(n)
	case "assignment_expression", "augmented_assignment_expression":
		op := "="
		if o := n.ChildByFieldName("operator"); o != nil {
			op = l.text(o)
		}
		return &Assign{
			expr:     expr{sp},
			Operator: op,
			Left:     l.expr(n.ChildByFieldName("left")),
			Right:    l.expr(n.ChildByFieldName("right")),
		}
	case "jsx_element", "jsx_self_closing_element":
		return l.jsx(n)
	}
	return &Opaque{expr: expr{sp}, Kind: n.Kind()}
}

func (l *lowerer) object(n *sitter.Node) *Object {
	obj := &Object{expr: expr{l.span(n)}}
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "pair":
			key := c.ChildByFieldName("key")
			p := &Property{Span: l.span(c), KeySpan: l.span(key)}
			switch key.Kind() {
			case "string":
				p.Key = Unquote(l.text(key))
			case "computed_property_name":
				p.Computed = true
				if inner := firstNamed(key); inner != nil && inner.Kind() == "string" {
					p.Key = Unquote(l.text(inner))
				} else {
					p.Key = l.text(key)
				}
			default:
				p.Key = l.text(key)
			}
			if v := c.ChildByFieldName("value"); v != nil {
				p.Value = l.expr(v)
			}
			obj.Props = append(obj.Props, p)
		case "shorthand_property_identifier":
			name := l.text(c)
			obj.Props = append(obj.Props, &Property{
				Key:       name,
				KeySpan:   l.span(c),
				Shorthand: true,
				Value:     &Ident{expr: expr{l.span(c)}, Name: name},
				Span:      l.span(c),
			})
		case "method_definition":
			name := c.ChildByFieldName("name")
			obj.Props = append(obj.Props, &Property{
				Key:     l.text(name),
				KeySpan: l.span(name),
				Value:   l.function(c),
				Span:    l.span(c),
			})
		case "spread_element":
			obj.HasSpread = true
		}
	}
	return obj
}

func (l *lowerer) template(n *sitter.Node) *Template {
	t := &Template{expr: expr{l.span(n)}}
	start := int(n.StartByte()) + 1 // skip the opening backtick
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Kind() != "template_substitution" {
			continue
		}
		t.Quasis = append(t.Quasis, unescape(string(l.src[start:c.StartByte()])))
		if inner := firstNamed(c); inner != nil {
			t.Exprs = append(t.Exprs, l.expr(inner))
		} else {
			t.Exprs = append(t.Exprs, &Opaque{expr: expr{l.span(c)}, Kind: c.Kind()})
		}
		start = int(c.EndByte())
	}
	end := int(n.EndByte()) - 1
	if end < start {
		end = start
	}
	t.Quasis = append(t.Quasis, unescape(string(l.src[start:end])))
	return t
}

func (l *lowerer) function(n *sitter.Node) *Func {
	fn := &Func{
		expr:      expr{l.span(n)},
		Name:      l.text(n.ChildByFieldName("name")),
		Arrow:     n.Kind() == "arrow_function",
		Async:     findChildByType(n, "async") != nil,
		Generator: findChildByType(n, "*") != nil || strings.HasPrefix(n.Kind(), "generator_"),
	}
	if p := n.ChildByFieldName("parameter"); p != nil {
		fn.Params = 1
	} else if ps := n.ChildByFieldName("parameters"); ps != nil {
		fn.Params = len(namedChildren(ps))
	}
	return fn
}

func (l *lowerer) jsx(n *sitter.Node) *JSXElement {
	el := &JSXElement{expr: expr{l.span(n)}, SelfClosing: n.Kind() == "jsx_self_closing_element"}
	open := n
	if !el.SelfClosing {
		open = n.ChildByFieldName("open_tag")
		if open == nil {
			open = findChildByType(n, "jsx_opening_element")
		}
	}
	if open != nil {
		el.Name = l.text(open.ChildByFieldName("name"))
		for _, c := range namedChildren(open) {
			if c.Kind() != "jsx_attribute" {
				continue
			}
			parts := namedChildren(c)
			if len(parts) == 0 {
				continue
			}
			attr := &JSXAttr{Name: l.text(parts[0]), Span: l.span(c)}
			if len(parts) > 1 {
				attr.Value = l.jsxValue(parts[1])
			}
			el.Attrs = append(el.Attrs, attr)
		}
	}
	if el.SelfClosing {
		return el
	}
	for _, c := range namedChildren(n) {
		switch c.Kind() {
		case "jsx_expression":
			if inner := firstNamed(c); inner != nil {
				el.Children = append(el.Children, l.expr(inner))
			}
		case "jsx_element", "jsx_self_closing_element":
			el.Children = append(el.Children, l.jsx(c))
		}
	}
	return el
}

func (l *lowerer) jsxValue(n *sitter.Node) Node {
	if n.Kind() == "jsx_expression" {
		inner := firstNamed(n)
		if inner == nil {
			return nil
		}
		return l.expr(inner)
	}
	return l.expr(n)
}

func parseNumber(raw string) float64 {
	s := strings.ReplaceAll(raw, "_", "")
	s = strings.TrimSuffix(s, "n")
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return 0
}
