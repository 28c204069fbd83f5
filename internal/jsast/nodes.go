package jsast

// Span locates a node inside the module source.
type Span struct {
	Start  int // byte offset, inclusive
	End    int // byte offset, exclusive
	Line   int // 1-based
	Column int // 1-based
}

// Node is an expression. The set of implementations is closed: only the
// constructs the extractors inspect get their own type, everything else is
// lowered to *Opaque.
type Node interface {
	Pos() Span
	exprNode()
}

// Stmt is a top-level module statement.
type Stmt interface {
	Pos() Span
	stmtNode()
}

type expr struct{ span Span }

func (e expr) Pos() Span { return e.span }
func (expr) exprNode()   {}

type stmt struct{ span Span }

func (s stmt) Pos() Span { return s.span }
func (stmt) stmtNode()   {}

// Object is an object literal.
type Object struct {
	expr
	Props     []*Property
	HasSpread bool
}

// Property is one key/value pair of an object literal. Methods are lowered to
// a property whose Value is a *Func.
type Property struct {
	Key       string
	KeySpan   Span
	Computed  bool
	Shorthand bool
	Value     Node
	Span      Span
}

// Prop returns the first non-computed property with the given key.
func (o *Object) Prop(key string) *Property {
	for _, p := range o.Props {
		if !p.Computed && p.Key == key {
			return p
		}
	}
	return nil
}

// Array is an array literal. Spread elements are lowered to *Opaque.
type Array struct {
	expr
	Elements []Node
}

// String is a string literal with its cooked value.
type String struct {
	expr
	Value string
	Quote byte
}

// Template is a template literal. It is static when Exprs is empty.
type Template struct {
	expr
	Quasis []string
	Exprs  []Node
}

// Number is a numeric literal.
type Number struct {
	expr
	Value float64
	Raw   string
}

// Bool is a boolean literal.
type Bool struct {
	expr
	Value bool
}

// Null is the null literal.
type Null struct{ expr }

// Regex is a regular expression literal.
type Regex struct {
	expr
	Pattern string
	Flags   string
}

// Ident is an identifier reference. `undefined` is an Ident.
type Ident struct {
	expr
	Name string
}

// Call is a call expression.
type Call struct {
	expr
	Callee Node
	Args   []Node
}

// Member is a property access. Property is empty for computed accesses whose
// index is not a string literal.
type Member struct {
	expr
	Object   Node
	Property string
	Computed bool
}

// Func is a function, arrow function or method.
type Func struct {
	expr
	Name      string
	Params    int
	Arrow     bool
	Async     bool
	Generator bool
}

// Assign is an assignment expression.
type Assign struct {
	expr
	Operator string
	Left     Node
	Right    Node
}

// JSXElement is a JSX element or self-closing element.
type JSXElement struct {
	expr
	Name        string
	Attrs       []*JSXAttr
	Children    []Node
	SelfClosing bool
}

// Attr returns the attribute with the given name.
func (e *JSXElement) Attr(name string) *JSXAttr {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// JSXAttr is a JSX attribute. Value is nil for boolean shorthand attributes.
type JSXAttr struct {
	Name  string
	Value Node
	Span  Span
}

// Opaque is any expression the extractors never look inside.
type Opaque struct {
	expr
	Kind string
}

// Import is an import declaration.
type Import struct {
	stmt
	Source    string
	Default   string
	Namespace string
	Named     []ImportSpec
}

// ImportSpec is one named import binding.
type ImportSpec struct {
	Imported string
	Local    string
}

// VarDecl is a const/let/var declaration.
type VarDecl struct {
	stmt
	Kind  string
	Decls []*Declarator
}

// Declarator is one binding of a VarDecl. Name is empty for destructuring.
type Declarator struct {
	Name     string
	NameSpan Span
	Init     Node
	Span     Span
}

// FuncDecl is a function declaration.
type FuncDecl struct {
	stmt
	Func *Func
}

// ClassDecl is a class declaration.
type ClassDecl struct {
	stmt
	Name string
}

// ExportNamed is `export <decl>` or `export { a as b } [from '...']`.
type ExportNamed struct {
	stmt
	Decl       Stmt
	Specifiers []ExportSpec
	Source     string
}

// ExportSpec is one `local as exported` pair.
type ExportSpec struct {
	Local    string
	Exported string
}

// ExportDefault is `export default <expr>` or `export default <decl>`.
type ExportDefault struct {
	stmt
	Value Node
	Decl  Stmt
}

// ExportAll is `export * [as alias] from '...'`.
type ExportAll struct {
	stmt
	Source string
	Alias  string
}

// ExprStmt is an expression statement.
type ExprStmt struct {
	stmt
	Expr Node
}

// OtherStmt is any statement the extractors never look inside.
type OtherStmt struct {
	stmt
	Kind string
}

// Module is one parsed source file.
type Module struct {
	FileName string
	Source   []byte
	Body     []Stmt

	callees []string
	quotes  []byte
}

// Text returns the source text covered by span.
func (m *Module) Text(span Span) string {
	if span.Start < 0 || span.End > len(m.Source) || span.Start > span.End {
		return ""
	}
	return string(m.Source[span.Start:span.End])
}

// CalledIdents returns every identifier used directly as a callee anywhere
// in the module, in source order.
func (m *Module) CalledIdents() []string {
	return m.callees
}

// Calls reports whether name is called anywhere in the module.
func (m *Module) Calls(name string) bool {
	for _, c := range m.callees {
		if c == name {
			return true
		}
	}
	return false
}

// QuoteChars returns the opening quote of the leading string literals of the
// module, in source order.
func (m *Module) QuoteChars() []byte {
	return m.quotes
}

// Imports returns the import declarations of the module.
func (m *Module) Imports() []*Import {
	var out []*Import
	for _, s := range m.Body {
		if imp, ok := s.(*Import); ok {
			out = append(out, imp)
		}
	}
	return out
}

// KindOf returns a short human-readable name for a node type.
func KindOf(n Node) string {
	switch v := n.(type) {
	case nil:
		return "nothing"
	case *Object:
		return "ObjectExpression"
	case *Array:
		return "ArrayExpression"
	case *String:
		return "StringLiteral"
	case *Template:
		return "TemplateLiteral"
	case *Number:
		return "NumericLiteral"
	case *Bool:
		return "BooleanLiteral"
	case *Null:
		return "NullLiteral"
	case *Regex:
		return "RegExpLiteral"
	case *Ident:
		return "Identifier"
	case *Call:
		return "CallExpression"
	case *Member:
		return "MemberExpression"
	case *Func:
		if v.Arrow {
			return "ArrowFunctionExpression"
		}
		return "FunctionExpression"
	case *Assign:
		return "AssignmentExpression"
	case *JSXElement:
		return "JSXElement"
	case *Opaque:
		return v.Kind
	default:
		return "unknown"
	}
}
