package jsast

import (
	"fmt"
	"strings"
)

// maxAliasHops bounds alias chains followed by Resolve.
const maxAliasHops = 8

// NotLiteralError is returned by LiteralValue for nodes that would need code
// execution to evaluate.
type NotLiteralError struct {
	Kind string
	Span Span
}

func (e *NotLiteralError) Error() string {
	return fmt.Sprintf("expected a literal value, got %s at line %d:%d", e.Kind, e.Span.Line, e.Span.Column)
}

// RegexValue is the evaluated form of a regular expression literal.
type RegexValue struct {
	Pattern string
	Flags   string
}

// BoundTemplate is the evaluated form of `Template.bind()` or
// `Template.bind({})`, the legacy way of deriving a story from a template.
type BoundTemplate struct {
	Name string
}

// FindExportDefault returns the default-exported expression of the module.
// For `export default function f() {}` the *Func is returned; for
// `export { x as default }` an *Ident naming x is returned.
func FindExportDefault(m *Module) Node {
	for _, s := range m.Body {
		switch st := s.(type) {
		case *ExportDefault:
			if st.Value != nil {
				return st.Value
			}
			switch d := st.Decl.(type) {
			case *FuncDecl:
				return d.Func
			case *ClassDecl:
				return &Opaque{expr: expr{d.Pos()}, Kind: "ClassDeclaration"}
			}
		case *ExportNamed:
			if st.Source != "" {
				continue
			}
			for _, spec := range st.Specifiers {
				if spec.Exported == "default" {
					return &Ident{expr: expr{st.Pos()}, Name: spec.Local}
				}
			}
		}
	}
	return nil
}

// FindNamedExport returns the value bound to the named export `name`, or nil.
// Re-exports from other modules are not followed.
func FindNamedExport(m *Module, name string) Node {
	for _, s := range m.Body {
		st, ok := s.(*ExportNamed)
		if !ok {
			continue
		}
		switch d := st.Decl.(type) {
		case *VarDecl:
			for _, decl := range d.Decls {
				if decl.Name == name {
					return decl.Init
				}
			}
		case *FuncDecl:
			if d.Func.Name == name {
				return d.Func
			}
		}
		if st.Source != "" {
			continue
		}
		for _, spec := range st.Specifiers {
			if spec.Exported == name {
				return &Ident{expr: expr{st.Pos()}, Name: spec.Local}
			}
		}
	}
	return nil
}

// ResolveIdentifierInitializer returns the initializer of the top-level
// binding `name` (variable declarations, exported or not, and function
// declarations). It performs a single lookup and never follows aliases.
func ResolveIdentifierInitializer(m *Module, name string) Node {
	for _, s := range m.Body {
		if st, ok := s.(*ExportNamed); ok && st.Decl != nil {
			s = st.Decl
		}
		switch d := s.(type) {
		case *VarDecl:
			for _, decl := range d.Decls {
				if decl.Name == name {
					return decl.Init
				}
			}
		case *FuncDecl:
			if d.Func.Name == name {
				return d.Func
			}
		}
	}
	return nil
}

// Resolve follows identifiers back to the expression they were initialized
// with. Alias chains are followed a bounded number of hops and cycles stop the
// walk; nil is returned when the chain cannot be resolved.
func Resolve(m *Module, n Node) Node {
	seen := make(map[string]bool)
	for hops := 0; hops < maxAliasHops; hops++ {
		id, ok := n.(*Ident)
		if !ok {
			return n
		}
		if seen[id.Name] {
			return nil
		}
		seen[id.Name] = true
		n = ResolveIdentifierInitializer(m, id.Name)
		if n == nil {
			return nil
		}
	}
	return nil
}

// LiteralValue evaluates literal structures: strings, static template
// literals, numbers, booleans, null/undefined, regexes, and arrays and objects
// made of those. Objects evaluate to map[string]any. Anything else yields a
// *NotLiteralError, except `x.bind()`/`x.bind({})` which evaluates to a
// BoundTemplate.
func LiteralValue(n Node) (any, error) {
	switch v := n.(type) {
	case *String:
		return v.Value, nil
	case *Template:
		if len(v.Exprs) > 0 {
			return nil, &NotLiteralError{Kind: "TemplateLiteral with expressions", Span: v.Pos()}
		}
		return strings.Join(v.Quasis, ""), nil
	case *Number:
		return v.Value, nil
	case *Bool:
		return v.Value, nil
	case *Null:
		return nil, nil
	case *Ident:
		if v.Name == "undefined" {
			return nil, nil
		}
	case *Regex:
		return RegexValue{Pattern: v.Pattern, Flags: v.Flags}, nil
	case *Array:
		out := make([]any, 0, len(v.Elements))
		for _, el := range v.Elements {
			val, err := LiteralValue(el)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case *Object:
		if v.HasSpread {
			return nil, &NotLiteralError{Kind: "ObjectExpression with spread", Span: v.Pos()}
		}
		out := make(map[string]any, len(v.Props))
		for _, p := range v.Props {
			if p.Computed || p.Shorthand {
				return nil, &NotLiteralError{Kind: "non-literal object key " + p.Key, Span: p.Span}
			}
			val, err := LiteralValue(p.Value)
			if err != nil {
				return nil, err
			}
			out[p.Key] = val
		}
		return out, nil
	case *Call:
		if name, ok := BindTarget(v); ok {
			return BoundTemplate{Name: name}, nil
		}
	}
	if n == nil {
		return nil, &NotLiteralError{Kind: "nothing"}
	}
	return nil, &NotLiteralError{Kind: KindOf(n), Span: n.Pos()}
}

// BindTarget recognizes `Name.bind()` and `Name.bind({})` and returns Name.
func BindTarget(c *Call) (string, bool) {
	m, ok := c.Callee.(*Member)
	if !ok || m.Computed || m.Property != "bind" {
		return "", false
	}
	obj, ok := m.Object.(*Ident)
	if !ok {
		return "", false
	}
	switch len(c.Args) {
	case 0:
		return obj.Name, true
	case 1:
		if o, ok := c.Args[0].(*Object); ok && len(o.Props) == 0 && !o.HasSpread {
			return obj.Name, true
		}
	}
	return "", false
}

// StaticString returns the value of a string literal or a template literal
// without substitutions.
func StaticString(n Node) (string, bool) {
	switch v := n.(type) {
	case *String:
		return v.Value, true
	case *Template:
		if len(v.Exprs) == 0 {
			return strings.Join(v.Quasis, ""), true
		}
	}
	return "", false
}
