// Package configfile reads and edits a project's main configuration module
// (main.js, main.ts, ...) statically. Fields are addressed by path from the
// exported configuration object, which may be declared as named exports, a
// `module.exports` assignment or a default export.
//
// Edits splice the source text and re-parse it, so everything outside the
// edited span keeps its original formatting. Inserted strings use the quote
// style most used in the file.
package configfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

// MainConfigNames are the file names probed by FindMainConfig, in order.
var MainConfigNames = []string{"main.js", "main.cjs", "main.mjs", "main.ts", "main.mts", "main.cts"}

var (
	// ErrNotFound is returned by FindMainConfig when no main config exists.
	ErrNotFound = errors.New("main config not found")
	// ErrNotObject is returned when a path crosses a value that is not an
	// object literal.
	ErrNotObject = errors.New("field is not an object literal")
	// ErrNotArray is returned by AppendValueToArray for non-array fields.
	ErrNotArray = errors.New("field is not an array literal")
)

// Expr is a raw JavaScript expression rendered verbatim by SetFieldValue.
type Expr string

// ConfigFile is a parsed main configuration module.
type ConfigFile struct {
	FileName string

	src []byte
	mod *jsast.Module

	// exportsObject is the object behind `export default` or
	// `module.exports =`, resolved one level.
	exportsObject *jsast.Object
	// named holds `export const x = ...` and `module.exports.x = ...` fields.
	named    map[string]namedField
	commonJS bool
}

type namedField struct {
	value jsast.Node
	stmt  jsast.Span
}

// location is the result of walking a field path.
type location struct {
	depth  int              // path segments found
	raw    jsast.Node       // value as written
	node   jsast.Node       // value with identifiers resolved
	prop   *jsast.Property  // property holding raw, nil for named fields
	parent *jsast.Object    // object holding prop
	stmt   *jsast.Span      // statement of a named field
}

// Parse parses a main configuration module.
func Parse(src []byte, fileName string) (*ConfigFile, error) {
	mod, err := jsast.Parse(src, fileName)
	if err != nil {
		return nil, err
	}
	c := &ConfigFile{FileName: fileName}
	c.load(src, mod)
	return c, nil
}

// ReadConfig reads and parses the file at path.
func ReadConfig(path string) (*ConfigFile, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, path)
}

// WriteConfig renders cfg to path.
func WriteConfig(cfg *ConfigFile, path string) error {
	if err := os.WriteFile(path, []byte(cfg.Render()), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FindMainConfig returns the path of the main config inside configDir.
func FindMainConfig(configDir string) (string, error) {
	for _, name := range MainConfigNames {
		p := filepath.Join(configDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNotFound, configDir)
}

func (c *ConfigFile) load(src []byte, mod *jsast.Module) {
	c.src = src
	c.mod = mod
	c.exportsObject = nil
	c.commonJS = false
	c.named = make(map[string]namedField)

	for _, s := range mod.Body {
		switch st := s.(type) {
		case *jsast.ExportNamed:
			if d, ok := st.Decl.(*jsast.VarDecl); ok {
				for _, decl := range d.Decls {
					if decl.Name != "" {
						c.named[decl.Name] = namedField{value: decl.Init, stmt: st.Pos()}
					}
				}
			}
		case *jsast.ExportDefault:
			if obj, ok := jsast.Resolve(mod, st.Value).(*jsast.Object); ok {
				c.exportsObject = obj
			}
		case *jsast.ExprStmt:
			a, ok := st.Expr.(*jsast.Assign)
			if !ok || a.Operator != "=" {
				continue
			}
			switch key := moduleExportsKey(a.Left); key {
			case "":
			case ".":
				c.commonJS = true
				if obj, ok := jsast.Resolve(mod, a.Right).(*jsast.Object); ok {
					c.exportsObject = obj
				}
			default:
				c.commonJS = true
				c.named[key] = namedField{value: a.Right, stmt: st.Pos()}
			}
		}
	}
}

// moduleExportsKey returns "." for `module.exports`, the property name for
// `module.exports.x`, and "" otherwise.
func moduleExportsKey(n jsast.Node) string {
	m, ok := n.(*jsast.Member)
	if !ok {
		return ""
	}
	if obj, ok := m.Object.(*jsast.Ident); ok && obj.Name == "module" && m.Property == "exports" {
		return "."
	}
	if inner, ok := m.Object.(*jsast.Member); ok && moduleExportsKey(inner) == "." && m.Property != "" {
		return m.Property
	}
	return ""
}

func (c *ConfigFile) locate(path []string) location {
	var loc location
	if len(path) == 0 {
		return loc
	}
	if f, ok := c.named[path[0]]; ok {
		stmt := f.stmt
		loc = location{depth: 1, raw: f.value, stmt: &stmt}
	} else if c.exportsObject != nil {
		p := c.exportsObject.Prop(path[0])
		if p == nil {
			loc.node = c.exportsObject
			return loc
		}
		loc = location{depth: 1, raw: p.Value, prop: p, parent: c.exportsObject}
	} else {
		return loc
	}
	loc.node = c.resolve(loc.raw)

	for _, key := range path[1:] {
		obj, ok := loc.node.(*jsast.Object)
		if !ok {
			break
		}
		p := obj.Prop(key)
		if p == nil {
			break
		}
		loc = location{depth: loc.depth + 1, raw: p.Value, prop: p, parent: obj}
		loc.node = c.resolve(loc.raw)
	}
	return loc
}

func (c *ConfigFile) resolve(n jsast.Node) jsast.Node {
	if r := jsast.Resolve(c.mod, n); r != nil {
		return r
	}
	return n
}

// GetFieldNode returns the node at path, or nil when the path is absent.
func (c *ConfigFile) GetFieldNode(path []string) jsast.Node {
	loc := c.locate(path)
	if loc.depth != len(path) || len(path) == 0 {
		return nil
	}
	return loc.node
}

// GetFieldValue evaluates the literal at path. A missing path yields nil
// without an error; a value that is not a literal yields an error.
func (c *ConfigFile) GetFieldValue(path []string) (any, error) {
	n := c.GetFieldNode(path)
	if n == nil {
		return nil, nil
	}
	v, err := jsast.LiteralValue(n)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", strings.Join(path, "."), err)
	}
	return v, nil
}

// GetSafeFieldValue is GetFieldValue with evaluation errors mapped to nil.
func (c *ConfigFile) GetSafeFieldValue(path []string) any {
	v, err := c.GetFieldValue(path)
	if err != nil {
		return nil
	}
	return v
}

// GetNameFromPath reads a framework/addon style field: either a string, an
// object with a `name` property, or a call such as `require.resolve('x')`
// whose first argument is a string.
func (c *ConfigFile) GetNameFromPath(path []string) string {
	return c.nameOf(c.GetFieldNode(path))
}

func (c *ConfigFile) nameOf(n jsast.Node) string {
	switch v := n.(type) {
	case *jsast.String, *jsast.Template:
		s, _ := jsast.StaticString(v)
		return s
	case *jsast.Object:
		if p := v.Prop("name"); p != nil {
			return c.nameOf(c.resolve(p.Value))
		}
	case *jsast.Call:
		if len(v.Args) > 0 {
			return c.nameOf(c.resolve(v.Args[0]))
		}
	}
	return ""
}

// SetFieldValue sets the field at path, creating missing intermediate
// objects and, if needed, the top-level field itself.
func (c *ConfigFile) SetFieldValue(path []string, value any) error {
	if len(path) == 0 {
		return errors.New("empty field path")
	}
	q := c.quote()
	loc := c.locate(path)

	if loc.depth == len(path) {
		if loc.raw == nil {
			return fmt.Errorf("field %s has no initializer", strings.Join(path, "."))
		}
		return c.splice(loc.raw.Pos().Start, loc.raw.Pos().End, renderValue(value, q))
	}

	rest := path[loc.depth:]
	if loc.depth == 0 {
		if c.exportsObject != nil {
			return c.insertProp(c.exportsObject, rest[0], nest(rest[1:], value))
		}
		text := "export const " + rest[0] + " = " + renderValue(nest(rest[1:], value), q) + ";\n"
		if c.commonJS {
			text = "module.exports." + rest[0] + " = " + renderValue(nest(rest[1:], value), q) + ";\n"
		}
		end := len(c.src)
		if end > 0 && c.src[end-1] != '\n' {
			text = "\n" + text
		}
		return c.splice(end, end, text)
	}

	obj, ok := loc.node.(*jsast.Object)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotObject, strings.Join(path[:loc.depth], "."))
	}
	return c.insertProp(obj, rest[0], nest(rest[1:], value))
}

// RemoveField deletes the field at path. Removing a missing field is a no-op.
func (c *ConfigFile) RemoveField(path []string) error {
	loc := c.locate(path)
	if loc.depth != len(path) || len(path) == 0 {
		return nil
	}
	if loc.stmt != nil {
		end := loc.stmt.End
		if end < len(c.src) && c.src[end] == '\n' {
			end++
		}
		return c.splice(loc.stmt.Start, end, "")
	}

	start, end := loc.prop.Span.Start, loc.prop.Span.End
	after := skipSpace(c.src, end)
	if after < len(c.src) && c.src[after] == ',' {
		end = skipSpace(c.src, after+1)
	} else if before := skipSpaceBack(c.src, start); before > 0 && c.src[before-1] == ',' {
		start = before - 1
	}
	return c.splice(start, end, "")
}

// AppendValueToArray appends value to the array at path, creating the array
// when the field is missing.
func (c *ConfigFile) AppendValueToArray(path []string, value any) error {
	loc := c.locate(path)
	if loc.depth != len(path) {
		return c.SetFieldValue(path, []any{value})
	}
	arr, ok := loc.node.(*jsast.Array)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotArray, strings.Join(path, "."))
	}
	text := renderValue(value, c.quote())
	sp := arr.Pos()
	if len(arr.Elements) == 0 {
		return c.splice(sp.Start, sp.End, "["+text+"]")
	}
	last := arr.Elements[len(arr.Elements)-1].Pos().End
	return c.splice(last, last, ", "+text)
}

// Render returns the current source text.
func (c *ConfigFile) Render() string {
	return string(c.src)
}

// QuoteStyle returns the quote character used for inserted strings.
func (c *ConfigFile) QuoteStyle() byte {
	return c.quote()
}

// quote infers the preferred quote: single when more sampled literals use
// single quotes than double quotes.
func (c *ConfigFile) quote() byte {
	single, double := 0, 0
	for _, q := range c.mod.QuoteChars() {
		switch q {
		case '\'':
			single++
		case '"':
			double++
		}
	}
	if single > double {
		return '\''
	}
	return '"'
}

func (c *ConfigFile) insertProp(obj *jsast.Object, key string, value any) error {
	sp := obj.Pos()
	closing := sp.End - 1
	body := string(c.src[sp.Start+1 : closing])
	trimmed := strings.TrimRight(body, " \t\r\n")
	prop := renderKey(key, c.quote()) + ": " + renderValue(value, c.quote())

	if strings.TrimSpace(trimmed) == "" {
		return c.splice(sp.Start, sp.End, "{ "+prop+" }")
	}

	at := sp.Start + 1 + len(trimmed)
	multiline := strings.Contains(body, "\n")
	sep := " "
	if multiline {
		sep = "\n" + c.propIndent(obj)
	}
	text := "," + sep + prop
	if strings.HasSuffix(trimmed, ",") {
		text = sep + prop + ","
	}
	return c.splice(at, at, text)
}

// propIndent returns the indentation of the last property of obj.
func (c *ConfigFile) propIndent(obj *jsast.Object) string {
	pos := obj.Pos().Start
	if n := len(obj.Props); n > 0 {
		pos = obj.Props[n-1].Span.Start
	}
	lineStart := pos
	for lineStart > 0 && c.src[lineStart-1] != '\n' {
		lineStart--
	}
	i := lineStart
	for i < len(c.src) && (c.src[i] == ' ' || c.src[i] == '\t') {
		i++
	}
	indent := string(c.src[lineStart:i])
	if len(obj.Props) == 0 {
		indent += "  "
	}
	return indent
}

// splice replaces src[start:end] with text and re-parses. The file is left
// unchanged when the result does not parse.
func (c *ConfigFile) splice(start, end int, text string) error {
	next := make([]byte, 0, len(c.src)-(end-start)+len(text))
	next = append(next, c.src[:start]...)
	next = append(next, text...)
	next = append(next, c.src[end:]...)

	mod, err := jsast.Parse(next, c.FileName)
	if err != nil {
		return fmt.Errorf("edit produced invalid source: %w", err)
	}
	c.load(next, mod)
	return nil
}

// nest wraps value in one object level per remaining path segment.
func nest(path []string, value any) any {
	for i := len(path) - 1; i >= 0; i-- {
		value = orderedObject{{key: path[i], value: value}}
	}
	return value
}

func skipSpace(src []byte, i int) int {
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	return i
}

func skipSpaceBack(src []byte, i int) int {
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	return i
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
