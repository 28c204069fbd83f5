// Package specifier normalizes the `stories` configuration into directory +
// glob specifiers, discovers the files they match and derives automatic
// titles from file paths.
package specifier

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

const (
	// DefaultFilesPattern matches docs and story files.
	DefaultFilesPattern = "**/*.@(mdx|stories.@(js|jsx|mjs|ts|tsx))"
	// DefaultTitlePrefix is prepended to automatic titles.
	DefaultTitlePrefix = ""
)

// ErrEmptyEntry is returned for a stories entry without glob or directory.
var ErrEmptyEntry = errors.New("stories entry needs a glob or a directory")

// Entry is one `stories` configuration item: either a glob string or a
// directory with an optional files glob and title prefix. Paths are relative
// to the config directory.
type Entry struct {
	Glob        string `mapstructure:"glob" yaml:"glob,omitempty" json:"glob,omitempty"`
	Directory   string `mapstructure:"directory" yaml:"directory,omitempty" json:"directory,omitempty"`
	Files       string `mapstructure:"files" yaml:"files,omitempty" json:"files,omitempty"`
	TitlePrefix string `mapstructure:"title_prefix" yaml:"title_prefix,omitempty" json:"titlePrefix,omitempty"`
}

// Specifier is a normalized entry. Directory is relative to the working
// directory and always starts with "./" or "../" (or is ".").
type Specifier struct {
	Directory   string
	Files       string
	TitlePrefix string

	pattern *filesPattern
}

// Normalize resolves an entry against the config and working directories.
func Normalize(entry Entry, configDir, workingDir string) (Specifier, error) {
	var dir, files string
	switch {
	case entry.Glob != "":
		dir, files = splitGlob(filepath.ToSlash(entry.Glob))
		if files == "" {
			files = DefaultFilesPattern
		}
	case entry.Directory != "":
		dir, files = entry.Directory, entry.Files
		if files == "" {
			files = DefaultFilesPattern
		}
	default:
		return Specifier{}, ErrEmptyEntry
	}

	absConfig, err := filepath.Abs(configDir)
	if err != nil {
		return Specifier{}, err
	}
	absWorking, err := filepath.Abs(workingDir)
	if err != nil {
		return Specifier{}, err
	}
	rel, err := filepath.Rel(absWorking, filepath.Join(absConfig, filepath.FromSlash(dir)))
	if err != nil {
		return Specifier{}, fmt.Errorf("failed to resolve %q: %w", dir, err)
	}

	files = filepath.ToSlash(files)
	pattern, err := compileFiles(files)
	if err != nil {
		return Specifier{}, fmt.Errorf("invalid files glob %q: %w", files, err)
	}
	return Specifier{
		Directory:   strings.TrimSuffix(NormalizeStoryPath(filepath.ToSlash(rel)), "/"),
		Files:       files,
		TitlePrefix: entry.TitlePrefix,
		pattern:     pattern,
	}, nil
}

// NormalizeAll normalizes every entry in order.
func NormalizeAll(entries []Entry, configDir, workingDir string) ([]Specifier, error) {
	out := make([]Specifier, 0, len(entries))
	for i, e := range entries {
		s, err := Normalize(e, configDir, workingDir)
		if err != nil {
			return nil, fmt.Errorf("stories[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// NormalizeStoryPath prefixes relative paths with "./".
func NormalizeStoryPath(p string) string {
	if p == "." || p == ".." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") {
		return p
	}
	return "./" + p
}

// splitGlob splits a glob at its first segment with glob syntax: the part
// before is the directory, the rest the files pattern. A glob without
// syntax is a directory.
func splitGlob(g string) (dir, files string) {
	segs := strings.Split(g, "/")
	for i, s := range segs {
		if strings.ContainsAny(s, "*?[{(!") {
			dir = strings.Join(segs[:i], "/")
			if dir == "" {
				dir = "."
			}
			return dir, strings.Join(segs[i:], "/")
		}
	}
	return g, ""
}

// String renders the specifier as a single glob.
func (s Specifier) String() string {
	return s.Directory + "/" + s.Files
}

// Match reports whether an import path ("./src/Button.stories.tsx") belongs
// to the specifier.
func (s Specifier) Match(importPath string) bool {
	rest, ok := s.relative(importPath)
	if !ok {
		return false
	}
	return s.pattern != nil && s.pattern.match(rest)
}

// relative strips the specifier directory from an import path.
func (s Specifier) relative(importPath string) (string, bool) {
	prefix := s.Directory + "/"
	if !strings.HasPrefix(importPath, prefix) {
		return "", false
	}
	return strings.TrimPrefix(importPath, prefix), true
}

// AbsDir returns the absolute directory of the specifier.
func (s Specifier) AbsDir(workingDir string) string {
	return filepath.Join(workingDir, filepath.FromSlash(s.Directory))
}

// ImportPath converts an absolute file path into a "./"-prefixed path
// relative to the working directory.
func ImportPath(absPath, workingDir string) string {
	rel, err := filepath.Rel(workingDir, absPath)
	if err != nil {
		return filepath.ToSlash(absPath)
	}
	return NormalizeStoryPath(path.Clean(filepath.ToSlash(rel)))
}

// filesPattern is a compiled files glob. Leading and inner `**/` also match
// zero directories, so `**/*.mdx` matches `Intro.mdx`.
type filesPattern struct {
	source string
	globs  []glob.Glob
}

func compileFiles(pattern string) (*filesPattern, error) {
	translated, err := translateExtglob(pattern)
	if err != nil {
		return nil, err
	}
	variants := []string{translated}
	if strings.Contains(translated, "**/") {
		collapsed := strings.ReplaceAll(translated, "/**/", "/")
		collapsed = strings.TrimPrefix(collapsed, "**/")
		variants = append(variants, collapsed)
	}
	fp := &filesPattern{source: pattern}
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, err
		}
		fp.globs = append(fp.globs, g)
	}
	return fp, nil
}

func (fp *filesPattern) match(rel string) bool {
	for _, g := range fp.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// translateExtglob rewrites picomatch extglobs into gobwas alternatives:
// `@(a|b)` becomes `{a,b}` and `?(a|b)` becomes `{,a,b}`.
func translateExtglob(p string) (string, error) {
	var b strings.Builder
	var stack []byte
	for i := 0; i < len(p); i++ {
		c := p[i]
		if i+1 < len(p) && p[i+1] == '(' && strings.IndexByte("@?+*!", c) >= 0 {
			switch c {
			case '@':
				b.WriteByte('{')
			case '?':
				b.WriteString("{,")
			default:
				return "", fmt.Errorf("unsupported extglob %c(...)", c)
			}
			stack = append(stack, '(')
			i++
			continue
		}
		switch {
		case c == '|' && len(stack) > 0:
			b.WriteByte(',')
		case c == ')' && len(stack) > 0:
			b.WriteByte('}')
			stack = stack[:len(stack)-1]
		default:
			b.WriteByte(c)
		}
	}
	if len(stack) > 0 {
		return "", errors.New("unbalanced extglob parentheses")
	}
	return b.String(), nil
}
