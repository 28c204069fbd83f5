package specifier

import (
	"regexp"
	"strings"
)

var slashes = regexp.MustCompile(`/+`)

// UserOrAutoTitle returns the title for importPath from the first specifier
// that matches it. A user title is prefixed with the specifier's title
// prefix; without one the title is derived from the path below the
// specifier directory. When no specifier matches the user title is returned
// as is.
func UserOrAutoTitle(importPath string, specs []Specifier, userTitle string) string {
	for _, s := range specs {
		if title, ok := s.userOrAutoTitle(importPath, userTitle); ok && title != "" {
			return title
		}
	}
	return userTitle
}

func (s Specifier) userOrAutoTitle(importPath, userTitle string) (string, bool) {
	if !s.Match(importPath) {
		return "", false
	}
	if userTitle != "" {
		if s.TitlePrefix == "" {
			return userTitle, true
		}
		return pathJoin(s.TitlePrefix, userTitle), true
	}
	suffix, _ := s.relative(importPath)
	parts := strings.Split(pathJoin(s.TitlePrefix, suffix), "/")
	parts = stripExtension(parts)
	parts = removeRedundantFilename(parts)
	return strings.Join(parts, "/"), true
}

func pathJoin(parts ...string) string {
	return slashes.ReplaceAllString(strings.Join(parts, "/"), "/")
}

// stripExtension removes everything from the first dot of the last segment
// (keeping dotfiles) and drops an empty leading segment.
func stripExtension(parts []string) []string {
	out := append([]string(nil), parts...)
	last := out[len(out)-1]
	if i := strings.IndexByte(last, '.'); i > 0 {
		out[len(out)-1] = last[:i]
	}
	if len(out) > 1 && out[0] == "" {
		out = out[1:]
	}
	return out
}

// removeRedundantFilename drops a final segment that repeats its parent
// directory or is named index: atoms/button/{button,index}.stories.js both
// become atoms/button.
func removeRedundantFilename(parts []string) []string {
	out := make([]string, 0, len(parts))
	prev := ""
	for i, p := range parts {
		if i == len(parts)-1 && i > 0 && (p == prev || strings.EqualFold(p, "index")) {
			continue
		}
		out = append(out, p)
		prev = p
	}
	return out
}
