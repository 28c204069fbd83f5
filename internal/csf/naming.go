package csf

import (
	"fmt"
	"strings"
	"unicode"
)

// StoryNameFromExport turns an export key into a display name:
// "primaryButton" becomes "Primary Button", "__page" becomes "Page".
func StoryNameFromExport(key string) string {
	words := splitWords(key)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// splitWords breaks an identifier into words at separators, lower-to-upper
// case changes, the last capital of an acronym ("HTMLButton" gives "HTML",
// "Button") and letter/digit boundaries. Ordinals such as "1st" stay whole.
func splitWords(s string) []string {
	var words []string
	for _, run := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words = append(words, splitRun([]rune(run))...)
	}
	return words
}

func splitRun(r []rune) []string {
	var words []string
	start := 0
	for i := 1; i < len(r); i++ {
		prev, cur := r[i-1], r[i]
		var boundary bool
		switch {
		case unicode.IsDigit(prev) && unicode.IsLetter(cur):
			boundary = !isOrdinalSuffix(r, i)
		case unicode.IsLetter(prev) && unicode.IsDigit(cur):
			boundary = true
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur):
			boundary = i+1 < len(r) && unicode.IsLower(r[i+1])
		}
		if boundary {
			words = append(words, string(r[start:i]))
			start = i
		}
		if unicode.IsDigit(prev) && unicode.IsLetter(cur) && !boundary {
			// skip the two-letter ordinal suffix
			i++
		}
	}
	return append(words, string(r[start:]))
}

var ordinalSuffixes = []string{"st", "nd", "rd", "th"}

// isOrdinalSuffix reports whether r[i:] starts with an ordinal suffix that
// ends the word ("1st", "22nd", "3rdPlace").
func isOrdinalSuffix(r []rune, i int) bool {
	if i+2 > len(r) {
		return false
	}
	suffix := strings.ToLower(string(r[i : i+2]))
	found := false
	for _, s := range ordinalSuffixes {
		if s == suffix {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	return i+2 == len(r) || !unicode.IsLower(r[i+2])
}

// sanitizeChars lists the characters collapsed into dashes by Sanitize.
const sanitizeChars = " ’–—―′¿'`~!@#$%^&*()_|+-=?;:\",.<>{}[]\\/"

// Sanitize lower-cases s, replaces punctuation and whitespace with single
// dashes and trims leading and trailing dashes.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		if strings.ContainsRune(sanitizeChars, r) {
			dash = true
			continue
		}
		if dash && b.Len() > 0 {
			b.WriteByte('-')
		}
		dash = false
		b.WriteRune(r)
	}
	return b.String()
}

func sanitizeSafe(s, part string) (string, error) {
	out := Sanitize(s)
	if out == "" {
		return "", fmt.Errorf("Invalid %s '%s', must include alphanumeric characters", part, s)
	}
	return out, nil
}

// ToID builds a story or docs id from a title (or component id) and a name.
// Both parts must keep at least one character after sanitizing.
func ToID(kind, name string) (string, error) {
	k, err := sanitizeSafe(kind, "kind")
	if err != nil {
		return "", err
	}
	if name == "" {
		return k, nil
	}
	n, err := sanitizeSafe(name, "name")
	if err != nil {
		return "", err
	}
	return k + "--" + n, nil
}
