package configfile

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

type orderedProp struct {
	key   string
	value any
}

// orderedObject renders its properties in declaration order.
type orderedObject []orderedProp

// renderValue renders a Go value as a JavaScript expression. Maps are
// rendered with sorted keys.
func renderValue(v any, q byte) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case Expr:
		return string(val)
	case string:
		return jsast.Quote(val, q)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case jsast.RegexValue:
		return "/" + val.Pattern + "/" + val.Flags
	case orderedObject:
		if len(val) == 0 {
			return "{}"
		}
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, renderKey(p.key, q)+": "+renderValue(p.value, q))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(orderedObject, 0, len(keys))
		for _, k := range keys {
			obj = append(obj, orderedProp{key: k, value: val[k]})
		}
		return renderValue(obj, q)
	case []any:
		parts := make([]string, 0, len(val))
		for _, el := range val {
			parts = append(parts, renderValue(el, q))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return renderValue(items, q)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return renderValue(m, q)
		}
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	}
	return jsast.Quote(fmt.Sprint(v), q)
}

// renderKey renders an object key, quoting it unless it is an identifier.
func renderKey(key string, q byte) string {
	if isIdentifier(key) {
		return key
	}
	return jsast.Quote(key, q)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
