// Package wire converts story indexes to and from their JSON documents:
// the current v4 format and the legacy v3 format. Conversions are pure and
// entry order is preserved in both directions.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// V4Document is the current index document.
type V4Document struct {
	V       int
	Entries []storyindex.Entry
}

// V3Parameters are the parameters of a legacy entry.
type V3Parameters struct {
	ID       string `json:"__id"`
	DocsOnly bool   `json:"docsOnly"`
	FileName string `json:"fileName"`
}

// V3Entry is one legacy entry. Kind holds the title and Story the name.
type V3Entry struct {
	ID             string       `json:"id"`
	ImportPath     string       `json:"importPath"`
	Kind           string       `json:"kind"`
	Name           string       `json:"name"`
	Parameters     V3Parameters `json:"parameters"`
	Story          string       `json:"story"`
	Tags           []string     `json:"tags"`
	Standalone     *bool        `json:"standalone,omitempty"`
	StoriesImports []string     `json:"storiesImports,omitempty"`
}

// V3Document is the legacy index document.
type V3Document struct {
	V       int
	Stories []V3Entry
}

// ToV4 converts an index to the current document.
func ToV4(index *storyindex.StoryIndex) V4Document {
	return V4Document{V: 4, Entries: append([]storyindex.Entry(nil), index.Entries...)}
}

// ToV3 flattens an index into the legacy document.
func ToV3(index *storyindex.StoryIndex) V3Document {
	doc := V3Document{V: 3, Stories: make([]V3Entry, 0, len(index.Entries))}
	for _, e := range index.Entries {
		v3 := V3Entry{
			ID:         e.ID,
			ImportPath: e.ImportPath,
			Kind:       e.Title,
			Name:       e.Name,
			Story:      e.Name,
			Tags:       tagsOrEmpty(e.Tags),
			Parameters: V3Parameters{
				ID:       e.ID,
				DocsOnly: e.Type == storyindex.DocsType,
				FileName: e.ImportPath,
			},
		}
		if e.Type == storyindex.DocsType {
			standalone := e.Standalone
			v3.Standalone = &standalone
			v3.StoriesImports = e.StoriesImports
		}
		doc.Stories = append(doc.Stories, v3)
	}
	return doc
}

// FromV3 infers a v4 document from a legacy one. Entries without docsOnly
// are docs when named defaultDocsName and alone under their title.
func FromV3(doc V3Document, defaultDocsName string) V4Document {
	perTitle := map[string]int{}
	for _, s := range doc.Stories {
		perTitle[s.Kind]++
	}
	out := V4Document{V: 4, Entries: make([]storyindex.Entry, 0, len(doc.Stories))}
	for _, s := range doc.Stories {
		name := s.Name
		if name == "" {
			name = s.Story
		}
		e := storyindex.Entry{
			ID:         s.ID,
			Title:      s.Kind,
			Name:       name,
			ImportPath: s.ImportPath,
			Tags:       s.Tags,
			Type:       storyindex.StoryType,
		}
		if s.Parameters.DocsOnly || (name == defaultDocsName && perTitle[s.Kind] == 1) {
			e.Type = storyindex.DocsType
			if e.Tags == nil {
				e.Tags = []string{storyindex.TagStoriesMDX}
			}
			e.StoriesImports = s.StoriesImports
			if s.Standalone != nil {
				e.Standalone = *s.Standalone
			}
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// MarshalV4 encodes the current document of index.
func MarshalV4(index *storyindex.StoryIndex) ([]byte, error) {
	return json.Marshal(ToV4(index))
}

// MarshalV3 encodes the legacy document of index.
func MarshalV3(index *storyindex.StoryIndex) ([]byte, error) {
	return json.Marshal(ToV3(index))
}

// v4Entry fixes the field set per entry type.
type v4Entry struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Name           string   `json:"name"`
	ImportPath     string   `json:"importPath"`
	Tags           []string `json:"tags"`
	Type           string   `json:"type"`
	Standalone     *bool    `json:"standalone,omitempty"`
	StoriesImports *[]string `json:"storiesImports,omitempty"`
}

func (d V4Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"v":%d,"entries":`, d.V)
	err := writeOrdered(&buf, len(d.Entries), func(i int) (string, any) {
		e := d.Entries[i]
		out := v4Entry{
			ID:         e.ID,
			Title:      e.Title,
			Name:       e.Name,
			ImportPath: e.ImportPath,
			Tags:       tagsOrEmpty(e.Tags),
			Type:       string(e.Type),
		}
		if e.Type == storyindex.DocsType {
			standalone := e.Standalone
			out.Standalone = &standalone
			imports := tagsOrEmpty(e.StoriesImports)
			out.StoriesImports = &imports
		}
		return e.ID, out
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *V4Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		V       int             `json:"v"`
		Entries json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.V = raw.V
	d.Entries = nil
	return readOrdered(raw.Entries, func(_ string, value json.RawMessage) error {
		var e v4Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		entry := storyindex.Entry{
			ID:             e.ID,
			Title:          e.Title,
			Name:           e.Name,
			ImportPath:     e.ImportPath,
			Tags:           e.Tags,
			Type:           storyindex.EntryType(e.Type),
		}
		if e.Standalone != nil {
			entry.Standalone = *e.Standalone
		}
		if e.StoriesImports != nil && len(*e.StoriesImports) > 0 {
			entry.StoriesImports = *e.StoriesImports
		}
		d.Entries = append(d.Entries, entry)
		return nil
	})
}

func (d V3Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"v":%d,"stories":`, d.V)
	err := writeOrdered(&buf, len(d.Stories), func(i int) (string, any) {
		return d.Stories[i].ID, d.Stories[i]
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *V3Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		V       int             `json:"v"`
		Stories json.RawMessage `json:"stories"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.V = raw.V
	d.Stories = nil
	return readOrdered(raw.Stories, func(key string, value json.RawMessage) error {
		var e V3Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		if e.ID == "" {
			e.ID = key
		}
		d.Stories = append(d.Stories, e)
		return nil
	})
}

func writeOrdered(buf *bytes.Buffer, n int, item func(i int) (string, any)) error {
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, value := item(i)
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return nil
}

// readOrdered walks a JSON object in document order.
func readOrdered(data json.RawMessage, fn func(key string, value json.RawMessage) error) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
	}
	_, err = dec.Token()
	return err
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
