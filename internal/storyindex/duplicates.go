package storyindex

import "fmt"

const changeDocsName = "Use `<Meta of={} name=\"Other Name\">` to distinguish them."

// ChooseDuplicate picks the entry to keep when a and b share an id; a is the
// entry seen first. Stories beat docs, MDX docs beat generated docs and an
// entry listed twice, as when a file matches several specifiers, is kept
// once. Two stories, or two generated docs pages, are an error.
func (g *Generator) ChooseDuplicate(a, b Entry) (Entry, error) {
	if a.ImportPath == b.ImportPath && a.Type == b.Type && a.Name == b.Name {
		return a, nil
	}

	firstIsBetter := true
	if b.Type == StoryType {
		firstIsBetter = false
	} else if b.IsMDX() && a.Type == DocsType && !a.IsMDX() {
		firstIsBetter = false
	}
	better, worse := a, b
	if !firstIsBetter {
		better, worse = b, a
	}

	if worse.Type == StoryType {
		return Entry{}, &DuplicateEntriesError{
			Message: fmt.Sprintf("Duplicate stories with id: %s", a.ID),
			First:   a,
			Second:  b,
		}
	}

	switch {
	case better.Type == StoryType:
		if better.Name == g.opts.Docs.DefaultName {
			g.log.Warn(fmt.Sprintf("You have a story for %s with the same name as your default docs entry name (%s), so the docs page is being dropped. Consider changing the story name.", better.Title, better.Name),
				"title", better.Title, "name", better.Name)
		} else {
			descriptor := "automatically generated docs page"
			if worse.IsMDX() {
				descriptor = "component docs page"
			}
			g.log.Warn(fmt.Sprintf("You have a story for %s with the same name as your %s (%s), so the docs page is being dropped. %s", better.Title, descriptor, worse.Name, changeDocsName),
				"title", better.Title, "name", better.Name)
		}
	case better.IsMDX():
		if worse.IsMDX() {
			g.log.Warn(fmt.Sprintf("You have two component docs pages with the same name %s:%s. %s", better.Title, better.Name, changeDocsName),
				"title", better.Title, "name", better.Name)
		}
		if hasTag(worse.Tags, TagAutodocs) && g.opts.Docs.Autodocs != AutodocsOn {
			return Entry{}, &DuplicateEntriesError{
				Message: fmt.Sprintf("You created a component docs page for '%s', but also tagged the CSF file with '%s'. Either remove the tag or the component docs page.", worse.Title, TagAutodocs),
				First:   a,
				Second:  b,
			}
		}
	default:
		return Entry{}, &DuplicateEntriesError{
			Message: fmt.Sprintf("Duplicate docs entries with id: %s", a.ID),
			First:   a,
			Second:  b,
		}
	}
	return better, nil
}
