package storyindex

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mvp-joe/storyindex/internal/csf"
	"github.com/mvp-joe/storyindex/internal/indexers"
	"github.com/mvp-joe/storyindex/internal/mdx"
	"github.com/mvp-joe/storyindex/internal/specifier"
)

// storiesResult is the cached extraction of a CSF file.
type storiesResult struct {
	importPath string
	title      string
	metaID     string
	entries    []Entry
}

// docsResult is the cached extraction of an MDX docs file. Templates have
// no entry.
type docsResult struct {
	entry        *Entry
	absImports   []string
	dependencies []string
}

func (d *docsResult) imports(absPath string) bool {
	for _, imp := range d.absImports {
		if matchesImport(absPath, imp) {
			return true
		}
	}
	return false
}

// csfSnapshot is the set of cached CSF results docs files link against.
type csfSnapshot struct {
	epoch uint64
	files []csfFile
}

type csfFile struct {
	path   string
	result *storiesResult
}

func (g *Generator) snapshotLocked() *csfSnapshot {
	snap := &csfSnapshot{epoch: g.storiesEpoch}
	seen := map[string]bool{}
	for _, cache := range g.caches {
		paths := make([]string, 0, len(cache))
		for p, s := range cache {
			if !s.docs && s.state == stateCached && s.stories != nil {
				paths = append(paths, p)
			}
		}
		sort.Strings(paths)
		for _, p := range paths {
			if seen[p] {
				continue
			}
			seen[p] = true
			snap.files = append(snap.files, csfFile{path: p, result: cache[p].stories})
		}
	}
	return snap
}

// dependencies returns the CSF files matched by the given absolute imports.
func (s *csfSnapshot) dependencies(absImports []string) []csfFile {
	var out []csfFile
	for _, f := range s.files {
		for _, imp := range absImports {
			if matchesImport(f.path, imp) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// matchesImport reports whether file is the module imp resolves to: the
// same path, optionally followed by a single extension.
func matchesImport(file, imp string) bool {
	if file == imp {
		return true
	}
	if !strings.HasPrefix(file, imp) {
		return false
	}
	rest := file[len(imp):]
	return len(rest) > 1 && rest[0] == '.' && !strings.ContainsAny(rest[1:], "./\\")
}

func joinPath(dir, p string) string {
	return filepath.Join(dir, filepath.FromSlash(p))
}

func (g *Generator) extractStories(ctx context.Context, spec specifier.Specifier, absPath string) (*storiesResult, error) {
	importPath := specifier.ImportPath(absPath, g.opts.WorkingDir)
	ix, ok := g.opts.Indexers.Find(absPath)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoIndexer, absPath)
	}
	f, err := ix.Index(ctx, absPath, indexers.Options{
		MakeTitle: func(userTitle string) string {
			return specifier.UserOrAutoTitle(importPath, []specifier.Specifier{spec}, userTitle)
		},
		Logger: g.log,
	})
	if err != nil {
		return nil, err
	}

	res := &storiesResult{importPath: importPath, title: f.Meta.Title, metaID: f.Meta.ID}
	for _, st := range f.Stories {
		if st.Parameters.DocsOnly {
			continue
		}
		tags := st.Tags
		if len(tags) == 0 {
			tags = f.Meta.Tags
		}
		res.entries = append(res.entries, Entry{
			ID:         st.ID,
			Title:      f.Meta.Title,
			Name:       st.Name,
			ImportPath: importPath,
			Tags:       withTags(tags, TagStory),
			Type:       StoryType,
		})
	}

	docs := g.opts.Docs
	if docs.Enabled && len(f.Stories) > 0 {
		componentAutodocs := hasTag(f.Meta.Tags, TagAutodocs) || hasTag(f.Meta.Tags, TagDocsPage)
		optedIn := docs.Autodocs == AutodocsOn || (docs.Autodocs == AutodocsTag && componentAutodocs)
		if hasTag(f.Meta.Tags, TagStoriesMDX) || optedIn {
			id, err := csf.ToID(firstNonEmpty(f.Meta.ID, f.Meta.Title), docs.DefaultName)
			if err != nil {
				return nil, err
			}
			tags := withTags(f.Meta.Tags, TagDocs)
			if optedIn && !componentAutodocs {
				tags = withTags(tags, TagAutodocs)
			}
			// generated docs lead the file's entries
			res.entries = append([]Entry{{
				ID:         id,
				Title:      f.Meta.Title,
				Name:       docs.DefaultName,
				ImportPath: importPath,
				Tags:       tags,
				Type:       DocsType,
			}}, res.entries...)
		}
	}
	return res, nil
}

func (g *Generator) extractDocs(ctx context.Context, spec specifier.Specifier, absPath string, snap *csfSnapshot) (*docsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !g.opts.StoryStoreV7 {
		return nil, &SoftError{Message: MDXWithoutStoryStoreV7}
	}

	importPath := specifier.ImportPath(absPath, g.opts.WorkingDir)
	relPath := strings.TrimPrefix(importPath, "./")
	src, err := g.readFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	a, err := mdx.Analyze(src)
	if err != nil {
		return nil, err
	}
	if a.IsTemplate {
		return &docsResult{}, nil
	}

	dir := filepath.Dir(absPath)
	absImports := make([]string, 0, len(a.Imports))
	for _, imp := range a.Imports {
		if strings.HasPrefix(imp, ".") {
			absImports = append(absImports, joinPath(dir, imp))
		} else {
			absImports = append(absImports, imp)
		}
	}
	deps := snap.dependencies(absImports)

	var attached *csfFile
	if a.Of != "" {
		absOf := a.Of
		if strings.HasPrefix(absOf, ".") {
			absOf = joinPath(dir, absOf)
		}
		for i := range deps {
			if matchesImport(deps[i].path, absOf) {
				attached = &deps[i]
				break
			}
		}
		if attached == nil {
			return nil, &LinkError{Of: a.Of, DocsFile: relPath}
		}
	}

	defaultName := g.opts.Docs.DefaultName
	title := ""
	name := a.Name
	idPrefix := ""
	storiesImports := []string{}
	tags := a.Tags
	if attached != nil {
		title = attached.result.title
		idPrefix = attached.result.metaID
		if name == "" {
			name = autoName(importPath, attached.result.importPath, defaultName)
		}
		storiesImports = append(storiesImports, attached.result.importPath)
		tags = withTags(tags, TagAttachedMDX, TagDocs)
	} else {
		title = specifier.UserOrAutoTitle(importPath, []specifier.Specifier{spec}, a.Title)
		tags = withTags(tags, TagUnattachedMDX, TagDocs)
	}
	if name == "" {
		name = defaultName
	}
	id, err := csf.ToID(firstNonEmpty(idPrefix, title), name)
	if err != nil {
		return nil, err
	}

	res := &docsResult{absImports: absImports}
	for _, d := range deps {
		res.dependencies = append(res.dependencies, d.path)
		if attached == nil || d.path != attached.path {
			storiesImports = append(storiesImports, d.result.importPath)
		}
	}
	res.entry = &Entry{
		ID:             id,
		Title:          title,
		Name:           name,
		ImportPath:     importPath,
		Tags:           tags,
		Type:           DocsType,
		Standalone:     true,
		StoriesImports: storiesImports,
	}
	return res, nil
}

// autoName names an attached docs file: the default name when it shares
// its base name with the CSF file, else its own base name.
func autoName(mdxImportPath, csfImportPath, defaultName string) string {
	mdxName, _, _ := strings.Cut(path.Base(mdxImportPath), ".")
	csfName, _, _ := strings.Cut(path.Base(csfImportPath), ".")
	if mdxName == csfName {
		return defaultName
	}
	return mdxName
}

// withTags returns a copy of tags with extra appended, skipping tags already
// present.
func withTags(tags []string, extra ...string) []string {
	out := make([]string, 0, len(tags)+len(extra))
	seen := map[string]bool{}
	for _, t := range append(append([]string{}, tags...), extra...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
