// Package indexers maps story file names to the function that extracts their
// CSF metadata. Registries are explicit ordered lists: the first indexer whose
// pattern matches a file name wins, and caller-supplied indexers are tried
// before the defaults.
package indexers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/mvp-joe/storyindex/internal/csf"
	"github.com/mvp-joe/storyindex/internal/jsast"
	"github.com/mvp-joe/storyindex/internal/mdx"
)

// Options are passed to every IndexFunc call.
type Options struct {
	MakeTitle func(userTitle string) string
	Logger    *slog.Logger
}

// IndexFunc extracts the CSF file at fileName.
type IndexFunc func(ctx context.Context, fileName string, opts Options) (*csf.File, error)

// Indexer pairs a file name pattern with an IndexFunc.
type Indexer struct {
	Name  string
	Test  *regexp.Regexp
	Index IndexFunc
}

// CSF indexes JavaScript and TypeScript story modules.
var CSF = Indexer{
	Name:  "csf",
	Test:  regexp.MustCompile(`(stories|story)\.(m?js|ts)x?$`),
	Index: indexCSF,
}

// StoriesMDX compiles `.stories.mdx` files to CSF before extracting them.
var StoriesMDX = Indexer{
	Name:  "stories-mdx",
	Test:  regexp.MustCompile(`(stories|story)\.mdx$`),
	Index: indexStoriesMDX,
}

// Registry is an ordered list of indexers.
type Registry struct {
	indexers []Indexer
}

// New returns a registry with the custom indexers followed by StoriesMDX and
// CSF.
func New(custom ...Indexer) *Registry {
	list := make([]Indexer, 0, len(custom)+2)
	list = append(list, custom...)
	list = append(list, StoriesMDX, CSF)
	return &Registry{indexers: list}
}

// Find returns the first indexer whose pattern matches fileName.
func (r *Registry) Find(fileName string) (Indexer, bool) {
	for _, ix := range r.indexers {
		if ix.Test != nil && ix.Test.MatchString(fileName) {
			return ix, true
		}
	}
	return Indexer{}, false
}

// Indexers returns the registered indexers in resolution order.
func (r *Registry) Indexers() []Indexer {
	return append([]Indexer(nil), r.indexers...)
}

func indexCSF(ctx context.Context, fileName string, opts Options) (*csf.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	return extract(src, fileName, opts)
}

func indexStoriesMDX(ctx context.Context, fileName string, opts Options) (*csf.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	code, err := mdx.Compile(src)
	if err != nil {
		return nil, err
	}
	return extract(code, fileName, opts)
}

func extract(src []byte, fileName string, opts Options) (*csf.File, error) {
	mod, err := jsast.Parse(src, fileName)
	if err != nil {
		return nil, err
	}
	return csf.Extract(mod, csf.Options{
		FileName:  fileName,
		MakeTitle: opts.MakeTitle,
		Logger:    opts.Logger,
	})
}
