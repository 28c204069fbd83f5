package csf

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/storyindex/internal/jsast"
)

// ErrCSF is wrapped by every extraction error of this package.
var ErrCSF = errors.New("CSF")

var (
	ErrMissingTitle            = fmt.Errorf("%w: missing title/component", ErrCSF)
	ErrDynamicTitle            = fmt.Errorf("%w: unexpected dynamic title", ErrCSF)
	ErrStoriesOf               = fmt.Errorf("%w: unexpected storiesOf call", ErrCSF)
	ErrTagsFormat              = fmt.Errorf("%w: tags must be an array of string literals", ErrCSF)
	ErrNamedExportsOrder       = fmt.Errorf("%w: __namedExportsOrder does not match the story exports", ErrCSF)
	ErrUnexpectedDefaultExport = fmt.Errorf("%w: default export must be an object", ErrCSF)
	ErrIncludeExclude          = fmt.Errorf("%w: includeStories/excludeStories must be an array of strings or a regex", ErrCSF)
	ErrComponentID             = fmt.Errorf("%w: invalid component id", ErrCSF)
)

// NoMetaError is returned when a module has no default export.
type NoMetaError struct {
	FileName string
}

func (e *NoMetaError) Error() string {
	return fmt.Sprintf("CSF: missing default export in %s\n\n"+
		"Stories files must have a default export containing a title or component, "+
		"and one or more named exports.", e.FileName)
}

func (e *NoMetaError) Unwrap() error { return ErrCSF }

// at annotates a sentinel error with a source location.
func at(err error, fileName string, span jsast.Span) error {
	if span.Line == 0 {
		return fmt.Errorf("%w (%s)", err, fileName)
	}
	return fmt.Errorf("%w (%s:%d:%d)", err, fileName, span.Line, span.Column)
}
