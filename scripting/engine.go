// Package scripting runs user-supplied JavaScript over extraction results.
// Scripts see a `document` global with the source name and the recognized
// regions, and can rewrite text, adjust confidence, or drop regions entirely
// before the result is serialized.
package scripting

import (
	"context"

	"github.com/wudi/ocrkit/layout"
)

// Document is the model exposed to scripts as the global `document`.
type Document struct {
	Source  string
	Regions []layout.Region
}

// Engine executes a post-processing script against a document.
type Engine interface {
	// Run evaluates script with doc bound to the `document` global and writes
	// script mutations back into doc.
	Run(ctx context.Context, script string, doc *Document) error
}
