// Package export serializes extraction results: plain text, JSON, hOCR, and
// a Markdown report with an HTML rendering.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/wudi/ocrkit/pipeline"
)

// Format names accepted by Write.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatHOCR     = "hocr"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ErrUnknownFormat is returned by Write for unrecognized format names.
var ErrUnknownFormat = fmt.Errorf("export: unknown format")

// Write serializes docs to w in the named format.
func Write(w io.Writer, format string, docs ...*pipeline.Document) error {
	switch format {
	case FormatText:
		return WriteText(w, docs...)
	case FormatJSON:
		return WriteJSON(w, docs...)
	case FormatHOCR:
		return WriteHOCR(w, docs...)
	case FormatMarkdown:
		return WriteMarkdown(w, docs...)
	case FormatHTML:
		return WriteHTML(w, docs...)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteText emits each document's paragraphs separated by blank lines, with a
// blank line between documents.
func WriteText(w io.Writer, docs ...*pipeline.Document) error {
	for i, doc := range docs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, doc.PlainText); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// jsonDocument is the stable wire schema for JSON export.
type jsonDocument struct {
	Source    string       `json:"source"`
	Format    string       `json:"format,omitempty"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Scale     float64      `json:"scale"`
	Language  string       `json:"language,omitempty"`
	PlainText string       `json:"text"`
	Regions   []jsonRegion `json:"regions"`
}

type jsonRegion struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Words      int     `json:"words"`
}

// WriteJSON emits a JSON array of documents (a single object when exactly one
// document is given).
func WriteJSON(w io.Writer, docs ...*pipeline.Document) error {
	payload := make([]jsonDocument, len(docs))
	for i, doc := range docs {
		payload[i] = toJSONDocument(doc)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(payload) == 1 {
		return enc.Encode(payload[0])
	}
	return enc.Encode(payload)
}

func toJSONDocument(doc *pipeline.Document) jsonDocument {
	out := jsonDocument{
		Source:    doc.Source,
		Format:    doc.Format,
		Width:     doc.Width,
		Height:    doc.Height,
		Scale:     doc.Scale,
		Language:  doc.Language,
		PlainText: doc.PlainText,
		Regions:   make([]jsonRegion, len(doc.Regions)),
	}
	for i, r := range doc.Regions {
		out.Regions[i] = jsonRegion{
			Text:       r.Text,
			X:          r.Bounds.X,
			Y:          r.Bounds.Y,
			Width:      r.Bounds.Width,
			Height:     r.Bounds.Height,
			Confidence: r.Confidence,
			Words:      r.Words,
		}
	}
	return out
}
