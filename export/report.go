package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/wudi/ocrkit/pipeline"
)

// WriteMarkdown emits a human-readable extraction report.
func WriteMarkdown(w io.Writer, docs ...*pipeline.Document) error {
	for i, doc := range docs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := writeMarkdownDoc(w, doc); err != nil {
			return err
		}
	}
	return nil
}

func writeMarkdownDoc(w io.Writer, doc *pipeline.Document) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Source)
	fmt.Fprintf(&b, "- dimensions: %dx%d (recognized at scale %.2f)\n", doc.Width, doc.Height, doc.Scale)
	if doc.Language != "" {
		fmt.Fprintf(&b, "- language: %s\n", doc.Language)
	}
	fmt.Fprintf(&b, "- words: %d, lines: %d, paragraphs: %d\n", doc.Stats.WordCount, doc.Stats.LineCount, doc.Stats.ParagraphCount)
	fmt.Fprintf(&b, "- recognition time: %s\n\n", doc.Stats.RecognizeDuration)

	for i, r := range doc.Regions {
		rect := r.Bounds.Rect()
		fmt.Fprintf(&b, "## Region %d\n\n", i+1)
		fmt.Fprintf(&b, "bbox (%d, %d)-(%d, %d), confidence %.2f\n\n", rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, r.Confidence)
		fmt.Fprintf(&b, "> %s\n\n", r.Text)
	}
	if len(doc.Regions) == 0 && doc.PlainText != "" {
		fmt.Fprintf(&b, "%s\n", doc.PlainText)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteHTML renders the Markdown report to HTML via goldmark.
func WriteHTML(w io.Writer, docs ...*pipeline.Document) error {
	var md bytes.Buffer
	if err := WriteMarkdown(&md, docs...); err != nil {
		return err
	}
	return goldmark.New().Convert(md.Bytes(), w)
}
