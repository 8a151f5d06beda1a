package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/wudi/ocrkit/geo"
	"github.com/wudi/ocrkit/layout"
	"github.com/wudi/ocrkit/pipeline"
)

func sampleDoc() *pipeline.Document {
	return &pipeline.Document{
		Source:    "receipt.png",
		Format:    "png",
		Width:     400,
		Height:    300,
		Scale:     0.5,
		Language:  "eng",
		PlainText: "TOTAL 12.50\n\nThank you",
		Regions: []layout.Region{
			{Bounds: geo.Region{X: 10, Y: 10, Width: 200, Height: 20}, Text: "TOTAL 12.50", Confidence: 0.95, Words: 2},
			{Bounds: geo.Region{X: 10, Y: 60, Width: 150, Height: 20}, Text: "Thank you", Confidence: 0.88, Words: 2},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleDoc()); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	want := "TOTAL 12.50\n\nThank you\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteJSONSingle(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleDoc()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if doc["source"] != "receipt.png" || doc["text"] != "TOTAL 12.50\n\nThank you" {
		t.Fatalf("unexpected document: %v", doc)
	}
	regions, ok := doc["regions"].([]interface{})
	if !ok || len(regions) != 2 {
		t.Fatalf("regions = %v", doc["regions"])
	}
	first := regions[0].(map[string]interface{})
	if first["text"] != "TOTAL 12.50" || first["x"] != float64(10) || first["words"] != float64(2) {
		t.Fatalf("first region = %v", first)
	}
}

func TestWriteJSONMultiple(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleDoc(), sampleDoc()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var docs []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &docs); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents", len(docs))
	}
}

func TestWriteHOCR(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHOCR(&buf, sampleDoc()); err != nil {
		t.Fatalf("WriteHOCR() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `class="ocr_page"`) {
		t.Fatalf("missing ocr_page: %s", out)
	}
	if !strings.Contains(out, `title="bbox 10 10 210 30; x_wconf 95"`) {
		t.Fatalf("missing bbox title: %s", out)
	}

	doc, err := html.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("emitted hOCR is not parseable HTML: %v", err)
	}
	var pars int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			for _, a := range n.Attr {
				if a.Key == "class" && a.Val == "ocr_par" {
					pars++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if pars != 2 {
		t.Fatalf("found %d ocr_par elements, want 2", pars)
	}
}

func TestWriteHOCREscapesText(t *testing.T) {
	d := sampleDoc()
	d.Regions[0].Text = `<script>alert("x")</script>`
	var buf bytes.Buffer
	if err := WriteHOCR(&buf, d); err != nil {
		t.Fatalf("WriteHOCR() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Fatal("region text must be escaped")
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleDoc()); err != nil {
		t.Fatalf("WriteMarkdown() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# receipt.png", "## Region 1", "> TOTAL 12.50", "confidence 0.95"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in report:\n%s", want, out)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, sampleDoc()); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<h1") || !strings.Contains(out, "receipt.png") {
		t.Fatalf("unexpected HTML:\n%s", out)
	}
	if _, err := html.Parse(strings.NewReader(out)); err != nil {
		t.Fatalf("report is not parseable HTML: %v", err)
	}
}

func TestWriteDispatch(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatHOCR, FormatMarkdown, FormatHTML} {
		var buf bytes.Buffer
		if err := Write(&buf, format, sampleDoc()); err != nil {
			t.Fatalf("Write(%s) error = %v", format, err)
		}
		if buf.Len() == 0 {
			t.Fatalf("Write(%s) produced no output", format)
		}
	}
	if err := Write(&bytes.Buffer{}, "yaml", sampleDoc()); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("error = %v, want ErrUnknownFormat", err)
	}
}
