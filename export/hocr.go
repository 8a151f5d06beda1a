package export

import (
	"fmt"
	"html"
	"io"

	"github.com/wudi/ocrkit/pipeline"
)

// WriteHOCR emits the documents as an hOCR 1.2 file: one ocr_page per
// document with an ocr_par per region. Bounding boxes use the source-image
// pixel coordinates carried by the documents.
func WriteHOCR(w io.Writer, docs ...*pipeline.Document) error {
	if _, err := io.WriteString(w, hocrHeader); err != nil {
		return err
	}
	for i, doc := range docs {
		if err := writeHOCRPage(w, i+1, doc); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, hocrFooter)
	return err
}

const hocrHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html>
<head>
<title></title>
<meta charset="utf-8"/>
<meta name="ocr-system" content="ocrkit"/>
<meta name="ocr-capabilities" content="ocr_page ocr_par"/>
</head>
<body>
`

const hocrFooter = `</body>
</html>
`

func writeHOCRPage(w io.Writer, n int, doc *pipeline.Document) error {
	title := fmt.Sprintf("image %s; bbox 0 0 %d %d; ppageno %d",
		html.EscapeString(doc.Source), doc.Width, doc.Height, n-1)
	if _, err := fmt.Fprintf(w, " <div class=\"ocr_page\" id=\"page_%d\" title=\"%s\">\n", n, title); err != nil {
		return err
	}
	for j, r := range doc.Regions {
		rect := r.Bounds.Rect()
		if _, err := fmt.Fprintf(w,
			"  <p class=\"ocr_par\" id=\"par_%d_%d\" title=\"bbox %d %d %d %d; x_wconf %d\">%s</p>\n",
			n, j+1, rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y,
			int(r.Confidence*100), html.EscapeString(r.Text)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, " </div>\n")
	return err
}
