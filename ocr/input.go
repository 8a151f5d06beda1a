package ocr

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wudi/ocrkit/imaging"
)

// InputFromFrame converts a prepared imaging.Frame into an OCR input using PNG
// encoding. The generated ID is derived from the frame source so downstream
// results stay correlatable with the file they came from.
func InputFromFrame(frame *imaging.Frame, opts ...InputOption) (Input, error) {
	if frame == nil || frame.Image == nil {
		return Input{}, fmt.Errorf("frame with a decoded image is required")
	}
	data, err := imaging.EncodePNG(frame.Image)
	if err != nil {
		return Input{}, fmt.Errorf("encode frame %s: %w", frame.Source, err)
	}
	in := Input{
		ID:     frameID(frame.Source),
		Image:  data,
		Format: ImageFormatPNG,
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

// frameID normalizes a source path into a stable identifier.
func frameID(source string) string {
	if source == "" {
		return "frame"
	}
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return "frame"
	}
	return base
}
