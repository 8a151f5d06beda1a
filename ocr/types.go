package ocr

import (
	"context"

	"github.com/wudi/ocrkit/geo"
)

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Input encapsulates a single image submitted for OCR.
type Input struct {
	// ID is an optional caller-provided identifier that is echoed back in the
	// corresponding Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// DPI carries the effective dots-per-inch for the image. Providers such as
	// Tesseract use this for scaling and layout heuristics; zero means unknown.
	DPI int
	// Languages is a list of trained-data hints (e.g., "eng", "deu") that
	// providers can use to select models.
	Languages []string
	// Region restricts recognition to a subsection of the image. Nil means the
	// full image should be processed.
	Region *geo.Region
	// Metadata allows callers to pass through engine-specific knobs (e.g.,
	// "tessedit_pageseg_mode" for Tesseract) without hard-coding them into the
	// API surface.
	Metadata map[string]string
}

// TextWord represents a single recognized token.
type TextWord struct {
	Text       string
	Bounds     geo.Region
	Confidence float64
}

// TextLine groups words that share a baseline.
type TextLine struct {
	Text       string
	Bounds     geo.Region
	Words      []TextWord
	Confidence float64
}

// TextBlock aggregates lines that form a logical block (paragraph, heading, etc).
type TextBlock struct {
	Text       string
	Bounds     geo.Region
	Lines      []TextLine
	Confidence float64
}

// Result captures OCR output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// PlainText contains the linearized text extracted from the image.
	PlainText string
	// Blocks carries the structured layout with positional metadata.
	Blocks []TextBlock
	// Language indicates the dominant language detected, if known.
	Language string
}

// Words flattens the block/line structure into the word stream that layout
// grouping consumes.
func (r Result) Words() []TextWord {
	var words []TextWord
	for _, b := range r.Blocks {
		for _, l := range b.Lines {
			words = append(words, l.Words...)
		}
	}
	return words
}

// Engine is the simplest OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles multiple images in a single call, enabling providers
// that amortize setup costs or remote round-trips.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

// JobState models the lifecycle of an asynchronous OCR request.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// JobStatus reports incremental progress for long-running jobs.
type JobStatus struct {
	State    JobState
	Message  string
	Progress float64
}

// Job represents an asynchronous OCR submission that can be polled or canceled.
type Job interface {
	ID() string
	Status(ctx context.Context) (JobStatus, error)
	Results(ctx context.Context) ([]Result, error)
	Cancel(ctx context.Context) error
}

// AsyncEngine submits OCR requests that may complete later (useful for remote
// providers that process batches asynchronously).
type AsyncEngine interface {
	Name() string
	Start(ctx context.Context, inputs []Input) (Job, error)
}
