// Package pipeline orchestrates the extraction stages: load and prepare the
// image, recognize text, group words into lines and paragraphs, then run any
// post-processors. Multiple sources are processed concurrently.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/layout"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/scripting"
)

// Stats records per-stage timings and counts for one document.
type Stats struct {
	LoadDuration      time.Duration
	RecognizeDuration time.Duration
	GroupDuration     time.Duration
	WordCount         int
	LineCount         int
	ParagraphCount    int
}

// Total sums the per-stage durations.
func (s Stats) Total() time.Duration {
	return s.LoadDuration + s.RecognizeDuration + s.GroupDuration
}

// Document is the extraction result for a single image. Region bounds are in
// source-image pixel coordinates regardless of the recognition scale.
type Document struct {
	Source    string
	Format    string
	Width     int
	Height    int
	Scale     float64
	Language  string
	Regions   []layout.Region
	PlainText string
	Stats     Stats
}

// RegionAt returns the region containing the source-coordinate point (x, y).
func (d *Document) RegionAt(x, y float64) (layout.Region, bool) {
	return layout.RegionAt(d.Regions, x, y)
}

// Processor post-processes a document in place after grouping.
type Processor func(ctx context.Context, doc *Document) error

// Pipeline runs the extraction stages. Construct one with NewDefault or via
// the Builder; a Pipeline is safe for concurrent use as long as its engine is.
type Pipeline struct {
	loader      *imaging.Loader
	engine      ocr.Engine
	thresholds  layout.Thresholds
	languages   []string
	dpi         int
	parallelism int
	processors  []Processor
	logger      observability.Logger
	tracer      observability.Tracer
}

// Builder assembles a Pipeline.
type Builder struct {
	p Pipeline
}

func NewBuilder() *Builder {
	return &Builder{p: Pipeline{
		thresholds: layout.DefaultThresholds(),
		logger:     observability.NopLogger{},
		tracer:     observability.NopTracer(),
	}}
}

func (b *Builder) WithLoader(l *imaging.Loader) *Builder { b.p.loader = l; return b }
func (b *Builder) WithEngine(e ocr.Engine) *Builder      { b.p.engine = e; return b }
func (b *Builder) WithThresholds(t layout.Thresholds) *Builder {
	b.p.thresholds = t
	return b
}
func (b *Builder) WithLanguages(langs ...string) *Builder {
	b.p.languages = append([]string(nil), langs...)
	return b
}
func (b *Builder) WithDPI(dpi int) *Builder { b.p.dpi = dpi; return b }
func (b *Builder) WithParallelism(n int) *Builder {
	b.p.parallelism = n
	return b
}
func (b *Builder) WithProcessor(proc Processor) *Builder {
	b.p.processors = append(b.p.processors, proc)
	return b
}

// WithScript registers a JavaScript post-processor; see package scripting for
// the script contract.
func (b *Builder) WithScript(source string) *Builder {
	return b.WithProcessor(scriptProcessor(source))
}

func (b *Builder) WithLogger(l observability.Logger) *Builder {
	if l != nil {
		b.p.logger = l
	}
	return b
}
func (b *Builder) WithTracer(t observability.Tracer) *Builder {
	if t != nil {
		b.p.tracer = t
	}
	return b
}

// Build finalizes the pipeline, filling in defaults for anything unset.
func (b *Builder) Build() *Pipeline {
	p := b.p
	if p.loader == nil {
		p.loader = imaging.NewLoader(imaging.Config{})
	}
	if p.engine == nil {
		p.engine = ocr.DefaultEngine()
	}
	if p.parallelism <= 0 {
		p.parallelism = runtime.GOMAXPROCS(0)
	}
	return &p
}

// NewDefault constructs a pipeline with the default loader, the package
// default OCR engine, and default grouping thresholds.
func NewDefault() *Pipeline {
	return NewBuilder().Build()
}

// Extract processes the given image files concurrently. Results are returned
// in input order; the first failure cancels the remaining work.
func (p *Pipeline) Extract(ctx context.Context, sources ...string) ([]*Document, error) {
	start := time.Now()
	docs := make([]*Document, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			doc, err := p.extractOne(gctx, src, nil)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("extraction complete",
		observability.Int("sources", len(sources)),
		observability.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return docs, nil
}

// ExtractBytes processes a single in-memory image. The name is used for
// correlation only.
func (p *Pipeline) ExtractBytes(ctx context.Context, name string, data []byte) (*Document, error) {
	return p.extractOne(ctx, name, data)
}

func (p *Pipeline) extractOne(ctx context.Context, source string, data []byte) (*Document, error) {
	ctx, span := p.tracer.StartSpan(ctx, "pipeline.extract")
	defer span.Finish()
	span.SetTag("source", source)

	loadStart := time.Now()
	var frame *imaging.Frame
	var err error
	if data != nil {
		frame, err = p.loader.LoadBytes(ctx, source, data)
	} else {
		frame, err = p.loader.Load(ctx, source)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	loadDur := time.Since(loadStart)

	input, err := ocr.InputFromFrame(frame,
		ocr.WithLanguages(p.languages...),
		ocr.WithDPI(p.dpi),
	)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	recognizeStart := time.Now()
	result, err := p.engine.Recognize(ctx, input)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("recognize %s: %w", source, err)
	}
	recognizeDur := time.Since(recognizeStart)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groupStart := time.Now()
	words := result.Words()
	lines := layout.GroupWords(words, p.thresholds)
	paragraphs := layout.MergeParagraphs(lines, p.thresholds)
	layout.SortReadingOrder(paragraphs)
	if frame.Scale != 0 && frame.Scale != 1 {
		paragraphs = layout.Scale(paragraphs, 1/frame.Scale)
	}
	groupDur := time.Since(groupStart)

	doc := &Document{
		Source:   source,
		Format:   frame.Format,
		Width:    frame.SourceWidth,
		Height:   frame.SourceHeight,
		Scale:    frame.Scale,
		Language: result.Language,
		Regions:  paragraphs,
		Stats: Stats{
			LoadDuration:      loadDur,
			RecognizeDuration: recognizeDur,
			GroupDuration:     groupDur,
			WordCount:         len(words),
			LineCount:         len(lines),
			ParagraphCount:    len(paragraphs),
		},
	}
	doc.PlainText = assemblePlainText(paragraphs, result.PlainText)

	for _, proc := range p.processors {
		if err := proc(ctx, doc); err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("post-process %s: %w", source, err)
		}
	}

	p.logger.Debug("document extracted",
		observability.String("source", source),
		observability.Int("words", doc.Stats.WordCount),
		observability.Int("paragraphs", doc.Stats.ParagraphCount),
		observability.Int64("recognize_ms", recognizeDur.Milliseconds()),
	)
	return doc, nil
}

// assemblePlainText joins paragraph texts; engines that return no word
// geometry still contribute their linear text.
func assemblePlainText(paragraphs []layout.Region, fallback string) string {
	if len(paragraphs) == 0 {
		return fallback
	}
	parts := make([]string, len(paragraphs))
	for i, r := range paragraphs {
		parts[i] = r.Text
	}
	return strings.Join(parts, "\n\n")
}

// scriptProcessor adapts a JavaScript source to a Processor. A fresh engine is
// created per run because goja runtimes are not goroutine-safe.
func scriptProcessor(source string) Processor {
	return func(ctx context.Context, doc *Document) error {
		sdoc := &scripting.Document{Source: doc.Source, Regions: doc.Regions}
		if err := scripting.NewEngine().Run(ctx, source, sdoc); err != nil {
			return err
		}
		doc.Regions = sdoc.Regions
		// The script owns the content from here; dropping every region means
		// an empty document, not a fallback to the raw engine text.
		doc.PlainText = assemblePlainText(doc.Regions, "")
		return nil
	}
}
