package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/wudi/ocrkit/geo"
	"github.com/wudi/ocrkit/layout"
)

// GojaEngine implements Engine on the goja JavaScript runtime. An engine
// value is not safe for concurrent use; create one per goroutine.
type GojaEngine struct {
	vm *goja.Runtime
}

// NewEngine constructs a script engine.
func NewEngine() *GojaEngine {
	return &GojaEngine{vm: goja.New()}
}

// Run exposes doc as the `document` global, evaluates the script, and copies
// mutations back. Regions with a truthy `drop` property are removed.
func (e *GojaEngine) Run(ctx context.Context, script string, doc *Document) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	regions := make([]map[string]interface{}, len(doc.Regions))
	for i, r := range doc.Regions {
		regions[i] = map[string]interface{}{
			"text":       r.Text,
			"x":          r.Bounds.X,
			"y":          r.Bounds.Y,
			"width":      r.Bounds.Width,
			"height":     r.Bounds.Height,
			"confidence": r.Confidence,
			"words":      r.Words,
			"drop":       false,
		}
	}
	model := map[string]interface{}{
		"source":  doc.Source,
		"regions": regions,
	}
	if err := e.vm.Set("document", model); err != nil {
		return fmt.Errorf("bind document: %w", err)
	}

	if _, err := e.execute(ctx, script); err != nil {
		return err
	}

	out := make([]layout.Region, 0, len(regions))
	for i, m := range regions {
		if truthy(m["drop"]) {
			continue
		}
		r := doc.Regions[i]
		r.Text = asString(m["text"], r.Text)
		r.Confidence = asFloat(m["confidence"], r.Confidence)
		r.Bounds = geo.Region{
			X:      asFloat(m["x"], r.Bounds.X),
			Y:      asFloat(m["y"], r.Bounds.Y),
			Width:  asFloat(m["width"], r.Bounds.Width),
			Height: asFloat(m["height"], r.Bounds.Height),
		}
		out = append(out, r)
	}
	doc.Regions = out
	return nil
}

// execute runs a script with context-based interruption, mirroring how the
// runtime is driven for any embedded script.
func (e *GojaEngine) execute(ctx context.Context, script string) (interface{}, error) {
	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("script: %w", err)
	}
	return val.Export(), nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func asString(v interface{}, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func asFloat(v interface{}, fallback float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return fallback
	}
}
