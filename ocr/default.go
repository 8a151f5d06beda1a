package ocr

import (
	"context"
	"fmt"
)

var defaultEngine Engine = &noopEngine{}

// DefaultEngine returns the package default OCR engine. Importing the
// tesseract subpackage replaces the initial no-op engine.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine sets the package default OCR engine.
func SetDefaultEngine(engine Engine) {
	defaultEngine = engine
}

// Recognize invokes the provided engine for each input. If the engine supports
// batch operation, it is used; otherwise calls are executed sequentially.
func Recognize(ctx context.Context, engine Engine, inputs ...Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// DefaultRecognize runs recognition with the package default engine.
func DefaultRecognize(ctx context.Context, inputs ...Input) ([]Result, error) {
	return Recognize(ctx, DefaultEngine(), inputs...)
}

type noopEngine struct{}

func (n noopEngine) Name() string {
	return "noop"
}

func (n noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
