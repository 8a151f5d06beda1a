package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestFields(t *testing.T) {
	if f := String("k", "v"); f.Key() != "k" || f.Value() != "v" {
		t.Fatalf("String field = %v %v", f.Key(), f.Value())
	}
	if f := Int("n", 7); f.Value() != 7 {
		t.Fatalf("Int field = %v", f.Value())
	}
	if f := Int64("n", int64(9)); f.Value() != int64(9) {
		t.Fatalf("Int64 field = %v", f.Value())
	}
	if f := Float64("f", 1.5); f.Value() != 1.5 {
		t.Fatalf("Float64 field = %v", f.Value())
	}
	err := errors.New("boom")
	if f := Error("err", err); f.Value() != err {
		t.Fatalf("Error field = %v", f.Value())
	}
}

func TestNopImplementations(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debug("x")
	l.Info("x", Int("n", 1))
	l.Warn("x")
	l.Error("x", Error("err", errors.New("e")))
	if got := l.With(String("a", "b")); got == nil {
		t.Fatal("With() must return a logger")
	}

	ctx, span := NopTracer().StartSpan(nil, "op") //nolint:staticcheck // nil ctx is fine for the nop tracer
	span.SetTag("k", "v")
	span.SetError(errors.New("e"))
	span.Finish()
	_ = ctx
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	log := NewZerologLogger(zl).With(String("component", "test"))

	log.Info("extracted",
		Int("regions", 3),
		Int64("bytes", 1024),
		Float64("confidence", 0.92),
		Error("err", errors.New("partial")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "extracted" {
		t.Fatalf("message = %v", entry["message"])
	}
	if entry["component"] != "test" {
		t.Fatalf("component = %v", entry["component"])
	}
	if entry["regions"] != float64(3) {
		t.Fatalf("regions = %v", entry["regions"])
	}
	if entry["confidence"] != 0.92 {
		t.Fatalf("confidence = %v", entry["confidence"])
	}
	if entry["err"] != "partial" {
		t.Fatalf("err = %v", entry["err"])
	}
}
