// Package server exposes the upload-and-extract flow over HTTP: synchronous
// extraction, asynchronous jobs, annotated previews, health, and Prometheus
// metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/jobs"
	"github.com/wudi/ocrkit/layout"
	"github.com/wudi/ocrkit/observability"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/pipeline"
)

// DefaultMaxUploadBytes caps request bodies at 32 MiB.
const DefaultMaxUploadBytes = 32 << 20

// Config holds the HTTP surface settings.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	// DefaultLanguages apply when the request does not name any.
	DefaultLanguages []string
	// DefaultScale is the recognition scale factor when the request does not
	// override it.
	DefaultScale float64
	// Thresholds tune layout grouping for all requests.
	Thresholds layout.Thresholds
	// JobRetention is how long finished jobs remain queryable.
	JobRetention time.Duration
	// ShutdownTimeout bounds graceful shutdown. Zero means 10s.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.DefaultScale <= 0 {
		c.DefaultScale = imaging.DefaultScaleFactor
	}
	if c.Thresholds == (layout.Thresholds{}) {
		c.Thresholds = layout.DefaultThresholds()
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Server wires the extraction pipeline to the HTTP API.
type Server struct {
	cfg     Config
	engine  ocr.Engine
	jobs    *jobs.Manager
	log     zerolog.Logger
	metrics *metrics
	script  string
}

// Option customizes the server.
type Option func(*Server)

// WithScript installs a JavaScript post-processor applied to every request.
func WithScript(source string) Option {
	return func(s *Server) { s.script = source }
}

// WithRegistry uses a caller-provided Prometheus registry instead of a fresh
// one.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.metrics = newMetrics(reg) }
}

// New constructs a Server around an OCR engine.
func New(cfg Config, engine ocr.Engine, log zerolog.Logger, opts ...Option) *Server {
	cfg = cfg.withDefaults()
	if engine == nil {
		engine = ocr.DefaultEngine()
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		jobs:   jobs.NewManager(cfg.JobRetention, observability.NewZerologLogger(log)),
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(prometheus.NewRegistry())
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.metrics.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Get("/jobs/{id}/result", s.handleJobResult)
		r.Delete("/jobs/{id}", s.handleJobCancel)
	})
	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// newPipeline assembles a pipeline for one request's options.
func (s *Server) newPipeline(languages []string, scale float64) *pipeline.Pipeline {
	if len(languages) == 0 {
		languages = s.cfg.DefaultLanguages
	}
	if scale <= 0 {
		scale = s.cfg.DefaultScale
	}
	b := pipeline.NewBuilder().
		WithEngine(s.engine).
		WithLoader(imaging.NewLoader(imaging.Config{ScaleFactor: scale})).
		WithThresholds(s.cfg.Thresholds).
		WithLanguages(languages...).
		WithLogger(observability.NewZerologLogger(s.log))
	if s.script != "" {
		b = b.WithScript(s.script)
	}
	return b.Build()
}
