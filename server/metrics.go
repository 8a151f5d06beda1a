package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wudi/ocrkit/pipeline"
)

type metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	extractDuration prometheus.Histogram
	regionsPerImage prometheus.Histogram
	wordsTotal      prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocrkit_http_requests_total",
			Help: "HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ocrkit_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ocrkit_http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		extractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocrkit_extract_duration_seconds",
			Help:    "End-to-end extraction latency per image.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		regionsPerImage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocrkit_regions_per_image",
			Help:    "Text regions found per extracted image.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		wordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocrkit_words_recognized_total",
			Help: "Total words recognized across all extractions.",
		}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.inFlight,
		m.extractDuration,
		m.regionsPerImage,
		m.wordsTotal,
	)
	return m
}

// instrument records per-request counters and latency. The routing pattern is
// resolved after the handler runs so /v1/jobs/{id} stays one series, not one
// per UUID.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		path := chiRoutePattern(r)
		m.requests.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *metrics) observeDocument(doc *pipeline.Document) {
	m.extractDuration.Observe(doc.Stats.Total().Seconds())
	m.regionsPerImage.Observe(float64(len(doc.Regions)))
	m.wordsTotal.Add(float64(doc.Stats.WordCount))
}
