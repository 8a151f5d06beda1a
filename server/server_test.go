package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/ocrkit/geo"
	"github.com/wudi/ocrkit/ocr"
	"github.com/wudi/ocrkit/pipeline"
)

// fakeEngine returns a fixed pair of words close enough to group into one
// region.
type fakeEngine struct {
	err       error
	lastInput ocr.Input
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, input ocr.Input) (ocr.Result, error) {
	f.lastInput = input
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	words := []ocr.TextWord{
		{Text: "hello", Bounds: geo.Region{X: 10, Y: 10, Width: 30, Height: 12}, Confidence: 0.9},
		{Text: "world", Bounds: geo.Region{X: 45, Y: 10, Width: 30, Height: 12}, Confidence: 0.8},
	}
	return ocr.Result{
		InputID:   input.ID,
		PlainText: "hello world",
		Blocks: []ocr.TextBlock{{
			Lines: []ocr.TextLine{{Words: words}},
		}},
	}, nil
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(t *testing.T, engine ocr.Engine, opts ...Option) *Server {
	t.Helper()
	return New(Config{}, engine, zerolog.Nop(), opts...)
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "fake", body["engine"])
}

func TestExtractMultipartJSON(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine)

	body, contentType := multipartBody(t, "image", "shot.png", testImage(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/extract?languages=eng,deu", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var doc struct {
		Source    string `json:"source"`
		PlainText string `json:"text"`
		Regions   []struct {
			Text string `json:"text"`
		} `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "shot.png", doc.Source)
	assert.Equal(t, "hello world", doc.PlainText)
	require.Len(t, doc.Regions, 1)
	assert.Equal(t, "hello world", doc.Regions[0].Text)

	assert.Equal(t, []string{"eng", "deu"}, engine.lastInput.Languages)
}

func TestExtractRawBodyTextFormat(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract?format=text", bytes.NewReader(testImage(t)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "hello world")
}

func TestExtractAnnotated(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract?annotate=1", bytes.NewReader(testImage(t)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, format, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	// Annotated output is at source resolution, not recognition scale.
	assert.Equal(t, 200, img.Bounds().Dx())
}

func TestExtractRejectsGarbage(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("not an image"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestExtractValidatesParams(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	for _, target := range []string{
		"/v1/extract?scale=2",
		"/v1/extract?scale=abc",
		"/v1/extract?format=xml",
	} {
		req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(testImage(t)))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	router := srv.Router()

	body, contentType := multipartBody(t, "image", "shot.png", testImage(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var submitted jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.ID)

	job, err := srv.jobs.Get(submitted.ID)
	require.NoError(t, err)
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+submitted.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, string(ocr.JobStateSucceeded), status.State)
	assert.Equal(t, 1.0, status.Progress)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+submitted.ID+"/result?format=text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello world")
}

func TestJobNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	router := srv.Router()

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil),
		httptest.NewRequest(http.MethodGet, "/v1/jobs/nope/result", nil),
		httptest.NewRequest(http.MethodDelete, "/v1/jobs/nope", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.URL.Path)
	}
}

func TestJobResultBeforeFinish(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	release := make(chan struct{})
	job := srv.jobs.Submit(func(ctx context.Context, _ func(float64)) ([]*pipeline.Document, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID()+"/result", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(testImage(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ocrkit_http_requests_total")
	assert.Contains(t, string(body), "ocrkit_words_recognized_total 2")
}
