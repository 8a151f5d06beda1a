package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wudi/ocrkit/annotate"
	"github.com/wudi/ocrkit/export"
	"github.com/wudi/ocrkit/imaging"
	"github.com/wudi/ocrkit/jobs"
	"github.com/wudi/ocrkit/pipeline"
)

var formatContentTypes = map[string]string{
	export.FormatText:     "text/plain; charset=utf-8",
	export.FormatJSON:     "application/json",
	export.FormatHOCR:     "application/xhtml+xml",
	export.FormatMarkdown: "text/markdown; charset=utf-8",
	export.FormatHTML:     "text/html; charset=utf-8",
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "engine": s.engine.Name()})
}

// extractRequest carries the parsed upload and per-request options.
type extractRequest struct {
	name      string
	data      []byte
	languages []string
	scale     float64
	format    string
	annotate  bool
}

// parseExtractRequest accepts either a multipart "image" part or a raw image
// body.
func (s *Server) parseExtractRequest(r *http.Request) (*extractRequest, error) {
	req := &extractRequest{
		name:   "upload",
		format: export.FormatJSON,
	}

	q := r.URL.Query()
	if langs := q.Get("languages"); langs != "" {
		for _, l := range strings.Split(langs, ",") {
			if l = strings.TrimSpace(l); l != "" {
				req.languages = append(req.languages, l)
			}
		}
	}
	if raw := q.Get("scale"); raw != "" {
		scale, err := strconv.ParseFloat(raw, 64)
		if err != nil || scale <= 0 || scale > 1 {
			return nil, fmt.Errorf("invalid scale %q", raw)
		}
		req.scale = scale
	}
	if f := q.Get("format"); f != "" {
		if _, ok := formatContentTypes[f]; !ok {
			return nil, fmt.Errorf("invalid format %q", f)
		}
		req.format = f
	}
	req.annotate = q.Get("annotate") == "1" || q.Get("annotate") == "true"

	r.Body = http.MaxBytesReader(nil, r.Body, s.cfg.MaxUploadBytes)
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf(`missing "image" form part: %w`, err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		req.data = data
		if header.Filename != "" {
			req.name = header.Filename
		}
		return req, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	req.data = data
	return req, nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseExtractRequest(r)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error())
		return
	}

	doc, err := s.newPipeline(req.languages, req.scale).ExtractBytes(r.Context(), req.name, req.data)
	if err != nil {
		s.writeExtractError(w, err)
		return
	}
	s.metrics.observeDocument(doc)

	if req.annotate {
		s.writeAnnotated(w, req.data, doc)
		return
	}

	w.Header().Set("Content-Type", formatContentTypes[req.format])
	if err := export.Write(w, req.format, doc); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}

func (s *Server) writeExtractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, imaging.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, err.Error())
	default:
		// Recognition failures usually mean the engine or its trained data is
		// unavailable.
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("extraction failed: %v", err))
	}
}

// writeAnnotated re-decodes the original upload and returns it as a PNG with
// region boxes drawn in source coordinates.
func (s *Server) writeAnnotated(w http.ResponseWriter, data []byte, doc *pipeline.Document) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	annotated := annotate.DrawBoxes(img, doc.Regions, annotate.Options{})
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, annotated); err != nil {
		s.log.Error().Err(err).Msg("encode annotated image")
	}
}

type jobResponse struct {
	ID       string  `json:"id"`
	State    string  `json:"state"`
	Message  string  `json:"message,omitempty"`
	Progress float64 `json:"progress"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseExtractRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pipe := s.newPipeline(req.languages, req.scale)
	job := s.jobs.Submit(func(ctx context.Context, progress func(float64)) ([]*pipeline.Document, error) {
		progress(0.1)
		doc, err := pipe.ExtractBytes(ctx, req.name, req.data)
		if err != nil {
			return nil, err
		}
		s.metrics.observeDocument(doc)
		return []*pipeline.Document{doc}, nil
	})

	status := job.Status()
	writeJSON(w, http.StatusAccepted, jobResponse{
		ID:       job.ID(),
		State:    string(status.State),
		Progress: status.Progress,
	})
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) *jobs.Job {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil
	}
	return job
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	status := job.Status()
	writeJSON(w, http.StatusOK, jobResponse{
		ID:       job.ID(),
		State:    string(status.State),
		Message:  status.Message,
		Progress: status.Progress,
	})
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	docs, err := job.Documents()
	if err != nil {
		if errors.Is(err, jobs.ErrNotFinished) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		// Failed or canceled job: surface the recorded failure.
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatJSON
	}
	contentType, ok := formatContentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid format %q", format))
		return
	}
	w.Header().Set("Content-Type", contentType)
	if err := export.Write(w, format, docs...); err != nil {
		s.log.Error().Err(err).Msg("write job result")
	}
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	job.Cancel()
	w.WriteHeader(http.StatusAccepted)
}
