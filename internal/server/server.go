package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veridoc/veridoc/internal/audit"
	"github.com/veridoc/veridoc/internal/engine"
	"github.com/veridoc/veridoc/internal/forensics"
	"github.com/veridoc/veridoc/internal/logging"
	"github.com/veridoc/veridoc/internal/report"
	"github.com/veridoc/veridoc/internal/risk"
	"github.com/veridoc/veridoc/internal/version"
)

const maxUploadBytes = 64 << 20

// Server exposes the analysis pipeline and the report store over HTTP.
type Server struct {
	engine *engine.Engine
	store  audit.Store
	log    *slog.Logger
}

func New(e *engine.Engine, store audit.Store) *Server {
	return &Server{engine: e, store: store, log: logging.For("http")}
}

// Routes mounts the full API surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{documentID}", s.handleGetReport)
		r.Get("/reports/{documentID}/markdown", s.handleReportMarkdown)
		r.Get("/reports/{documentID}/audit", s.handleAuditTrail)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Value,
	})
}

// handleAnalyze accepts a multipart upload: a "text" field with the
// extracted document text plus zero or more "image" file parts. The analysis
// runs synchronously and returns the full report.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	doc := engine.Document{
		FileName:     r.FormValue("file_name"),
		Text:         r.FormValue("text"),
		DocumentType: r.FormValue("document_type"),
		PageCount:    1,
	}
	if pc := r.FormValue("page_count"); pc != "" {
		n, err := strconv.Atoi(pc)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page_count")
			return
		}
		doc.PageCount = n
	}

	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["image"] {
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "read image part: "+err.Error())
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "read image part: "+err.Error())
				return
			}
			doc.Images = append(doc.Images, forensics.ImageInput{
				Data:     data,
				FileName: fh.Filename,
				MIME:     fh.Header.Get("Content-Type"),
			})
		}
	}

	if doc.Text == "" && len(doc.Images) == 0 {
		writeError(w, http.StatusBadRequest, "document has no text and no images")
		return
	}

	rep, err := s.engine.Analyze(r.Context(), doc)
	if err != nil {
		var ae *risk.AggregationError
		switch {
		case errors.As(err, &ae):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, audit.ErrDuplicate):
			writeError(w, http.StatusConflict, err.Error())
		case r.Context().Err() != nil:
			// Client went away; nothing useful to write.
		default:
			s.log.Error("analyze failed", "err", err)
			writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, report.RenderMarkdown(rep))
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	entries, err := s.store.Entries(r.Context(), id)
	if err != nil {
		s.log.Error("audit trail lookup failed", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "audit lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"entries":     entries,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var f audit.Filter
	q := r.URL.Query()
	if lvl := q.Get("level"); lvl != "" {
		f.RiskLevel = report.RiskLevel(lvl)
	}
	if ms := q.Get("min_score"); ms != "" {
		v, err := strconv.ParseFloat(ms, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		f.MinScore = v
	}
	if q.Get("manual_review") == "true" {
		f.ManualOnly = true
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		f.Since = t
	}
	if lim := q.Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	reports, err := s.store.Reports(r.Context(), f)
	if err != nil {
		s.log.Error("report listing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	if reports == nil {
		reports = []*report.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	id := chi.URLParam(r, "documentID")
	rep, err := s.store.Report(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("report lookup failed", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return nil, false
	}
	return rep, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
