// Package api exposes the lead operations over HTTP. Every lead endpoint
// answers with the JSON SyncResult; the HTTP status mirrors its error kind.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/leadsync"
	"github.com/sells-group/leadsync/internal/model"
)

const maxBodyBytes = 1 << 20

// Service is the set of lead operations the API serves.
type Service interface {
	Extract(text string) model.ExtractionResult
	AddLead(ctx context.Context, lead model.Lead) model.SyncResult
	Capture(ctx context.Context, text string) model.SyncResult
	UpdateLead(ctx context.Context, name, field, value string) model.SyncResult
	DeleteLead(ctx context.Context, name string) model.SyncResult
	ShowLead(ctx context.Context, name string) model.SyncResult
	ListLeads(ctx context.Context) model.SyncResult
	Backends() []string
}

// Drainer re-drives the outbox on demand.
type Drainer interface {
	Drain(ctx context.Context) (leadsync.DrainReport, error)
}

// Options configure the router.
type Options struct {
	AllowedOrigins []string
}

// ErrorResponse is returned for requests that never reach the service.
type ErrorResponse struct {
	Error string `json:"error"`
}

type textRequest struct {
	Text string `json:"text"`
}

type updateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type handlers struct {
	svc     Service
	drainer Drainer
}

// Router builds the HTTP handler. drainer may be nil, in which case the
// drain endpoint answers 503.
func Router(svc Service, drainer Drainer, opts Options) http.Handler {
	h := &handlers{svc: svc, drainer: drainer}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", h.extract)
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.listLeads)
			r.Post("/", h.addLead)
			r.Post("/capture", h.capture)
			r.Get("/{name}", h.showLead)
			r.Patch("/{name}", h.updateLead)
			r.Delete("/{name}", h.deleteLead)
		})
		r.Post("/outbox/drain", h.drain)
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "backends": h.svc.Backends()})
}

func (h *handlers) extract(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Extract(req.Text))
}

func (h *handlers) addLead(w http.ResponseWriter, r *http.Request) {
	var lead model.Lead
	if !decode(w, r, &lead) {
		return
	}
	res := h.svc.AddLead(r.Context(), lead)
	writeJSON(w, StatusFor(res, http.StatusCreated), res)
}

func (h *handlers) capture(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	res := h.svc.Capture(r.Context(), req.Text)
	writeJSON(w, StatusFor(res, http.StatusCreated), res)
}

func (h *handlers) updateLead(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	res := h.svc.UpdateLead(r.Context(), name, req.Field, req.Value)
	writeJSON(w, StatusFor(res, http.StatusOK), res)
}

func (h *handlers) deleteLead(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	res := h.svc.DeleteLead(r.Context(), name)
	writeJSON(w, StatusFor(res, http.StatusOK), res)
}

func (h *handlers) showLead(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	res := h.svc.ShowLead(r.Context(), name)
	writeJSON(w, StatusFor(res, http.StatusOK), res)
}

func (h *handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	res := h.svc.ListLeads(r.Context())
	writeJSON(w, StatusFor(res, http.StatusOK), res)
}

func (h *handlers) drain(w http.ResponseWriter, r *http.Request) {
	if h.drainer == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "outbox is disabled"})
		return
	}
	rep, err := h.drainer.Drain(r.Context())
	if err != nil {
		zap.L().Error("api: outbox drain failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "outbox drain failed"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// StatusFor maps a SyncResult to an HTTP status. ok is used for a full
// success.
func StatusFor(res model.SyncResult, ok int) int {
	switch res.Status {
	case model.SyncSuccess:
		return ok
	case model.SyncPartial:
		return http.StatusMultiStatus
	}
	switch res.ErrorKind {
	case model.ErrorKindValidation:
		return http.StatusUnprocessableEntity
	case model.ErrorKindNotFound:
		return http.StatusNotFound
	case model.ErrorKindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// nameParam reads the {name} segment. chi matches against RawPath when the
// request carries one, so only then is the segment still escaped.
func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	var err error
	if r.URL.RawPath != "" {
		name, err = url.PathUnescape(name)
	}
	if err == nil {
		name = strings.TrimSpace(name)
	}
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "lead name is required"})
		return "", false
	}
	return name, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
