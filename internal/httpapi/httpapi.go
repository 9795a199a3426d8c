// Package httpapi exposes the pipeline over HTTP: a health probe and a
// synchronous run trigger.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

// Runner executes pipeline runs. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, p model.SearchProfile) ([]model.JobRecord, model.RunSummary)
	RunEmployers(ctx context.Context, p model.SearchProfile, employers []config.Employer) ([]model.JobRecord, model.RunSummary)
}

// Handler serves the API. Only one run executes at a time.
type Handler struct {
	runner  Runner
	file    *config.File
	version string
	running sync.Mutex
	log     *logger.Logger
}

// NewHandler builds the handler over the loaded pipeline file.
func NewHandler(runner Runner, file *config.File, version string) *Handler {
	return &Handler{runner: runner, file: file, version: version, log: logger.Named("httpapi")}
}

// Router returns the chi router with all routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/profiles", h.listProfiles)
		r.Post("/runs", h.startRun)
	})
	return r
}

type runRequest struct {
	Profile string `json:"profile"`
	Mode    string `json:"mode"`
}

type runResponse struct {
	Summary model.RunSummary  `json:"summary"`
	Records []model.JobRecord `json:"records"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "aggregator-service",
		"version": h.version,
	})
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.file.Profiles))
	for _, p := range h.file.Profiles {
		names = append(names, p.Name)
	}
	jsonOK(w, map[string]any{"profiles": names})
}

// startRun runs the profile to completion and answers with the summary and
// the scored records.
func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeSearch
	}
	if req.Mode != model.ModeSearch && req.Mode != model.ModeEmployers {
		jsonError(w, "mode must be search or employers", http.StatusBadRequest)
		return
	}
	p, ok := h.file.Profile(req.Profile)
	if !ok {
		jsonError(w, "unknown profile", http.StatusNotFound)
		return
	}

	if !h.running.TryLock() {
		jsonError(w, "a run is already in progress", http.StatusConflict)
		return
	}
	defer h.running.Unlock()

	h.log.Info().Str("profile", p.Name).Str("mode", req.Mode).
		Str("request_id", middleware.GetReqID(r.Context())).Msg("run requested")

	var resp runResponse
	if req.Mode == model.ModeEmployers {
		resp.Records, resp.Summary = h.runner.RunEmployers(r.Context(), p, h.file.H1BEmployers)
	} else {
		resp.Records, resp.Summary = h.runner.Run(r.Context(), p)
	}
	jsonOK(w, resp)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
