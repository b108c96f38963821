package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/keagan/beatcut/internal/beat"
	"github.com/keagan/beatcut/internal/pipeline"
	"github.com/keagan/beatcut/internal/planner"
)

// Service is the engine surface exposed over HTTP
type Service interface {
	Analyze(ctx context.Context, audioPath string) (*beat.Grid, error)
	Plan(ctx context.Context, job pipeline.Job, variant int) (*planner.EditPlan, *beat.Grid, error)
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	// one render at a time; renders saturate the encoder
	renderSlot := make(chan struct{}, 1)

	r.Get("/health", healthHandler(cfg))
	r.Post("/analyze", analyzeHandler(cfg))
	r.Post("/plans", planHandler(cfg))
	r.Post("/renders", renderHandler(cfg, renderSlot))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Audio == "" {
			WriteError(w, http.StatusBadRequest, "audio is required", "BAD_REQUEST")
			return
		}

		grid, err := cfg.Service.Analyze(r.Context(), req.Audio)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, grid)
	}
}

func planHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Audio == "" {
			WriteError(w, http.StatusBadRequest, "audio is required", "BAD_REQUEST")
			return
		}
		job, err := req.job()
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		plan, grid, err := cfg.Service.Plan(r.Context(), job, req.Variant)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PlanResponse{Grid: grid, Plan: plan})
	}
}

func renderHandler(cfg ServerConfig, slot chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Audio == "" {
			WriteError(w, http.StatusBadRequest, "audio is required", "BAD_REQUEST")
			return
		}
		job, err := req.job()
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		select {
		case slot <- struct{}{}:
			defer func() { <-slot }()
		case <-r.Context().Done():
			WriteError(w, http.StatusServiceUnavailable, "request canceled while waiting for render slot", "CANCELED")
			return
		}

		result, err := cfg.Service.Run(r.Context(), job)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RenderResponse{RequestID: RequestID(r.Context()), Result: result})
	}
}
