package api

import (
	"github.com/keagan/beatcut/internal/beat"
	"github.com/keagan/beatcut/internal/clips"
	"github.com/keagan/beatcut/internal/overlays"
	"github.com/keagan/beatcut/internal/pipeline"
	"github.com/keagan/beatcut/internal/planner"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type AnalyzeRequest struct {
	Audio string `json:"audio"`
}

type PlanRequest struct {
	Audio        string           `json:"audio"`
	Source       clips.SourceSpec `json:"source"`
	Seed         *int64           `json:"seed,omitempty"`
	Variant      int              `json:"variant,omitempty"`
	PoolSize     int              `json:"pool_size,omitempty"`
	CutDurations []float64        `json:"cut_durations,omitempty"`
}

type PlanResponse struct {
	Grid *beat.Grid        `json:"grid"`
	Plan *planner.EditPlan `json:"plan"`
}

type RenderRequest struct {
	Audio        string                 `json:"audio"`
	Source       clips.SourceSpec       `json:"source"`
	OutputDir    string                 `json:"output_dir,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Variants     int                    `json:"variants,omitempty"`
	Overwrite    bool                   `json:"overwrite,omitempty"`
	ExtraOffset  float64                `json:"extra_offset,omitempty"`
	PoolSize     int                    `json:"pool_size,omitempty"`
	Hook         string                 `json:"hook,omitempty"`
	Overlays     []overlays.TextOverlay `json:"overlays,omitempty"`
	CutDurations []float64              `json:"cut_durations,omitempty"`
	Seed         *int64                 `json:"seed,omitempty"`
}

type RenderResponse struct {
	RequestID string `json:"request_id"`
	*pipeline.Result
}

func (r PlanRequest) job() (pipeline.Job, error) {
	src, err := r.Source.Source()
	if err != nil {
		return pipeline.Job{}, err
	}
	return pipeline.Job{
		Audio:        r.Audio,
		Source:       src,
		PoolSize:     r.PoolSize,
		CutDurations: r.CutDurations,
		Seed:         r.Seed,
	}, nil
}

func (r RenderRequest) job() (pipeline.Job, error) {
	src, err := r.Source.Source()
	if err != nil {
		return pipeline.Job{}, err
	}
	return pipeline.Job{
		Audio:        r.Audio,
		Source:       src,
		OutputDir:    r.OutputDir,
		Name:         r.Name,
		Variants:     r.Variants,
		Overwrite:    r.Overwrite,
		ExtraOffset:  r.ExtraOffset,
		PoolSize:     r.PoolSize,
		Hook:         r.Hook,
		Overlays:     r.Overlays,
		CutDurations: r.CutDurations,
		Seed:         r.Seed,
	}, nil
}
