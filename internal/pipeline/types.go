package pipeline

import (
	"context"

	"github.com/keagan/beatcut/internal/beat"
	"github.com/keagan/beatcut/internal/clips"
	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/overlays"
	"github.com/keagan/beatcut/internal/planner"
	"github.com/keagan/beatcut/internal/render"
)

// Analyzer produces the beat grid of an audio file
type Analyzer interface {
	Analyze(ctx context.Context, audioPath string) (*beat.Grid, error)
}

// Indexer turns candidate files into clip metadata
type Indexer interface {
	Index(ctx context.Context, candidates []clips.Candidate) ([]clips.ClipMeta, error)
}

// Renderer writes a planned video
type Renderer interface {
	Render(ctx context.Context, req render.Request, cfg config.RenderConfig) error
}

// Job is one audio track rendered into one or more variants
type Job struct {
	Audio  string
	Source clips.Source

	// OutputDir receives <Name>_<variant>.mp4; Name defaults to the audio stem
	OutputDir string
	Name      string
	Variants  int
	Overwrite bool

	// ExtraOffset is added to the grid's start offset when trimming audio
	ExtraOffset float64

	// PoolSize limits planning to this many clips drawn with a motion
	// preference; zero plans over the whole library
	PoolSize int

	Hook     string
	Overlays []overlays.TextOverlay

	CutDurations []float64

	// Seed overrides the derived seed of the first variant
	Seed *int64
}

// VariantResult describes one rendered or skipped variant
type VariantResult struct {
	Name     string            `json:"name"`
	Output   string            `json:"output"`
	PlanPath string            `json:"plan_path,omitempty"`
	Seed     int64             `json:"seed"`
	Skipped  bool              `json:"skipped,omitempty"`
	Plan     *planner.EditPlan `json:"plan,omitempty"`
}

// Result is the outcome of a job
type Result struct {
	Grid     *beat.Grid      `json:"grid"`
	Clips    int             `json:"clips"`
	Variants []VariantResult `json:"variants"`
}
