// Package planner assigns library clips to beat-locked cut slots.
package planner

import (
	"fmt"
	"math/rand/v2"

	"github.com/keagan/beatcut/internal/beat"
	"github.com/keagan/beatcut/internal/clips"
	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/schedule"
)

// Segment is one resolved cut. InDur == OutDur * Speed.
type Segment struct {
	Src     string  `json:"src"`
	InStart float64 `json:"in_start"`
	InDur   float64 `json:"in_dur"`
	OutDur  float64 `json:"out_dur"`
	Speed   float64 `json:"speed"`
	Motion  float64 `json:"motion"`
	Still   bool    `json:"still,omitempty"`
}

// EditPlan is an ordered list of segments ready to render
type EditPlan struct {
	Segments   []Segment `json:"segments"`
	Duration   float64   `json:"duration"`
	UsedVideos []string  `json:"used_videos"`
	BPM        float64   `json:"bpm"`
	Seed       int64     `json:"seed"`
	Loop       bool      `json:"loop"`
}

// Options adjusts a single planning call
type Options struct {
	// CutDurations replaces the beat schedule. Values are clamped to the
	// configured cut-length bounds.
	CutDurations []float64
}

const (
	highPoolMin = 6
	highPoolMax = 24
	// cuts from this fraction of the sequence onward are the drop
	dropStart = 0.55

	loopMargin    = 0.1
	segmentMargin = 0.08
	// in-point randomization needs at least this much slack
	minSlack = 0.1

	trimFloor = 0.15
	epsilon   = 1e-6
)

// NewRand returns the generator all planning randomness flows through
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5deece66d))
}

// Plan builds an edit plan. It is deterministic for identical inputs and seed.
func Plan(pool []clips.ClipMeta, grid *beat.Grid, cfg config.RenderConfig, seed int64, opts Options) (*EditPlan, error) {
	if grid == nil || grid.BPM <= 0 {
		return nil, fmt.Errorf("beat grid with a positive bpm is required")
	}

	metas := make([]clips.ClipMeta, 0, len(pool))
	for _, m := range pool {
		if m.Usable() {
			metas = append(metas, m)
		}
	}
	if len(metas) == 0 {
		return nil, &errkind.InsufficientMediaError{Reason: "no usable clips in pool"}
	}

	rng := NewRand(seed)

	target := cfg.MinDurationS + rng.Float64()*(cfg.MaxDurationS-cfg.MinDurationS)

	var durations []float64
	if len(opts.CutDurations) > 0 {
		durations = clampCuts(opts.CutDurations, cfg)
	} else {
		durations = reachMinimum(schedule.Schedule(target, grid.BPM, rng), cfg.MinDurationS)
	}
	n := len(durations)
	if n == 0 {
		return nil, &errkind.InsufficientMediaError{Reason: "cut schedule is empty"}
	}

	sorted := clips.ByMotion(metas)
	high := sorted[:min(len(sorted), max(highPoolMin, min(len(sorted), highPoolMax)))]
	low := sorted[len(sorted)/3:]
	if len(low) == 0 {
		low = metas
	}

	p := &picker{
		rng:  rng,
		all:  metas,
		used: make(map[string]bool),
	}

	segments := make([]Segment, n)
	filled := make([]bool, n)
	loop := cfg.Loop && n >= 2
	var anchor *clips.ClipMeta

	if loop {
		firstSpeed := p.speed(cfg)
		lastSpeed := p.speed(cfg)
		firstIn := durations[0] * firstSpeed
		lastIn := durations[n-1] * lastSpeed
		total := firstIn + lastIn

		a := p.pick(fits(high, total+loopMargin))
		anchor = &a

		start := p.inPoint(a, total, loopMargin)

		// the last cut plays the earlier footage so the wrap from last
		// back to first continues the motion
		segments[n-1] = newSegment(a, start, durations[n-1], lastSpeed)
		segments[0] = newSegment(a, start+lastIn, durations[0], firstSpeed)
		filled[0], filled[n-1] = true, true
		p.used[a.Path] = true
	}

	lastSrc := ""
	if anchor != nil {
		lastSrc = anchor.Path
	}

	for i := 0; i < n; i++ {
		if filled[i] {
			continue
		}

		sub := low
		if i >= int(dropStart*float64(n)) {
			sub = high
		}

		choices := p.unused(sub)
		if len(choices) == 0 {
			choices = p.unused(metas)
		}
		if len(choices) == 0 {
			choices = sub
		}
		choices = without(choices, lastSrc)
		if anchor != nil && (i == 1 || i == n-2) {
			choices = without(choices, anchor.Path)
		}

		speed := p.speed(cfg)
		inDur := durations[i] * speed

		m := p.pick(fits(choices, inDur+segmentMargin))
		p.used[m.Path] = true
		lastSrc = m.Path

		start := p.inPoint(m, inDur, segmentMargin)
		segments[i] = newSegment(m, start, durations[i], speed)
	}

	segments = trimTail(segments, cfg.MaxDurationS, loop)

	plan := &EditPlan{
		Segments: segments,
		Duration: totalOut(segments),
		BPM:      grid.BPM,
		Seed:     seed,
		Loop:     loop && len(segments) >= 2,
	}
	plan.UsedVideos = usedVideos(segments)
	return plan, nil
}

type picker struct {
	rng  *rand.Rand
	all  []clips.ClipMeta
	used map[string]bool
}

func (p *picker) speed(cfg config.RenderConfig) float64 {
	return cfg.SpeedMin + p.rng.Float64()*(cfg.SpeedMax-cfg.SpeedMin)
}

func (p *picker) pick(choices []clips.ClipMeta) clips.ClipMeta {
	if len(choices) == 0 {
		choices = p.all
	}
	return choices[p.rng.IntN(len(choices))]
}

func (p *picker) unused(pool []clips.ClipMeta) []clips.ClipMeta {
	out := make([]clips.ClipMeta, 0, len(pool))
	for _, m := range pool {
		if !p.used[m.Path] {
			out = append(out, m)
		}
	}
	return out
}

// inPoint picks a random start leaving margin before the clip end, or 0
// when there is too little slack. Stills always start at 0.
func (p *picker) inPoint(m clips.ClipMeta, inDur, margin float64) float64 {
	if m.Still {
		return 0
	}
	latest := max(0, m.Duration-inDur-margin)
	if latest <= minSlack {
		return 0
	}
	return p.rng.Float64() * latest
}

// without drops path from choices unless that would leave nothing
func without(choices []clips.ClipMeta, path string) []clips.ClipMeta {
	if path == "" {
		return choices
	}
	out := make([]clips.ClipMeta, 0, len(choices))
	for _, m := range choices {
		if m.Path != path {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return choices
	}
	return out
}

// fits keeps clips with at least need seconds of footage unless none do
func fits(choices []clips.ClipMeta, need float64) []clips.ClipMeta {
	out := make([]clips.ClipMeta, 0, len(choices))
	for _, m := range choices {
		if m.Duration >= need {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return choices
	}
	return out
}

func newSegment(m clips.ClipMeta, start, outDur, speed float64) Segment {
	return Segment{
		Src:     m.Path,
		InStart: start,
		InDur:   outDur * speed,
		OutDur:  outDur,
		Speed:   speed,
		Motion:  m.Motion,
		Still:   m.Still,
	}
}

// trimTail shrinks or drops trailing cuts until the plan fits maxDuration.
// A loop keeps its anchor as the final cut, so the cut before it is trimmed.
func trimTail(segments []Segment, maxDuration float64, loop bool) []Segment {
	total := totalOut(segments)
	for len(segments) > 0 && total > maxDuration+epsilon {
		idx := len(segments) - 1
		if loop && len(segments) >= 3 {
			idx = len(segments) - 2
		}
		seg := segments[idx]

		if seg.OutDur <= trimFloor {
			segments = append(segments[:idx], segments[idx+1:]...)
			total = totalOut(segments)
			continue
		}

		newOut := max(trimFloor, seg.OutDur-(total-maxDuration))
		newIn := newOut * seg.Speed
		if loop && idx == len(segments)-1 && idx > 0 {
			// keep the loop tail ending where the first cut begins
			seg.InStart = segments[0].InStart - newIn
		}
		seg.OutDur = newOut
		seg.InDur = newIn
		segments[idx] = seg
		total = totalOut(segments)
	}
	return segments
}

// reachMinimum stretches the final cut when the schedule stopped short of
// the minimum duration
func reachMinimum(cuts []float64, minDuration float64) []float64 {
	if len(cuts) == 0 {
		return cuts
	}
	if short := minDuration - schedule.Total(cuts); short > 0 {
		cuts[len(cuts)-1] += short
	}
	return cuts
}

func totalOut(segments []Segment) float64 {
	var sum float64
	for _, s := range segments {
		sum += s.OutDur
	}
	return sum
}

func usedVideos(segments []Segment) []string {
	seen := make(map[string]bool, len(segments))
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if !seen[s.Src] {
			seen[s.Src] = true
			out = append(out, s.Src)
		}
	}
	return out
}

func clampCuts(cuts []float64, cfg config.RenderConfig) []float64 {
	out := make([]float64, 0, len(cuts))
	for _, c := range cuts {
		if c <= 0 {
			continue
		}
		if cfg.ClipMinS > 0 {
			c = max(c, cfg.ClipMinS)
		}
		if cfg.ClipMaxS > 0 {
			c = min(c, cfg.ClipMaxS)
		}
		out = append(out, c)
	}
	return out
}
