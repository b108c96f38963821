package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keagan/beatcut/pkg/util"
)

type sidecarCut struct {
	Index   int     `json:"index"`
	SrcFile string  `json:"src_file"`
	Src     string  `json:"src_full_path"`
	InStart float64 `json:"in_start"`
	InDur   float64 `json:"in_dur"`
	Speed   float64 `json:"speed"`
	OutDur  float64 `json:"out_dur"`
}

type sidecar struct {
	Duration      float64      `json:"duration"`
	TotalSegments int          `json:"total_segments"`
	BPM           float64      `json:"bpm"`
	Seed          int64        `json:"seed"`
	UsedVideos    []string     `json:"used_videos"`
	Segments      []sidecarCut `json:"segments"`
}

// SidecarPath returns <dir>/<stem>_plan.json for a rendered output
func SidecarPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), util.Stem(outputPath)+"_plan.json")
}

// WriteSidecar stores a human-readable copy of the plan next to the output
func WriteSidecar(plan *EditPlan, outputPath string) (string, error) {
	doc := sidecar{
		Duration:      plan.Duration,
		TotalSegments: len(plan.Segments),
		BPM:           plan.BPM,
		Seed:          plan.Seed,
		UsedVideos:    plan.UsedVideos,
		Segments:      make([]sidecarCut, len(plan.Segments)),
	}
	for i, s := range plan.Segments {
		doc.Segments[i] = sidecarCut{
			Index:   i,
			SrcFile: filepath.Base(s.Src),
			Src:     s.Src,
			InStart: s.InStart,
			InDur:   s.InDur,
			Speed:   s.Speed,
			OutDur:  s.OutDur,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}

	path := SidecarPath(outputPath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write plan: %w", err)
	}
	return path, nil
}
