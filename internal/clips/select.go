package clips

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/keagan/beatcut/pkg/util"
)

// topBucketFloor is the smallest high-motion bucket Select draws from
const topBucketFloor = 30

// ByMotion returns a copy of pool sorted by descending motion, ties broken
// by path so the order is stable across runs.
func ByMotion(pool []ClipMeta) []ClipMeta {
	sorted := slices.Clone(pool)
	slices.SortStableFunc(sorted, func(a, b ClipMeta) int {
		if c := cmp.Compare(b.Motion, a.Motion); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return sorted
}

// Select draws count distinct clips. With preferMotion the draw is limited to
// the max(2*count, 30) most energetic clips. A pool no larger than count is
// returned whole.
func Select(pool []ClipMeta, count int, preferMotion bool, rng *rand.Rand) []ClipMeta {
	if count <= 0 {
		return nil
	}
	if len(pool) <= count {
		return slices.Clone(pool)
	}

	candidates := pool
	if preferMotion {
		top := min(len(pool), max(2*count, topBucketFloor))
		candidates = ByMotion(pool)[:top]
	}

	picked := make([]ClipMeta, 0, count)
	for _, i := range rng.Perm(len(candidates))[:count] {
		picked = append(picked, candidates[i])
	}
	return picked
}

// Summary lists the n most energetic clips, one line each, with paths
// relative to root
func Summary(metas []ClipMeta, root string, n int) []string {
	sorted := ByMotion(metas)
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}

	lines := make([]string, 0, len(sorted))
	for _, m := range sorted {
		rel := util.RelPath(m.Path, root)
		lines = append(lines, fmt.Sprintf("%.3f  %7.2fs  %4dx%-4d  %s", m.Motion, m.Duration, m.Width, m.Height, rel))
	}
	return lines
}
