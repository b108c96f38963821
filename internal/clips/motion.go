package clips

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// MotionScorer measures visual energy as the mean absolute frame-to-frame
// luma difference after downscaling to a fixed grid.
type MotionScorer struct {
	Size uint
}

// NewMotionScorer creates a scorer comparing frames at 64x64
func NewMotionScorer() *MotionScorer {
	return &MotionScorer{Size: 64}
}

// Score returns a value in [0,1]; fewer than two frames score 0
func (m *MotionScorer) Score(frames []*image.Gray) float64 {
	if len(frames) < 2 {
		return 0
	}

	var prev *image.Gray
	var total float64
	pairs := 0
	for _, f := range frames {
		cur := m.normalize(f)
		if prev != nil {
			total += meanAbsDiff(prev, cur)
			pairs++
		}
		prev = cur
	}

	score := total / float64(pairs) / 255
	return min(1, max(0, score))
}

// normalize downscales a frame to Size x Size gray
func (m *MotionScorer) normalize(f *image.Gray) *image.Gray {
	size := m.Size
	if size == 0 {
		size = 64
	}
	resized := resize.Resize(size, size, f, resize.Bilinear)
	if g, ok := resized.(*image.Gray); ok {
		return g
	}
	g := image.NewGray(resized.Bounds())
	draw.Draw(g, g.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return g
}

func meanAbsDiff(a, b *image.Gray) float64 {
	n := min(len(a.Pix), len(b.Pix))
	if n == 0 {
		return 0
	}
	var sum int
	for i := 0; i < n; i++ {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(n)
}
