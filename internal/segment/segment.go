// Package segment defines the segmentation service interface and a
// reference region-growing implementation.
//
// Cells are first split into ground and non-ground surfaces by height.
// Segments never cross a surface boundary. Join keys are assigned 1..N
// after both surfaces are merged, ground segments first.
package segment

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
)

// Params mirror the usual mean-shift segmentation controls.
type Params struct {
	// SpectralDetail is the largest Euclidean distance in composite space
	// between a cell and its segment's seed.
	SpectralDetail float64
	// SpatialDetail is accepted for interface parity; RegionGrower does not
	// use it.
	SpatialDetail float64
	// MinSegmentSize is the smallest segment, in cells, kept on its own.
	MinSegmentSize int
}

// Input is everything a segmenter receives for one zone.
type Input struct {
	Zone            string
	Composite       *raster.Stack
	Height          *raster.Grid
	GroundThreshold float64
	Params          Params
}

// Segmenter produces the initial object collection for a zone.
type Segmenter interface {
	Segment(ctx context.Context, in Input) (objects.Collection, error)
}

// SurfaceOf classifies a height value.
func SurfaceOf(height, threshold float64) objects.Surface {
	if height <= threshold {
		return objects.Ground
	}
	return objects.NonGround
}

// RegionGrower is a 4-connected seeded region grower.
type RegionGrower struct{}

type region struct {
	surface objects.Surface
	cells   []int // row*cols+col
	sum     []float64
}

func (r *region) mean() []float64 {
	m := make([]float64, len(r.sum))
	for i, s := range r.sum {
		m[i] = s / float64(len(r.cells))
	}
	return m
}

func (RegionGrower) Segment(ctx context.Context, in Input) (objects.Collection, error) {
	if in.Composite == nil || in.Height == nil {
		return nil, fmt.Errorf("segment %s: composite and height are required", in.Zone)
	}
	geo := in.Composite.Geometry()
	if !geo.SameShape(in.Height) {
		return nil, fmt.Errorf("segment %s: height: %w", in.Zone, raster.ErrShapeMismatch)
	}
	rows, cols := geo.Rows, geo.Cols
	n := rows * cols

	pixels := make([][]float64, n)
	surface := make([]objects.Surface, n)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			h, ok := in.Height.Valid(r, c)
			if !ok {
				continue
			}
			px, ok := in.Composite.Pixel(r, c, nil)
			if !ok {
				continue
			}
			i := r*cols + c
			pixels[i] = px
			surface[i] = SurfaceOf(h, in.GroundThreshold)
		}
	}

	label := make([]int, n)
	for i := range label {
		label[i] = -1
	}
	var regions []*region
	queue := make([]int, 0, 64)
	for seed := 0; seed < n; seed++ {
		if pixels[seed] == nil || label[seed] >= 0 {
			continue
		}
		if seed%cols == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		id := len(regions)
		reg := &region{surface: surface[seed], sum: make([]float64, len(pixels[seed]))}
		regions = append(regions, reg)
		label[seed] = id
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			reg.cells = append(reg.cells, cur)
			for k, v := range pixels[cur] {
				reg.sum[k] += v
			}
			for _, nb := range neighbours(cur, rows, cols) {
				if pixels[nb] == nil || label[nb] >= 0 || surface[nb] != reg.surface {
					continue
				}
				if distance(pixels[nb], pixels[seed]) > in.Params.SpectralDetail {
					continue
				}
				label[nb] = id
				queue = append(queue, nb)
			}
		}
	}

	mergeSmall(regions, label, rows, cols, in.Params.MinSegmentSize)

	var out objects.Collection
	for _, s := range []objects.Surface{objects.Ground, objects.NonGround} {
		for _, reg := range regions {
			if reg.surface != s || len(reg.cells) == 0 {
				continue
			}
			out = append(out, &objects.Object{
				Zone:      in.Zone,
				Surface:   reg.surface,
				Footprint: footprint(geo, reg.cells),
			})
		}
	}
	out.Rekey()
	return out, nil
}

// mergeSmall folds regions below minSize into the adjacent same-surface
// region with the closest mean. Regions with no such neighbour stay.
func mergeSmall(regions []*region, label []int, rows, cols, minSize int) {
	if minSize <= 1 {
		return
	}
	for id, reg := range regions {
		if len(reg.cells) == 0 || len(reg.cells) >= minSize {
			continue
		}
		target, best := -1, math.Inf(1)
		m := reg.mean()
		for _, cell := range reg.cells {
			for _, nb := range neighbours(cell, rows, cols) {
				other := label[nb]
				if other < 0 || other == id || regions[other].surface != reg.surface || len(regions[other].cells) == 0 {
					continue
				}
				if d := distance(m, regions[other].mean()); d < best || (d == best && other < target) {
					target, best = other, d
				}
			}
		}
		if target < 0 {
			continue
		}
		dst := regions[target]
		for _, cell := range reg.cells {
			label[cell] = target
		}
		dst.cells = append(dst.cells, reg.cells...)
		for k, v := range reg.sum {
			dst.sum[k] += v
		}
		reg.cells, reg.sum = nil, make([]float64, len(reg.sum))
	}
}

func neighbours(i, rows, cols int) []int {
	r, c := i/cols, i%cols
	out := make([]int, 0, 4)
	if r > 0 {
		out = append(out, i-cols)
	}
	if c > 0 {
		out = append(out, i-1)
	}
	if c < cols-1 {
		out = append(out, i+1)
	}
	if r < rows-1 {
		out = append(out, i+cols)
	}
	return out
}

func distance(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// footprint builds one rectangle per horizontal run of cells.
func footprint(g *raster.Grid, cells []int) orb.MultiPolygon {
	byRow := make(map[int][]int)
	minRow, maxRow := g.Rows, -1
	for _, i := range cells {
		r := i / g.Cols
		byRow[r] = append(byRow[r], i%g.Cols)
		minRow, maxRow = min(minRow, r), max(maxRow, r)
	}
	var mp orb.MultiPolygon
	for r := minRow; r <= maxRow; r++ {
		cs := byRow[r]
		if len(cs) == 0 {
			continue
		}
		sort.Ints(cs)
		start := cs[0]
		for k := 1; k <= len(cs); k++ {
			if k < len(cs) && cs[k] == cs[k-1]+1 {
				continue
			}
			left := g.CellBound(r, start)
			right := g.CellBound(r, cs[k-1])
			mp = append(mp, orb.Polygon{{
				{left.Min[0], left.Min[1]},
				{right.Max[0], left.Min[1]},
				{right.Max[0], left.Max[1]},
				{left.Min[0], left.Max[1]},
				{left.Min[0], left.Min[1]},
			}})
			if k < len(cs) {
				start = cs[k]
			}
		}
	}
	return mp
}
