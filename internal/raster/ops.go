package raster

import (
	"fmt"
	"math"
)

// Combine applies fn cell by cell across layers. A cell is nodata in the
// result when any input is nodata there or fn returns NaN or ±Inf.
func Combine(fn func(vals []float64) float64, layers ...*Grid) (*Grid, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("raster: combine needs at least one layer")
	}
	first := layers[0]
	for _, l := range layers[1:] {
		if !first.SameShape(l) {
			return nil, ErrShapeMismatch
		}
	}
	out := New(first.Rows, first.Cols, first.OriginX, first.OriginY, first.CellSize)
	vals := make([]float64, len(layers))
cells:
	for i := range out.Data {
		for j, l := range layers {
			v := l.Data[i]
			if l.IsNoData(v) {
				continue cells
			}
			vals[j] = v
		}
		r := fn(vals)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out.Data[i] = r
	}
	return out, nil
}

// Aggregation selects how Coarsen folds a block of cells.
type Aggregation int

const (
	AggMean Aggregation = iota
	AggMax
)

func (a Aggregation) String() string {
	switch a {
	case AggMean:
		return "mean"
	case AggMax:
		return "max"
	default:
		return fmt.Sprintf("Aggregation(%d)", int(a))
	}
}

// Coarsen resamples g onto cells factor times larger. Partial blocks at the
// right and bottom edges are kept. Blocks with no data become nodata.
func (g *Grid) Coarsen(factor int, agg Aggregation) (*Grid, error) {
	if factor < 1 {
		return nil, fmt.Errorf("raster: coarsen factor must be >= 1, got %d", factor)
	}
	if factor == 1 {
		return g.Clone(), nil
	}
	rows := (g.Rows + factor - 1) / factor
	cols := (g.Cols + factor - 1) / factor
	out := New(rows, cols, g.OriginX, g.OriginY, g.CellSize*float64(factor))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum, n := 0.0, 0
			hi := math.Inf(-1)
			for dr := 0; dr < factor; dr++ {
				for dc := 0; dc < factor; dc++ {
					rr, cc := r*factor+dr, c*factor+dc
					if !g.InBounds(rr, cc) {
						continue
					}
					v, ok := g.Valid(rr, cc)
					if !ok {
						continue
					}
					sum += v
					n++
					hi = math.Max(hi, v)
				}
			}
			if n == 0 {
				continue
			}
			if agg == AggMax {
				out.Set(r, c, hi)
			} else {
				out.Set(r, c, sum/float64(n))
			}
		}
	}
	return out, nil
}

// FactorFor returns the integer coarsening factor that takes cellSize to
// target, rounding to the nearest whole factor.
func FactorFor(cellSize, target float64) int {
	if cellSize <= 0 || target <= cellSize {
		return 1
	}
	return int(math.Round(target / cellSize))
}

// Window copies the sub-grid starting at (row, col) with the given size,
// clamped to the grid.
func (g *Grid) Window(row, col, rows, cols int) (*Grid, error) {
	if !g.InBounds(row, col) || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("raster: window (%d,%d %dx%d) outside %dx%d grid", row, col, rows, cols, g.Rows, g.Cols)
	}
	rows = min(rows, g.Rows-row)
	cols = min(cols, g.Cols-col)
	out := New(rows, cols,
		g.OriginX+float64(col)*g.CellSize,
		g.OriginY-float64(row)*g.CellSize,
		g.CellSize)
	out.NoData = g.NoData
	for r := 0; r < rows; r++ {
		copy(out.Data[r*cols:(r+1)*cols], g.Data[(row+r)*g.Cols+col:(row+r)*g.Cols+col+cols])
	}
	return out, nil
}

// Tile addresses one window of a tiled grid.
type Tile struct {
	Index int
	Row   int
	Col   int
	Rows  int
	Cols  int
}

// Tiles splits the grid into size×size windows in row-major order. Edge
// tiles are smaller when the grid does not divide evenly.
func (g *Grid) Tiles(size int) []Tile {
	if size <= 0 {
		size = max(g.Rows, g.Cols)
	}
	var tiles []Tile
	for r := 0; r < g.Rows; r += size {
		for c := 0; c < g.Cols; c += size {
			tiles = append(tiles, Tile{
				Index: len(tiles),
				Row:   r,
				Col:   c,
				Rows:  min(size, g.Rows-r),
				Cols:  min(size, g.Cols-c),
			})
		}
	}
	return tiles
}

// Stack is a set of co-registered named bands.
type Stack struct {
	Names []string
	Bands []*Grid
}

// NewStack checks that every band shares the first band's geometry.
func NewStack(names []string, bands []*Grid) (*Stack, error) {
	if len(names) != len(bands) || len(bands) == 0 {
		return nil, fmt.Errorf("raster: stack needs matching names and bands (got %d names, %d bands)", len(names), len(bands))
	}
	for _, b := range bands[1:] {
		if !bands[0].SameShape(b) {
			return nil, ErrShapeMismatch
		}
	}
	return &Stack{Names: names, Bands: bands}, nil
}

// Geometry returns the first band, whose geometry every band shares.
func (s *Stack) Geometry() *Grid { return s.Bands[0] }

// Pixel returns the band values at (row, col). ok is false when any band is
// nodata there.
func (s *Stack) Pixel(row, col int, dst []float64) ([]float64, bool) {
	dst = dst[:0]
	for _, b := range s.Bands {
		v, ok := b.Valid(row, col)
		if !ok {
			return dst, false
		}
		dst = append(dst, v)
	}
	return dst, true
}
