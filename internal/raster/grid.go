package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// DefaultNoData is the sentinel written for missing cells.
const DefaultNoData = -9999.0

// ErrShapeMismatch is returned when grids that must align do not.
var ErrShapeMismatch = errors.New("raster shape mismatch")

// Grid is a north-up single-band raster.
type Grid struct {
	Rows     int
	Cols     int
	OriginX  float64 // upper-left x
	OriginY  float64 // upper-left y
	CellSize float64
	NoData   float64
	Data     []float64
}

// New allocates a grid filled with nodata.
func New(rows, cols int, originX, originY, cellSize float64) *Grid {
	g := &Grid{
		Rows:     rows,
		Cols:     cols,
		OriginX:  originX,
		OriginY:  originY,
		CellSize: cellSize,
		NoData:   DefaultNoData,
		Data:     make([]float64, rows*cols),
	}
	for i := range g.Data {
		g.Data[i] = DefaultNoData
	}
	return g
}

// FromRows builds a grid from row-major values. All rows must have equal
// length.
func FromRows(originX, originY, cellSize float64, rows [][]float64) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("raster: no rows")
	}
	cols := len(rows[0])
	g := New(len(rows), cols, originX, originY, cellSize)
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("raster: row %d has %d columns, want %d", r, len(row), cols)
		}
		copy(g.Data[r*cols:], row)
	}
	return g, nil
}

// Validate checks the grid's dimensions against its data.
func (g *Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("raster: invalid dimensions %dx%d", g.Rows, g.Cols)
	}
	if g.CellSize <= 0 {
		return fmt.Errorf("raster: cell size must be positive, got %v", g.CellSize)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("raster: %d values for %dx%d grid", len(g.Data), g.Rows, g.Cols)
	}
	return nil
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.Data[row*g.Cols+col] }

// Set stores v at (row, col).
func (g *Grid) Set(row, col int, v float64) { g.Data[row*g.Cols+col] = v }

// InBounds reports whether (row, col) addresses a cell.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// IsNoData reports whether v marks a missing cell. NaN always counts.
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == g.NoData
}

// Valid returns the value at (row, col) and whether it holds data.
func (g *Grid) Valid(row, col int) (float64, bool) {
	v := g.At(row, col)
	return v, !g.IsNoData(v)
}

// CellCenter returns the map coordinate of the center of (row, col).
func (g *Grid) CellCenter(row, col int) orb.Point {
	return orb.Point{
		g.OriginX + (float64(col)+0.5)*g.CellSize,
		g.OriginY - (float64(row)+0.5)*g.CellSize,
	}
}

// CellAt returns the cell containing p, or ok=false when p is outside.
func (g *Grid) CellAt(p orb.Point) (row, col int, ok bool) {
	col = int(math.Floor((p[0] - g.OriginX) / g.CellSize))
	row = int(math.Floor((g.OriginY - p[1]) / g.CellSize))
	return row, col, g.InBounds(row, col)
}

// CellBound returns the square footprint of (row, col).
func (g *Grid) CellBound(row, col int) orb.Bound {
	minX := g.OriginX + float64(col)*g.CellSize
	maxY := g.OriginY - float64(row)*g.CellSize
	return orb.Bound{
		Min: orb.Point{minX, maxY - g.CellSize},
		Max: orb.Point{minX + g.CellSize, maxY},
	}
}

// Bound returns the grid's extent.
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY - float64(g.Rows)*g.CellSize},
		Max: orb.Point{g.OriginX + float64(g.Cols)*g.CellSize, g.OriginY},
	}
}

// CellRange returns the inclusive row/col range of cells whose centers may
// fall inside b, clamped to the grid.
func (g *Grid) CellRange(b orb.Bound) (r0, r1, c0, c1 int) {
	c0 = clamp(int(math.Floor((b.Min[0]-g.OriginX)/g.CellSize-0.5)), 0, g.Cols-1)
	c1 = clamp(int(math.Ceil((b.Max[0]-g.OriginX)/g.CellSize-0.5)), 0, g.Cols-1)
	r0 = clamp(int(math.Floor((g.OriginY-b.Max[1])/g.CellSize-0.5)), 0, g.Rows-1)
	r1 = clamp(int(math.Ceil((g.OriginY-b.Min[1])/g.CellSize-0.5)), 0, g.Rows-1)
	return r0, r1, c0, c1
}

// SameShape reports whether g and o cover the same cells.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols &&
		g.CellSize == o.CellSize && g.OriginX == o.OriginX && g.OriginY == o.OriginY
}

// MinMax returns the smallest and largest data values. ok is false when the
// grid holds no data.
func (g *Grid) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if g.IsNoData(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = append([]float64(nil), g.Data...)
	return &c
}

// Empty returns a nodata grid with g's geometry.
func (g *Grid) Empty() *Grid {
	e := New(g.Rows, g.Cols, g.OriginX, g.OriginY, g.CellSize)
	e.NoData = g.NoData
	if g.NoData != DefaultNoData {
		for i := range e.Data {
			e.Data[i] = g.NoData
		}
	}
	return e
}

// Scale returns a copy with every data cell multiplied by k.
func (g *Grid) Scale(k float64) *Grid {
	out := g.Clone()
	for i, v := range out.Data {
		if !g.IsNoData(v) {
			out.Data[i] = v * k
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
