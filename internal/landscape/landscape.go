// Package landscape builds the raster stack the fire simulator consumes:
// elevation, slope and aspect from the DEM, and fuel, canopy and stand
// layers rasterised from the fuel-coded objects.
package landscape

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/fuel"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/zonal"
)

// Layer names, also the ASCII grid file stems.
const (
	Elevation = "elevation"
	Slope     = "slope"
	Aspect    = "aspect"
	Fuel      = "fuel"
	Canopy    = "canopy"
	Stand     = "stand"
)

// Layers lists the stack in file order.
var Layers = []string{Elevation, Slope, Aspect, Fuel, Canopy, Stand}

// FlatAspect marks cells with no slope.
const FlatAspect = -1.0

// Stack is the simulator input.
type Stack struct {
	Layers map[string]*raster.Grid
}

// Rasterize burns value(o) into every cell of template whose center falls
// inside o's footprint. Later objects overwrite earlier ones. Cells no
// object covers hold fill.
func Rasterize(objs objects.Collection, template *raster.Grid, fill float64, value func(*objects.Object) (float64, bool)) *raster.Grid {
	out := template.Empty()
	for i := range out.Data {
		out.Data[i] = fill
	}
	for _, o := range objs {
		v, ok := value(o)
		if !ok {
			continue
		}
		for _, c := range zonal.Cells(o.Footprint, out) {
			out.Set(c.Row, c.Col, v)
		}
	}
	return out
}

// SlopeAspect derives slope (degrees) and aspect (degrees clockwise from
// north, FlatAspect when flat) from dem with Horn's 3×3 method. Edges
// reuse the nearest valid neighbour.
func SlopeAspect(dem *raster.Grid) (slope, aspect *raster.Grid) {
	slope, aspect = dem.Empty(), dem.Empty()
	at := func(r, c int, center float64) float64 {
		r = min(max(r, 0), dem.Rows-1)
		c = min(max(c, 0), dem.Cols-1)
		if v, ok := dem.Valid(r, c); ok {
			return v
		}
		return center
	}
	cs := dem.CellSize
	for r := 0; r < dem.Rows; r++ {
		for c := 0; c < dem.Cols; c++ {
			e, ok := dem.Valid(r, c)
			if !ok {
				continue
			}
			a, b, cc := at(r-1, c-1, e), at(r-1, c, e), at(r-1, c+1, e)
			d, f := at(r, c-1, e), at(r, c+1, e)
			g, h, i := at(r+1, c-1, e), at(r+1, c, e), at(r+1, c+1, e)

			dx := ((cc + 2*f + i) - (a + 2*d + g)) / (8 * cs)
			dy := ((g + 2*h + i) - (a + 2*b + cc)) / (8 * cs)

			slope.Set(r, c, math.Atan(math.Hypot(dx, dy))*180/math.Pi)
			if dx == 0 && dy == 0 {
				aspect.Set(r, c, FlatAspect)
				continue
			}
			deg := math.Atan2(dy, -dx) * 180 / math.Pi
			switch {
			case deg < 0:
				deg = 90 - deg
			case deg > 90:
				deg = 450 - deg
			default:
				deg = 90 - deg
			}
			aspect.Set(r, c, deg)
		}
	}
	return slope, aspect
}

// Build assembles the stack on the DEM's grid. Uncovered cells are
// non-burnable with no canopy.
func Build(dem *raster.Grid, objs objects.Collection) (*Stack, error) {
	if err := dem.Validate(); err != nil {
		return nil, fmt.Errorf("landscape: dem: %w", err)
	}
	slope, aspect := SlopeAspect(dem)
	fueled := func(get func(*objects.Object) float64) func(*objects.Object) (float64, bool) {
		return func(o *objects.Object) (float64, bool) {
			if !o.Fueled {
				return 0, false
			}
			return get(o), true
		}
	}
	return &Stack{Layers: map[string]*raster.Grid{
		Elevation: dem,
		Slope:     slope,
		Aspect:    aspect,
		Fuel:      Rasterize(objs, dem, fuel.NonBurnable, fueled(func(o *objects.Object) float64 { return float64(o.FuelCode) })),
		Canopy:    Rasterize(objs, dem, 0, fueled(func(o *objects.Object) float64 { return float64(o.CanopyCode) })),
		Stand:     Rasterize(objs, dem, 0, fueled(func(o *objects.Object) float64 { return o.StandHeight })),
	}}, nil
}

// Write stores every layer as "<layer>.asc" under dir.
func (s *Stack) Write(fsys fsutil.FileSystem, dir string) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range Layers {
		g, ok := s.Layers[name]
		if !ok {
			return fmt.Errorf("landscape: layer %s missing", name)
		}
		w, err := fsys.Create(filepath.Join(dir, name+".asc"))
		if err != nil {
			return err
		}
		if err := raster.WriteASCII(w, g); err != nil {
			w.Close()
			return fmt.Errorf("landscape: %s: %w", name, err)
		}
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
