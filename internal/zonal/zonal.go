// Package zonal computes per-object statistics of a raster over object
// footprints and joins them back onto objects by join key.
//
// A cell belongs to a footprint when its center falls inside it. No-data
// cells are ignored; an object with no valid cells is absent from the
// resulting Table, and callers treat absence as missing, never as zero.
package zonal

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
)

// Statistic selects the aggregate computed over a footprint.
type Statistic string

const (
	Mean     Statistic = "MEAN"
	Majority Statistic = "MAJORITY"
	Maximum  Statistic = "MAXIMUM"
	Count    Statistic = "COUNT"
)

// ParseStatistic validates s.
func ParseStatistic(s string) (Statistic, error) {
	switch st := Statistic(s); st {
	case Mean, Majority, Maximum, Count:
		return st, nil
	default:
		return "", fmt.Errorf("unknown zonal statistic %q", s)
	}
}

// Table maps join keys to a statistic value.
type Table map[int]float64

// Cell addresses one raster cell.
type Cell struct{ Row, Col int }

// Cells returns the cells of g whose centers fall inside fp.
func Cells(fp orb.MultiPolygon, g *raster.Grid) []Cell {
	if len(fp) == 0 {
		return nil
	}
	b := fp.Bound()
	if !b.Intersects(g.Bound()) {
		return nil
	}
	var cells []Cell
	r0, r1, c0, c1 := g.CellRange(b)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			p := g.CellCenter(r, c)
			if b.Contains(p) && planar.MultiPolygonContains(fp, p) {
				cells = append(cells, Cell{Row: r, Col: c})
			}
		}
	}
	return cells
}

// Values returns the valid raster values whose cell centers fall inside fp.
func Values(fp orb.MultiPolygon, g *raster.Grid) []float64 {
	var vals []float64
	for _, c := range Cells(fp, g) {
		if v, ok := g.Valid(c.Row, c.Col); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

// Reduce applies st to vals. ok is false when vals is empty.
func Reduce(vals []float64, st Statistic) (v float64, ok bool, err error) {
	if len(vals) == 0 {
		return 0, false, nil
	}
	switch st {
	case Mean:
		return stat.Mean(vals, nil), true, nil
	case Maximum:
		return floats.Max(vals), true, nil
	case Count:
		return float64(len(vals)), true, nil
	case Majority:
		return majority(vals), true, nil
	default:
		return 0, false, fmt.Errorf("unknown zonal statistic %q", st)
	}
}

// majority returns the most frequent value; ties go to the smallest value.
func majority(vals []float64) float64 {
	counts := make(map[float64]int, 8)
	for _, v := range vals {
		counts[v]++
	}
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	best, bestN := math.NaN(), 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

// Aggregate computes st of g over every object's footprint.
func Aggregate(objs objects.Collection, g *raster.Grid, st Statistic) (Table, error) {
	if g == nil {
		return nil, fmt.Errorf("zonal %s: nil raster", st)
	}
	if _, err := ParseStatistic(string(st)); err != nil {
		return nil, err
	}
	out := make(Table, len(objs))
	for _, o := range objs {
		v, ok, err := Reduce(Values(o.Footprint, g), st)
		if err != nil {
			return nil, err
		}
		if ok {
			out[o.JoinKey] = v
		}
	}
	return out, nil
}

// Join writes table values onto objects as attr. Objects whose key is
// absent keep whatever value they had (unset if never joined). It returns
// the number of objects updated.
func Join(objs objects.Collection, t Table, attr string) int {
	n := 0
	for _, o := range objs {
		if v, ok := t[o.JoinKey]; ok {
			o.SetFeature(attr, v)
			n++
		}
	}
	return n
}

// AggregateJoin runs Aggregate then Join and returns the join keys that
// received no value.
func AggregateJoin(objs objects.Collection, g *raster.Grid, st Statistic, attr string) ([]int, error) {
	t, err := Aggregate(objs, g, st)
	if err != nil {
		return nil, err
	}
	Join(objs, t, attr)
	var missing []int
	for _, o := range objs {
		if _, ok := t[o.JoinKey]; !ok {
			missing = append(missing, o.JoinKey)
		}
	}
	return missing, nil
}
