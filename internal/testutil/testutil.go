// Package testutil provides shared test utilities and fixtures.
//
// Fixtures build small rasters and square object footprints on a unit grid
// whose upper-left corner is the origin of the scene, so a footprint drawn
// over cells (r0..r1, c0..c1) covers exactly those cell centers.
package testutil

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
)

// OriginX and OriginY locate the upper-left corner of fixture grids.
const (
	OriginX = 0.0
	OriginY = 100.0
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Grid builds a unit-cell fixture grid from row-major values.
func Grid(t testing.TB, rows [][]float64) *raster.Grid {
	t.Helper()
	g, err := raster.FromRows(OriginX, OriginY, 1, rows)
	AssertNoError(t, err)
	return g
}

// Filled builds a rows×cols unit-cell grid holding v everywhere.
func Filled(rows, cols int, v float64) *raster.Grid {
	g := raster.New(rows, cols, OriginX, OriginY, 1)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// CellBlock returns the footprint covering cells r0..r1 × c0..c1 inclusive
// on a unit-cell fixture grid.
func CellBlock(r0, c0, r1, c1 int) orb.MultiPolygon {
	minX := OriginX + float64(c0)
	maxX := OriginX + float64(c1+1)
	maxY := OriginY - float64(r0)
	minY := OriginY - float64(r1+1)
	return orb.MultiPolygon{{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

// Object returns an object with the given key covering the cell block.
func Object(key, r0, c0, r1, c1 int) *objects.Object {
	return &objects.Object{
		JoinKey:   key,
		Zone:      "zone_0",
		Surface:   objects.NonGround,
		Footprint: CellBlock(r0, c0, r1, c1),
	}
}

// WithFeatures returns o after setting every feature in fs.
func WithFeatures(o *objects.Object, fs map[string]float64) *objects.Object {
	for k, v := range fs {
		o.SetFeature(k, v)
	}
	return o
}
