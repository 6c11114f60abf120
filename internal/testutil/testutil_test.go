package testutil

import (
	"testing"

	"github.com/paulmach/orb/planar"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestCellBlockCoversCellCenters(t *testing.T) {
	g := Filled(4, 4, 1)
	fp := CellBlock(1, 1, 2, 3)

	inside := 0
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if planar.MultiPolygonContains(fp, g.CellCenter(r, c)) {
				inside++
				if r < 1 || r > 2 || c < 1 {
					t.Errorf("cell (%d,%d) unexpectedly inside", r, c)
				}
			}
		}
	}
	if inside != 6 {
		t.Errorf("inside = %d, want 6", inside)
	}
}

func TestGridFixture(t *testing.T) {
	g := Grid(t, [][]float64{{1, 2}, {3, 4}})
	if g.At(1, 0) != 3 {
		t.Errorf("At(1,0) = %v", g.At(1, 0))
	}
	o := WithFeatures(Object(3, 0, 0, 0, 0), map[string]float64{"ndvi": 0.5})
	if v, ok := o.Feature("ndvi"); !ok || v != 0.5 {
		t.Errorf("feature = %v, %v", v, ok)
	}
}
