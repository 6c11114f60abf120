package landscape

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/testutil"
)

func TestSlopeAspect_Planes(t *testing.T) {
	east := testutil.Grid(t, [][]float64{{0, 1, 2}, {0, 1, 2}, {0, 1, 2}})
	s, a := SlopeAspect(east)
	assert.InDelta(t, 45, s.At(1, 1), 1e-9)
	assert.InDelta(t, 270, a.At(1, 1), 1e-9, "rising east faces west")

	north := testutil.Grid(t, [][]float64{{2, 2, 2}, {1, 1, 1}, {0, 0, 0}})
	s, a = SlopeAspect(north)
	assert.InDelta(t, 45, s.At(1, 1), 1e-9)
	assert.InDelta(t, 180, a.At(1, 1), 1e-9, "rising north faces south")

	flat := testutil.Filled(3, 3, 5)
	s, a = SlopeAspect(flat)
	assert.Equal(t, 0.0, s.At(1, 1))
	assert.Equal(t, FlatAspect, a.At(0, 0))
}

func TestSlopeAspect_NoDataStaysNoData(t *testing.T) {
	dem := testutil.Grid(t, [][]float64{{1, raster.DefaultNoData}, {1, 1}})
	s, a := SlopeAspect(dem)
	assert.True(t, s.IsNoData(s.At(0, 1)))
	assert.True(t, a.IsNoData(a.At(0, 1)))
	assert.Equal(t, 0.0, s.At(0, 0))
}

func TestRasterize(t *testing.T) {
	tmpl := testutil.Filled(2, 3, 0)
	a := testutil.Object(1, 0, 0, 1, 1)
	b := testutil.Object(2, 0, 1, 0, 2)
	a.FuelCode, b.FuelCode = 10, 1

	g := Rasterize(objects.Collection{a, b}, tmpl, 99, func(o *objects.Object) (float64, bool) {
		return float64(o.FuelCode), true
	})
	assert.Equal(t, []float64{10, 1, 1, 10, 10, 99}, g.Data)
}

func TestBuildAndWrite(t *testing.T) {
	dem := testutil.Filled(2, 2, 100)
	tree := testutil.Object(1, 0, 0, 0, 1)
	tree.Fueled, tree.FuelCode, tree.CanopyCode, tree.StandHeight = true, 10, 50, 12
	pending := testutil.Object(2, 1, 0, 1, 1)

	st, err := Build(dem, objects.Collection{tree, pending})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 99, 99}, st.Layers[Fuel].Data)
	assert.Equal(t, []float64{50, 50, 0, 0}, st.Layers[Canopy].Data)
	assert.Equal(t, []float64{12, 12, 0, 0}, st.Layers[Stand].Data)

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, st.Write(fsys, "/proj/Outputs/landscape"))
	for _, l := range Layers {
		assert.True(t, fsys.Exists(filepath.Join("/proj/Outputs/landscape", l+".asc")), l)
	}

	delete(st.Layers, Stand)
	assert.Error(t, st.Write(fsys, "/x"))

	_, err = Build(&raster.Grid{}, nil)
	assert.Error(t, err)
}
