package enhance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/scratch"
	"github.com/banshee-data/genburn/internal/testutil"
)

func zone(t *testing.T) *objects.Zone {
	return &objects.Zone{
		ID: "zone_0",
		Bands: objects.Bands{
			Blue:  testutil.Grid(t, [][]float64{{10, 10}, {10, 10}}),
			Green: testutil.Grid(t, [][]float64{{20, 30}, {40, 0}}),
			Red:   testutil.Grid(t, [][]float64{{10, 20}, {30, 0}}),
			NIR:   testutil.Grid(t, [][]float64{{30, 20}, {10, 0}}),
		},
		Height: testutil.Grid(t, [][]float64{{0.1, 2}, {9, 4}}),
	}
}

func TestCompute_Indices(t *testing.T) {
	z := zone(t)

	ndvi, err := Compute(NDVI, z.Bands, z.Height)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ndvi.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, ndvi.At(0, 1), 1e-12)
	assert.InDelta(t, -0.5, ndvi.At(1, 0), 1e-12)
	assert.True(t, ndvi.IsNoData(ndvi.At(1, 1)), "0/0 must be nodata")

	ndwi, err := Compute(NDWI, z.Bands, z.Height)
	require.NoError(t, err)
	assert.InDelta(t, (20.0-30)/(20+30), ndwi.At(0, 0), 1e-12)

	gndvi, err := Compute(GNDVI, z.Bands, z.Height)
	require.NoError(t, err)
	assert.InDelta(t, (30.0-20)/(30+20), gndvi.At(0, 0), 1e-12)

	h, err := Compute(Height, z.Bands, z.Height)
	require.NoError(t, err)
	assert.Same(t, z.Height, h, "height passes through unchanged")

	_, err = Compute("evi", z.Bands, z.Height)
	assert.Error(t, err)
}

func TestCompute_OSAVINormalized(t *testing.T) {
	z := zone(t)
	osavi, err := Compute(OSAVI, z.Bands, z.Height)
	require.NoError(t, err)

	raw := func(nir, red float64) float64 { return 1.5 * (nir - red) / (nir + red + 0.16) }
	r00, r01, r10 := raw(30, 10), raw(20, 20), raw(10, 30)
	lo, hi := math.Min(r00, math.Min(r01, r10)), math.Max(r00, math.Max(r01, r10))

	assert.InDelta(t, 1.0, osavi.At(0, 0), 1e-12)
	assert.InDelta(t, -1.0, osavi.At(1, 0), 1e-12)
	assert.InDelta(t, 2*(r01-lo)/(hi-lo)-1, osavi.At(0, 1), 1e-12)
	// nir+red+0.16 is never zero here, so the last cell holds data
	assert.False(t, osavi.IsNoData(osavi.At(1, 1)))
}

func TestNormalize_ConstantBecomesNoData(t *testing.T) {
	g := testutil.Filled(2, 2, 3)
	n := Normalize(g)
	for _, v := range n.Data {
		assert.True(t, n.IsNoData(v))
	}
	empty := raster.New(1, 1, 0, 0, 1)
	assert.Equal(t, empty.Data, Normalize(empty).Data)
}

func TestEngine_CachesByZoneFeatureResolution(t *testing.T) {
	store := scratch.NewMemoryStore()
	e := NewEngine(store)
	z := zone(t)

	first, err := e.Feature(z, NDVI)
	require.NoError(t, err)
	second, err := e.Feature(z, NDVI)
	require.NoError(t, err)
	assert.Same(t, first, second)

	hits, misses := e.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	_, err = store.Get(scratch.Key{Zone: "zone_0", Layer: NDVI, Resolution: 1})
	assert.NoError(t, err)
}

func TestEngine_AllAndComposite(t *testing.T) {
	store := scratch.NewMemoryStore()
	e := NewEngine(store)
	z := zone(t)

	all, err := e.All(z)
	require.NoError(t, err)
	assert.Len(t, all, len(Features))

	stack, err := e.Composite(z, CompositeFeatures, 2)
	require.NoError(t, err)
	assert.Equal(t, CompositeFeatures, stack.Names)
	geo := stack.Geometry()
	assert.Equal(t, 1, geo.Rows)
	assert.Equal(t, 2.0, geo.CellSize)

	height := stack.Bands[2]
	assert.Equal(t, 9.0, height.At(0, 0), "height coarsens by block maximum")
	ndvi := stack.Bands[0]
	assert.InDelta(t, 0.0, ndvi.At(0, 0), 1e-12, "indices coarsen by block mean of valid cells")

	_, misses := e.Stats()
	// five native layers plus three coarse layers, native ones reused
	assert.Equal(t, int64(8), misses)

	keys, err := store.Keys("zone_0")
	require.NoError(t, err)
	assert.Len(t, keys, 8)

	_, err = e.Composite(z, CompositeFeatures, 2)
	require.NoError(t, err)
	_, misses = e.Stats()
	assert.Equal(t, int64(8), misses)
}

func TestEngine_ZonesDoNotShareKeys(t *testing.T) {
	store := scratch.NewMemoryStore()
	e := NewEngine(store)
	a, b := zone(t), zone(t)
	b.ID = "zone_1"
	b.Bands.NIR = testutil.Grid(t, [][]float64{{50, 50}, {50, 50}})

	ga, err := e.Feature(a, NDVI)
	require.NoError(t, err)
	gb, err := e.Feature(b, NDVI)
	require.NoError(t, err)
	assert.NotEqual(t, ga.Data, gb.Data)
}
