package segment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/testutil"
	"github.com/banshee-data/genburn/internal/zonal"
)

func input(t *testing.T, ndvi, height [][]float64, p Params) Input {
	t.Helper()
	stack, err := raster.NewStack([]string{"ndvi"}, []*raster.Grid{testutil.Grid(t, ndvi)})
	require.NoError(t, err)
	return Input{
		Zone:            "zone_0",
		Composite:       stack,
		Height:          testutil.Grid(t, height),
		GroundThreshold: 0.6096,
		Params:          p,
	}
}

var splitHeight = [][]float64{
	{0, 0, 5, 5},
	{0, 0, 5, 5},
	{0, 0, 5, 5},
}

func TestSurfaceOf(t *testing.T) {
	assert.Equal(t, objects.Ground, SurfaceOf(0.6096, 0.6096))
	assert.Equal(t, objects.NonGround, SurfaceOf(0.7, 0.6096))
}

func TestRegionGrower_SplitsOnSurface(t *testing.T) {
	in := input(t, [][]float64{
		{0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5},
	}, splitHeight, Params{SpectralDetail: 0.2, MinSegmentSize: 1})

	objs, err := RegionGrower{}.Segment(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	require.NoError(t, objs.ValidateKeys())

	assert.Equal(t, 1, objs[0].JoinKey)
	assert.Equal(t, objects.Ground, objs[0].Surface)
	assert.Equal(t, objects.NonGround, objs[1].Surface)
	for _, o := range objs {
		assert.Equal(t, "zone_0", o.Zone)
		assert.Len(t, o.Footprint, 3, "one run per row")
		assert.Len(t, zonal.Cells(o.Footprint, in.Height), 6)
	}
}

func TestRegionGrower_SpectralDetail(t *testing.T) {
	ndvi := [][]float64{
		{0.1, 0.9, 0.5, 0.5},
		{0.1, 0.9, 0.5, 0.5},
		{0.1, 0.9, 0.5, 0.5},
	}

	objs, err := RegionGrower{}.Segment(context.Background(), input(t, ndvi, splitHeight, Params{SpectralDetail: 0.2, MinSegmentSize: 1}))
	require.NoError(t, err)
	assert.Len(t, objs, 3)

	// Both ground strips fall below the minimum and merge.
	objs, err = RegionGrower{}.Segment(context.Background(), input(t, ndvi, splitHeight, Params{SpectralDetail: 0.2, MinSegmentSize: 4}))
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, objects.Ground, objs[0].Surface)
}

func TestRegionGrower_SkipsNoData(t *testing.T) {
	height := [][]float64{
		{raster.DefaultNoData, 0, 5, 5},
		{0, 0, 5, 5},
		{0, 0, 5, 5},
	}
	in := input(t, [][]float64{
		{0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5},
		{0.5, 0.5, 0.5, 0.5},
	}, height, Params{SpectralDetail: 0.2, MinSegmentSize: 1})

	objs, err := RegionGrower{}.Segment(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Len(t, zonal.Cells(objs[0].Footprint, in.Height), 5)
}

func TestRegionGrower_Errors(t *testing.T) {
	in := input(t, [][]float64{{0.5, 0.5}}, [][]float64{{0, 0}}, Params{})
	in.Height = testutil.Filled(2, 2, 0)
	_, err := RegionGrower{}.Segment(context.Background(), in)
	assert.ErrorIs(t, err, raster.ErrShapeMismatch)

	_, err = RegionGrower{}.Segment(context.Background(), Input{Zone: "z"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RegionGrower{}.Segment(ctx, input(t, [][]float64{{0.5}}, [][]float64{{0}}, Params{}))
	assert.ErrorIs(t, err, context.Canceled)
}
