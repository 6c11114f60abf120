package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/burn"
	"github.com/banshee-data/genburn/internal/confusion"
	"github.com/banshee-data/genburn/internal/enhance"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/scratch"
	"github.com/banshee-data/genburn/internal/segment"
	"github.com/banshee-data/genburn/internal/svm"
	"github.com/banshee-data/genburn/internal/testutil"
	"github.com/banshee-data/genburn/internal/timeutil"
)

// Pixel spectra as (green, red, nir). Vegetation votes V=4, impervious
// I=4, and mixed ties at V=3 I=3 once osavi is normalised over the zone.
var (
	vegPixel = [3]float64{0.2, 0.1, 0.5}
	impPixel = [3]float64{0.3, 0.3, 0.3}
	tiePixel = [3]float64{0.35, 0.41, 0.5}
)

const nd = raster.DefaultNoData

// Zone layout, 2×2 cell blocks:
//
//	key 1 tree     | key 2 grass | key 3 path
//	key 4 tie      | key 5 imp, no height | unsegmented shrub
func fixtureZone(t *testing.T, id string, withObjects bool) *objects.Zone {
	t.Helper()
	spectra := [][][3]float64{
		{vegPixel, vegPixel, vegPixel, vegPixel, impPixel, impPixel},
		{vegPixel, vegPixel, vegPixel, vegPixel, impPixel, impPixel},
		{tiePixel, tiePixel, impPixel, impPixel, vegPixel, vegPixel},
		{tiePixel, tiePixel, impPixel, impPixel, vegPixel, vegPixel},
	}
	height := [][]float64{
		{5, 5, 0.1, 0.1, 0, 0},
		{5, 5, 0.1, 0.1, 0, 0},
		{0.2, 0.2, nd, nd, 1, 1},
		{0.2, 0.2, nd, nd, 1, 1},
	}
	band := func(i int) *raster.Grid {
		rows := make([][]float64, len(spectra))
		for r, row := range spectra {
			rows[r] = make([]float64, len(row))
			for c, px := range row {
				rows[r][c] = px[i]
			}
		}
		return testutil.Grid(t, rows)
	}
	z := &objects.Zone{
		ID:     id,
		Bands:  objects.Bands{Blue: testutil.Filled(4, 6, 0.1), Green: band(0), Red: band(1), NIR: band(2)},
		Height: testutil.Grid(t, height),
	}
	if withObjects {
		z.Objects = objects.Collection{
			testutil.Object(1, 0, 0, 1, 1),
			testutil.Object(2, 0, 2, 1, 3),
			testutil.Object(3, 0, 4, 1, 5),
			testutil.Object(4, 2, 0, 3, 1),
			testutil.Object(5, 2, 2, 3, 3),
		}
		for _, o := range z.Objects {
			o.Zone = id
		}
	}
	return z
}

func testConfig() Config {
	return Config{
		Region:             "Tahoe",
		UnitSystem:         "Meters",
		FuelModel:          "Anderson-13",
		CoarseningSize:     2,
		Segment:            segment.Params{SpectralDetail: 0.05, MinSegmentSize: 1},
		MaxSamplesPerClass: 100,
		Concurrency:        2,
		Trainer:            svm.LinearSVM{Lambda: 0.05, Epochs: 50, Seed: 7},
	}
}

func newRunner(t *testing.T, seg segment.Segmenter) *Runner {
	t.Helper()
	monitoring.SetLogger(nil)
	r, err := NewRunner(testConfig(), nil, nil, seg, NewProgress(nil))
	require.NoError(t, err)
	return r
}

func TestNewRunner_ConfigErrors(t *testing.T) {
	cfg := testConfig()
	cfg.FuelModel = "Scott-Burgan-40"
	_, err := NewRunner(cfg, nil, nil, nil, nil)
	assert.True(t, apperr.IsConfig(err), "fuel scheme: %v", err)

	cfg = testConfig()
	cfg.Region = "Mars"
	_, err = NewRunner(cfg, nil, nil, nil, nil)
	assert.True(t, apperr.IsConfig(err), "region: %v", err)

	cfg = testConfig()
	cfg.UnitSystem = "ft"
	r, err := NewRunner(cfg, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Anderson-13", r.Scheme())
}

func TestClassifyZone(t *testing.T) {
	r := newRunner(t, nil)
	z := fixtureZone(t, "zone_0", true)

	zr, err := r.ClassifyZone(context.Background(), z)
	require.NoError(t, err)
	byKey := zr.Objects.ByKey()

	assert.Equal(t, objects.Tree, byKey[1].Label)
	assert.Equal(t, objects.Grass, byKey[2].Label)
	assert.Equal(t, objects.Path, byKey[3].Label)

	tie := byKey[4]
	assert.Equal(t, 3, zr.Votes[4].V)
	assert.Equal(t, 3, zr.Votes[4].I)
	assert.Contains(t, []objects.Label{objects.Grass, objects.Shrub, objects.Tree}, tie.Label)
	assert.Equal(t, objects.Vegetation, tie.Primitive)

	assert.Equal(t, objects.NoLabel, byKey[5].Label)
	assert.Equal(t, objects.Impervious, byKey[5].Primitive)
	require.Len(t, zr.Unresolved(), 1)
	assert.Equal(t, 5, zr.Unresolved()[0].JoinKey)
	assert.Equal(t, confusion.ReasonImpervious, zr.Unresolved()[0].Reason)
	assert.Equal(t, 2, zr.Confused)

	h, ok := byKey[1].Feature("height")
	require.True(t, ok)
	assert.InDelta(t, 5.0, h, 1e-9)
}

func TestClassifyZone_ClearsFeaturesWithoutCells(t *testing.T) {
	r := newRunner(t, nil)
	z := fixtureZone(t, "zone_0", true)
	// Key 5 sits over nodata height.
	z.Objects[4].SetFeature(enhance.Height, 5)

	zr, err := r.ClassifyZone(context.Background(), z)
	require.NoError(t, err)
	o := zr.Objects.ByKey()[5]
	_, ok := o.Feature(enhance.Height)
	assert.False(t, ok, "height without valid cells is missing")
	assert.Equal(t, objects.NoLabel, o.Label)
	require.Len(t, zr.Unresolved(), 1)
	assert.Equal(t, 5, zr.Unresolved()[0].JoinKey)
}

func TestClassifyZone_CompositeIsCoarser(t *testing.T) {
	monitoring.SetLogger(nil)
	store := scratch.NewMemoryStore()
	r, err := NewRunner(testConfig(), nil, store, nil, NewProgress(nil))
	require.NoError(t, err)

	_, err = r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", true))
	require.NoError(t, err)

	keys, err := store.Keys("zone_0")
	require.NoError(t, err)
	var coarse []string
	for _, k := range keys {
		if k.Resolution == 2 {
			coarse = append(coarse, k.Layer)
		}
	}
	assert.ElementsMatch(t, enhance.CompositeFeatures, coarse)
}

func TestCoarseningSizeMustExceedCellSize(t *testing.T) {
	monitoring.SetLogger(nil)
	cfg := testConfig()
	cfg.CoarseningSize = 1.4
	r, err := NewRunner(cfg, nil, nil, nil, NewProgress(nil))
	require.NoError(t, err)

	_, err = r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", true))
	assert.True(t, apperr.IsConfig(err), "classify zone: %v", err)

	res, err := r.Run(context.Background(), []*objects.Zone{fixtureZone(t, "zone_0", true)})
	assert.Nil(t, res)
	assert.True(t, apperr.IsConfig(err), "run: %v", err)
}

func TestClassifyZone_SecondPassHitsCache(t *testing.T) {
	r := newRunner(t, nil)
	_, err := r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", true))
	require.NoError(t, err)
	_, misses := r.Engine().Stats()

	_, err = r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", true))
	require.NoError(t, err)
	hits, again := r.Engine().Stats()
	assert.Equal(t, misses, again, "no recomputation")
	assert.Positive(t, hits)
}

func TestClassifyZone_NeedsSegmenter(t *testing.T) {
	r := newRunner(t, nil)
	_, err := r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", false))
	assert.Error(t, err)
}

func TestClassifyZone_Segments(t *testing.T) {
	r := newRunner(t, segment.RegionGrower{})
	zr, err := r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", false))
	require.NoError(t, err)

	require.Len(t, zr.Objects, 5)
	require.NoError(t, zr.Objects.ValidateKeys())
	assert.Empty(t, zr.Unresolved())
	for _, o := range zr.Objects {
		assert.NotEqual(t, objects.NoLabel, o.Label, "object %d", o.JoinKey)
	}
}

type failingSegmenter struct{}

func (failingSegmenter) Segment(context.Context, segment.Input) (objects.Collection, error) {
	return nil, errors.New("license unavailable")
}

func TestClassifyZone_SegmenterFailure(t *testing.T) {
	r := newRunner(t, failingSegmenter{})
	_, err := r.ClassifyZone(context.Background(), fixtureZone(t, "zone_0", false))
	s, ok := apperr.AsService(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, "segmenter", s.Service)
}

func TestRun_MergesZonesAndReportsUnresolved(t *testing.T) {
	r := newRunner(t, nil)
	zones := []*objects.Zone{fixtureZone(t, "zone_0", true), fixtureZone(t, "zone_1", true)}

	res, err := r.Run(context.Background(), zones)
	require.NotNil(t, res)
	u, ok := apperr.AsUnresolved(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, []int{5, 5}, u.JoinKeys())

	require.Len(t, res.Classified, 10)
	assert.Equal(t, "zone_0", res.Classified[0].Zone)
	assert.Equal(t, "zone_1", res.Classified[9].Zone)
	assert.Equal(t, []int{5, 5}, res.Unfueled)

	tree := res.Classified[0]
	assert.True(t, tree.Fueled)
	assert.Equal(t, 10, tree.FuelCode)
	assert.Equal(t, 50, tree.CanopyCode)
	assert.InDelta(t, 5.0, tree.StandHeight, 1e-9)

	path := res.Classified[2]
	assert.Equal(t, 99, path.FuelCode)
	assert.Equal(t, 0, path.CanopyCode)
}

func TestRun_AbortsOnZoneFailure(t *testing.T) {
	r := newRunner(t, nil)
	bad := fixtureZone(t, "zone_1", true)
	bad.Height = testutil.Filled(2, 2, 0)

	_, err := r.Run(context.Background(), []*objects.Zone{fixtureZone(t, "zone_0", true), bad})
	assert.ErrorIs(t, err, raster.ErrShapeMismatch)
}

func TestProgress(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	clock := timeutil.NewMockClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	p := NewProgress(clock)
	assert.Equal(t, 1, p.Step("segmenting %s", "zone_0"))
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, p.Step("classifying"))

	steps := p.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "segmenting zone_0", steps[0].Message)
	assert.Equal(t, 2*time.Second, steps[1].Elapsed)
	assert.Equal(t, 2*time.Second, p.Elapsed())
	assert.Len(t, lines, 2)

	var none *Progress
	assert.Equal(t, 0, none.Step("ignored"))
}

type fakeSimulator struct {
	fli      float64
	gotDir   string
	scenario burn.Scenario
}

func (f *fakeSimulator) Simulate(_ context.Context, landscapeDir string, sc burn.Scenario, _ string) (burn.Outputs, error) {
	f.gotDir, f.scenario = landscapeDir, sc
	return burn.Outputs{
		burn.FLI: testutil.Filled(4, 6, f.fli),
		burn.FML: testutil.Filled(4, 6, 2),
		burn.ROS: testutil.Filled(4, 6, 1),
	}, nil
}

func TestBurn(t *testing.T) {
	r := newRunner(t, nil)
	res, err := r.Run(context.Background(), []*objects.Zone{fixtureZone(t, "zone_0", true)})
	require.NotNil(t, res)
	_, ok := apperr.AsUnresolved(err)
	require.True(t, ok)

	fsys := fsutil.NewMemoryFileSystem()
	sim := &fakeSimulator{fli: 100}
	missing, err := Burn(context.Background(), res.Classified, BurnInput{
		DEM:          testutil.Filled(4, 6, 1500),
		Simulator:    sim,
		Scenario:     burn.DefaultScenario(),
		FS:           fsys,
		LandscapeDir: "/run/landscape",
		OutputDir:    "/run/burn",
	}, NewProgress(nil))
	require.NoError(t, err)
	assert.Empty(t, missing)

	assert.Equal(t, "/run/landscape", sim.gotDir)
	assert.True(t, fsys.Exists("/run/landscape/fuel.asc"))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, res.Classified.Keys())
	for _, o := range res.Classified {
		assert.InDelta(t, 28.8894658, o.Burn[burn.FLI], 1e-9)
		assert.InDelta(t, 2.0, o.Burn[burn.FML], 1e-9)
		assert.InDelta(t, 3.28084, o.Burn[burn.ROS], 1e-9)
	}
}

func TestBurn_NoSimulator(t *testing.T) {
	_, err := Burn(context.Background(), nil, BurnInput{DEM: testutil.Filled(1, 1, 0)}, nil)
	assert.Error(t, err)
}

func TestRemapUnresolved(t *testing.T) {
	a := testutil.Object(4, 0, 0, 0, 0)
	b := testutil.Object(4, 0, 1, 0, 1)
	b.Zone = "zone_1"
	objs := objects.Collection{a, b}
	idx := IndexByZoneKey(objs)
	objs.Rekey()

	report := []apperr.UnresolvedObject{
		{Zone: "zone_1", JoinKey: 4, Branch: "vegetation", Reason: "r"},
		{Zone: "zone_9", JoinKey: 1, Branch: "impervious", Reason: "gone"},
	}
	got := RemapUnresolved(report, idx)
	assert.Equal(t, []apperr.UnresolvedObject{{Zone: "zone_1", JoinKey: 2, Branch: "vegetation", Reason: "r"}}, got)
	assert.Equal(t, 4, report[0].JoinKey, "input report is not modified")
}
