package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/enhance"
	"github.com/banshee-data/genburn/internal/export"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/testutil"
)

func writeGrid(t *testing.T, fsys fsutil.FileSystem, path string, g *raster.Grid) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, raster.WriteASCII(&buf, g))
	require.NoError(t, fsys.WriteFile(path, buf.Bytes(), 0o644))
}

func writeScene(t *testing.T, fsys fsutil.FileSystem, dir string, z *objects.Zone) {
	t.Helper()
	writeGrid(t, fsys, filepath.Join(dir, BlueFile), z.Bands.Blue)
	writeGrid(t, fsys, filepath.Join(dir, GreenFile), z.Bands.Green)
	writeGrid(t, fsys, filepath.Join(dir, RedFile), z.Bands.Red)
	writeGrid(t, fsys, filepath.Join(dir, NIRFile), z.Bands.NIR)
	writeGrid(t, fsys, filepath.Join(dir, HeightFile), z.Height)
}

func TestLoadScene(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	z := fixtureZone(t, "ignored", false)
	writeScene(t, fsys, "/scene", z)

	sc, err := LoadScene(fsys, "/scene")
	require.NoError(t, err)
	assert.Equal(t, SceneID, sc.Zone.ID)
	assert.Nil(t, sc.DEM)
	assert.Empty(t, sc.Zone.Objects)
	assert.Equal(t, z.Bands.NIR.Data, sc.Zone.Bands.NIR.Data)
	assert.True(t, sc.Zone.Height.SameShape(z.Height))
	_, ok := sc.Zone.Height.Valid(2, 2)
	assert.False(t, ok, "nodata height survives the round trip")
}

func TestLoadScene_DEMAndObjects(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	z := fixtureZone(t, "ignored", true)
	writeScene(t, fsys, "/scene", z)
	writeGrid(t, fsys, "/scene/"+DEMFile, testutil.Filled(4, 6, 1900))

	z.Objects[0].Label = objects.Tree
	z.Objects[0].SetBurn("fli", 3)
	require.NoError(t, export.WriteFile(fsys, "/scene/"+ObjectsFile, z.Objects))

	sc, err := LoadScene(fsys, "/scene")
	require.NoError(t, err)
	require.NotNil(t, sc.DEM)
	assert.Equal(t, 1900.0, sc.DEM.At(0, 0))

	require.Len(t, sc.Zone.Objects, 5)
	for _, o := range sc.Zone.Objects {
		assert.Equal(t, SceneID, o.Zone)
		assert.Equal(t, objects.NoLabel, o.Label)
		assert.Nil(t, o.Burn)
	}
}

func TestLoadScene_DropsInputFeatures(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	z := fixtureZone(t, "ignored", true)
	writeScene(t, fsys, "/scene", z)
	// Key 5 covers only nodata height; a stale value must not survive.
	z.Objects[4].SetFeature(enhance.Height, 5)
	z.Objects[0].SetFeature(enhance.NDVI, -1)
	require.NoError(t, export.WriteFile(fsys, "/scene/"+ObjectsFile, z.Objects))

	sc, err := LoadScene(fsys, "/scene")
	require.NoError(t, err)
	for _, o := range sc.Zone.Objects {
		assert.Empty(t, o.Features, "object %d", o.JoinKey)
	}

	zr, err := newRunner(t, nil).ClassifyZone(context.Background(), sc.Zone)
	require.NoError(t, err)
	stale := zr.Objects.ByKey()[5]
	_, ok := stale.Feature(enhance.Height)
	assert.False(t, ok)
	assert.Equal(t, objects.NoLabel, stale.Label)
	assert.Equal(t, objects.Impervious, stale.Primitive)
	require.Len(t, zr.Unresolved(), 1)
	assert.Equal(t, 5, zr.Unresolved()[0].JoinKey)
	assert.Equal(t, objects.Tree, zr.Objects.ByKey()[1].Label)
}

func TestLoadScene_RekeysMergedZones(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	z := fixtureZone(t, "ignored", true)
	writeScene(t, fsys, "/scene", z)
	// Two tiles of a previous run, both keyed from 1.
	z.Objects[0].Zone, z.Objects[1].Zone = "zone_0", "zone_0"
	z.Objects[2].Zone, z.Objects[3].Zone = "zone_1", "zone_1"
	z.Objects[2].JoinKey, z.Objects[3].JoinKey = 1, 2
	z.Objects = z.Objects[:4]
	require.NoError(t, export.WriteFile(fsys, "/scene/"+ObjectsFile, z.Objects))

	sc, err := LoadScene(fsys, "/scene")
	require.NoError(t, err)
	require.NoError(t, sc.Zone.Objects.ValidateKeys())
	assert.Equal(t, []int{1, 2, 3, 4}, sc.Zone.Objects.Keys())
}

func TestLoadScene_Errors(t *testing.T) {
	t.Run("missing band", func(t *testing.T) {
		fsys := fsutil.NewMemoryFileSystem()
		z := fixtureZone(t, "z", false)
		writeScene(t, fsys, "/scene", z)
		require.NoError(t, fsys.RemoveAll("/scene/"+NIRFile))
		_, err := LoadScene(fsys, "/scene")
		assert.Error(t, err)
	})
	t.Run("shape mismatch", func(t *testing.T) {
		fsys := fsutil.NewMemoryFileSystem()
		z := fixtureZone(t, "z", false)
		z.Height = testutil.Filled(2, 2, 1)
		writeScene(t, fsys, "/scene", z)
		_, err := LoadScene(fsys, "/scene")
		assert.ErrorIs(t, err, raster.ErrShapeMismatch)
	})
	t.Run("bad objects", func(t *testing.T) {
		fsys := fsutil.NewMemoryFileSystem()
		writeScene(t, fsys, "/scene", fixtureZone(t, "z", false))
		require.NoError(t, fsys.WriteFile("/scene/"+ObjectsFile, []byte("{"), 0o644))
		_, err := LoadScene(fsys, "/scene")
		assert.Error(t, err)
	})
}
