package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/genburn/internal/export"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
)

// Scene file names. Bands and height are required; the DEM is needed only
// for burning and objects.geojson only when segmentation was done
// elsewhere.
const (
	BlueFile    = "blue.asc"
	GreenFile   = "green.asc"
	RedFile     = "red.asc"
	NIRFile     = "nir.asc"
	HeightFile  = "height.asc"
	DEMFile     = "dem.asc"
	ObjectsFile = "objects.geojson"
)

// SceneID is the zone ID of an untiled scene.
const SceneID = "scene"

// Scene is a study area loaded from disk.
type Scene struct {
	Zone *objects.Zone
	DEM  *raster.Grid // nil when dem.asc is absent
}

// LoadScene reads a scene directory of ESRI ASCII grids.
func LoadScene(fsys fsutil.FileSystem, dir string) (*Scene, error) {
	read := func(name string) (*raster.Grid, error) {
		path := filepath.Join(dir, name)
		f, err := fsys.Open(path)
		if err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
		defer f.Close()
		g, err := raster.ReadASCII(f)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", name, err)
		}
		return g, nil
	}

	z := &objects.Zone{ID: SceneID}
	for _, b := range []struct {
		name string
		dst  **raster.Grid
	}{
		{BlueFile, &z.Bands.Blue},
		{GreenFile, &z.Bands.Green},
		{RedFile, &z.Bands.Red},
		{NIRFile, &z.Bands.NIR},
		{HeightFile, &z.Height},
	} {
		g, err := read(b.name)
		if err != nil {
			return nil, err
		}
		*b.dst = g
	}
	if err := z.Validate(); err != nil {
		return nil, err
	}

	sc := &Scene{Zone: z}
	if fsys.Exists(filepath.Join(dir, DEMFile)) {
		dem, err := read(DEMFile)
		if err != nil {
			return nil, err
		}
		sc.DEM = dem
	}
	if objPath := filepath.Join(dir, ObjectsFile); fsys.Exists(objPath) {
		objs, err := export.ReadFile(fsys, objPath)
		if err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
		for _, o := range objs {
			o.Zone = SceneID
			o.Primitive = objects.Unassigned
			o.Label = objects.NoLabel
			o.Fueled = false
			o.Features = nil
			o.Burn = nil
		}
		if objs.ValidateKeys() != nil {
			// A merged multi-zone export repeats keys across zones.
			objs.Rekey()
			monitoring.Infow("rekeyed scene objects", "objects", len(objs))
		}
		z.Objects = objs
	}
	return sc, nil
}
