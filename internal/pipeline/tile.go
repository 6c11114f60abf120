package pipeline

import (
	"fmt"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
)

// ZoneID names the zone built from tile index i.
func ZoneID(i int) string { return fmt.Sprintf("zone_%d", i) }

// Tile splits a scene into square zones of size cells. Pre-segmented
// objects move to the zone containing the centre of their bounding box and
// have their Zone field rewritten. A size of zero, or one covering the
// whole scene, yields a single zone_0.
func Tile(scene *objects.Zone, size int) ([]*objects.Zone, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	tiles := scene.Bands.Red.Tiles(size)
	zones := make([]*objects.Zone, len(tiles))
	for i, t := range tiles {
		z := &objects.Zone{ID: ZoneID(t.Index)}
		var err error
		window := func(g *raster.Grid) *raster.Grid {
			if err != nil {
				return nil
			}
			var w *raster.Grid
			w, err = g.Window(t.Row, t.Col, t.Rows, t.Cols)
			return w
		}
		z.Bands = objects.Bands{
			Blue:  window(scene.Bands.Blue),
			Green: window(scene.Bands.Green),
			Red:   window(scene.Bands.Red),
			NIR:   window(scene.Bands.NIR),
		}
		z.Height = window(scene.Height)
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", t.Index, err)
		}
		zones[i] = z
	}

	for _, o := range scene.Objects {
		b := o.Bound()
		row, col, ok := scene.Bands.Red.CellAt(b.Center())
		if !ok {
			return nil, fmt.Errorf("object %d lies outside the scene", o.JoinKey)
		}
		i := tileIndex(tiles, row, col)
		o.Zone = zones[i].ID
		zones[i].Objects = append(zones[i].Objects, o)
	}
	return zones, nil
}

func tileIndex(tiles []raster.Tile, row, col int) int {
	for _, t := range tiles {
		if row >= t.Row && row < t.Row+t.Rows && col >= t.Col && col < t.Col+t.Cols {
			return t.Index
		}
	}
	return 0
}
