// Package enhance computes the per-pixel image enhancements (spectral
// indices plus height) each zone is classified from, caching every layer in
// the scratch store under (zone, feature, resolution).
package enhance

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/scratch"
)

// Feature names.
const (
	NDVI   = "ndvi"
	NDWI   = "ndwi"
	GNDVI  = "gndvi"
	OSAVI  = "osavi"
	Height = "height"
)

// Features lists every enhancement in computation order.
var Features = []string{NDVI, NDWI, GNDVI, OSAVI, Height}

// CompositeFeatures are the bands the supervised classifier is trained on.
var CompositeFeatures = []string{NDVI, NDWI, Height}

// osaviSoil is the soil adjustment term of OSAVI.
const osaviSoil = 0.16

// NormalizedDifference returns (a-b)/(a+b); a zero denominator yields
// nodata.
func NormalizedDifference(a, b *raster.Grid) (*raster.Grid, error) {
	return raster.Combine(func(v []float64) float64 {
		return (v[0] - v[1]) / (v[0] + v[1])
	}, a, b)
}

// Normalize rescales g's valid range onto [-1, 1]. A constant raster has no
// range and becomes all nodata.
func Normalize(g *raster.Grid) *raster.Grid {
	out := g.Clone()
	lo, hi, ok := g.MinMax()
	if !ok {
		return out
	}
	span := hi - lo
	for i, v := range out.Data {
		if g.IsNoData(v) {
			continue
		}
		if span == 0 {
			out.Data[i] = out.NoData
			continue
		}
		out.Data[i] = 2*(v-lo)/span - 1
	}
	return out
}

// Compute derives one feature from bands and height without caching.
func Compute(feature string, b objects.Bands, height *raster.Grid) (*raster.Grid, error) {
	switch feature {
	case NDVI:
		return NormalizedDifference(b.NIR, b.Red)
	case NDWI:
		return NormalizedDifference(b.Green, b.NIR)
	case GNDVI:
		return NormalizedDifference(b.NIR, b.Green)
	case OSAVI:
		raw, err := raster.Combine(func(v []float64) float64 {
			nir, red := v[0], v[1]
			return 1.5 * (nir - red) / (nir + red + osaviSoil)
		}, b.NIR, b.Red)
		if err != nil {
			return nil, err
		}
		return Normalize(raw), nil
	case Height:
		if height == nil {
			return nil, fmt.Errorf("height raster missing")
		}
		return height, nil
	default:
		return nil, fmt.Errorf("unknown feature %q", feature)
	}
}

// Aggregation returns how a feature is coarsened: height keeps the block
// maximum, indices the block mean.
func Aggregation(feature string) raster.Aggregation {
	if feature == Height {
		return raster.AggMax
	}
	return raster.AggMean
}

// Engine computes features through a scratch store.
type Engine struct {
	store  scratch.Store
	hits   atomic.Int64
	misses atomic.Int64
}

// NewEngine creates an engine backed by store.
func NewEngine(store scratch.Store) *Engine {
	return &Engine{store: store}
}

// Stats returns cache hit and miss counts.
func (e *Engine) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

func (e *Engine) cached(k scratch.Key, build func() (*raster.Grid, error)) (*raster.Grid, error) {
	g, err := e.store.Get(k)
	if err == nil {
		e.hits.Add(1)
		return g, nil
	}
	if !errors.Is(err, scratch.ErrNotFound) {
		return nil, fmt.Errorf("scratch %s: %w", k, err)
	}
	e.misses.Add(1)
	g, err = build()
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(k, g); err != nil {
		return nil, fmt.Errorf("scratch %s: %w", k, err)
	}
	return g, nil
}

// Feature returns one feature at the zone's native resolution.
func (e *Engine) Feature(z *objects.Zone, feature string) (*raster.Grid, error) {
	k := scratch.Key{Zone: z.ID, Layer: feature, Resolution: z.Bands.Red.CellSize}
	return e.cached(k, func() (*raster.Grid, error) {
		monitoring.Debugw("computing enhancement", "zone", z.ID, "feature", feature)
		g, err := Compute(feature, z.Bands, z.Height)
		if err != nil {
			return nil, fmt.Errorf("zone %s: %s: %w", z.ID, feature, err)
		}
		return g, nil
	})
}

// All returns every feature at native resolution.
func (e *Engine) All(z *objects.Zone) (map[string]*raster.Grid, error) {
	out := make(map[string]*raster.Grid, len(Features))
	for _, f := range Features {
		g, err := e.Feature(z, f)
		if err != nil {
			return nil, err
		}
		out[f] = g
	}
	return out, nil
}

// Coarse returns feature resampled by factor, derived from the cached
// native layer.
func (e *Engine) Coarse(z *objects.Zone, feature string, factor int) (*raster.Grid, error) {
	if factor <= 1 {
		return e.Feature(z, feature)
	}
	k := scratch.Key{Zone: z.ID, Layer: feature, Resolution: z.Bands.Red.CellSize * float64(factor)}
	return e.cached(k, func() (*raster.Grid, error) {
		native, err := e.Feature(z, feature)
		if err != nil {
			return nil, err
		}
		return native.Coarsen(factor, Aggregation(feature))
	})
}

// Composite stacks features at a coarser resolution for the supervised
// classifier.
func (e *Engine) Composite(z *objects.Zone, features []string, factor int) (*raster.Stack, error) {
	bands := make([]*raster.Grid, len(features))
	for i, f := range features {
		g, err := e.Coarse(z, f, factor)
		if err != nil {
			return nil, err
		}
		bands[i] = g
	}
	return raster.NewStack(features, bands)
}
