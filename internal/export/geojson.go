// Package export writes classified collections as GeoJSON feature
// collections and reads them back.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/objects"
)

// Property names written on every feature.
const (
	PropJoinKey     = "JOIN"
	PropZone        = "zone"
	PropSurface     = "surface"
	PropPrimitive   = "primitive"
	PropLabel       = "label"
	PropFuel        = "fuel"
	PropCanopy      = "canopy"
	PropStandHeight = "stand_height"
	PropFeatures    = "features"
	PropBurn        = "burn"
)

// FeatureCollection converts objs in collection order. Unfueled objects
// carry no fuel, canopy or stand height properties.
func FeatureCollection(objs objects.Collection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range objs {
		f := geojson.NewFeature(o.Footprint)
		f.Properties[PropJoinKey] = o.JoinKey
		f.Properties[PropZone] = o.Zone
		f.Properties[PropSurface] = string(o.Surface)
		f.Properties[PropPrimitive] = string(o.Primitive)
		f.Properties[PropLabel] = string(o.Label)
		if o.Fueled {
			f.Properties[PropFuel] = o.FuelCode
			f.Properties[PropCanopy] = o.CanopyCode
			f.Properties[PropStandHeight] = o.StandHeight
		}
		if len(o.Features) > 0 {
			f.Properties[PropFeatures] = finite(o.Features)
		}
		if len(o.Burn) > 0 {
			f.Properties[PropBurn] = finite(o.Burn)
		}
		fc.Append(f)
	}
	return fc
}

// JSON has no NaN or Inf.
func finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}

// Write encodes objs as a FeatureCollection.
func Write(w io.Writer, objs objects.Collection) error {
	b, err := json.Marshal(FeatureCollection(objs))
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

// WriteFile writes objs to path on fsys.
func WriteFile(fsys fsutil.FileSystem, path string, objs objects.Collection) error {
	b, err := json.Marshal(FeatureCollection(objs))
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := fsys.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read decodes a FeatureCollection written by Write.
func Read(r io.Reader) (objects.Collection, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	return decode(b)
}

// ReadFile reads path from fsys.
func ReadFile(fsys fsutil.FileSystem, path string) (objects.Collection, error) {
	b, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	objs, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return objs, nil
}

func decode(b []byte) (objects.Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	objs := make(objects.Collection, 0, len(fc.Features))
	for i, f := range fc.Features {
		o, err := fromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		objs = append(objs, o)
	}
	if err := objs.ValidateZoneKeys(); err != nil {
		return nil, err
	}
	return objs, nil
}

func fromFeature(f *geojson.Feature) (*objects.Object, error) {
	o := &objects.Object{}
	switch g := f.Geometry.(type) {
	case orb.MultiPolygon:
		o.Footprint = g
	case orb.Polygon:
		o.Footprint = orb.MultiPolygon{g}
	default:
		return nil, fmt.Errorf("unsupported geometry %T", f.Geometry)
	}

	p := f.Properties
	key, ok := p[PropJoinKey].(float64)
	if !ok || key != math.Trunc(key) {
		return nil, fmt.Errorf("missing or non-integer %s", PropJoinKey)
	}
	o.JoinKey = int(key)
	o.Zone = p.MustString(PropZone, "")
	o.Surface = objects.Surface(p.MustString(PropSurface, ""))
	o.Primitive = objects.Primitive(p.MustString(PropPrimitive, ""))
	if s := p.MustString(PropLabel, ""); s != "" {
		l, err := objects.ParseLabel(s)
		if err != nil {
			return nil, err
		}
		o.Label = l
	}
	if _, ok := p[PropFuel]; ok {
		o.Fueled = true
		o.FuelCode = p.MustInt(PropFuel, 0)
		o.CanopyCode = p.MustInt(PropCanopy, 0)
		o.StandHeight = p.MustFloat64(PropStandHeight, 0)
	}
	var err error
	if o.Features, err = floatMap(p[PropFeatures]); err != nil {
		return nil, fmt.Errorf("%s: %w", PropFeatures, err)
	}
	if o.Burn, err = floatMap(p[PropBurn]); err != nil {
		return nil, fmt.Errorf("%s: %w", PropBurn, err)
	}
	return o, nil
}

func floatMap(v interface{}) (map[string]float64, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	out := make(map[string]float64, len(raw))
	for k, x := range raw {
		f, ok := x.(float64)
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %T", k, x)
		}
		out[k] = f
	}
	return out, nil
}
