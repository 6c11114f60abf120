// Package objects owns the image-object model: segment footprints, the
// attributes joined onto them, and the zone each object belongs to.
package objects

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/genburn/internal/raster"
)

// Surface separates objects at or above the ground height threshold.
type Surface string

const (
	Ground    Surface = "ground"
	NonGround Surface = "nonground"
)

// Primitive is the Stage 1 outcome.
type Primitive string

const (
	Unassigned Primitive = ""
	Vegetation Primitive = "vegetation"
	Impervious Primitive = "impervious"
	Confusion  Primitive = "confusion"
)

// Label is the final land-cover class.
type Label string

const (
	NoLabel  Label = ""
	Grass    Label = "grass"
	Shrub    Label = "shrub"
	Tree     Label = "tree"
	Path     Label = "path"
	Building Label = "building"
	Water    Label = "water"
)

// VegetationLabels and ImperviousLabels are the fine-grained labels
// reachable from each primitive branch.
var (
	VegetationLabels = []Label{Grass, Shrub, Tree}
	ImperviousLabels = []Label{Path, Building}
)

// Branch returns the primitive branch a label belongs to.
func (l Label) Branch() Primitive {
	switch l {
	case Grass, Shrub, Tree:
		return Vegetation
	case Path, Building, Water:
		return Impervious
	default:
		return Unassigned
	}
}

// ParseLabel validates s as a Label.
func ParseLabel(s string) (Label, error) {
	switch l := Label(s); l {
	case Grass, Shrub, Tree, Path, Building, Water:
		return l, nil
	default:
		return NoLabel, fmt.Errorf("unknown label %q", s)
	}
}

// Object is one segment of a zone. JoinKey is unique within its Collection
// and is the only identity attributes are joined by.
type Object struct {
	JoinKey   int
	Zone      string
	Surface   Surface
	Footprint orb.MultiPolygon
	Features  map[string]float64

	Primitive Primitive
	Label     Label

	Fueled      bool
	FuelCode    int
	CanopyCode  int
	StandHeight float64

	Burn map[string]float64
}

// Feature returns the named attribute. ok is false when it was never
// joined, which classification treats as "no predicate fires".
func (o *Object) Feature(name string) (float64, bool) {
	v, ok := o.Features[name]
	return v, ok
}

// SetFeature sets a named attribute.
func (o *Object) SetFeature(name string, v float64) {
	if o.Features == nil {
		o.Features = make(map[string]float64)
	}
	o.Features[name] = v
}

// ClearFeature removes a named attribute.
func (o *Object) ClearFeature(name string) {
	delete(o.Features, name)
}

// SetLabel assigns the final label. An object is labelled exactly once.
func (o *Object) SetLabel(l Label) error {
	if o.Label != NoLabel {
		return fmt.Errorf("object %d already labelled %s", o.JoinKey, o.Label)
	}
	o.Label = l
	return nil
}

// SetBurn stores one burn metric value.
func (o *Object) SetBurn(metric string, v float64) {
	if o.Burn == nil {
		o.Burn = make(map[string]float64)
	}
	o.Burn[metric] = v
}

// Bound returns the footprint's bounding box.
func (o *Object) Bound() orb.Bound { return o.Footprint.Bound() }

// Collection is an ordered set of objects.
type Collection []*Object

// ValidateKeys checks join keys are positive and unique.
func (c Collection) ValidateKeys() error {
	seen := make(map[int]struct{}, len(c))
	for _, o := range c {
		if o.JoinKey <= 0 {
			return fmt.Errorf("object has non-positive join key %d", o.JoinKey)
		}
		if _, dup := seen[o.JoinKey]; dup {
			return fmt.Errorf("duplicate join key %d", o.JoinKey)
		}
		seen[o.JoinKey] = struct{}{}
	}
	return nil
}

// ValidateZoneKeys checks join keys are positive and unique within each
// zone. A merged multi-zone collection repeats keys across zones.
func (c Collection) ValidateZoneKeys() error {
	seen := make(map[string]map[int]struct{})
	for _, o := range c {
		if o.JoinKey <= 0 {
			return fmt.Errorf("object has non-positive join key %d", o.JoinKey)
		}
		keys := seen[o.Zone]
		if keys == nil {
			keys = make(map[int]struct{})
			seen[o.Zone] = keys
		}
		if _, dup := keys[o.JoinKey]; dup {
			return fmt.Errorf("duplicate join key %d in zone %q", o.JoinKey, o.Zone)
		}
		keys[o.JoinKey] = struct{}{}
	}
	return nil
}

// ByKey indexes the collection by join key.
func (c Collection) ByKey() map[int]*Object {
	m := make(map[int]*Object, len(c))
	for _, o := range c {
		m[o.JoinKey] = o
	}
	return m
}

// Keys returns the join keys in collection order.
func (c Collection) Keys() []int {
	keys := make([]int, len(c))
	for i, o := range c {
		keys[i] = o.JoinKey
	}
	return keys
}

// Filter returns the objects matching keep.
func (c Collection) Filter(keep func(*Object) bool) Collection {
	var out Collection
	for _, o := range c {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// WithPrimitive returns the objects assigned p.
func (c Collection) WithPrimitive(p Primitive) Collection {
	return c.Filter(func(o *Object) bool { return o.Primitive == p })
}

// Unlabelled returns the objects without a final label.
func (c Collection) Unlabelled() Collection {
	return c.Filter(func(o *Object) bool { return o.Label == NoLabel })
}

// SortByKey orders the collection by join key.
func (c Collection) SortByKey() {
	sort.Slice(c, func(i, j int) bool { return c[i].JoinKey < c[j].JoinKey })
}

// Rekey renumbers join keys 1..N in collection order, the numbering a merged
// feature table uses when its row ids start at zero.
func (c Collection) Rekey() {
	for i, o := range c {
		o.JoinKey = i + 1
	}
}

// LabelCounts tallies final labels; unlabelled objects count under NoLabel.
func (c Collection) LabelCounts() map[Label]int {
	counts := make(map[Label]int)
	for _, o := range c {
		counts[o.Label]++
	}
	return counts
}

// Bands are the four spectral rasters of a zone.
type Bands struct {
	Blue  *raster.Grid
	Green *raster.Grid
	Red   *raster.Grid
	NIR   *raster.Grid
}

// Validate checks every band is present and co-registered.
func (b Bands) Validate() error {
	grids := map[string]*raster.Grid{"blue": b.Blue, "green": b.Green, "red": b.Red, "nir": b.NIR}
	for name, g := range grids {
		if g == nil {
			return fmt.Errorf("band %s missing", name)
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("band %s: %w", name, err)
		}
	}
	for name, g := range grids {
		if !g.SameShape(b.Red) {
			return fmt.Errorf("band %s: %w", name, raster.ErrShapeMismatch)
		}
	}
	return nil
}

// Zone is one independently processed tile of the scene.
type Zone struct {
	ID      string
	Bands   Bands
	Height  *raster.Grid
	Objects Collection
}

// Validate checks the zone's rasters.
func (z *Zone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("zone has no id")
	}
	if err := z.Bands.Validate(); err != nil {
		return fmt.Errorf("zone %s: %w", z.ID, err)
	}
	if z.Height == nil {
		return fmt.Errorf("zone %s: height raster missing", z.ID)
	}
	if !z.Height.SameShape(z.Bands.Red) {
		return fmt.Errorf("zone %s: height: %w", z.ID, raster.ErrShapeMismatch)
	}
	return nil
}
