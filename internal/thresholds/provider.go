package thresholds

import (
	"bytes"
	"io"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/units"
)

// Rules is the validated predicate set for one region and unit system.
type Rules struct {
	Region string
	Units  string

	primitive map[string][2]Predicate // feature -> (impervious, vegetation)
	chains    map[objects.Primitive]chain
}

type chain struct {
	feature    string
	predicates []Predicate
}

// Provider resolves every predicate the classifier needs for region and
// unitSystem up front, so a missing entry fails before any object is
// classified.
func (t *Table) Provider(region, unitSystem string) (*Rules, error) {
	if !units.IsValid(unitSystem) {
		return nil, apperr.Config("unit system", unitSystem, "expected one of "+units.GetValidUnitsString())
	}
	r := &Rules{
		Region:    region,
		Units:     unitSystem,
		primitive: make(map[string][2]Predicate, len(PrimitiveFeatures)),
		chains:    make(map[objects.Primitive]chain, len(Branches)),
	}
	for _, f := range PrimitiveFeatures {
		var pair [2]Predicate
		for i, b := range []objects.Primitive{objects.Impervious, objects.Vegetation} {
			ps, err := t.Lookup(Key{Region: region, Stage: Primitive, Branch: b, Feature: f, Units: unitSystem})
			if err != nil {
				return nil, err
			}
			pair[i] = ps[0]
		}
		r.primitive[f] = pair
	}
	for _, b := range Branches {
		f, err := t.FineFeature(region, b, unitSystem)
		if err != nil {
			return nil, err
		}
		ps, err := t.Lookup(Key{Region: region, Stage: FineGrained, Branch: b, Feature: f, Units: unitSystem})
		if err != nil {
			return nil, err
		}
		r.chains[b] = chain{feature: f, predicates: ps}
	}
	return r, nil
}

// PrimitivePredicates returns the (impervious, vegetation) predicate pair
// for a Stage 1 feature.
func (r *Rules) PrimitivePredicates(feature string) (imp, veg Predicate, err error) {
	pair, ok := r.primitive[feature]
	if !ok {
		return Predicate{}, Predicate{}, apperr.Config("threshold",
			Key{Region: r.Region, Stage: Primitive, Feature: feature, Units: r.Units}.String(), "no entry")
	}
	return pair[0], pair[1], nil
}

// FineGrainedChain returns the Stage 2 feature and ordered chain for branch.
func (r *Rules) FineGrainedChain(branch objects.Primitive) (string, []Predicate, error) {
	c, ok := r.chains[branch]
	if !ok {
		return "", nil, apperr.Config("threshold",
			Key{Region: r.Region, Stage: FineGrained, Branch: branch, Units: r.Units}.String(), "no chain")
	}
	return c.feature, c.predicates, nil
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
