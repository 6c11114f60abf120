// Package fuel maps final land-cover labels onto fire-behaviour fuel,
// canopy and stand codes under a named fuel-model scheme.
package fuel

import (
	"fmt"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/enhance"
	"github.com/banshee-data/genburn/internal/objects"
)

// SchemeAnderson13 is the only supported fuel-model scheme.
const SchemeAnderson13 = "Anderson-13"

// Anderson-13 codes.
const (
	NonBurnable = 99
	WaterCode   = 98
	GrassCode   = 1
	ShrubCode   = 6
	TreeCode    = 10
	CanopyCover = 50
)

// Codes are the fuel attributes of one object.
type Codes struct {
	Fuel   int
	Canopy int
	Stand  float64
}

type entry struct {
	fuel   int
	canopy int
}

var anderson13 = map[objects.Label]entry{
	objects.Building: {NonBurnable, CanopyCover},
	objects.Path:     {NonBurnable, 0},
	objects.Water:    {WaterCode, 0},
	objects.Grass:    {GrassCode, 0},
	objects.Shrub:    {ShrubCode, 0},
	objects.Tree:     {TreeCode, CanopyCover},
}

// CanonicalScheme resolves scheme aliases. "13" is accepted for
// Anderson-13; anything else is a configuration error.
func CanonicalScheme(scheme string) (string, error) {
	switch scheme {
	case SchemeAnderson13, "13":
		return SchemeAnderson13, nil
	}
	return "", apperr.Config("fuel model", scheme, "supported: "+SchemeAnderson13)
}

// Assign returns the codes for label under scheme. Stand height passes
// through unchanged.
func Assign(label objects.Label, scheme string, height float64) (Codes, error) {
	if _, err := CanonicalScheme(scheme); err != nil {
		return Codes{}, err
	}
	e, ok := anderson13[label]
	if !ok {
		return Codes{}, fmt.Errorf("no %s fuel code for label %q", SchemeAnderson13, label)
	}
	return Codes{Fuel: e.fuel, Canopy: e.canopy, Stand: height}, nil
}

// Reasons AssignAll leaves an object unfueled.
const (
	ReasonUnlabelled = "no land-cover label"
	ReasonNoHeight   = "no height for stand height"
)

// AssignAll codes every labelled object in objs from its height feature.
// Objects without a label or a height are left unfueled and returned.
func AssignAll(objs objects.Collection, scheme string) ([]apperr.UnresolvedObject, error) {
	if _, err := CanonicalScheme(scheme); err != nil {
		return nil, err
	}
	var skipped []apperr.UnresolvedObject
	for _, o := range objs {
		if o.Label == objects.NoLabel {
			skipped = append(skipped, apperr.UnresolvedObject{
				Zone: o.Zone, JoinKey: o.JoinKey, Branch: string(o.Primitive), Reason: ReasonUnlabelled,
			})
			continue
		}
		h, ok := o.Feature(enhance.Height)
		if !ok {
			skipped = append(skipped, apperr.UnresolvedObject{
				Zone: o.Zone, JoinKey: o.JoinKey, Branch: string(o.Label.Branch()), Reason: ReasonNoHeight,
			})
			continue
		}
		c, err := Assign(o.Label, scheme, h)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", o.JoinKey, err)
		}
		o.FuelCode, o.CanopyCode, o.StandHeight, o.Fueled = c.Fuel, c.Canopy, c.Stand, true
	}
	return skipped, nil
}
