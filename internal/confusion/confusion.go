// Package confusion resolves objects the rule cascade left ambiguous.
//
// A pixel classifier is fitted on the zone's own vegetation objects over a
// coarse composite (ndvi, ndwi, height), applied to every composite pixel,
// and each confused object takes the majority class over its footprint.
// Only the vegetation branch and Stage 1 ties are resolvable this way;
// impervious confusion and objects without a majority are reported as
// unresolved, never defaulted.
package confusion

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/classify"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/svm"
	"github.com/banshee-data/genburn/internal/zonal"
)

// Class codes produced by the pixel classifier.
const (
	CodeGrass = 0
	CodeShrub = 1
	CodeTree  = 2
)

// DefaultMaxSamplesPerClass caps training pixels per class.
const DefaultMaxSamplesPerClass = 100

// Unresolved reasons.
const (
	ReasonImpervious = "impervious confusion has no supervised resolver"
	ReasonNoSamples  = "no vegetation training samples"
	ReasonNoMajority = "no majority class over footprint"
)

// LabelForCode maps a classifier code onto a vegetation label.
func LabelForCode(code int) (objects.Label, bool) {
	switch code {
	case CodeGrass:
		return objects.Grass, true
	case CodeShrub:
		return objects.Shrub, true
	case CodeTree:
		return objects.Tree, true
	}
	return objects.NoLabel, false
}

// CodeForLabel is the inverse of LabelForCode.
func CodeForLabel(l objects.Label) (int, bool) {
	switch l {
	case objects.Grass:
		return CodeGrass, true
	case objects.Shrub:
		return CodeShrub, true
	case objects.Tree:
		return CodeTree, true
	}
	return 0, false
}

// TrainingSample is a confirmed vegetation object reduced to what the
// classifier needs.
type TrainingSample struct {
	JoinKey   int
	Label     objects.Label
	Stats     map[string]float64
	Footprint orb.MultiPolygon
}

// BuildTrainingSamples reduces labelled vegetation objects to samples,
// keeping the named feature means. Objects without a vegetation label are
// skipped.
func BuildTrainingSamples(veg objects.Collection, features []string) []TrainingSample {
	var out []TrainingSample
	for _, o := range veg {
		if _, ok := CodeForLabel(o.Label); !ok {
			continue
		}
		stats := make(map[string]float64, len(features))
		for _, f := range features {
			if v, ok := o.Feature(f); ok {
				stats[f] = v
			}
		}
		out = append(out, TrainingSample{JoinKey: o.JoinKey, Label: o.Label, Stats: stats, Footprint: o.Footprint})
	}
	return out
}

// Resolver fits and applies the pixel classifier for one zone.
type Resolver struct {
	Trainer            svm.Trainer
	MaxSamplesPerClass int
}

// Resolution is the outcome of resolving one confusion set.
type Resolution struct {
	Labels     map[int]objects.Label
	Unresolved []apperr.UnresolvedObject
	Classified *raster.Grid // nil when no classifier was fitted
}

// Resolve labels the vegetation-resolvable members of set.
func (r *Resolver) Resolve(set *classify.ConfusionSet, samples []TrainingSample, composite *raster.Stack) (*Resolution, error) {
	res := &Resolution{Labels: make(map[int]objects.Label)}
	if set == nil || set.Len() == 0 {
		return res, nil
	}
	unresolved := func(e classify.ConfusedObject, reason string) {
		res.Unresolved = append(res.Unresolved, apperr.UnresolvedObject{
			Zone:    set.Zone,
			JoinKey: e.Object.JoinKey,
			Branch:  branchName(e.Branch),
			Reason:  reason,
		})
	}
	for _, e := range set.Impervious() {
		unresolved(e, ReasonImpervious)
	}

	veg := set.Vegetation()
	if len(veg) == 0 {
		return res, nil
	}
	pixels := r.pixelSamples(samples, composite)
	if len(pixels) == 0 {
		for _, e := range veg {
			unresolved(e, ReasonNoSamples)
		}
		return res, nil
	}

	model, err := r.trainer().Fit(pixels)
	if err != nil {
		return nil, apperr.Service("classifier", 0, fmt.Errorf("zone %s: fit: %w", set.Zone, err))
	}
	classified, err := svm.Apply(model, composite)
	if err != nil {
		return nil, apperr.Service("classifier", 0, fmt.Errorf("zone %s: apply: %w", set.Zone, err))
	}
	res.Classified = classified

	targets := make(objects.Collection, len(veg))
	for i, e := range veg {
		targets[i] = e.Object
	}
	majority, err := zonal.Aggregate(targets, classified, zonal.Majority)
	if err != nil {
		return nil, err
	}
	for _, e := range veg {
		code, ok := majority[e.Object.JoinKey]
		if !ok {
			unresolved(e, ReasonNoMajority)
			continue
		}
		label, ok := LabelForCode(int(code))
		if !ok {
			unresolved(e, fmt.Sprintf("classifier produced unknown code %v", code))
			continue
		}
		res.Labels[e.Object.JoinKey] = label
	}
	monitoring.Debugw("confusion resolved", "zone", set.Zone,
		"samples", len(pixels), "labelled", len(res.Labels), "unresolved", len(res.Unresolved))
	return res, nil
}

func (r *Resolver) trainer() svm.Trainer {
	if r.Trainer == nil {
		return svm.LinearSVM{}
	}
	return r.Trainer
}

// pixelSamples collects composite pixels under each training footprint,
// capped per class by even stride. An object too small to cover any
// composite cell center contributes its feature means instead.
func (r *Resolver) pixelSamples(samples []TrainingSample, composite *raster.Stack) []svm.Sample {
	limit := r.MaxSamplesPerClass
	if limit <= 0 {
		limit = DefaultMaxSamplesPerClass
	}
	geo := composite.Geometry()
	byClass := make(map[int][]svm.Sample)
	var order []int
	for _, s := range samples {
		code, ok := CodeForLabel(s.Label)
		if !ok {
			continue
		}
		if _, seen := byClass[code]; !seen {
			order = append(order, code)
			byClass[code] = nil
		}
		cells := zonal.Cells(s.Footprint, geo)
		for _, c := range cells {
			px, ok := composite.Pixel(c.Row, c.Col, nil)
			if ok {
				byClass[code] = append(byClass[code], svm.Sample{Class: code, Features: px})
			}
		}
		if len(cells) == 0 {
			if px, ok := statsVector(s.Stats, composite.Names); ok {
				byClass[code] = append(byClass[code], svm.Sample{Class: code, Features: px})
			}
		}
	}
	var out []svm.Sample
	for _, code := range order {
		out = append(out, stride(byClass[code], limit)...)
	}
	return out
}

func statsVector(stats map[string]float64, names []string) ([]float64, bool) {
	px := make([]float64, len(names))
	for i, n := range names {
		v, ok := stats[n]
		if !ok {
			return nil, false
		}
		px[i] = v
	}
	return px, true
}

// stride keeps at most limit samples spread evenly over s.
func stride(s []svm.Sample, limit int) []svm.Sample {
	if len(s) <= limit {
		return s
	}
	out := make([]svm.Sample, limit)
	for i := range out {
		out[i] = s[i*len(s)/limit]
	}
	return out
}

func branchName(p objects.Primitive) string {
	if p == objects.Unassigned {
		return "primitive-tie"
	}
	return string(p)
}
