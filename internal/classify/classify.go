// Package classify implements the two-stage fuzzy rule cascade.
//
// Stage 1 votes each object into a primitive type from four spectral index
// memberships. Stage 2 walks a first-match chain on a single feature within
// the vegetation and impervious branches. Objects left ambiguous by either
// stage are collected into the zone's ConfusionSet rather than failing.
package classify

import (
	"fmt"
	"strings"

	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/thresholds"
)

// ModelVersion identifies the rule cascade in persisted results.
const ModelVersion = "fuzzy-rule-v1.0"

// Rules supplies predicates; *thresholds.Rules satisfies it.
type Rules interface {
	PrimitivePredicates(feature string) (imp, veg thresholds.Predicate, err error)
	FineGrainedChain(branch objects.Primitive) (feature string, chain []thresholds.Predicate, err error)
}

// Membership letters recorded per index.
const (
	MemberImpervious = "I"
	MemberVegetation = "V"
)

// Vote is the Stage 1 tally for one object.
type Vote struct {
	Memberships map[string]string // feature -> "", "I", "V" or "IV"
	V           int
	I           int
}

// Decide applies the plurality rule.
func (v Vote) Decide() objects.Primitive {
	switch {
	case v.V > v.I:
		return objects.Vegetation
	case v.I > v.V:
		return objects.Impervious
	default:
		return objects.Confusion
	}
}

func (v Vote) String() string {
	var b strings.Builder
	for _, f := range thresholds.PrimitiveFeatures {
		fmt.Fprintf(&b, "%s=%q ", f, v.Memberships[f])
	}
	fmt.Fprintf(&b, "V=%d I=%d", v.V, v.I)
	return b.String()
}

type primitivePair struct {
	feature  string
	imp, veg thresholds.Predicate
}

type fineChain struct {
	feature    string
	predicates []thresholds.Predicate
}

// Classifier evaluates a fixed rule set. It holds no per-zone state and is
// safe for concurrent use.
type Classifier struct {
	primitive []primitivePair
	chains    map[objects.Primitive]fineChain
}

// New resolves every predicate up front.
func New(rules Rules) (*Classifier, error) {
	c := &Classifier{chains: make(map[objects.Primitive]fineChain, len(thresholds.Branches))}
	for _, f := range thresholds.PrimitiveFeatures {
		imp, veg, err := rules.PrimitivePredicates(f)
		if err != nil {
			return nil, err
		}
		c.primitive = append(c.primitive, primitivePair{feature: f, imp: imp, veg: veg})
	}
	for _, b := range thresholds.Branches {
		f, chain, err := rules.FineGrainedChain(b)
		if err != nil {
			return nil, err
		}
		c.chains[b] = fineChain{feature: f, predicates: chain}
	}
	return c, nil
}

// Vote evaluates every Stage 1 predicate pair. A feature the object lacks
// contributes no membership.
func (c *Classifier) Vote(o *objects.Object) Vote {
	v := Vote{Memberships: make(map[string]string, len(c.primitive))}
	for _, p := range c.primitive {
		x, ok := o.Feature(p.feature)
		m := ""
		if ok {
			if p.imp.Match(x) {
				m += MemberImpervious
				v.I++
			}
			if p.veg.Match(x) {
				m += MemberVegetation
				v.V++
			}
		}
		v.Memberships[p.feature] = m
	}
	return v
}

// FineGrained returns the first chain label matching the object's Stage 2
// feature. ok is false when the feature is missing or nothing matches.
func (c *Classifier) FineGrained(o *objects.Object, branch objects.Primitive) (objects.Label, bool) {
	ch, found := c.chains[branch]
	if !found {
		return objects.NoLabel, false
	}
	x, ok := o.Feature(ch.feature)
	if !ok {
		return objects.NoLabel, false
	}
	return thresholds.FirstMatch(ch.predicates, x)
}

// Result is the outcome of classifying one zone.
type Result struct {
	Vegetation objects.Collection // resolved at Stage 2
	Impervious objects.Collection // resolved at Stage 2
	Confusion  *ConfusionSet
	Votes      map[int]Vote
}

// Resolved returns all objects labelled by the cascade.
func (r *Result) Resolved() objects.Collection {
	out := make(objects.Collection, 0, len(r.Vegetation)+len(r.Impervious))
	out = append(out, r.Vegetation...)
	return append(out, r.Impervious...)
}

// Classify runs both stages over objs. Every object ends either labelled or
// in the confusion set, never both. Objects that already carry a label are
// rejected.
func (c *Classifier) Classify(zone string, objs objects.Collection) (*Result, error) {
	res := &Result{
		Confusion: &ConfusionSet{Zone: zone},
		Votes:     make(map[int]Vote, len(objs)),
	}
	for _, o := range objs {
		if o.Label != objects.NoLabel {
			return nil, fmt.Errorf("zone %s: object %d already labelled %s", zone, o.JoinKey, o.Label)
		}
		vote := c.Vote(o)
		res.Votes[o.JoinKey] = vote
		o.Primitive = vote.Decide()

		if o.Primitive == objects.Confusion {
			res.Confusion.add(o, objects.Unassigned, thresholds.Primitive)
			continue
		}

		label, ok := c.FineGrained(o, o.Primitive)
		if !ok {
			res.Confusion.add(o, o.Primitive, thresholds.FineGrained)
			continue
		}
		if err := o.SetLabel(label); err != nil {
			return nil, err
		}
		if o.Primitive == objects.Vegetation {
			res.Vegetation = append(res.Vegetation, o)
		} else {
			res.Impervious = append(res.Impervious, o)
		}
	}
	return res, nil
}
