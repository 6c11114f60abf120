package classify

import (
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/thresholds"
)

// ConfusedObject records where an object left the cascade. Branch is
// Unassigned for Stage 1 ties.
type ConfusedObject struct {
	Object *objects.Object
	Branch objects.Primitive
	Stage  thresholds.Stage
}

// ConfusionSet is the transient set of unresolved objects in one zone.
type ConfusionSet struct {
	Zone    string
	Entries []ConfusedObject
}

func (s *ConfusionSet) add(o *objects.Object, branch objects.Primitive, stage thresholds.Stage) {
	s.Entries = append(s.Entries, ConfusedObject{Object: o, Branch: branch, Stage: stage})
}

// Len returns the number of confused objects.
func (s *ConfusionSet) Len() int { return len(s.Entries) }

// Objects returns every confused object.
func (s *ConfusionSet) Objects() objects.Collection {
	out := make(objects.Collection, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Object
	}
	return out
}

// Vegetation returns entries eligible for supervised resolution: Stage 1
// ties and vegetation Stage 2 misses.
func (s *ConfusionSet) Vegetation() []ConfusedObject {
	return s.filter(func(e ConfusedObject) bool { return e.Branch != objects.Impervious })
}

// Impervious returns impervious Stage 2 misses.
func (s *ConfusionSet) Impervious() []ConfusedObject {
	return s.filter(func(e ConfusedObject) bool { return e.Branch == objects.Impervious })
}

func (s *ConfusionSet) filter(keep func(ConfusedObject) bool) []ConfusedObject {
	var out []ConfusedObject
	for _, e := range s.Entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
