// Package thresholds owns the region- and unit-specific boundary predicates
// the rule classifier evaluates.
//
// Predicates are data, not code: a Predicate is a conjunction of tagged
// comparisons evaluated by Match. Tables are loaded from YAML and looked up
// by (region, stage, branch, feature, unit system).
package thresholds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/genburn/internal/objects"
)

// Op is a comparator kind.
type Op string

const (
	Less         Op = "lt"
	LessEqual    Op = "le"
	Greater      Op = "gt"
	GreaterEqual Op = "ge"
	Equal        Op = "eq"
	NotEqual     Op = "ne"
)

func (o Op) valid() bool {
	switch o {
	case Less, LessEqual, Greater, GreaterEqual, Equal, NotEqual:
		return true
	}
	return false
}

func (o Op) symbol() string {
	switch o {
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	}
	return string(o)
}

// Comparison tests x against a fixed operand.
type Comparison struct {
	Op    Op      `yaml:"op" json:"op"`
	Value float64 `yaml:"value" json:"value"`
}

// Eval applies the comparison to x.
func (c Comparison) Eval(x float64) bool {
	switch c.Op {
	case Less:
		return x < c.Value
	case LessEqual:
		return x <= c.Value
	case Greater:
		return x > c.Value
	case GreaterEqual:
		return x >= c.Value
	case Equal:
		return x == c.Value
	case NotEqual:
		return x != c.Value
	}
	return false
}

func (c Comparison) String() string {
	return "x " + c.Op.symbol() + " " + strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// Predicate fires when every comparison holds. Label names the class a
// fine-grained chain entry assigns and is empty for primitive predicates.
type Predicate struct {
	Label objects.Label `yaml:"label,omitempty" json:"label,omitempty"`
	All   []Comparison  `yaml:"all" json:"all"`
}

// Match reports whether x satisfies the predicate.
func (p Predicate) Match(x float64) bool {
	if len(p.All) == 0 {
		return false
	}
	for _, c := range p.All {
		if !c.Eval(x) {
			return false
		}
	}
	return true
}

// Validate checks the predicate is evaluable.
func (p Predicate) Validate() error {
	if len(p.All) == 0 {
		return fmt.Errorf("predicate %q has no comparisons", p.Label)
	}
	for _, c := range p.All {
		if !c.Op.valid() {
			return fmt.Errorf("predicate %q: unknown comparator %q", p.Label, c.Op)
		}
	}
	return nil
}

func (p Predicate) String() string {
	parts := make([]string, len(p.All))
	for i, c := range p.All {
		parts[i] = c.String()
	}
	s := strings.Join(parts, " and ")
	if p.Label != objects.NoLabel {
		s = string(p.Label) + ": " + s
	}
	return s
}

// FirstMatch returns the label of the first predicate in chain matching x.
func FirstMatch(chain []Predicate, x float64) (objects.Label, bool) {
	for _, p := range chain {
		if p.Match(x) {
			return p.Label, true
		}
	}
	return objects.NoLabel, false
}
