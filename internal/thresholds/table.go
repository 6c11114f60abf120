package thresholds

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/units"
)

// Stage is a classification pass.
type Stage string

const (
	Primitive   Stage = "S1"
	FineGrained Stage = "S2"
)

// PrimitiveFeatures are the spectral indices voted on in Stage 1, in
// evaluation order.
var PrimitiveFeatures = []string{"ndvi", "ndwi", "gndvi", "osavi"}

// Branches evaluated in Stage 2.
var Branches = []objects.Primitive{objects.Vegetation, objects.Impervious}

// Key identifies one predicate list.
type Key struct {
	Region  string
	Stage   Stage
	Branch  objects.Primitive
	Feature string
	Units   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.Region, k.Stage, k.Branch, k.Feature, k.Units)
}

//go:embed defaults.yaml
var defaultsYAML []byte

type chainDoc struct {
	Feature string      `yaml:"feature"`
	Chain   []Predicate `yaml:"chain"`
}

type unitsDoc struct {
	Primitive map[string]map[objects.Primitive]Predicate `yaml:"primitive"`
	Fine      map[objects.Primitive]chainDoc             `yaml:"fine"`
}

type tableDoc struct {
	Regions map[string]map[string]unitsDoc `yaml:"regions"`
}

// Table is an immutable set of predicate lists.
type Table struct {
	entries     map[Key][]Predicate
	fineFeature map[Key]string // Feature left empty
}

// Parse decodes a YAML threshold document.
func Parse(r io.Reader) (*Table, error) {
	var doc tableDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	t := &Table{entries: make(map[Key][]Predicate), fineFeature: make(map[Key]string)}
	for region, byUnits := range doc.Regions {
		for u, ud := range byUnits {
			if !units.IsValid(u) {
				return nil, fmt.Errorf("parse thresholds: region %s: unknown unit system %q", region, u)
			}
			for feature, branches := range ud.Primitive {
				for branch, p := range branches {
					if err := p.Validate(); err != nil {
						return nil, fmt.Errorf("parse thresholds: %s/%s/%s: %w", region, feature, branch, err)
					}
					k := Key{Region: region, Stage: Primitive, Branch: branch, Feature: feature, Units: u}
					t.entries[k] = []Predicate{p}
				}
			}
			for branch, cd := range ud.Fine {
				if cd.Feature == "" {
					return nil, fmt.Errorf("parse thresholds: %s/%s/%s: chain has no feature", region, u, branch)
				}
				for _, p := range cd.Chain {
					if err := p.Validate(); err != nil {
						return nil, fmt.Errorf("parse thresholds: %s/%s/%s: %w", region, u, branch, err)
					}
					if p.Label.Branch() != branch {
						return nil, fmt.Errorf("parse thresholds: %s/%s/%s: label %q outside branch", region, u, branch, p.Label)
					}
				}
				k := Key{Region: region, Stage: FineGrained, Branch: branch, Feature: cd.Feature, Units: u}
				t.entries[k] = cd.Chain
				t.fineFeature[Key{Region: region, Stage: FineGrained, Branch: branch, Units: u}] = cd.Feature
			}
		}
	}
	return t, nil
}

// LoadFile parses a threshold file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open thresholds: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(bytesReader(defaultsYAML))
	if err != nil {
		panic(fmt.Sprintf("built-in thresholds: %v", err))
	}
	return t
}

// Lookup returns the predicate list for k.
func (t *Table) Lookup(k Key) ([]Predicate, error) {
	ps, ok := t.entries[k]
	if !ok || len(ps) == 0 {
		return nil, apperr.Config("threshold", k.String(), "no entry")
	}
	return ps, nil
}

// FineFeature returns the feature a branch's Stage 2 chain evaluates.
func (t *Table) FineFeature(region string, branch objects.Primitive, unitSystem string) (string, error) {
	f, ok := t.fineFeature[Key{Region: region, Stage: FineGrained, Branch: branch, Units: unitSystem}]
	if !ok {
		return "", apperr.Config("threshold", Key{Region: region, Stage: FineGrained, Branch: branch, Units: unitSystem}.String(), "no chain")
	}
	return f, nil
}

// Regions lists the regions present, sorted.
func (t *Table) Regions() []string {
	seen := map[string]bool{}
	for k := range t.entries {
		seen[k.Region] = true
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Keys lists every entry, sorted by string form.
func (t *Table) Keys() []Key {
	out := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
