// Package pipeline runs the per-zone classification cascade and the
// post-simulation burn join.
//
// A zone is processed sequentially: segment (when it has no objects),
// enhance, join feature means, classify, build the coarse composite,
// resolve confusion, apply labels. Zones run concurrently and are merged in
// input order before fuel assignment.
package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/classify"
	"github.com/banshee-data/genburn/internal/confusion"
	"github.com/banshee-data/genburn/internal/enhance"
	"github.com/banshee-data/genburn/internal/fuel"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/scratch"
	"github.com/banshee-data/genburn/internal/segment"
	"github.com/banshee-data/genburn/internal/svm"
	"github.com/banshee-data/genburn/internal/thresholds"
	"github.com/banshee-data/genburn/internal/units"
	"github.com/banshee-data/genburn/internal/zonal"
)

// SegmentFeatures are the enhancements the segmenter sees.
var SegmentFeatures = []string{enhance.NDVI, enhance.NDWI, enhance.GNDVI}

// Config holds everything a Runner needs besides its collaborators.
type Config struct {
	Region             string
	UnitSystem         string
	FuelModel          string
	CoarseningSize     float64 // classifier composite cell size, in map units
	Segment            segment.Params
	MaxSamplesPerClass int
	Concurrency        int
	Trainer            svm.Trainer
}

// Runner classifies zones. Its rules are resolved once and shared
// read-only across zone workers.
type Runner struct {
	cfg        Config
	scheme     string
	rules      *thresholds.Rules
	classifier *classify.Classifier
	engine     *enhance.Engine
	segmenter  segment.Segmenter
	progress   *Progress
}

// NewRunner validates the fuel scheme and resolves every threshold before
// any zone is touched. Both failures are *apperr.ConfigError. A nil store
// uses an in-memory scratch store; a nil segmenter means zones must arrive
// already segmented.
func NewRunner(cfg Config, table *thresholds.Table, store scratch.Store, seg segment.Segmenter, progress *Progress) (*Runner, error) {
	scheme, err := fuel.CanonicalScheme(cfg.FuelModel)
	if err != nil {
		return nil, err
	}
	if table == nil {
		table = thresholds.Default()
	}
	rules, err := table.Provider(cfg.Region, units.Normalize(cfg.UnitSystem))
	if err != nil {
		return nil, err
	}
	c, err := classify.New(rules)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = scratch.NewMemoryStore()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		cfg:        cfg,
		scheme:     scheme,
		rules:      rules,
		classifier: c,
		engine:     enhance.NewEngine(store),
		segmenter:  seg,
		progress:   progress,
	}, nil
}

// Scheme returns the canonical fuel scheme the runner assigns.
func (r *Runner) Scheme() string { return r.scheme }

// Engine exposes the enhancement cache, mostly for its hit statistics.
func (r *Runner) Engine() *enhance.Engine { return r.engine }

// ZoneResult is the outcome of classifying one zone.
type ZoneResult struct {
	Zone       string
	Objects    objects.Collection
	Votes      map[int]classify.Vote
	Confused   int
	Resolution *confusion.Resolution
}

// Unresolved returns the zone's objects that left without a label.
func (z *ZoneResult) Unresolved() []apperr.UnresolvedObject {
	if z.Resolution == nil {
		return nil
	}
	return z.Resolution.Unresolved
}

// ClassifyZone runs the cascade over one zone.
func (r *Runner) ClassifyZone(ctx context.Context, z *objects.Zone) (*ZoneResult, error) {
	if err := z.Validate(); err != nil {
		return nil, err
	}
	factor, err := r.compositeFactor(z)
	if err != nil {
		return nil, err
	}
	objs := z.Objects
	if len(objs) == 0 {
		if objs, err = r.segment(ctx, z); err != nil {
			return nil, err
		}
	}
	if err := objs.ValidateKeys(); err != nil {
		return nil, fmt.Errorf("zone %s: %w", z.ID, err)
	}

	r.progress.Step("%s: enhancing %d objects", z.ID, len(objs))
	layers, err := r.engine.All(z)
	if err != nil {
		return nil, err
	}
	for _, f := range enhance.Features {
		missing, err := zonal.AggregateJoin(objs, layers[f], zonal.Mean, f)
		if err != nil {
			return nil, fmt.Errorf("zone %s: join %s: %w", z.ID, f, err)
		}
		if len(missing) > 0 {
			monitoring.Debugw("objects without valid cells", "zone", z.ID, "feature", f, "count", len(missing))
			byKey := objs.ByKey()
			for _, k := range missing {
				byKey[k].ClearFeature(f)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.progress.Step("%s: classifying", z.ID)
	res, err := r.classifier.Classify(z.ID, objs)
	if err != nil {
		return nil, err
	}
	out := &ZoneResult{Zone: z.ID, Objects: objs, Votes: res.Votes, Confused: res.Confusion.Len()}
	if res.Confusion.Len() == 0 {
		out.Resolution = &confusion.Resolution{Labels: map[int]objects.Label{}}
		return out, nil
	}

	r.progress.Step("%s: resolving %d confused objects", z.ID, res.Confusion.Len())
	composite, err := r.engine.Composite(z, enhance.CompositeFeatures, factor)
	if err != nil {
		return nil, err
	}
	samples := confusion.BuildTrainingSamples(res.Vegetation, enhance.CompositeFeatures)
	resolver := &confusion.Resolver{Trainer: r.cfg.Trainer, MaxSamplesPerClass: r.cfg.MaxSamplesPerClass}
	resolution, err := resolver.Resolve(res.Confusion, samples, composite)
	if err != nil {
		return nil, err
	}
	byKey := objs.ByKey()
	for key, label := range resolution.Labels {
		o := byKey[key]
		if err := o.SetLabel(label); err != nil {
			return nil, err
		}
		o.Primitive = label.Branch()
	}
	out.Resolution = resolution
	monitoring.Infow("zone classified", "zone", z.ID, "objects", len(objs),
		"confused", out.Confused, "resolved", len(resolution.Labels), "unresolved", len(resolution.Unresolved))
	return out, nil
}

// compositeFactor returns the coarsening factor of z's classifier
// composite. The composite must be coarser than the imagery.
func (r *Runner) compositeFactor(z *objects.Zone) (int, error) {
	cell := z.Bands.Red.CellSize
	factor := raster.FactorFor(cell, r.cfg.CoarseningSize)
	if factor < 2 {
		return 0, apperr.Config("coarsening size", strconv.FormatFloat(r.cfg.CoarseningSize, 'g', -1, 64),
			fmt.Sprintf("must be at least twice the %g cell size of zone %s", cell, z.ID))
	}
	return factor, nil
}

func (r *Runner) segment(ctx context.Context, z *objects.Zone) (objects.Collection, error) {
	if r.segmenter == nil {
		return nil, fmt.Errorf("zone %s: no objects and no segmenter configured", z.ID)
	}
	r.progress.Step("%s: segmenting", z.ID)
	composite, err := r.engine.Composite(z, SegmentFeatures, 1)
	if err != nil {
		return nil, err
	}
	objs, err := r.segmenter.Segment(ctx, segment.Input{
		Zone:            z.ID,
		Composite:       composite,
		Height:          z.Height,
		GroundThreshold: units.GroundHeight(r.rules.Units),
		Params:          r.cfg.Segment,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperr.Service("segmenter", 0, fmt.Errorf("zone %s: %w", z.ID, err))
	}
	return objs, nil
}

// Result is the merged outcome of a run.
type Result struct {
	Classified objects.Collection // every object, zones in input order
	Zones      []*ZoneResult
	Unresolved []apperr.UnresolvedObject
	Unfueled   []int // join keys FuelModelAssigner skipped
}

// Err returns an *apperr.UnresolvedError when any object is unlabelled.
func (r *Result) Err() error {
	return apperr.Unresolved(r.Unresolved)
}

// Run classifies zones concurrently, merges them and assigns fuel codes.
// When objects remain unresolved Run returns the full result together
// with an *apperr.UnresolvedError; any other error aborts the run.
func (r *Runner) Run(ctx context.Context, zones []*objects.Zone) (*Result, error) {
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if _, err := r.compositeFactor(z); err != nil {
			return nil, err
		}
	}
	r.progress.Step("classifying %d zones (concurrency %d)", len(zones), r.cfg.Concurrency)
	results := make([]*ZoneResult, len(zones))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, z := range zones {
		g.Go(func() error {
			zr, err := r.ClassifyZone(gctx, z)
			if err != nil {
				return err
			}
			results[i] = zr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.progress.Step("merging zones")
	res := &Result{Zones: results}
	for _, zr := range results {
		res.Classified = append(res.Classified, zr.Objects...)
		res.Unresolved = append(res.Unresolved, zr.Unresolved()...)
	}

	r.progress.Step("assigning %s fuel models", r.scheme)
	unfueled, err := fuel.AssignAll(res.Classified, r.scheme)
	if err != nil {
		return nil, err
	}
	for _, u := range unfueled {
		res.Unfueled = append(res.Unfueled, u.JoinKey)
		// Unlabelled objects are already reported by their zone.
		if u.Reason != fuel.ReasonUnlabelled {
			res.Unresolved = append(res.Unresolved, u)
		}
	}
	hits, misses := r.engine.Stats()
	monitoring.Infow("run classified", "objects", len(res.Classified),
		"unresolved", len(res.Unresolved), "cache_hits", hits, "cache_misses", misses)
	return res, res.Err()
}
