package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/burn"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/landscape"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/raster"
)

// BurnInput describes one simulator run over a classified collection.
type BurnInput struct {
	DEM          *raster.Grid
	Simulator    burn.Simulator
	Scenario     burn.Scenario
	FS           fsutil.FileSystem
	LandscapeDir string
	OutputDir    string
}

// Burn writes the landscape stack, runs the simulator and joins its
// metrics back onto objs. objs are re-keyed 1..N across the whole
// collection. The returned map lists, per metric, the keys no valid
// simulator cell covered.
func Burn(ctx context.Context, objs objects.Collection, in BurnInput, progress *Progress) (map[string][]int, error) {
	if in.Simulator == nil {
		return nil, fmt.Errorf("burn: no simulator configured")
	}
	fsys := in.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	progress.Step("building landscape from %d objects", len(objs))
	stack, err := landscape.Build(in.DEM, objs)
	if err != nil {
		return nil, err
	}
	if err := stack.Write(fsys, in.LandscapeDir); err != nil {
		return nil, fmt.Errorf("write landscape: %w", err)
	}

	progress.Step("running fire behaviour simulator")
	outs, err := in.Simulator.Simulate(ctx, in.LandscapeDir, in.Scenario, in.OutputDir)
	if err != nil {
		return nil, err
	}

	progress.Step("joining burn metrics")
	missing, err := burn.Join(objs, outs)
	if err != nil {
		return nil, err
	}
	for m, keys := range missing {
		if len(keys) > 0 {
			monitoring.Warnw("objects without burn metric", "metric", m, "count", len(keys))
		}
	}
	return missing, nil
}

// ZoneKey is an object's identity before a collection-wide re-key.
type ZoneKey struct {
	Zone    string
	JoinKey int
}

// IndexByZoneKey captures objs' current identities. Take it before Burn
// and pass it to RemapUnresolved afterwards.
func IndexByZoneKey(objs objects.Collection) map[ZoneKey]*objects.Object {
	idx := make(map[ZoneKey]*objects.Object, len(objs))
	for _, o := range objs {
		idx[ZoneKey{Zone: o.Zone, JoinKey: o.JoinKey}] = o
	}
	return idx
}

// RemapUnresolved rewrites report entries to the keys their objects carry
// now. Entries whose object is gone are dropped.
func RemapUnresolved(report []apperr.UnresolvedObject, idx map[ZoneKey]*objects.Object) []apperr.UnresolvedObject {
	out := make([]apperr.UnresolvedObject, 0, len(report))
	for _, u := range report {
		o, ok := idx[ZoneKey{Zone: u.Zone, JoinKey: u.JoinKey}]
		if !ok {
			continue
		}
		u.JoinKey = o.JoinKey
		out = append(out, u)
	}
	return out
}
