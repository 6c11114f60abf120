package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/classify"
	"github.com/banshee-data/genburn/internal/db"
	"github.com/banshee-data/genburn/internal/export"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/pipeline"
	"github.com/banshee-data/genburn/internal/scratch"
	"github.com/banshee-data/genburn/internal/segment"
	"github.com/banshee-data/genburn/internal/storage/sqlite"
	"github.com/banshee-data/genburn/internal/timeutil"
	"github.com/banshee-data/genburn/internal/workspace"
)

// Scratch backends.
const (
	scratchDir    = "dir"
	scratchDB     = "db"
	scratchMemory = "memory"
)

// ClassifiedFile is the GeoJSON written under the workspace outputs.
const ClassifiedFile = "classified.geojson"

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a scene into labelled, fueled objects",
	Long: `Reads a scene directory (blue/green/red/nir/height ESRI ASCII grids, plus an
optional objects.geojson of pre-segmented footprints), classifies every zone,
assigns fuel models and stores the run. Exits 3 when objects remain
unresolved; the run and its partial results are still saved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd, viper.GetString("classify.scene"), viper.GetString("classify.project"),
			viper.GetString("classify.scratch"))
	},
}

func init() {
	f := classifyCmd.Flags()
	f.StringP("scene", "s", "", "scene directory (required)")
	f.StringP("project", "p", "genburn", "project name for the workspace")
	f.String("scratch", scratchDir, "scratch layer backend: dir|db|memory")
	_ = classifyCmd.MarkFlagRequired("scene")

	_ = viper.BindPFlag("classify.scene", f.Lookup("scene"))
	_ = viper.BindPFlag("classify.project", f.Lookup("project"))
	_ = viper.BindPFlag("classify.scratch", f.Lookup("scratch"))
}

func runClassify(cmd *cobra.Command, sceneDir, project, scratchKind string) error {
	ctx := cmd.Context()
	cfg, err := loadTuning()
	if err != nil {
		return err
	}
	table, err := loadThresholds()
	if err != nil {
		return err
	}

	ws, err := workspace.Create(viper.GetString("workspace"), project, timeutil.RealClock{})
	if err != nil {
		return err
	}
	src := fsutil.OSFileSystem{}
	if _, err := ws.CopyInputs(src, sceneDir); err != nil {
		return err
	}
	scene, err := pipeline.LoadScene(src, sceneDir)
	if err != nil {
		return err
	}
	zones, err := pipeline.Tile(scene.Zone, cfg.GetTileSize())
	if err != nil {
		return err
	}

	d, err := openDB()
	if err != nil {
		return err
	}
	defer d.Close()

	store, err := openScratch(scratchKind, ws, d)
	if err != nil {
		return err
	}
	progress := pipeline.NewProgress(nil)
	runner, err := pipeline.NewRunner(pipeline.Config{
		Region:             cfg.GetLocation(),
		UnitSystem:         cfg.GetUnitSystem(),
		FuelModel:          cfg.GetFuelModel(),
		CoarseningSize:     cfg.GetCoarseningSize(),
		Segment:            cfg.SegmentParams(),
		MaxSamplesPerClass: cfg.GetMaxSamplesPerClass(),
		Concurrency:        cfg.GetZoneConcurrency(),
		Trainer:            cfg.Trainer(),
	}, table, store, segment.RegionGrower{}, progress)
	if err != nil {
		return err
	}

	params, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	runs := sqlite.NewRunStore(d.DB)
	run := &sqlite.Run{
		Region:       cfg.GetLocation(),
		UnitSystem:   cfg.GetUnitSystem(),
		FuelModel:    runner.Scheme(),
		ModelVersion: classify.ModelVersion,
		ParamsJSON:   params,
	}
	if err := runs.Insert(run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	monitoring.Infow("run started", "run_id", run.RunID, "zones", len(zones), "workspace", ws.Root)

	res, runErr := runner.Run(ctx, zones)
	if res == nil {
		if err := runs.Finish(run.RunID, sqlite.StatusFailed, 0, 0, time.Now()); err != nil {
			monitoring.Warnw("failed to record run failure", "run_id", run.RunID, "error", err)
		}
		return runErr
	}

	objs := sqlite.NewObjectStore(d.DB)
	if err := objs.Save(run.RunID, res.Classified); err != nil {
		return err
	}
	if err := objs.SaveUnresolved(run.RunID, res.Unresolved); err != nil {
		return err
	}
	out, err := ws.Output(ClassifiedFile)
	if err != nil {
		return err
	}
	if err := export.WriteFile(ws.FS(), out, res.Classified); err != nil {
		return err
	}

	status := sqlite.StatusComplete
	if _, unresolved := apperr.AsUnresolved(runErr); unresolved {
		status = sqlite.StatusUnresolved
	}
	if err := runs.Finish(run.RunID, status, len(res.Classified), len(res.Unresolved), time.Now()); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s: %d objects, %d unresolved, %d without fuel (%s)\n",
		run.RunID, len(res.Classified), len(res.Unresolved), len(res.Unfueled), progress.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(w, "wrote %s\n", out)
	return runErr
}

func openScratch(kind string, ws *workspace.Workspace, d *db.DB) (scratch.Store, error) {
	switch kind {
	case scratchDir, "":
		if err := ws.ClearScratch(); err != nil {
			return nil, err
		}
		return scratch.NewDirStore(ws.FS(), ws.Scratch()), nil
	case scratchDB:
		s := sqlite.NewScratchStore(d.DB)
		if _, err := s.Purge(""); err != nil {
			return nil, fmt.Errorf("purge scratch layers: %w", err)
		}
		return s, nil
	case scratchMemory:
		return scratch.NewMemoryStore(), nil
	default:
		return nil, apperr.Config("scratch", kind, "expected dir, db or memory")
	}
}
