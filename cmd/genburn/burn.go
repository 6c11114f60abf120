package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/burn"
	"github.com/banshee-data/genburn/internal/config"
	"github.com/banshee-data/genburn/internal/export"
	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/pipeline"
	"github.com/banshee-data/genburn/internal/storage/sqlite"
	"github.com/banshee-data/genburn/internal/timeutil"
	"github.com/banshee-data/genburn/internal/workspace"
)

// BurnedFile is the GeoJSON written after metrics are joined.
const BurnedFile = "burned.geojson"

// newSimulator builds the fire behaviour simulator; tests replace it.
var newSimulator = func(cfg *config.TuningConfig) burn.Simulator {
	return &burn.ExecSimulator{Command: cfg.GetSimulatorCommand(), Args: cfg.SimulatorArgs}
}

var burnCmd = &cobra.Command{
	Use:   "burn",
	Short: "Run the fire behaviour simulator over a classified run",
	Long: `Rasterises a stored run's fuel, canopy and stand height onto the scene DEM,
runs the configured simulator (simulator_command in the tuning config) and
joins fire-line intensity, flame length and rate of spread back onto the
objects. Objects are re-keyed 1..N across the whole run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBurn(cmd, viper.GetString("burn.run"), viper.GetString("burn.scene"), viper.GetString("burn.project"))
	},
}

func init() {
	f := burnCmd.Flags()
	f.String("run", "latest", "run ID to burn")
	f.StringP("scene", "s", "", "scene directory holding dem.asc (required)")
	f.StringP("project", "p", "genburn", "project name for the workspace")
	_ = burnCmd.MarkFlagRequired("scene")

	_ = viper.BindPFlag("burn.run", f.Lookup("run"))
	_ = viper.BindPFlag("burn.scene", f.Lookup("scene"))
	_ = viper.BindPFlag("burn.project", f.Lookup("project"))
}

func runBurn(cmd *cobra.Command, runID, sceneDir, project string) error {
	cfg, err := loadTuning()
	if err != nil {
		return err
	}
	scene, err := pipeline.LoadScene(fsutil.OSFileSystem{}, sceneDir)
	if err != nil {
		return err
	}
	if scene.DEM == nil {
		return apperr.Config("scene", sceneDir, "no "+pipeline.DEMFile)
	}

	d, err := openDB()
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := resolveRun(sqlite.NewRunStore(d.DB), runID)
	if err != nil {
		return err
	}
	store := sqlite.NewObjectStore(d.DB)
	objs, err := store.Load(run.RunID)
	if err != nil {
		return err
	}
	report, err := store.Unresolved(run.RunID)
	if err != nil {
		return err
	}

	ws, err := workspace.Create(viper.GetString("workspace"), project, timeutil.RealClock{})
	if err != nil {
		return err
	}
	landscapeDir, err := ws.Output("landscape")
	if err != nil {
		return err
	}
	outDir, err := ws.Output("burn")
	if err != nil {
		return err
	}
	if err := ws.FS().MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetSimulatorTimeout())
	defer cancel()

	idx := pipeline.IndexByZoneKey(objs)
	missing, err := pipeline.Burn(ctx, objs, pipeline.BurnInput{
		DEM:          scene.DEM,
		Simulator:    newSimulator(cfg),
		Scenario:     cfg.Scenario(),
		FS:           ws.FS(),
		LandscapeDir: landscapeDir,
		OutputDir:    outDir,
	}, pipeline.NewProgress(nil))
	if err != nil {
		return err
	}

	if err := store.Save(run.RunID, objs); err != nil {
		return err
	}
	if err := store.SaveUnresolved(run.RunID, pipeline.RemapUnresolved(report, idx)); err != nil {
		return err
	}
	out, err := ws.Output(BurnedFile)
	if err != nil {
		return err
	}
	if err := export.WriteFile(ws.FS(), out, objs); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s: burned %d objects\n", run.RunID, len(objs))
	for _, m := range burn.Metrics {
		if n := len(missing[m]); n > 0 {
			fmt.Fprintf(w, "  %s missing on %d objects\n", m, n)
		}
	}
	fmt.Fprintf(w, "wrote %s\n", out)
	monitoring.Infow("burn complete", "run_id", run.RunID, "objects", len(objs))
	return nil
}
