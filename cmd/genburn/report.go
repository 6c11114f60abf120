package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/objects"
	"github.com/banshee-data/genburn/internal/report"
	"github.com/banshee-data/genburn/internal/storage/sqlite"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render label, fuel and burn metric charts for a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, viper.GetString("report.run"), viper.GetString("report.out"))
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRuns(cmd, viper.GetInt("runs.limit"))
	},
}

func init() {
	f := reportCmd.Flags()
	f.String("run", "latest", "run ID to report on")
	f.StringP("out", "o", "", "output directory (default <workspace>/report_<run>)")
	_ = viper.BindPFlag("report.run", f.Lookup("run"))
	_ = viper.BindPFlag("report.out", f.Lookup("out"))

	runsCmd.Flags().Int("limit", 20, "maximum runs to list")
	_ = viper.BindPFlag("runs.limit", runsCmd.Flags().Lookup("limit"))
}

func runReport(cmd *cobra.Command, runID, outDir string) error {
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
	if outDir == "" {
		outDir = filepath.Join(viper.GetString("workspace"), "report_"+run.RunID)
	}

	title := fmt.Sprintf("genburn run %s (%s, %s)", run.RunID, run.Region, run.FuelModel)
	paths, err := report.WriteAll(fsutil.OSFileSystem{}, outDir, title, objs)
	if err != nil {
		return err
	}

	counts, err := store.LabelCounts(run.RunID)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s: %d objects\n", run.RunID, len(objs))
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, string(l))
	}
	sort.Strings(labels)
	for _, l := range labels {
		name := l
		if objects.Label(l) == objects.NoLabel {
			name = report.UnresolvedLabel
		}
		fmt.Fprintf(w, "  %-10s %d\n", name, counts[objects.Label(l)])
	}
	for _, p := range paths {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
	return nil
}

func runRuns(cmd *cobra.Command, limit int) error {
	d, err := openDB()
	if err != nil {
		return err
	}
	defer d.Close()

	list, err := sqlite.NewRunStore(d.DB).List(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tREGION\tFUEL\tSTATUS\tOBJECTS\tUNRESOLVED")
	for _, r := range list {
		created := time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, created, r.Region, r.FuelModel, r.Status, r.ObjectCount, r.UnresolvedCount)
	}
	return tw.Flush()
}
