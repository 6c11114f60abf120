package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/units"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "List the classification thresholds",
	Long: `Prints every predicate in the threshold table, optionally narrowed to one
region and unit system. With both set, the rules are resolved exactly as a
classification run would and any gap is reported as a configuration error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runThresholds(cmd, viper.GetString("thresholds.region"), viper.GetString("thresholds.units"))
	},
}

func init() {
	f := thresholdsCmd.Flags()
	f.String("region", "", "only show this region")
	f.String("units", "", "only show this unit system ("+units.GetValidUnitsString()+")")
	_ = viper.BindPFlag("thresholds.region", f.Lookup("region"))
	_ = viper.BindPFlag("thresholds.units", f.Lookup("units"))
}

func runThresholds(cmd *cobra.Command, region, unitSystem string) error {
	table, err := loadThresholds()
	if err != nil {
		return err
	}
	if unitSystem != "" {
		unitSystem = units.Normalize(unitSystem)
		if !units.IsValid(unitSystem) {
			return apperr.Config("unit system", unitSystem, "expected one of "+units.GetValidUnitsString())
		}
	}
	if region != "" && unitSystem != "" {
		if _, err := table.Provider(region, unitSystem); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tUNITS\tSTAGE\tBRANCH\tFEATURE\tPREDICATE")
	n := 0
	for _, k := range table.Keys() {
		if (region != "" && k.Region != region) || (unitSystem != "" && k.Units != unitSystem) {
			continue
		}
		ps, err := table.Lookup(k)
		if err != nil {
			return err
		}
		for _, p := range ps {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", k.Region, k.Units, k.Stage, k.Branch, k.Feature, p)
			n++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if n == 0 {
		return apperr.Config("region", region, "no thresholds; known regions: "+fmt.Sprint(table.Regions()))
	}
	return nil
}
