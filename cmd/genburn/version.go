package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/genburn/internal/classify"
	"github.com/banshee-data/genburn/internal/db"
	"github.com/banshee-data/genburn/internal/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build, rule model and schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := db.LatestMigrationVersion()
		if err != nil {
			return err
		}
		info := version.Get()
		w := cmd.OutOrStdout()
		if versionJSON {
			return json.NewEncoder(w).Encode(struct {
				version.Info
				ModelVersion  string `json:"model_version"`
				SchemaVersion uint   `json:"schema_version"`
			}{info, classify.ModelVersion, schema})
		}
		fmt.Fprintln(w, info)
		fmt.Fprintf(w, "rules %s, schema v%d\n", classify.ModelVersion, schema)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}
