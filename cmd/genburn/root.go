package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/genburn/internal/config"
	"github.com/banshee-data/genburn/internal/db"
	"github.com/banshee-data/genburn/internal/monitoring"
	"github.com/banshee-data/genburn/internal/storage/sqlite"
	"github.com/banshee-data/genburn/internal/thresholds"
)

const longDescription = `genburn classifies multispectral imagery and canopy height into land-cover
objects, assigns each a fire behaviour fuel model, and joins simulated burn
metrics back onto the classified objects.`

var rootCmd = &cobra.Command{
	Use:           "genburn",
	Short:         "Land-cover fuel classification and burn metric joining",
	Long:          longDescription,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return monitoring.Init(viper.GetBool("debug"))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		monitoring.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cfgFile string

// GetRootCmd returns the root command for use with fang.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "settings", "", "CLI settings file (default genburn.{yaml,json,toml} in . or $HOME)")
	pf.String("config", "", "tuning config JSON (default "+config.DefaultConfigPath+" when present)")
	pf.String("thresholds", "", "threshold table YAML (default built-in table)")
	pf.String("db", "genburn.db", "SQLite database path")
	pf.String("workspace", ".", "base directory for project workspaces")
	pf.Bool("debug", false, "enable debug logging")

	for _, name := range []string{"config", "thresholds", "db", "workspace", "debug"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}

	rootCmd.AddCommand(classifyCmd, burnCmd, thresholdsCmd, reportCmd, runsCmd, migrateCmd, versionCmd)
}

func initConfig() {
	// GENBURN_DB, GENBURN_WORKSPACE, GENBURN_DEBUG, ...
	viper.SetEnvPrefix("GENBURN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("genburn")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	err := viper.ReadInConfig()
	notFound := &viper.ConfigFileNotFoundError{}
	switch {
	case err != nil && !errors.As(err, notFound):
		cobra.CheckErr(err)
	case err == nil:
		fmt.Fprintln(os.Stderr, "Using settings file:", viper.ConfigFileUsed())
	}
}

// loadTuning reads the tuning config named by --config, falling back to
// the repository defaults file and then to built-in defaults.
func loadTuning() (*config.TuningConfig, error) {
	path := viper.GetString("config")
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyTuningConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadTuningConfig(path)
}

func loadThresholds() (*thresholds.Table, error) {
	if path := viper.GetString("thresholds"); path != "" {
		return thresholds.LoadFile(path)
	}
	return thresholds.Default(), nil
}

func openDB() (*db.DB, error) {
	d, err := db.Open(viper.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return d, nil
}

// resolveRun returns the run named by id, or the latest run when id is
// empty or "latest".
func resolveRun(runs *sqlite.RunStore, id string) (*sqlite.Run, error) {
	if id == "" || id == "latest" {
		return runs.Latest()
	}
	return runs.Get(id)
}
