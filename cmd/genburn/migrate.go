package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/genburn/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect or change the database schema version",
	Long: `Other commands migrate the database to the latest schema on open. These
subcommands open it without doing so, to step the schema or recover from a
dirty migration.`,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current and latest schema versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRawDB(func(d *db.DB) error {
			return printMigrateStatus(cmd, d)
		})
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRawDB(func(d *db.DB) error {
			if err := d.MigrateUp(); err != nil {
				return err
			}
			return printMigrateStatus(cmd, d)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRawDB(func(d *db.DB) error {
			if err := d.MigrateDown(); err != nil {
				return err
			}
			return printMigrateStatus(cmd, d)
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations",
	Long:  `Marks the schema as clean at <version>. Use only after repairing a dirty migration by hand.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withRawDB(func(d *db.DB) error {
			if err := d.MigrateForce(version); err != nil {
				return err
			}
			return printMigrateStatus(cmd, d)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateUpCmd, migrateDownCmd, migrateForceCmd)
}

func withRawDB(fn func(*db.DB) error) error {
	d, err := db.OpenDB(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer d.Close()
	return fn(d)
}

func printMigrateStatus(cmd *cobra.Command, d *db.DB) error {
	version, dirty, err := d.MigrateVersion()
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema v%d (%s), latest v%d\n", version, state, latest)
	return nil
}
