package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/docutag/seo-scraper/db"
)

var (
	migrationsDB       string
	migrationsRollback bool
)

var migrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "Show or roll back the schema of a history database",
	Long: `Show the schema migrations of the SQLite history database.
Opening the database applies pending migrations; --rollback then undoes the latest one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.New(db.Config{Driver: db.DriverSQLite, DSN: migrationsDB})
		if err != nil {
			return err
		}
		defer database.Close()

		if migrationsRollback {
			if err := db.Rollback(database.DB(), database.Driver()); err != nil {
				return err
			}
		}

		status, err := db.GetMigrationStatus(database.DB(), database.Driver())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		for _, m := range status {
			state := yellow("pending")
			if m.Applied {
				state = green("applied")
			}
			fmt.Fprintf(out, "  %3d  %s  %s\n", m.Version, state, m.Name)
		}
		return nil
	},
}

func init() {
	migrationsCmd.Flags().StringVar(&migrationsDB, "db", "./seo.db", "SQLite database written by analyze --db")
	migrationsCmd.Flags().BoolVar(&migrationsRollback, "rollback", false, "Roll back the latest migration")
	rootCmd.AddCommand(migrationsCmd)
}
