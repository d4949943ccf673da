package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"taskmatch/internal/config"
	"taskmatch/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRawDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if inspect || dryRun {
				plan, err := store.MigrationPlan(db)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}

				if *jsonOutput {
					return writeJSON(plan)
				}

				return writeMigrationPlan(plan)
			}

			// Opening the store applies pending migrations.
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			plan, err := store.MigrationPlan(db)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(plan)
			}
			return writePlain("schema at version %d\n", plan.CurrentVersion)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	lines := []string{
		fmt.Sprintf("current version: %d", plan.CurrentVersion),
		fmt.Sprintf("available version: %d", plan.AvailableVersion),
	}
	if len(plan.Pending) == 0 {
		lines = append(lines, "no pending migrations")
	} else {
		lines = append(lines, fmt.Sprintf("pending migrations: %d", len(plan.Pending)))
		for _, m := range plan.Pending {
			lines = append(lines, fmt.Sprintf("  %d: %s", m.Version, m.Description))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}
