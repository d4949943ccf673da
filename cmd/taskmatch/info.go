package main

import (
	"github.com/spf13/cobra"

	"taskmatch/internal/api"
	"taskmatch/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and server info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if resp.DBPath == "" {
					resp.DBPath = cfg.DBPath
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("version: %s\n", resp.Version)
				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("store_driver: %s\n", resp.StoreDriver)
				_ = writePlain("classifier_mode: %s\n", resp.ClassifierMode)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("projects: %d\n", resp.Projects)
				_ = writePlain("  nodes: %d\n", resp.Nodes)
				_ = writePlain("  edges: %d\n", resp.Edges)
				_ = writePlain("  relations: %d\n", resp.Relations)
				_ = writePlain("deliveries: %d\n", resp.Deliveries)
				return nil
			})
		},
	}
	return cmd
}
