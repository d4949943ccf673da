package main

import (
	"bytes"

	"github.com/spf13/cobra"

	"taskmatch/internal/api"
	"taskmatch/internal/config"
	"taskmatch/internal/store"
)

func newGraphCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Import, show or delete project task graphs",
	}

	cmd.AddCommand(
		newGraphImportCmd(cfg, jsonOutput),
		newGraphShowCmd(cfg, jsonOutput),
		newGraphDeleteCmd(cfg),
	)
	return cmd
}

func newGraphImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a project's graph from a YAML or JSON fixture",
		Long:  "Import reads {project, nodes, edges, relations}. Use - to read from stdin.",
		Args:  requireExactlyArgs(1, "fixture file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			fixture, err := store.DecodeFixture(bytes.NewReader(data))
			if err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ImportGraph(cmd.Context(), fixture)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("imported %s: %d nodes, %d edges, %d relations\n", resp.Project, resp.Nodes, resp.Edges, resp.Relations)
			})
		},
	}
}

func newGraphShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner/name>",
		Short: "Show a project's task graph",
		Args:  requireExactlyArgs(1, "project is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetGraph(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeGraph(resp)
			})
		},
	}
}

func newGraphDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <owner/name>",
		Short: "Delete a project's task graph",
		Args:  requireExactlyArgs(1, "project is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteGraph(cmd.Context(), args[0]); err != nil {
					return err
				}
				return writePlain("deleted %s\n", args[0])
			})
		},
	}
}
