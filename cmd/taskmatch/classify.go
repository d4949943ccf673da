package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskmatch/internal/api"
	"taskmatch/internal/config"
	"taskmatch/internal/normalize"
	"taskmatch/internal/store"
)

func newClassifyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		event string
		local bool
	)

	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify an event envelope against its project's task graph",
		Long: `Classify reads an {"event": ..., "payload": {...}} envelope from a file or stdin.
With --event the input is a bare webhook payload of that kind.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			body, err := readInput(path)
			if err != nil {
				return err
			}
			env, err := buildEnvelope(event, body)
			if err != nil {
				return err
			}

			var resp api.ClassifyResponse
			if local {
				resp, err = classifyLocal(cmd.Context(), cfg, env)
				if err != nil {
					return err
				}
			} else {
				err = withClient(cfg, func(client *api.Client) error {
					resp, err = client.Classify(cmd.Context(), api.ClassifyRequest{Event: env.Event, Payload: env.Payload})
					return err
				})
				if err != nil {
					return err
				}
			}

			if *jsonOutput {
				return writeJSON(resp)
			}
			return writeResults(resp.Results)
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "treat the input as a raw payload of this event kind (push, pull_request, issues, issue_comment)")
	cmd.Flags().BoolVar(&local, "local", false, "classify in-process against the local database instead of the server")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func buildEnvelope(event string, body []byte) (normalize.Envelope, error) {
	var (
		env normalize.Envelope
		err error
	)
	if strings.TrimSpace(event) != "" {
		env, err = normalize.NewEnvelope(event, body)
	} else {
		env, err = normalize.ParseEnvelope(body)
	}
	if err != nil {
		return normalize.Envelope{}, fmt.Errorf("%w: expected {\"event\": string, \"payload\": object} or --event with a payload object", err)
	}
	return env, nil
}

// classifyLocal runs the pipeline against the configured database without a
// server. Metrics are not collected.
func classifyLocal(ctx context.Context, cfg *config.Config, env normalize.Envelope) (api.ClassifyResponse, error) {
	if cfg.DBPath == "" {
		return api.ClassifyResponse{}, fmt.Errorf("db path is required")
	}
	logger := slog.Default()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return api.ClassifyResponse{}, err
	}
	defer st.Close()

	snapshots, closeSnapshots, err := openSnapshotSource(ctx, cfg, st, logger)
	if err != nil {
		return api.ClassifyResponse{}, err
	}
	defer closeSnapshots()

	pipeline, err := newPipeline(cfg, snapshots, nil, logger)
	if err != nil {
		return api.ClassifyResponse{}, err
	}
	outcome, err := pipeline.Classify(ctx, env)
	if err != nil {
		return api.ClassifyResponse{}, err
	}
	return api.ClassifyResponse{Batch: outcome.Batch, Results: outcome.Results}, nil
}
