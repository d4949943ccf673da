package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskmatch/internal/auth"
	"taskmatch/internal/config"
)

type tokenOutput struct {
	Token      string `json:"token,omitempty"`
	Hash       string `json:"hash"`
	ConfigPath string `json:"config_path,omitempty"`
}

func newTokenCmd(jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create API bearer tokens and their bcrypt hashes",
	}

	cmd.AddCommand(newTokenGenerateCmd(jsonOutput))
	cmd.AddCommand(newTokenHashCmd(jsonOutput))
	return cmd
}

func newTokenGenerateCmd(jsonOutput *bool) *cobra.Command {
	var (
		set    bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			out := tokenOutput{Token: token, Hash: hash}

			if set {
				path, err := configPath(global)
				if err != nil {
					return err
				}
				if err := config.SetKey(path, "api_token_hash", hash); err != nil {
					return err
				}
				out.ConfigPath = path
			}

			if *jsonOutput {
				return writeJSON(out)
			}
			_ = writePlain("token: %s\n", out.Token)
			_ = writePlain("hash: %s\n", out.Hash)
			if out.ConfigPath != "" {
				_ = writePlain("api_token_hash written to %s\n", out.ConfigPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&set, "set", false, "store the hash as api_token_hash")
	cmd.Flags().BoolVar(&global, "global", false, "with --set, write to global config (~/.taskmatch.toml)")
	return cmd
}

func newTokenHashCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <token>",
		Short: "Print the bcrypt hash of an existing token",
		Args:  requireExactlyArgs(1, "token is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if err := auth.ValidateToken(token); err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(tokenOutput{Hash: hash})
			}
			return writePlain("%s\n", hash)
		},
	}
}

func configPath(global bool) (string, error) {
	if global {
		return config.GlobalPath()
	}
	return config.ProjectPath()
}
