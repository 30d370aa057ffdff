// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package commands implements the nanobot CLI: a daemon command that wires
// the agent loop to its channels, plus config/auth/cron management
// subcommands, all built on cobra the way the rest of the example stack
// does.
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nanobot-ai/nanobot/pkg/config"
)

// NewRootCmd builds the nanobot root command with its persistent flags and
// subcommands.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nanobot",
		Short:   "A personal AI agent that runs continuously across messaging channels",
		Version: version,
	}

	cmd.PersistentFlags().String("config", "", "path to config.json (defaults to <workspace>/config.json)")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newAuthCmd(),
		newCronCmd(),
		newMetricsCmd(),
	)

	return cmd
}

// resolveConfig loads config from the --config flag's path, falling back to
// the default workspace location, creating it with defaults if missing.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = defaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfigPath() string {
	cfg := config.DefaultConfig()
	return filepath.Join(cfg.WorkspacePath(), "config.json")
}
