// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nanobot-ai/nanobot/pkg/cron"
)

// newCronCmd creates the `nanobot cron` command group for inspecting the
// on-disk job store without starting the daemon.
func newCronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect scheduled cron jobs",
	}

	cmd.AddCommand(newCronListCmd(), newCronRemoveCmd())
	return cmd
}

func newCronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every scheduled job, including disabled ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			service := cron.NewCronService(filepath.Join(cfg.WorkspacePath(), "cron", "jobs.json"), nil)
			jobs := service.ListJobs(true)
			if len(jobs) == 0 {
				fmt.Println("No scheduled jobs.")
				return nil
			}

			data, err := json.MarshalIndent(jobs, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling jobs: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newCronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a scheduled job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			path := filepath.Join(cfg.WorkspacePath(), "cron", "jobs.json")
			service := cron.NewCronService(path, nil)
			if !service.RemoveJob(args[0]) {
				return fmt.Errorf("job %s not found", args[0])
			}
			fmt.Printf("Removed job %s\n", args[0])
			return nil
		},
	}
}
