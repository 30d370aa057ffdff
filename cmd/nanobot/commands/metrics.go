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

	"github.com/nanobot-ai/nanobot/pkg/metrics"
)

// newMetricsCmd creates the `nanobot metrics` command group for inspecting
// the JSONL telemetry the agent loop records under <workspace>/metrics.
func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Inspect recorded tool/LLM/session telemetry",
	}
	cmd.AddCommand(
		newMetricsSummaryCmd(),
		newMetricsToolsCmd(),
		newMetricsSessionsCmd(),
		newMetricsModelsCmd(),
	)
	return cmd
}

func metricsCollectorFromConfig(cmd *cobra.Command) (*metrics.Collector, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	return metrics.NewCollector(filepath.Join(cfg.WorkspacePath(), "metrics"), true), nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func newMetricsSummaryCmd() *cobra.Command {
	var hours float64
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "High-level session/token/tool summary over a recent window",
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, err := metricsCollectorFromConfig(cmd)
			if err != nil {
				return err
			}
			return printJSON(metrics.SummaryReport(collector, hours))
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 24, "report window in hours")
	return cmd
}

func newMetricsToolsCmd() *cobra.Command {
	var hours float64
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Per-tool call counts, success rate, and latency",
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, err := metricsCollectorFromConfig(cmd)
			if err != nil {
				return err
			}
			return printJSON(metrics.ToolReport(collector, hours))
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 24, "report window in hours")
	return cmd
}

func newMetricsSessionsCmd() *cobra.Command {
	var lastN int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Recent session summaries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, err := metricsCollectorFromConfig(cmd)
			if err != nil {
				return err
			}
			return printJSON(metrics.SessionReport(collector, lastN))
		},
	}
	cmd.Flags().IntVar(&lastN, "last", 20, "number of recent sessions to show")
	return cmd
}

func newMetricsModelsCmd() *cobra.Command {
	var hours float64
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Per-model token efficiency and success rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, err := metricsCollectorFromConfig(cmd)
			if err != nil {
				return err
			}
			return printJSON(metrics.ModelReport(collector, hours))
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 168, "report window in hours")
	return cmd
}
