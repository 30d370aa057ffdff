// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nanobot-ai/nanobot/pkg/agent"
	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/channels"
	"github.com/nanobot-ai/nanobot/pkg/config"
	"github.com/nanobot-ai/nanobot/pkg/cron"
	"github.com/nanobot-ai/nanobot/pkg/heartbeat"
	"github.com/nanobot-ai/nanobot/pkg/logger"
	"github.com/nanobot-ai/nanobot/pkg/providers"
	"github.com/nanobot-ai/nanobot/pkg/tools"
	"github.com/nanobot-ai/nanobot/pkg/voice"
)

// newServeCmd creates the `nanobot serve` command that starts the daemon:
// message bus, LLM provider, agent loop, enabled channel adapters, the
// heartbeat service, and the cron service, running until a shutdown
// signal arrives.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent daemon, connecting enabled channels",
		Long: `Start nanobot as a long-running daemon: it connects every enabled
messaging channel, processes inbound messages through the agent loop, and
fires the heartbeat and cron services on their configured schedules.

Examples:
  nanobot serve
  nanobot serve --config ./config.json
  nanobot serve --channel telegram --channel discord`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("channel", nil, "channels to enable (telegram, whatsapp, discord, slack, feishu, dingtalk, cli); defaults to every channel enabled in config")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	if verbose {
		logger.SetLevel(slog.LevelDebug)
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	agentLoop := agent.NewAgentLoop(cfg, msgBus, provider)

	var cronTool *tools.CronTool
	cronService := cron.NewCronService(filepath.Join(cfg.WorkspacePath(), "cron", "jobs.json"), func(job *cron.CronJob) (string, error) {
		if cronTool == nil {
			return "", nil
		}
		return cronTool.ExecuteJob(context.Background(), job), nil
	})
	cronTool = tools.NewCronTool(cronService, agentLoop, msgBus)
	agentLoop.RegisterTool(cronTool)

	manager := channels.NewManager(msgBus)
	channelFilter, _ := cmd.Flags().GetStringSlice("channel")
	if err := registerChannels(manager, cfg, msgBus, channelFilter); err != nil {
		return err
	}

	heartbeatSvc := heartbeat.NewHeartbeatService(cfg.WorkspacePath(), func(prompt string) (string, error) {
		return agentLoop.ProcessDirectWithChannel(context.Background(), prompt, "heartbeat", "system", cfg.Heartbeat.Channel+":"+cfg.Heartbeat.ChatID)
	}, cfg.Heartbeat.IntervalSeconds, cfg.Heartbeat.Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("starting channels: %w", err)
	}
	if err := cronService.Start(); err != nil {
		return fmt.Errorf("starting cron service: %w", err)
	}
	if err := heartbeatSvc.Start(); err != nil {
		return fmt.Errorf("starting heartbeat service: %w", err)
	}

	go func() {
		if err := agentLoop.Run(ctx); err != nil {
			logger.ErrorCF("serve", "agent loop exited", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.InfoCF("serve", "nanobot running, press Ctrl+C to stop", map[string]interface{}{
		"model":    cfg.Agents.Defaults.Model,
		"channels": manager.GetEnabledChannels(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.InfoCF("serve", "shutdown signal received, stopping", nil)

	heartbeatSvc.Stop()
	cronService.Stop()
	agentLoop.Stop()
	if err := manager.StopAll(ctx); err != nil {
		logger.ErrorCF("serve", "error stopping channels", map[string]interface{}{"error": err.Error()})
	}

	return nil
}

func registerChannels(manager *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus, filter []string) error {
	enabled := func(name string) bool {
		if len(filter) == 0 {
			return true
		}
		for _, f := range filter {
			if f == name {
				return true
			}
		}
		return false
	}

	if cfg.Telegram.Enabled && enabled("telegram") {
		ch, err := channels.NewTelegramChannel(cfg.Telegram, msgBus)
		if err != nil {
			return fmt.Errorf("creating telegram channel: %w", err)
		}
		if cfg.Providers.Groq.APIKey != "" {
			ch.SetTranscriber(voice.NewGroqTranscriber(cfg.Providers.Groq.APIKey, cfg.Providers.Groq.APIBase))
		}
		manager.RegisterChannel("telegram", ch)
	}

	if cfg.WhatsApp.Enabled && enabled("whatsapp") {
		ch, err := channels.NewWhatsAppChannel(cfg.WhatsApp, cfg.BridgeToken, msgBus)
		if err != nil {
			return fmt.Errorf("creating whatsapp channel: %w", err)
		}
		manager.RegisterChannel("whatsapp", ch)
	}

	if cfg.Discord.Enabled && enabled("discord") {
		ch, err := channels.NewDiscordChannel(cfg.Discord, msgBus)
		if err != nil {
			return fmt.Errorf("creating discord channel: %w", err)
		}
		manager.RegisterChannel("discord", ch)
	}

	if cfg.Slack.Enabled && enabled("slack") {
		ch, err := channels.NewSlackChannel(cfg.Slack, msgBus)
		if err != nil {
			return fmt.Errorf("creating slack channel: %w", err)
		}
		manager.RegisterChannel("slack", ch)
	}

	if cfg.Feishu.Enabled && enabled("feishu") {
		ch, err := channels.NewFeishuChannel(cfg.Feishu, msgBus)
		if err != nil {
			return fmt.Errorf("creating feishu channel: %w", err)
		}
		manager.RegisterChannel("feishu", ch)
	}

	if cfg.DingTalk.Enabled && enabled("dingtalk") {
		ch, err := channels.NewDingTalkChannel(cfg.DingTalk, msgBus)
		if err != nil {
			return fmt.Errorf("creating dingtalk channel: %w", err)
		}
		manager.RegisterChannel("dingtalk", ch)
	}

	if enabled("cli") && len(filter) > 0 {
		ch, err := channels.NewCLIChannel(msgBus)
		if err != nil {
			return fmt.Errorf("creating cli channel: %w", err)
		}
		manager.RegisterChannel("cli", ch)
	}

	return nil
}
