// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/cron"
)

// CronExecutor drives a cron job's message through the agent loop when the
// job isn't a direct delivery.
type CronExecutor interface {
	ProcessDirectWithChannel(ctx context.Context, content, sessionKey, channel, chatID string) (string, error)
}

// CronTool lets the agent schedule, list, and manage cron jobs.
type CronTool struct {
	service  *cron.CronService
	executor CronExecutor
	bus      *bus.MessageBus
}

// NewCronTool wires a CronTool to its backing service, agent executor, and
// message bus. executor may be nil (direct-delivery jobs keep working).
func NewCronTool(service *cron.CronService, executor CronExecutor, msgBus *bus.MessageBus) *CronTool {
	return &CronTool{service: service, executor: executor, bus: msgBus}
}

func (t *CronTool) Name() string { return "cron" }

func (t *CronTool) Description() string {
	return "Schedule, list, enable/disable, or remove reminders and recurring jobs."
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"add", "list", "enable", "disable", "remove"},
				"description": "Operation to perform",
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Message to deliver or task to run when the job fires (required for action=add)",
			},
			"at_seconds": map[string]interface{}{
				"type":        "number",
				"description": "Fire once, this many seconds from now. Takes priority over cron_expr and every_seconds.",
			},
			"cron_expr": map[string]interface{}{
				"type":        "string",
				"description": "5-field POSIX cron expression. Takes priority over every_seconds.",
			},
			"every_seconds": map[string]interface{}{
				"type":        "number",
				"description": "Recur every this many seconds.",
			},
			"deliver": map[string]interface{}{
				"type":        "boolean",
				"description": "If true, send message directly to the channel. If false, route it through the agent as a new task.",
			},
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Target channel. Defaults to the calling channel.",
			},
			"chat_id": map[string]interface{}{
				"type":        "string",
				"description": "Target chat ID. Defaults to the calling chat.",
			},
			"job_id": map[string]interface{}{
				"type":        "string",
				"description": "Job ID (required for action=enable/disable/remove)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	action, _ := args["action"].(string)

	switch strings.ToLower(action) {
	case "add":
		return t.add(args)
	case "list":
		return t.list(), nil
	case "enable":
		return t.setEnabled(args, true)
	case "disable":
		return t.setEnabled(args, false)
	case "remove":
		return t.remove(args)
	default:
		return "", fmt.Errorf("unknown action: %s", action)
	}
}

func (t *CronTool) add(args map[string]interface{}) (string, error) {
	message, _ := args["message"].(string)
	if strings.TrimSpace(message) == "" {
		return "message is required for action=add", nil
	}

	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)
	if channel == "" || chatID == "" {
		ctxChannel, ctxChatID := getExecutionContext(args)
		if channel == "" {
			channel = ctxChannel
		}
		if chatID == "" {
			chatID = ctxChatID
		}
	}
	if channel == "" || chatID == "" {
		return "Error: no session context available; call from a channel or provide channel/chat_id", nil
	}

	schedule, err := buildCronSchedule(args)
	if err != nil {
		return err.Error(), nil
	}

	deliver := false
	if d, ok := args["deliver"].(bool); ok {
		deliver = d
	}

	name := fmt.Sprintf("job-%d", time.Now().UnixNano())

	job, err := t.service.AddJob(name, schedule, message, deliver, channel, chatID)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}

	return fmt.Sprintf("Created job %s (%s)", job.ID, job.Schedule.Kind), nil
}

func buildCronSchedule(args map[string]interface{}) (cron.CronSchedule, error) {
	if raw, ok := args["at_seconds"].(float64); ok && raw > 0 {
		at := time.Now().Add(time.Duration(raw * float64(time.Second))).UnixMilli()
		return cron.CronSchedule{Kind: "at", AtMS: &at}, nil
	}
	if expr, ok := args["cron_expr"].(string); ok && strings.TrimSpace(expr) != "" {
		return cron.CronSchedule{Kind: "cron", Expr: expr}, nil
	}
	if raw, ok := args["every_seconds"].(float64); ok && raw > 0 {
		ms := int64(raw * 1000)
		return cron.CronSchedule{Kind: "every", EveryMS: &ms}, nil
	}
	return cron.CronSchedule{}, fmt.Errorf("one of at_seconds, cron_expr, or every_seconds is required")
}

func (t *CronTool) list() string {
	jobs := t.service.ListJobs(true)
	if len(jobs) == 0 {
		return "No scheduled jobs."
	}

	var sb strings.Builder
	sb.WriteString("Scheduled jobs:\n")
	for _, job := range jobs {
		status := "enabled"
		if !job.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(&sb, "- %s [%s] %s: %q (%s/%s)\n", job.ID, job.Schedule.Kind, status, job.Payload.Message, job.Payload.Channel, job.Payload.To)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (t *CronTool) setEnabled(args map[string]interface{}, enabled bool) (string, error) {
	jobID, _ := args["job_id"].(string)
	if strings.TrimSpace(jobID) == "" {
		return "job_id is required", nil
	}

	job := t.service.EnableJob(jobID, enabled)
	if job == nil {
		return fmt.Sprintf("Job %s not found", jobID), nil
	}

	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	return fmt.Sprintf("Job %s %s", jobID, verb), nil
}

func (t *CronTool) remove(args map[string]interface{}) (string, error) {
	jobID, _ := args["job_id"].(string)
	if strings.TrimSpace(jobID) == "" {
		return "job_id is required", nil
	}

	if !t.service.RemoveJob(jobID) {
		return fmt.Sprintf("Job %s not found", jobID), nil
	}
	return fmt.Sprintf("Removed job %s", jobID), nil
}

// ExecuteJob runs a due job: direct delivery publishes straight to the
// outbound bus, otherwise the message is routed through the agent executor
// as a new task under a "cron-<job-id>" session key.
func (t *CronTool) ExecuteJob(ctx context.Context, job *cron.CronJob) string {
	if job.Payload.Deliver {
		t.bus.PublishOutbound(bus.OutboundMessage{
			Channel: job.Payload.Channel,
			ChatID:  job.Payload.To,
			Content: job.Payload.Message,
		})
		return "ok"
	}

	if t.executor == nil {
		return ""
	}

	sessionKey := fmt.Sprintf("cron-%s", job.ID)
	result, err := t.executor.ProcessDirectWithChannel(ctx, job.Payload.Message, sessionKey, job.Payload.Channel, job.Payload.To)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}
