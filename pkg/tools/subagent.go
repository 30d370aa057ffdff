package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/llmloop"
	"github.com/nanobot-ai/nanobot/pkg/logger"
	"github.com/nanobot-ai/nanobot/pkg/providers"
	"github.com/nanobot-ai/nanobot/pkg/skills"
	"github.com/nanobot-ai/nanobot/pkg/utils"
)

// ErrSubagentTaskNotFound is returned by Cancel for an unknown task ID.
var ErrSubagentTaskNotFound = errors.New("subagent task not found")

// ErrSubagentNotRunning is returned by Cancel when the task has already
// finished (or is already being cancelled).
var ErrSubagentNotRunning = errors.New("subagent task is not running")

type SubagentTask struct {
	ID            string
	Task          string
	Label         string
	OriginChannel string
	OriginChatID  string
	ParentTaskID  string
	Status        string
	Result        string
	Created       int64
	Finished      int64
}

type SubagentManager struct {
	tasks     map[string]*SubagentTask
	cancels   map[string]context.CancelFunc
	mu        sync.RWMutex
	provider  providers.LLMProvider
	model     string
	bus       *bus.MessageBus
	workspace string
	nextID    int

	retentionMax int
	retentionTTL time.Duration
}

func NewSubagentManager(provider providers.LLMProvider, model string, workspace string, bus *bus.MessageBus) *SubagentManager {
	return &SubagentManager{
		tasks:     make(map[string]*SubagentTask),
		cancels:   make(map[string]context.CancelFunc),
		provider:  provider,
		model:     model,
		bus:       bus,
		workspace: workspace,
		nextID:    1,
	}
}

// ConfigureRetention bounds how many finished tasks are kept in memory:
// at most maxTasks terminal-status tasks survive a cleanup pass, and any
// terminal task older than ttl since it finished is dropped regardless of
// count. Either limit may be disabled by passing <= 0.
func (sm *SubagentManager) ConfigureRetention(maxTasks int, ttl time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.retentionMax = maxTasks
	sm.retentionTTL = ttl
}

func (sm *SubagentManager) Spawn(ctx context.Context, task, label, originChannel, originChatID, parentTaskID string) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	taskID := fmt.Sprintf("subagent-%d", sm.nextID)
	sm.nextID++

	subagentTask := &SubagentTask{
		ID:            taskID,
		Task:          task,
		Label:         label,
		OriginChannel: originChannel,
		OriginChatID:  originChatID,
		ParentTaskID:  parentTaskID,
		Status:        "running",
		Created:       time.Now().UnixMilli(),
	}
	sm.tasks[taskID] = subagentTask

	taskCtx, cancel := context.WithCancel(ctx)
	sm.cancels[taskID] = cancel

	go sm.runTask(taskCtx, subagentTask)

	if label != "" {
		return fmt.Sprintf("Spawned subagent '%s' for task: %s", label, task), nil
	}
	return fmt.Sprintf("Spawned subagent for task: %s", task), nil
}

// Cancel requests that a running task stop. It returns ErrSubagentTaskNotFound
// if taskID is unknown, or ErrSubagentNotRunning if the task has already
// finished or a cancellation is already in flight.
func (sm *SubagentManager) Cancel(taskID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	task, ok := sm.tasks[taskID]
	if !ok {
		return ErrSubagentTaskNotFound
	}
	if task.Status != "running" {
		return ErrSubagentNotRunning
	}

	cancel, ok := sm.cancels[taskID]
	if !ok {
		return ErrSubagentNotRunning
	}

	task.Status = "cancelling"
	cancel()
	return nil
}

func (sm *SubagentManager) runTask(ctx context.Context, task *SubagentTask) {
	sm.mu.Lock()
	task.Created = time.Now().UnixMilli()
	sm.mu.Unlock()

	// Build a subagent-only tool registry.
	registry := NewToolRegistry()
	registry.Register(&ReadFileTool{})
	registry.Register(&WriteFileTool{})
	registry.Register(&ListDirTool{})
	registry.Register(NewExecTool(sm.workspace))
	registry.Register(NewEditFileTool(sm.workspace))
	registry.Register(NewWebFetchTool(50000))
	// Web search requires an API key; the tool will self-report if missing.
	registry.Register(NewWebSearchTool("", 5))
	registry.Register(NewSubagentReportTool(sm.bus, task.ID, task.Label, task.OriginChannel, task.OriginChatID))

	systemPrompt := sm.buildSubagentSystemPrompt(registry)
	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: task.Task},
	}

	model := sm.model
	if model == "" {
		model = sm.provider.GetDefaultModel()
	}

	runResult, runErr := llmloop.Run(ctx, llmloop.RunOptions{
		Provider:      sm.provider,
		Model:         model,
		MaxIterations: 10,
		LLMTimeout:    2 * time.Minute,
		ChatOptions: providers.ChatOptions{MaxTokens: 4096, Temperature: 0.3}.ToMap(),
		Messages: messages,
		BuildToolDefs: func(iteration int, msgs []providers.Message) []providers.ToolDefinition {
			return sm.buildProviderToolDefinitions(registry)
		},
		ExecuteTools: func(ctx context.Context, toolCalls []providers.ToolCall, iteration int) []providers.Message {
			results := make([]providers.Message, 0, len(toolCalls))
			for _, tc := range toolCalls {
				argsJSON, _ := json.Marshal(tc.Arguments)
				argsPreview := utils.Truncate(string(argsJSON), 200)
				logger.InfoCF("subagent", fmt.Sprintf("Tool call: %s(%s)", tc.Name, argsPreview),
					map[string]interface{}{
						"task_id":     task.ID,
						"iteration":   iteration,
						"tool":        tc.Name,
						"tool_callID": tc.ID,
					})

				result, err := registry.Execute(ctx, tc.Name, tc.Arguments)
				if err != nil {
					result = fmt.Sprintf("Error: %v", err)
				}

				results = append(results, providers.Message{
					Role:       "tool",
					Content:    result,
					ToolCallID: tc.ID,
				})
			}
			return results
		},
		Hooks: llmloop.Hooks{
			BeforeLLMCall: func(iteration int, msgs []providers.Message, toolDefs []providers.ToolDefinition) {
				logger.InfoCF("subagent", "Calling LLM",
					map[string]interface{}{
						"task_id":        task.ID,
						"iteration":      iteration,
						"model":          model,
						"messages_count": len(msgs),
						"tools_count":    len(toolDefs),
					})
			},
		},
	})

	final := runResult.FinalContent
	finalErr := runErr

	sm.mu.Lock()
	task.Finished = time.Now().UnixMilli()
	delete(sm.cancels, task.ID)
	switch {
	case finalErr != nil && errors.Is(finalErr, context.Canceled):
		task.Status = "cancelled"
		task.Result = "Cancelled"
	case finalErr != nil:
		task.Status = "failed"
		task.Result = fmt.Sprintf("Error: %v", finalErr)
	default:
		task.Status = "completed"
		task.Result = final
	}
	sm.cleanupLocked(time.Now())
	sm.mu.Unlock()

	// Send completion message back to main agent.
	if sm.bus != nil {
		label := task.Label
		if label == "" {
			label = task.ID
		}
		announceContent := fmt.Sprintf("Task '%s' completed.\n\nResult:\n%s", label, task.Result)
		sm.bus.PublishInbound(bus.InboundMessage{
			Channel:  "system",
			SenderID: fmt.Sprintf("subagent:%s", task.ID),
			// Format: "original_channel:original_chat_id" for routing back
			ChatID: fmt.Sprintf("%s:%s", task.OriginChannel, task.OriginChatID),
			Content: announceContent,
			Metadata: map[string]string{
				"subagent_event":   "complete",
				"subagent_task_id": task.ID,
			},
		})
	}
}

func isTerminalSubagentStatus(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	default:
		return false
	}
}

// cleanupLocked trims terminal-status tasks past retentionTTL and, if the
// task count still exceeds retentionMax, drops the oldest terminal tasks
// until it doesn't. Caller must hold sm.mu.
func (sm *SubagentManager) cleanupLocked(now time.Time) {
	if sm.retentionTTL > 0 {
		for id, task := range sm.tasks {
			if !isTerminalSubagentStatus(task.Status) || task.Finished == 0 {
				continue
			}
			if now.Sub(time.UnixMilli(task.Finished)) > sm.retentionTTL {
				delete(sm.tasks, id)
				delete(sm.cancels, id)
			}
		}
	}

	if sm.retentionMax > 0 && len(sm.tasks) > sm.retentionMax {
		type entry struct {
			id      string
			created int64
		}
		var terminal []entry
		for id, task := range sm.tasks {
			if isTerminalSubagentStatus(task.Status) {
				terminal = append(terminal, entry{id, task.Created})
			}
		}
		sort.Slice(terminal, func(i, j int) bool { return terminal[i].created < terminal[j].created })

		excess := len(sm.tasks) - sm.retentionMax
		for _, e := range terminal {
			if excess <= 0 {
				break
			}
			delete(sm.tasks, e.id)
			delete(sm.cancels, e.id)
			excess--
		}
	}
}

func (sm *SubagentManager) buildSubagentSystemPrompt(registry *ToolRegistry) string {
	// Build tools section dynamically
	toolsSection := ""
	summaries := registry.GetSummaries()
	if len(summaries) > 0 {
		toolsSection = "## Available Tools\n\n" +
			"**CRITICAL**: You MUST use tools to perform actions. Do NOT pretend to execute commands.\n\n" +
			"You have access to the following tools:\n\n" +
			strings.Join(summaries, "\n")
	}

	// Skills summary (same loader behavior as main agent: workspace > global > builtin)
	wd, _ := os.Getwd()
	globalSkillsDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalSkillsDir = filepath.Join(home, ".nanobot", "skills")
	}
	loader := skills.NewSkillsLoader(sm.workspace, globalSkillsDir, filepath.Join(wd, "skills"))
	skillsSummary := loader.BuildSkillsSummary()
	if skillsSummary != "" {
		skillsSummary = "## Skills\n\nThe following skills extend your capabilities. To use a skill, read its SKILL.md file using the read_file tool.\n\n" + skillsSummary
	}

	workspacePath, _ := filepath.Abs(filepath.Join(sm.workspace))

	parts := []string{
		"# nanobot subagent",
		"You are a background subagent working for the main nanobot agent.",
		"\nRules:",
		"1. Use tools when you need to perform an action.",
		"2. Do NOT message the end user. Use `subagent_report` to communicate with the main agent.",
		"3. When finished, provide a clear result and include any artifact file paths.",
		fmt.Sprintf("\nWorkspace: %s", workspacePath),
	}

	if toolsSection != "" {
		parts = append(parts, "\n"+toolsSection)
	}
	if skillsSummary != "" {
		parts = append(parts, "\n"+skillsSummary)
	}

	return strings.Join(parts, "\n")
}

func (sm *SubagentManager) buildProviderToolDefinitions(registry *ToolRegistry) []providers.ToolDefinition {
	schemas := registry.GetDefinitions()
	defs := make([]providers.ToolDefinition, 0, len(schemas))
	for _, td := range schemas {
		fn, ok := td["function"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]interface{})
		typeStr, _ := td["type"].(string)
		if name == "" || typeStr == "" {
			continue
		}
		defs = append(defs, providers.ToolDefinition{
			Type: typeStr,
			Function: providers.ToolFunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  params,
			},
		})
	}
	return defs
}

func (sm *SubagentManager) GetTask(taskID string) (*SubagentTask, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	task, ok := sm.tasks[taskID]
	return task, ok
}

func (sm *SubagentManager) ListTasks() []*SubagentTask {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	tasks := make([]*SubagentTask, 0, len(sm.tasks))
	for _, task := range sm.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}
