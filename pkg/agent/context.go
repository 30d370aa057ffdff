// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nanobot-ai/nanobot/pkg/providers"
	"github.com/nanobot-ai/nanobot/pkg/skills"
	"github.com/nanobot-ai/nanobot/pkg/tools"
)

// ContextBuilder assembles the system prompt and message window sent to the
// LLM on every agent loop iteration, reading the workspace's plain-text
// prompt fragments (AGENTS.md, SOUL.md, USER.md, memory/MEMORY.md,
// memory/HISTORY.md) and the registered tools' and skills' summaries.
type ContextBuilder struct {
	workspace string
	tools     *tools.ToolRegistry
}

// NewContextBuilder builds a ContextBuilder rooted at workspace.
func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{workspace: workspace}
}

// SetToolsRegistry wires the tool registry whose summaries are embedded in
// the system prompt.
func (cb *ContextBuilder) SetToolsRegistry(registry *tools.ToolRegistry) {
	cb.tools = registry
}

// BuildMessages assembles the full message list for one LLM call: a system
// prompt (persona + tools + skills + memory context), the session's prior
// history, an optional rolling summary folded in as a system note, and the
// new user message. extra is reserved for future per-call context
// injection and is currently unused.
func (cb *ContextBuilder) BuildMessages(history []providers.Message, summary, userMessage string, extra interface{}, channel, chatID string) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+3)
	messages = append(messages, providers.Message{Role: "system", Content: cb.buildSystemPrompt(channel, chatID)})

	if strings.TrimSpace(summary) != "" {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "Summary of earlier conversation:\n" + summary,
		})
	}

	messages = append(messages, history...)

	if userMessage != "" {
		messages = append(messages, providers.Message{Role: "user", Content: userMessage})
	}

	return messages
}

func (cb *ContextBuilder) buildSystemPrompt(channel, chatID string) string {
	parts := []string{"# nanobot agent", "You are nanobot, a personal AI agent operating continuously on the user's behalf."}

	if soul := cb.readWorkspaceFile("SOUL.md"); soul != "" {
		parts = append(parts, "## Persona\n\n"+soul)
	}
	if agents := cb.readWorkspaceFile("AGENTS.md"); agents != "" {
		parts = append(parts, "## Operating Instructions\n\n"+agents)
	}
	if user := cb.readWorkspaceFile("USER.md"); user != "" {
		parts = append(parts, "## About the User\n\n"+user)
	}
	if memory := cb.readWorkspaceFile(filepath.Join("memory", "MEMORY.md")); memory != "" {
		parts = append(parts, "## Long-Term Memory\n\n"+memory)
	}
	if history := cb.readWorkspaceFile(filepath.Join("memory", "HISTORY.md")); history != "" {
		parts = append(parts, "## Recent History\n\n"+history)
	}

	if cb.tools != nil {
		summaries := cb.tools.GetSummaries()
		if len(summaries) > 0 {
			parts = append(parts, "## Available Tools\n\n"+
				"**CRITICAL**: You MUST use tools to perform actions. Do NOT pretend to execute commands.\n\n"+
				strings.Join(summaries, "\n"))
		}
	}

	if skillsSummary := cb.skillsSummary(); skillsSummary != "" {
		parts = append(parts, "## Skills\n\nThe following skills extend your capabilities. To use one, read its SKILL.md file using the read_file tool.\n\n"+skillsSummary)
	}

	parts = append(parts, fmt.Sprintf("## Current Context\n\nChannel: %s\nChat ID: %s\nWorkspace: %s", channel, chatID, cb.workspace))

	return strings.Join(parts, "\n\n")
}

func (cb *ContextBuilder) skillsSummary() string {
	wd, _ := os.Getwd()
	globalSkillsDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalSkillsDir = filepath.Join(home, ".nanobot", "skills")
	}
	loader := skills.NewSkillsLoader(cb.workspace, globalSkillsDir, filepath.Join(wd, "skills"))
	return loader.BuildSkillsSummary()
}

// GetSkillsInfo reports discovered skills for GetStartupInfo's diagnostics.
func (cb *ContextBuilder) GetSkillsInfo() map[string]interface{} {
	wd, _ := os.Getwd()
	globalSkillsDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalSkillsDir = filepath.Join(home, ".nanobot", "skills")
	}
	loader := skills.NewSkillsLoader(cb.workspace, globalSkillsDir, filepath.Join(wd, "skills"))
	discovered := loader.Discover()

	names := make([]string, 0, len(discovered))
	for _, s := range discovered {
		names = append(names, s.Name)
	}

	return map[string]interface{}{
		"count": len(discovered),
		"names": names,
	}
}

func (cb *ContextBuilder) readWorkspaceFile(relPath string) string {
	if cb.workspace == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(cb.workspace, relPath))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
