// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package tools implements the agent's callable tool surface: filesystem
// access, shell execution, memory, subagent spawning, message sending,
// cron scheduling, and web fetch/search. Every tool satisfies the Tool
// interface and is driven through a ToolRegistry, which also enforces an
// optional allow/deny execution policy and exposes the catalog in the
// shape providers need to hand to an LLM.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nanobot-ai/nanobot/pkg/providers"
)

// Tool is one callable capability the agent loop can invoke by name.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ToolRegistry holds the set of tools available to an agent and mediates
// every invocation through an optional execution policy.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	policy ToolExecutionPolicy
}

// NewToolRegistry returns an empty registry with policy checks disabled.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, replacing any existing tool registered under the
// same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// SetExecutionPolicy installs the allow/deny policy applied to every
// subsequent Execute/ExecuteWithContext call.
func (r *ToolRegistry) SetExecutionPolicy(policy ToolExecutionPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
}

func (r *ToolRegistry) lookup(name string) (Tool, ToolExecutionPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, r.policy, ok
}

// Execute runs a registered tool by name with no channel/chat context
// attached.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	tool, policy, ok := r.lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if err := policy.check(name); err != nil {
		return "", err
	}
	return tool.Execute(ctx, args)
}

// ExecuteWithContext runs a registered tool, first attaching the
// originating channel and chat ID to args so tools that need to route a
// reply (message, spawn, cron) can recover them via getExecutionContext.
func (r *ToolRegistry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID string) (string, error) {
	tool, policy, ok := r.lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if err := policy.check(name); err != nil {
		return "", err
	}
	traceID := TraceIDFromContext(ctx)
	return tool.Execute(ctx, withExecutionContext(args, channel, chatID, traceID))
}

// GetSummaries returns one human-readable "- name: description" line per
// registered tool, sorted by name, for embedding in a system prompt.
func (r *ToolRegistry) GetSummaries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]string, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, fmt.Sprintf("- %s: %s", name, r.tools[name].Description()))
	}
	return summaries
}

// GetDefinitions returns the registered tools' OpenAI-style function-calling
// schemas, sorted by name, as raw maps ready for json.Marshal or for a
// provider-specific translator to consume.
func (r *ToolRegistry) GetDefinitions() []map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		defs = append(defs, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return defs
}

// Get looks up a registered tool by name, bypassing execution policy. Used
// by callers (e.g. the agent loop) that need to reach into a specific
// tool's own API, such as MessageTool.SetContext.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every registered tool's name, sorted.
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProviderDefinitions returns the registered tools' catalog as
// providers.ToolDefinition values, the shape LLMProvider.Chat expects.
func (r *ToolRegistry) GetProviderDefinitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}
