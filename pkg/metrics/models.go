// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package metrics

// ToolEvent is a single tool invocation record.
type ToolEvent struct {
	Timestamp   string `json:"ts"`
	SessionID   string `json:"session_id"`
	ToolName    string `json:"tool_name"`
	ToolSuccess bool   `json:"tool_success"`
	LatencyMs   int64  `json:"latency_ms"`
	InputSize   int    `json:"input_size"`
	OutputSize  int    `json:"output_size"`
	Error       string `json:"error,omitempty"`
	Iteration   int    `json:"iteration"`
}

// LLMEvent is a single LLM API call record.
type LLMEvent struct {
	Timestamp        string `json:"ts"`
	SessionID        string `json:"session_id"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	HasToolCalls     bool   `json:"has_tool_calls"`
	NumToolCalls     int    `json:"num_tool_calls"`
	LatencyMs        int64  `json:"latency_ms"`
	Iteration        int    `json:"iteration"`
	FinishReason     string `json:"finish_reason"`
}

// SessionSummary is an end-of-session aggregate record.
type SessionSummary struct {
	SessionID             string   `json:"session_id"`
	StartedAt             string   `json:"started_at"`
	EndedAt               string   `json:"ended_at"`
	DurationMs            int64    `json:"duration_ms"`
	Success               bool     `json:"success"`
	TotalIterations       int      `json:"total_iterations"`
	TotalToolCalls        int      `json:"total_tool_calls"`
	TotalLLMCalls         int      `json:"total_llm_calls"`
	TotalPromptTokens     int      `json:"total_prompt_tokens"`
	TotalCompletionTokens int      `json:"total_completion_tokens"`
	TotalTokens           int      `json:"total_tokens"`
	ToolsUsed             []string `json:"tools_used,omitempty"`
	FailureReason         string   `json:"failure_reason,omitempty"`
	TaskType              string   `json:"task_type,omitempty"`
	Channel               string   `json:"channel,omitempty"`
	Model                 string   `json:"model,omitempty"`
}
