// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package metrics

import (
	"sort"
	"time"
)

// SummaryOverview is the headline session stats section of SummaryReport.
type SummaryOverview struct {
	TotalSessions           int     `json:"total_sessions"`
	SuccessRate             float64 `json:"success_rate"`
	AvgIterationsPerSession float64 `json:"avg_iterations_per_session"`
}

// SummaryTokens is the token-usage section of SummaryReport.
type SummaryTokens struct {
	TotalPrompt     int `json:"total_prompt"`
	TotalCompletion int `json:"total_completion"`
	Total           int `json:"total"`
	AvgPerSession   int `json:"avg_per_session"`
	PerSuccess      int `json:"per_success"`
}

// SummaryTools is the tool-call section of SummaryReport.
type SummaryTools struct {
	TotalCalls  int     `json:"total_calls"`
	SuccessRate float64 `json:"success_rate"`
}

// Summary is the top-level "how's the agent doing" report.
type Summary struct {
	PeriodHours float64         `json:"period_hours"`
	Overview    SummaryOverview `json:"overview"`
	Tokens      SummaryTokens   `json:"tokens"`
	Tools       SummaryTools    `json:"tools"`
	LLMCalls    int             `json:"llm_calls"`
}

// ToolStats is one tool's aggregate row in a ToolReport.
type ToolStats struct {
	Tool          string         `json:"tool"`
	Calls         int            `json:"calls"`
	SuccessRate   float64        `json:"success_rate"`
	AvgLatencyMs  int64          `json:"avg_latency_ms"`
	AvgInputSize  int            `json:"avg_input_size"`
	AvgOutputSize int            `json:"avg_output_size"`
	TopErrors     map[string]int `json:"top_errors"`
}

// SessionRow is one session's summary row in a SessionReport.
type SessionRow struct {
	SessionID     string   `json:"session_id"`
	StartedAt     string   `json:"started_at"`
	Success       bool     `json:"success"`
	Iterations    int      `json:"iterations"`
	ToolCalls     int      `json:"tool_calls"`
	TotalTokens   int      `json:"total_tokens"`
	DurationMs    int64    `json:"duration_ms"`
	Model         string   `json:"model"`
	ToolsUsed     []string `json:"tools_used"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// ModelStats is one model's aggregate row in a ModelReport.
type ModelStats struct {
	Model            string  `json:"model"`
	Sessions         int     `json:"sessions"`
	SuccessRate      float64 `json:"success_rate"`
	TotalTokens      int     `json:"total_tokens"`
	TokensPerSession int     `json:"tokens_per_session"`
	TokensPerSuccess int     `json:"tokens_per_success"`
}

// since returns the cutoff timestamp (RFC3339) for "the last `hours` hours",
// for comparison against event/session Timestamp/StartedAt strings, which
// are also RFC3339 and therefore lexically sortable.
func since(hours float64) string {
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	return cutoff.Format(time.RFC3339)
}

func sinceSessions(sessions []SessionSummary, hours float64) []SessionSummary {
	cutoff := since(hours)
	out := sessions[:0:0]
	for _, s := range sessions {
		if s.StartedAt >= cutoff {
			out = append(out, s)
		}
	}
	return out
}

func sinceLLMEvents(events []LLMEvent, hours float64) []LLMEvent {
	cutoff := since(hours)
	out := events[:0:0]
	for _, e := range events {
		if e.Timestamp >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

func sinceToolEvents(events []ToolEvent, hours float64) []ToolEvent {
	cutoff := since(hours)
	out := events[:0:0]
	for _, e := range events {
		if e.Timestamp >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

// SummaryReport returns a headline summary over the last `hours` hours.
func SummaryReport(c *Collector, hours float64) Summary {
	sessions := sinceSessions(c.ReadSessions(0), hours)
	llmEvents := sinceLLMEvents(c.ReadLLMEvents(0), hours)
	toolEvents := sinceToolEvents(c.ReadToolEvents(0), hours)

	totalSessions := len(sessions)
	successCount := 0
	totalPrompt, totalCompletion, totalTokens, totalIterations := 0, 0, 0, 0
	for _, s := range sessions {
		if s.Success {
			successCount++
		}
		totalPrompt += s.TotalPromptTokens
		totalCompletion += s.TotalCompletionTokens
		totalTokens += s.TotalTokens
		totalIterations += s.TotalIterations
	}

	var successRate float64
	if totalSessions > 0 {
		successRate = float64(successCount) / float64(totalSessions) * 100
	}

	avgTokens := 0
	if totalSessions > 0 {
		avgTokens = totalTokens / totalSessions
	}
	tokensPerSuccess := 0
	if successCount > 0 {
		tokensPerSuccess = totalTokens / successCount
	}

	totalToolCalls := len(toolEvents)
	toolSuccessCount := 0
	for _, t := range toolEvents {
		if t.ToolSuccess {
			toolSuccessCount++
		}
	}
	var toolSuccessRate float64
	if totalToolCalls > 0 {
		toolSuccessRate = float64(toolSuccessCount) / float64(totalToolCalls) * 100
	}

	var avgIterations float64
	if totalSessions > 0 {
		avgIterations = float64(totalIterations) / float64(totalSessions)
	}

	return Summary{
		PeriodHours: hours,
		Overview: SummaryOverview{
			TotalSessions:           totalSessions,
			SuccessRate:             round1(successRate),
			AvgIterationsPerSession: round1(avgIterations),
		},
		Tokens: SummaryTokens{
			TotalPrompt:     totalPrompt,
			TotalCompletion: totalCompletion,
			Total:           totalTokens,
			AvgPerSession:   avgTokens,
			PerSuccess:      tokensPerSuccess,
		},
		Tools: SummaryTools{
			TotalCalls:  totalToolCalls,
			SuccessRate: round1(toolSuccessRate),
		},
		LLMCalls: len(llmEvents),
	}
}

// ToolReport returns per-tool success rate, latency, and size stats over
// the last `hours` hours, sorted by call count descending.
func ToolReport(c *Collector, hours float64) []ToolStats {
	events := sinceToolEvents(c.ReadToolEvents(0), hours)

	byTool := make(map[string][]ToolEvent)
	var order []string
	for _, e := range events {
		name := e.ToolName
		if name == "" {
			name = "?"
		}
		if _, ok := byTool[name]; !ok {
			order = append(order, name)
		}
		byTool[name] = append(byTool[name], e)
	}

	rows := make([]ToolStats, 0, len(order))
	for _, name := range order {
		evts := byTool[name]
		total := len(evts)
		ok := 0
		var latSum, inSum, outSum int64
		errCounts := make(map[string]int)
		for _, e := range evts {
			if e.ToolSuccess {
				ok++
			}
			latSum += e.LatencyMs
			inSum += int64(e.InputSize)
			outSum += int64(e.OutputSize)
			if e.Error != "" {
				msg := e.Error
				if len(msg) > 120 {
					msg = msg[:120]
				}
				errCounts[msg]++
			}
		}
		denom := int64(total)
		if denom == 0 {
			denom = 1
		}

		var successRate float64
		if total > 0 {
			successRate = round1(float64(ok) / float64(total) * 100)
		}

		rows = append(rows, ToolStats{
			Tool:          name,
			Calls:         total,
			SuccessRate:   successRate,
			AvgLatencyMs:  latSum / denom,
			AvgInputSize:  int(inSum / denom),
			AvgOutputSize: int(outSum / denom),
			TopErrors:     topErrors(errCounts, 3),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Calls > rows[j].Calls })
	return rows
}

// topErrors returns the n most frequent error messages and their counts.
func topErrors(counts map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].v != kvs[j].v {
			return kvs[i].v > kvs[j].v
		}
		return kvs[i].k < kvs[j].k
	})
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make(map[string]int, len(kvs))
	for _, e := range kvs {
		out[e.k] = e.v
	}
	return out
}

// SessionReport returns the last lastN session summaries, newest first.
func SessionReport(c *Collector, lastN int) []SessionRow {
	sessions := c.ReadSessions(lastN)
	rows := make([]SessionRow, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		id := s.SessionID
		if id == "" {
			id = "?"
		}
		startedAt := s.StartedAt
		if startedAt == "" {
			startedAt = "?"
		}
		model := s.Model
		if model == "" {
			model = "?"
		}
		rows = append(rows, SessionRow{
			SessionID:     id,
			StartedAt:     startedAt,
			Success:       s.Success,
			Iterations:    s.TotalIterations,
			ToolCalls:     s.TotalToolCalls,
			TotalTokens:   s.TotalTokens,
			DurationMs:    s.DurationMs,
			Model:         model,
			ToolsUsed:     s.ToolsUsed,
			FailureReason: s.FailureReason,
		})
	}
	return rows
}

// ModelReport returns per-model token-efficiency and success-rate stats
// over the last `hours` hours (default period in callers: 168h / 7 days),
// sorted by model name.
func ModelReport(c *Collector, hours float64) []ModelStats {
	sessions := sinceSessions(c.ReadSessions(0), hours)

	byModel := make(map[string][]SessionSummary)
	for _, s := range sessions {
		model := s.Model
		if model == "" {
			model = "?"
		}
		byModel[model] = append(byModel[model], s)
	}

	names := make([]string, 0, len(byModel))
	for name := range byModel {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]ModelStats, 0, len(names))
	for _, name := range names {
		ss := byModel[name]
		total := len(ss)
		ok := 0
		tokens := 0
		for _, s := range ss {
			if s.Success {
				ok++
			}
			tokens += s.TotalTokens
		}

		var successRate float64
		if total > 0 {
			successRate = round1(float64(ok) / float64(total) * 100)
		}
		totalDenom := total
		if totalDenom == 0 {
			totalDenom = 1
		}
		okDenom := ok
		if okDenom == 0 {
			okDenom = 1
		}

		rows = append(rows, ModelStats{
			Model:            name,
			Sessions:         total,
			SuccessRate:      successRate,
			TotalTokens:      tokens,
			TokensPerSession: tokens / totalDenom,
			TokensPerSuccess: tokens / okDenom,
		})
	}
	return rows
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
