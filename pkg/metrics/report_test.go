// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package metrics

import (
	"testing"
	"time"
)

func TestSummaryReport_ComputesRatesAndTotals(t *testing.T) {
	c := NewCollector(t.TempDir(), true)
	now := time.Now().Format(time.RFC3339)

	c.RecordSession(SessionSummary{SessionID: "a", StartedAt: now, Success: true, TotalTokens: 100, TotalIterations: 4})
	c.RecordSession(SessionSummary{SessionID: "b", StartedAt: now, Success: false, TotalTokens: 50, TotalIterations: 2})
	c.RecordToolEvent(ToolEvent{Timestamp: now, ToolName: "bash", ToolSuccess: true})
	c.RecordToolEvent(ToolEvent{Timestamp: now, ToolName: "bash", ToolSuccess: false})
	c.RecordLLMEvent(LLMEvent{Timestamp: now, Model: "test-model"})

	summary := SummaryReport(c, 24)

	if summary.Overview.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", summary.Overview.TotalSessions)
	}
	if summary.Overview.SuccessRate != 50.0 {
		t.Errorf("SuccessRate = %v, want 50.0", summary.Overview.SuccessRate)
	}
	if summary.Overview.AvgIterationsPerSession != 3.0 {
		t.Errorf("AvgIterationsPerSession = %v, want 3.0", summary.Overview.AvgIterationsPerSession)
	}
	if summary.Tokens.Total != 150 {
		t.Errorf("Tokens.Total = %d, want 150", summary.Tokens.Total)
	}
	if summary.Tokens.AvgPerSession != 75 {
		t.Errorf("Tokens.AvgPerSession = %d, want 75", summary.Tokens.AvgPerSession)
	}
	if summary.Tokens.PerSuccess != 150 {
		t.Errorf("Tokens.PerSuccess = %d, want 150 (total tokens / success count)", summary.Tokens.PerSuccess)
	}
	if summary.Tools.TotalCalls != 2 || summary.Tools.SuccessRate != 50.0 {
		t.Errorf("Tools = %+v, want 2 calls at 50%%", summary.Tools)
	}
	if summary.LLMCalls != 1 {
		t.Errorf("LLMCalls = %d, want 1", summary.LLMCalls)
	}
}

func TestSummaryReport_EmptyWindowReturnsZeroes(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	summary := SummaryReport(c, 24)
	if summary.Overview.TotalSessions != 0 || summary.Overview.SuccessRate != 0 {
		t.Errorf("expected zeroed summary on empty collector, got %+v", summary)
	}
}

func TestToolReport_SortsByCallCountDescending(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	c.RecordToolEvent(ToolEvent{ToolName: "read", ToolSuccess: true, LatencyMs: 10})
	c.RecordToolEvent(ToolEvent{ToolName: "bash", ToolSuccess: true, LatencyMs: 20})
	c.RecordToolEvent(ToolEvent{ToolName: "bash", ToolSuccess: false, LatencyMs: 30, Error: "boom"})
	c.RecordToolEvent(ToolEvent{ToolName: "bash", ToolSuccess: true, LatencyMs: 40})

	rows := ToolReport(c, 24)
	if len(rows) != 2 {
		t.Fatalf("ToolReport() returned %d rows, want 2", len(rows))
	}
	if rows[0].Tool != "bash" || rows[0].Calls != 3 {
		t.Errorf("rows[0] = %+v, want bash with 3 calls", rows[0])
	}
	if rows[0].AvgLatencyMs != 30 {
		t.Errorf("AvgLatencyMs = %d, want 30", rows[0].AvgLatencyMs)
	}
	if rows[0].TopErrors["boom"] != 1 {
		t.Errorf("TopErrors = %+v, want boom:1", rows[0].TopErrors)
	}
	if rows[1].Tool != "read" || rows[1].Calls != 1 {
		t.Errorf("rows[1] = %+v, want read with 1 call", rows[1])
	}
}

func TestSessionReport_NewestFirst(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	c.RecordSession(SessionSummary{SessionID: "first"})
	c.RecordSession(SessionSummary{SessionID: "second"})
	c.RecordSession(SessionSummary{SessionID: "third"})

	rows := SessionReport(c, 2)
	if len(rows) != 2 {
		t.Fatalf("SessionReport(2) returned %d rows, want 2", len(rows))
	}
	if rows[0].SessionID != "third" || rows[1].SessionID != "second" {
		t.Errorf("expected newest-first order, got %+v", rows)
	}
}

func TestModelReport_SortedByModelName(t *testing.T) {
	c := NewCollector(t.TempDir(), true)
	now := time.Now().Format(time.RFC3339)

	c.RecordSession(SessionSummary{Model: "zeta", StartedAt: now, Success: true, TotalTokens: 10})
	c.RecordSession(SessionSummary{Model: "alpha", StartedAt: now, Success: false, TotalTokens: 20})
	c.RecordSession(SessionSummary{Model: "alpha", StartedAt: now, Success: true, TotalTokens: 30})

	rows := ModelReport(c, 168)
	if len(rows) != 2 {
		t.Fatalf("ModelReport() returned %d rows, want 2", len(rows))
	}
	if rows[0].Model != "alpha" || rows[1].Model != "zeta" {
		t.Errorf("expected alphabetical order, got %+v", rows)
	}
	if rows[0].Sessions != 2 || rows[0].TotalTokens != 50 {
		t.Errorf("alpha row = %+v, want 2 sessions totaling 50 tokens", rows[0])
	}
	if rows[0].TokensPerSuccess != 50 {
		t.Errorf("TokensPerSuccess = %d, want 50 (total model tokens / success count)", rows[0].TokensPerSuccess)
	}
}

func TestSinceWindow_ExcludesEventsOutsideHours(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	old := time.Now().Add(-48 * time.Hour).Format(time.RFC3339)
	recent := time.Now().Format(time.RFC3339)

	c.RecordSession(SessionSummary{SessionID: "old", StartedAt: old, TotalTokens: 999})
	c.RecordSession(SessionSummary{SessionID: "recent", StartedAt: recent, TotalTokens: 1})

	summary := SummaryReport(c, 24)
	if summary.Overview.TotalSessions != 1 {
		t.Fatalf("TotalSessions = %d, want 1 (old session outside 24h window)", summary.Overview.TotalSessions)
	}
	if summary.Tokens.Total != 1 {
		t.Errorf("Tokens.Total = %d, want 1 (only the recent session)", summary.Tokens.Total)
	}
}
