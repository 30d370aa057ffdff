// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package metrics

import (
	"path/filepath"
	"testing"
)

func TestCollector_RecordAndReadToolEvents(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	c.RecordToolEvent(ToolEvent{SessionID: "s1", ToolName: "bash", ToolSuccess: true, LatencyMs: 12})
	c.RecordToolEvent(ToolEvent{SessionID: "s1", ToolName: "read", ToolSuccess: false, Error: "not found"})

	events := c.ReadToolEvents(0)
	if len(events) != 2 {
		t.Fatalf("ReadToolEvents() returned %d events, want 2", len(events))
	}
	if events[0].ToolName != "bash" || events[1].ToolName != "read" {
		t.Errorf("unexpected event order: %+v", events)
	}
	if events[1].Error != "not found" {
		t.Errorf("Error = %q, want %q", events[1].Error, "not found")
	}
}

func TestCollector_ReadToolEvents_LimitReturnsTail(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	for i := 0; i < 5; i++ {
		c.RecordToolEvent(ToolEvent{ToolName: "t", Iteration: i})
	}

	events := c.ReadToolEvents(2)
	if len(events) != 2 {
		t.Fatalf("ReadToolEvents(2) returned %d events, want 2", len(events))
	}
	if events[0].Iteration != 3 || events[1].Iteration != 4 {
		t.Errorf("unexpected tail: %+v", events)
	}
}

func TestCollector_Disabled_RecordAndReadAreNoops(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")
	c := NewCollector(dir, false)

	c.RecordToolEvent(ToolEvent{ToolName: "bash"})
	c.RecordLLMEvent(LLMEvent{Model: "test"})
	c.RecordSession(SessionSummary{SessionID: "s1"})

	if got := c.ReadToolEvents(0); got != nil {
		t.Errorf("ReadToolEvents() = %v, want nil when disabled", got)
	}
	if got := c.ReadLLMEvents(0); got != nil {
		t.Errorf("ReadLLMEvents() = %v, want nil when disabled", got)
	}
	if got := c.ReadSessions(0); got != nil {
		t.Errorf("ReadSessions() = %v, want nil when disabled", got)
	}
}

func TestCollector_ReadMissingFile_ReturnsNilNotError(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	if got := c.ReadSessions(0); got != nil {
		t.Errorf("ReadSessions() on empty dir = %v, want nil", got)
	}
}

func TestCollector_RecordAndReadSessions(t *testing.T) {
	c := NewCollector(t.TempDir(), true)

	c.RecordSession(SessionSummary{SessionID: "a", Success: true, TotalTokens: 100})
	c.RecordSession(SessionSummary{SessionID: "b", Success: false, TotalTokens: 50, FailureReason: "timeout"})

	sessions := c.ReadSessions(0)
	if len(sessions) != 2 {
		t.Fatalf("ReadSessions() returned %d, want 2", len(sessions))
	}
	if sessions[1].FailureReason != "timeout" {
		t.Errorf("FailureReason = %q, want %q", sessions[1].FailureReason, "timeout")
	}
}
