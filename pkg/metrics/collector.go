// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package metrics records per-tool-call and per-LLM-call telemetry as
// append-only JSONL event logs, plus end-of-session summaries, so operators
// can answer "what did this agent actually do" without a metrics backend.
package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

const metricsComponent = "metrics"

// Collector appends tool/LLM events and session summaries to JSONL files
// under a metrics directory. Writes never fail the caller: a disk error is
// logged and swallowed, since metrics collection must never break the agent
// loop it's observing.
type Collector struct {
	dir       string
	enabled   bool
	mu        sync.Mutex
	toolPath  string
	llmPath   string
	sessPath  string
}

// NewCollector creates a Collector rooted at dir. An empty dir defaults to
// ~/.nanobot/metrics. Passing enabled=false makes every record/read call a
// no-op, for tests or offline runs that don't want JSONL files on disk.
func NewCollector(dir string, enabled bool) *Collector {
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".nanobot", "metrics")
		} else {
			dir = ".nanobot-metrics"
		}
	}
	return &Collector{
		dir:      dir,
		enabled:  enabled,
		toolPath: filepath.Join(dir, "tool_events.jsonl"),
		llmPath:  filepath.Join(dir, "llm_events.jsonl"),
		sessPath: filepath.Join(dir, "sessions.jsonl"),
	}
}

// Dir returns the metrics directory.
func (c *Collector) Dir() string { return c.dir }

// RecordToolEvent appends a ToolEvent.
func (c *Collector) RecordToolEvent(e ToolEvent) {
	if !c.enabled {
		return
	}
	c.append(c.toolPath, e)
}

// RecordLLMEvent appends an LLMEvent.
func (c *Collector) RecordLLMEvent(e LLMEvent) {
	if !c.enabled {
		return
	}
	c.append(c.llmPath, e)
}

// RecordSession appends a SessionSummary.
func (c *Collector) RecordSession(s SessionSummary) {
	if !c.enabled {
		return
	}
	c.append(c.sessPath, s)
}

func (c *Collector) append(path string, data interface{}) {
	encoded, err := json.Marshal(data)
	if err != nil {
		logger.WarnCF(metricsComponent, "failed to marshal metrics event", map[string]interface{}{"error": err.Error()})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.WarnCF(metricsComponent, "failed to create metrics directory", map[string]interface{}{"error": err.Error(), "path": path})
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.WarnCF(metricsComponent, "failed to open metrics file", map[string]interface{}{"error": err.Error(), "path": path})
		return
	}
	defer f.Close()

	if _, err := f.Write(append(encoded, '\n')); err != nil {
		logger.WarnCF(metricsComponent, "failed to write metrics event", map[string]interface{}{"error": err.Error(), "path": path})
	}
}

// ReadToolEvents reads back recorded ToolEvents. limit<=0 returns all;
// otherwise only the last limit entries are returned.
func (c *Collector) ReadToolEvents(limit int) []ToolEvent {
	var out []ToolEvent
	for _, line := range c.readLines(c.toolPath, limit) {
		var e ToolEvent
		if err := json.Unmarshal(line, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// ReadLLMEvents reads back recorded LLMEvents, same limit semantics as
// ReadToolEvents.
func (c *Collector) ReadLLMEvents(limit int) []LLMEvent {
	var out []LLMEvent
	for _, line := range c.readLines(c.llmPath, limit) {
		var e LLMEvent
		if err := json.Unmarshal(line, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// ReadSessions reads back recorded SessionSummaries, same limit semantics
// as ReadToolEvents.
func (c *Collector) ReadSessions(limit int) []SessionSummary {
	var out []SessionSummary
	for _, line := range c.readLines(c.sessPath, limit) {
		var s SessionSummary
		if err := json.Unmarshal(line, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// readLines returns the raw JSON lines in path, trimmed to the last limit
// entries when limit > 0. A missing file or read error yields no entries
// rather than an error, matching the Python collector's swallow-and-warn
// behavior.
func (c *Collector) readLines(path string, limit int) [][]byte {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	f, err := os.Open(path)
	c.mu.Unlock()
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnCF(metricsComponent, "failed to open metrics file for read", map[string]interface{}{"error": err.Error(), "path": path})
		}
		return nil
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		logger.WarnCF(metricsComponent, "failed to read metrics file", map[string]interface{}{"error": err.Error(), "path": path})
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}
