// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package tools

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

var dangerousPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"rm -r/-f", regexp.MustCompile(`(?i)\brm\s+-\w*[rf]\w*\b`)},
	{"del /f or /q", regexp.MustCompile(`(?i)\bdel\s+/[fq]\b`)},
	{"rmdir /s", regexp.MustCompile(`(?i)\brmdir\s+/s\b`)},
	{"format", regexp.MustCompile(`(?i)\bformat\s+\S+`)},
	{"mkfs", regexp.MustCompile(`(?i)\bmkfs\b`)},
	{"diskpart", regexp.MustCompile(`(?i)\bdiskpart\b`)},
	{"dd if=", regexp.MustCompile(`(?i)\bdd\s+if=`)},
	{"write to disk device", regexp.MustCompile(`(?i)>\s*/dev/sd\w`)},
	{"shutdown", regexp.MustCompile(`(?i)\bshutdown\b`)},
	{"reboot", regexp.MustCompile(`(?i)\breboot\b`)},
	{"poweroff", regexp.MustCompile(`(?i)\bpoweroff\b`)},
	{"fork bomb", regexp.MustCompile(`:\s*\(\)\s*\{[^}]*:\s*\|\s*:[^}]*\}\s*;\s*:`)},
}

// ExecTool runs a shell command inside a workspace, guarded by a fixed
// denylist of destructive patterns plus an optional allowlist and
// workspace-traversal restriction.
type ExecTool struct {
	workspace string

	mu                 sync.RWMutex
	allowPatterns      []*regexp.Regexp
	restrictToWorkspace bool
}

// NewExecTool builds an ExecTool that runs commands with workspace as the
// working directory.
func NewExecTool(workspace string) *ExecTool {
	return &ExecTool{workspace: workspace}
}

func (t *ExecTool) Name() string { return "exec" }

func (t *ExecTool) Description() string {
	return "Execute a shell command in the workspace and return its combined output."
}

func (t *ExecTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

// SetAllowPatterns restricts execution to commands matching at least one of
// the given regular expressions. An invalid pattern is rejected outright.
func (t *ExecTool) SetAllowPatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid allow pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowPatterns = compiled
	return nil
}

// SetRestrictToWorkspace enables blocking of path-traversal attempts
// (".." segments, forward or backward slash) in commands.
func (t *ExecTool) SetRestrictToWorkspace(restrict bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restrictToWorkspace = restrict
}

// guardCommand returns a non-empty rejection message if command should not
// run, or "" if it is safe to execute in cwd.
func (t *ExecTool) guardCommand(command, cwd string) string {
	for _, dp := range dangerousPatterns {
		if dp.re.MatchString(command) {
			return fmt.Sprintf("blocked: command matches dangerous pattern (%s)", dp.name)
		}
	}

	t.mu.RLock()
	restrict := t.restrictToWorkspace
	allow := t.allowPatterns
	t.mu.RUnlock()

	if restrict && strings.Contains(command, "..") {
		return "blocked: command attempts to traverse outside the workspace"
	}

	if len(allow) > 0 {
		matched := false
		for _, re := range allow {
			if re.MatchString(command) {
				matched = true
				break
			}
		}
		if !matched {
			return "blocked: command is not in allowlist"
		}
	}

	return ""
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, ok := args["command"].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("command is required")
	}

	if reason := t.guardCommand(command, t.workspace); reason != "" {
		return fmt.Sprintf("Error: %s", reason), nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workspace

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Sprintf("Error: %v\nOutput:\n%s", err, string(output)), nil
	}
	return string(output), nil
}
