// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EditFileTool performs a single exact string replacement inside a file,
// restricted to paths under allowedDir.
type EditFileTool struct {
	allowedDir string
}

// NewEditFileTool builds an EditFileTool scoped to allowedDir.
func NewEditFileTool(allowedDir string) *EditFileTool {
	abs, err := filepath.Abs(allowedDir)
	if err != nil {
		abs = allowedDir
	}
	return &EditFileTool{allowedDir: abs}
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return "Replace an exact string occurrence in a file with new text."
}

func (t *EditFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to edit",
			},
			"old_text": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to find and replace",
			},
			"new_text": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text",
			},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditFileTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	oldText, ok := args["old_text"].(string)
	if !ok {
		return "", fmt.Errorf("old_text is required")
	}
	newText, ok := args["new_text"].(string)
	if !ok {
		return "", fmt.Errorf("new_text is required")
	}

	if err := t.checkWithinAllowedDir(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	count := strings.Count(content, oldText)
	if count == 0 {
		return "", fmt.Errorf("old_text not found in %s", path)
	}
	if count > 1 {
		return "", fmt.Errorf("old_text is not unique in %s (%d occurrences)", path, count)
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return "File edited successfully", nil
}

// checkWithinAllowedDir rejects any path that does not resolve under
// t.allowedDir, guarding against both ".." traversal and directories that
// merely share a string prefix with the allowed one (e.g. "workspace" vs
// "workspace-escape").
func (t *EditFileTool) checkWithinAllowedDir(path string) error {
	if t.allowedDir == "" {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path %s: %w", path, err)
	}

	rel, err := filepath.Rel(t.allowedDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside allowed directory %s", path, t.allowedDir)
	}
	return nil
}
