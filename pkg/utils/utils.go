// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package utils collects small stateless helpers shared across channel
// adapters and tools: string truncation for log previews and metrics
// error strings, and a best-effort HTTP file downloader for media
// attachments.
package utils

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// Truncate trims s to at most n runes, appending an ellipsis marker when
// truncated. Used for log previews and metrics error strings (capped at
// 120 chars by callers per spec).
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// DownloadOptions configures DownloadFile.
type DownloadOptions struct {
	// LoggerPrefix is the component name used for log lines.
	LoggerPrefix string
	// Dir overrides the destination directory; defaults to os.TempDir().
	Dir string
	// Timeout bounds the HTTP request; defaults to 30s.
	Timeout time.Duration
}

// DownloadFile fetches url and writes it to a file named filename inside
// opts.Dir (or the OS temp dir). Returns the local path, or "" on failure
// (failures are logged, never returned as an error — callers treat media
// download as best-effort).
func DownloadFile(url, filename string, opts DownloadOptions) string {
	component := opts.LoggerPrefix
	if component == "" {
		component = "download"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		logger.ErrorCF(component, "Download request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.ErrorCF(component, "Download returned non-200 status", map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		})
		return ""
	}

	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.ErrorCF(component, "Failed to create download dir", map[string]interface{}{
			"dir":   dir,
			"error": err.Error(),
		})
		return ""
	}

	safeName := strings.ReplaceAll(filepath.Base(filename), string(os.PathSeparator), "_")
	destPath := filepath.Join(dir, safeName)

	out, err := os.Create(destPath)
	if err != nil {
		logger.ErrorCF(component, "Failed to create local file", map[string]interface{}{
			"path":  destPath,
			"error": err.Error(),
		})
		return ""
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		logger.ErrorCF(component, "Failed to write downloaded file", map[string]interface{}{
			"path":  destPath,
			"error": err.Error(),
		})
		os.Remove(destPath)
		return ""
	}

	return destPath
}
