// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nanobot-ai/nanobot/pkg/utils"
)

// WebFetchTool retrieves a URL's body as text, truncated to maxBytes.
type WebFetchTool struct {
	maxBytes int
	client   *http.Client
}

// NewWebFetchTool builds a WebFetchTool that truncates responses to
// maxBytes characters.
func NewWebFetchTool(maxBytes int) *WebFetchTool {
	if maxBytes <= 0 {
		maxBytes = 50000
	}
	return &WebFetchTool{
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch the contents of a URL and return it as text."
}

func (t *WebFetchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	url, ok := args["url"].(string)
	if !ok || strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching %s: %v", url, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxBytes)+1))
	if err != nil {
		return fmt.Sprintf("Error reading response from %s: %v", url, err), nil
	}

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: %s returned HTTP %d", url, resp.StatusCode), nil
	}

	return utils.Truncate(string(body), t.maxBytes), nil
}
