// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package voice transcribes incoming voice messages using Groq's hosted
// Whisper endpoint so channel adapters can fold speech into the text the
// agent already knows how to handle.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultTranscriptionAPIBase = "https://api.groq.com/openai/v1"
const defaultModel = "whisper-large-v3-turbo"

// Result is a completed transcription.
type Result struct {
	Text string
}

// GroqTranscriber transcribes audio files via Groq's OpenAI-compatible
// audio/transcriptions endpoint. A zero-value APIKey makes IsAvailable
// report false so callers can skip transcription cleanly.
type GroqTranscriber struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

// NewGroqTranscriber builds a transcriber for the given API key. apiBase
// defaults to Groq's public endpoint when empty.
func NewGroqTranscriber(apiKey, apiBase string) *GroqTranscriber {
	if apiBase == "" {
		apiBase = defaultTranscriptionAPIBase
	}
	return &GroqTranscriber{
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   defaultModel,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// IsAvailable reports whether the transcriber is configured with an API key.
func (t *GroqTranscriber) IsAvailable() bool {
	return t != nil && t.apiKey != ""
}

// Transcribe uploads the audio file at path and returns its transcribed text.
func (t *GroqTranscriber) Transcribe(ctx context.Context, path string) (*Result, error) {
	if !t.IsAvailable() {
		return nil, fmt.Errorf("groq transcriber not configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio into request: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := t.apiBase + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("groq transcription returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Result{Text: decoded.Text}, nil
}
