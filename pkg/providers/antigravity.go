// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// antigravityLiteLLMPrefixes are provider-routing prefixes a caller's model
// string may carry (from the OpenRouter/LiteLLM convention used elsewhere in
// this module); the Antigravity API body wants the bare model name.
var antigravityLiteLLMPrefixes = []string{"anthropic/", "openai/", "google/", "antigravity/"}

// AntigravityProvider drives the Antigravity/Gemini backend behind the
// CLI's OAuth-PKCE multi-account login (see antigravity_auth.go). Unlike
// HTTPProvider it speaks Gemini's v1internal wire format directly, so
// requests/responses are translated at the edges by antigravity_transform.go.
type AntigravityProvider struct {
	auth            *AntigravityAuthManager
	providedProject string
	httpClient      *http.Client

	sessionID string

	mu               sync.Mutex
	projectIDByEmail map[string]string
}

// NewAntigravityProvider builds a provider against the given auth manager.
// projectID overrides project discovery entirely; leave it empty to let the
// provider discover the real cloudaicompanionProject per account via
// loadCodeAssist, caching the result for this instance's lifetime.
func NewAntigravityProvider(authMgr *AntigravityAuthManager, projectID string) *AntigravityProvider {
	return &AntigravityProvider{
		auth:             authMgr,
		providedProject:  projectID,
		sessionID:        "-" + uuid.NewString(),
		projectIDByEmail: make(map[string]string),
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

func (p *AntigravityProvider) GetDefaultModel() string {
	return antigravityDefaultModel
}

func (p *AntigravityProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	body, err := p.buildRequestBody(ctx, messages, tools, model, options)
	if err != nil {
		return nil, err
	}

	respBody, err := p.sendWithFallback(ctx, antigravityGenerateContentPath, body)
	if err != nil {
		return nil, err
	}
	return parseGeminiResponse(respBody)
}

// StreamChat satisfies StreamingLLMProvider, reading Server-Sent Events off
// the streamGenerateContent endpoint and translating each event into a
// wire-neutral LLMStreamChunk.
func (p *AntigravityProvider) StreamChat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (<-chan LLMStreamChunk, error) {
	body, err := p.buildRequestBody(ctx, messages, tools, model, options)
	if err != nil {
		return nil, err
	}

	resp, endpoint, err := p.sendStreamWithFallback(ctx, antigravityStreamGenerateContentPath, body)
	if err != nil {
		return nil, err
	}

	out := make(chan LLMStreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "" || data == "[DONE]" {
				continue
			}
			chunk, err := parseGeminiStreamChunk([]byte(data))
			if err != nil {
				logger.WarnCF("antigravity", "failed to parse stream chunk", map[string]interface{}{"error": err.Error(), "endpoint": endpoint})
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.WarnCF("antigravity", "stream read error", map[string]interface{}{"error": err.Error()})
		}
		out <- LLMStreamChunk{Done: true}
	}()

	return out, nil
}

// resolveModel maps a caller-supplied model string to the bare name the
// Antigravity API expects: strips LiteLLM-style provider prefixes and the
// antigravity- routing prefix, applies aliases, strips a -preview suffix,
// and defaults an untiered gemini-3-pro to its -low reasoning tier.
func resolveModel(model string) string {
	resolved := strings.TrimSpace(model)

	lower := strings.ToLower(resolved)
	for _, prefix := range antigravityLiteLLMPrefixes {
		if strings.HasPrefix(lower, prefix) {
			resolved = resolved[len(prefix):]
			lower = strings.ToLower(resolved)
			break
		}
	}
	if strings.HasPrefix(lower, "antigravity-") {
		resolved = resolved[len("antigravity-"):]
		lower = strings.ToLower(resolved)
	}
	if strings.HasSuffix(lower, "-preview") {
		resolved = resolved[:len(resolved)-len("-preview")]
		lower = strings.ToLower(resolved)
	}

	resolved = resolveAntigravityModel(resolved)
	lower = strings.ToLower(resolved)

	if strings.HasPrefix(lower, "gemini-3-pro") {
		hasTier := false
		for _, tier := range []string{"-minimal", "-low", "-medium", "-high"} {
			if strings.HasSuffix(lower, tier) {
				hasTier = true
				break
			}
		}
		if !hasTier {
			resolved += "-low"
		}
	}

	return resolved
}

func isThinkingModel(model string) bool {
	return strings.HasSuffix(strings.ToLower(model), "-thinking")
}

func (p *AntigravityProvider) buildRequestBody(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) ([]byte, error) {
	apiModel := resolveModel(model)
	if apiModel == "" {
		apiModel = antigravityDefaultModel
	}

	projectID, err := p.ensureProjectID(ctx)
	if err != nil {
		return nil, err
	}

	contents, systemInstruction := messagesToGemini(messages)

	maxTokens := 8192
	if v, ok := options["max_tokens"].(int); ok && v > 0 {
		maxTokens = v
	}
	temperature := 0.7
	if v, ok := options["temperature"].(float64); ok {
		temperature = v
	}

	generationConfig := map[string]interface{}{
		"maxOutputTokens": maxTokens,
		"temperature":     temperature,
	}

	// Thinking-model budget: reserve at least 8192 tokens (or half of the
	// requested budget, whichever is larger) for the model's internal
	// reasoning trace, on top of the generation itself.
	if isThinkingModel(apiModel) {
		thinkingBudget := maxTokens / 2
		if thinkingBudget < 8192 {
			thinkingBudget = 8192
		}
		if maxTokens < thinkingBudget+4096 {
			maxTokens = thinkingBudget + 4096
		}
		generationConfig["maxOutputTokens"] = maxTokens
		generationConfig["thinkingConfig"] = map[string]interface{}{
			"includeThoughts": true,
			"thinkingBudget":  thinkingBudget,
		}
	}

	innerRequest := map[string]interface{}{
		"contents":         contents,
		"generationConfig": generationConfig,
		"sessionId":        p.sessionID,
	}
	if systemInstruction != nil {
		innerRequest["systemInstruction"] = systemInstruction
	}
	if declarations := toolsToGemini(tools); declarations != nil {
		innerRequest["tools"] = declarations
	}

	request := map[string]interface{}{
		"project":     projectID,
		"model":       apiModel,
		"request":     innerRequest,
		"requestType": "agent",
		"userAgent":   "antigravity",
		"requestId":   "agent-" + uuid.NewString(),
	}

	return json.Marshal(request)
}

// ensureProjectID returns the configured project ID if one was provided at
// construction time, else discovers the account's real cloudaicompanionProject
// via loadCodeAssist (the API rejects synthetic project IDs), caching the
// result per account email for this provider instance's lifetime.
func (p *AntigravityProvider) ensureProjectID(ctx context.Context) (string, error) {
	if p.providedProject != "" {
		return p.providedProject, nil
	}

	email := p.auth.Email()

	p.mu.Lock()
	if cached, ok := p.projectIDByEmail[email]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	token, err := p.auth.GetValidToken(ctx)
	if err != nil {
		return "", err
	}

	body, _ := json.Marshal(map[string]interface{}{
		"metadata": map[string]interface{}{
			"ideType":    "ANTIGRAVITY",
			"platform":   2,
			"pluginType": "GEMINI",
		},
	})

	// loadCodeAssist is tried prod-first per the reference implementation,
	// unlike generateContent which tries daily/autopush before prod.
	discoveryOrder := append([]string{antigravityEndpointProd}, antigravityEndpointDaily, antigravityEndpointAutopush)
	project := ""
	for _, endpoint := range discoveryOrder {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+antigravityLoadCodeAssistPath, bytes.NewReader(body))
		if err != nil {
			continue
		}
		for k, v := range antigravityDiscoveryHeaders() {
			req.Header.Set(k, v)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			var payload struct {
				CloudAICompanionProject string `json:"cloudaicompanionProject"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.CloudAICompanionProject != "" {
				project = payload.CloudAICompanionProject
			}
		}
		resp.Body.Close()
		if project != "" {
			break
		}
	}

	if project == "" {
		logger.WarnCF("antigravity", "could not discover project via loadCodeAssist, using default", map[string]interface{}{"default": antigravityDefaultProjectID})
		project = antigravityDefaultProjectID
	} else {
		logger.InfoCF("antigravity", "discovered project", map[string]interface{}{"email": email, "project": project})
	}

	p.mu.Lock()
	p.projectIDByEmail[email] = project
	p.mu.Unlock()

	return project, nil
}

// sendWithFallback tries each Antigravity endpoint in order (daily ->
// autopush -> prod), moving to the next one on a fallback-triggering status
// code (403/404, meaning this account isn't enrolled on that tier) and
// retrying the current one with backoff on a transient status code
// (429/500/503).
func (p *AntigravityProvider) sendWithFallback(ctx context.Context, path string, body []byte) ([]byte, error) {
	resp, _, err := p.requestWithFallback(ctx, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (p *AntigravityProvider) sendStreamWithFallback(ctx context.Context, path string, body []byte) (*http.Response, string, error) {
	return p.requestWithFallback(ctx, path, body)
}

func (p *AntigravityProvider) requestWithFallback(ctx context.Context, path string, body []byte) (*http.Response, string, error) {
	token, err := p.auth.GetValidToken(ctx)
	if err != nil {
		return nil, "", err
	}

	var lastErr error
	for _, endpoint := range antigravityEndpointFallbacks {
		resp, err := p.requestWithRetry(ctx, endpoint, path, body, token)
		if err != nil {
			lastErr = err
			continue
		}
		if antigravityFallbackStatusCodes[resp.StatusCode] {
			logger.WarnCF("antigravity", "endpoint rejected request, falling back", map[string]interface{}{
				"endpoint": endpoint,
				"status":   resp.StatusCode,
			})
			resp.Body.Close()
			lastErr = fmt.Errorf("antigravity endpoint %s returned %d", endpoint, resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, "", fmt.Errorf("antigravity API error (HTTP %d): %s", resp.StatusCode, string(respBody))
		}
		return resp, endpoint, nil
	}

	return nil, "", fmt.Errorf("all antigravity endpoints failed: %w", lastErr)
}

// requestWithRetry retries a single endpoint on a retryable status code
// (429/500/503) with exponential backoff (RETRY_BASE_DELAY*2^attempt),
// honoring a Retry-After response header when present, for up to
// antigravityMaxRetries attempts total.
func (p *AntigravityProvider) requestWithRetry(ctx context.Context, endpoint, path string, body []byte, token string) (*http.Response, error) {
	var lastErr error
	var retryAfter time.Duration
	var hasRetryAfter bool

	for attempt := 0; attempt < antigravityMaxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(antigravityRetryBaseDelaySec*float64(int64(1)<<uint(attempt-1))) * time.Second
			if hasRetryAfter {
				wait = retryAfter
				if wait > 60*time.Second {
					wait = 60 * time.Second
				}
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range antigravityContentRequestHeaders() {
			req.Header.Set(k, v)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			hasRetryAfter = false
			continue
		}

		if antigravityRetryableStatusCodes[resp.StatusCode] {
			lastErr = fmt.Errorf("antigravity endpoint %s returned retryable status %d", endpoint, resp.StatusCode)
			retryAfter, hasRetryAfter = parseRetryAfterHeader(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			continue
		}

		return resp, nil
	}
	return nil, lastErr
}
