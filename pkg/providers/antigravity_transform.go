// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package providers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
)

// antigravityPart is one piece of a Gemini content turn: a text blob, a
// model-initiated function call, or a tool's function response.
type antigravityPart struct {
	Text             string                     `json:"text,omitempty"`
	Thought          bool                       `json:"thought,omitempty"`
	FunctionCall     *antigravityFunctionCall   `json:"functionCall,omitempty"`
	FunctionResponse *antigravityFunctionResult `json:"functionResponse,omitempty"`
}

type antigravityFunctionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type antigravityFunctionResult struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type antigravityContent struct {
	Role  string             `json:"role"`
	Parts []antigravityPart  `json:"parts"`
}

type antigravityFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type antigravityToolDeclaration struct {
	FunctionDeclarations []antigravityFunctionDeclaration `json:"functionDeclarations"`
}

// messagesToGemini converts chat-shaped messages into Gemini contents plus an
// optional systemInstruction turn, merging consecutive same-role turns since
// Gemini rejects back-to-back entries with the same role. functionResponse
// parts are never merged into a turn carrying text parts — Claude-family
// Antigravity models reject the mix — a synthetic "OK." model turn is
// inserted between them instead.
func messagesToGemini(messages []Message) ([]antigravityContent, *antigravityContent) {
	var systemParts []antigravityPart
	var contents []antigravityContent

	for _, msg := range messages {
		if msg.Role == "system" {
			if msg.Content != "" {
				systemParts = append(systemParts, antigravityPart{Text: msg.Content})
			}
			continue
		}

		geminiRole := "user"
		if msg.Role == "assistant" {
			geminiRole = "model"
		}

		var parts []antigravityPart

		switch {
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			if msg.Content != "" {
				parts = append(parts, antigravityPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]interface{}{}
					if tc.Function != nil && tc.Function.Arguments != "" {
						if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
							args = map[string]interface{}{"raw": tc.Function.Arguments}
						}
					}
				}
				name := tc.Name
				if name == "" && tc.Function != nil {
					name = tc.Function.Name
				}
				tcID := tc.ID
				if tcID == "" {
					tcID = "tc_" + randomHex(6)
				}
				parts = append(parts, antigravityPart{
					FunctionCall: &antigravityFunctionCall{ID: tcID, Name: name, Args: args},
				})
			}

		case msg.Role == "tool":
			name := msg.Name
			tcID := msg.ToolCallID
			if name == "" {
				name = tcID
			}
			if tcID == "" {
				tcID = "tc_" + randomHex(6)
			}
			parts = append(parts, antigravityPart{
				FunctionResponse: &antigravityFunctionResult{
					ID:       tcID,
					Name:     name,
					Response: map[string]interface{}{"result": msg.Content},
				},
			})

		case msg.Content != "":
			parts = append(parts, antigravityPart{Text: msg.Content})
		}

		if len(parts) > 0 {
			contents = append(contents, antigravityContent{Role: geminiRole, Parts: parts})
		}
	}

	merged := make([]antigravityContent, 0, len(contents))
	for _, entry := range contents {
		if len(merged) > 0 && merged[len(merged)-1].Role == entry.Role {
			last := &merged[len(merged)-1]
			prevHasFR := partsHaveFunctionResponse(last.Parts)
			currHasFR := partsHaveFunctionResponse(entry.Parts)
			if prevHasFR != currHasFR {
				merged = append(merged, antigravityContent{Role: "model", Parts: []antigravityPart{{Text: "OK."}}})
				merged = append(merged, entry)
			} else {
				last.Parts = append(last.Parts, entry.Parts...)
			}
		} else {
			merged = append(merged, entry)
		}
	}

	var systemInstruction *antigravityContent
	if len(systemParts) > 0 {
		systemInstruction = &antigravityContent{Role: "user", Parts: systemParts}
	}

	return merged, systemInstruction
}

func partsHaveFunctionResponse(parts []antigravityPart) bool {
	for _, p := range parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

// toolsToGemini converts OpenAI-shaped tool definitions into Gemini's
// functionDeclarations wrapper, sanitizing every parameter schema along the way.
func toolsToGemini(tools []ToolDefinition) []antigravityToolDeclaration {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]antigravityFunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		if tool.Type != "function" {
			continue
		}
		decl := antigravityFunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		}
		if tool.Function.Parameters != nil {
			decl.Parameters = sanitizeSchema(tool.Function.Parameters).(map[string]interface{})
		}
		declarations = append(declarations, decl)
	}

	if len(declarations) == 0 {
		return nil
	}
	return []antigravityToolDeclaration{{FunctionDeclarations: declarations}}
}

// sanitizeSchema recursively strips JSON Schema keys the Gemini API rejects
// outright (antigravityRejectedSchemaKeys) and flattens anyOf/oneOf/allOf
// composition, which Gemini doesn't understand.
func sanitizeSchema(schema interface{}) interface{} {
	asMap, ok := schema.(map[string]interface{})
	if !ok {
		return schema
	}

	asMap = resolveSchemaComposition(asMap)

	result := make(map[string]interface{}, len(asMap))
	for key, value := range asMap {
		if antigravityRejectedSchemaKeys[key] {
			if key == "const" {
				result["enum"] = []interface{}{value}
			}
			continue
		}
		if antigravityCompositionSchemaKeys[key] {
			continue
		}

		switch v := value.(type) {
		case map[string]interface{}:
			result[key] = sanitizeSchema(v)
		case []interface{}:
			items := make([]interface{}, len(v))
			for i, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					items[i] = sanitizeSchema(m)
				} else {
					items[i] = item
				}
			}
			result[key] = items
		default:
			result[key] = value
		}
	}
	return result
}

// resolveSchemaComposition flattens allOf (merging every sub-schema) and
// anyOf/oneOf (unwrapping a single non-null branch, else taking the first
// branch — lossy but functional) into one flat schema.
func resolveSchemaComposition(schema map[string]interface{}) map[string]interface{} {
	if rawItems, ok := schema["allOf"].([]interface{}); ok && len(rawItems) > 0 {
		merged := make(map[string]interface{}, len(schema))
		for k, v := range schema {
			if k != "allOf" {
				merged[k] = v
			}
		}
		for _, raw := range rawItems {
			sub, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			for k, v := range sub {
				switch k {
				case "properties":
					if existing, ok := merged[k].(map[string]interface{}); ok {
						combined := make(map[string]interface{}, len(existing))
						for pk, pv := range existing {
							combined[pk] = pv
						}
						if added, ok := v.(map[string]interface{}); ok {
							for pk, pv := range added {
								combined[pk] = pv
							}
						}
						merged[k] = combined
					} else {
						merged[k] = v
					}
				case "required":
					if existing, ok := merged[k].([]interface{}); ok {
						merged[k] = dedupeStringList(existing, v)
					} else {
						merged[k] = v
					}
				default:
					merged[k] = v
				}
			}
		}
		return merged
	}

	for _, key := range []string{"anyOf", "oneOf"} {
		rawItems, ok := schema[key].([]interface{})
		if !ok || len(rawItems) == 0 {
			continue
		}

		var nonNull []map[string]interface{}
		for _, raw := range rawItems {
			if sub, ok := raw.(map[string]interface{}); ok && sub["type"] != "null" {
				nonNull = append(nonNull, sub)
			}
		}

		var chosen map[string]interface{}
		if len(nonNull) > 0 {
			chosen = nonNull[0]
		} else if sub, ok := rawItems[0].(map[string]interface{}); ok {
			chosen = sub
		}
		if chosen == nil {
			continue
		}

		base := make(map[string]interface{}, len(schema))
		for k, v := range schema {
			if !antigravityCompositionSchemaKeys[k] {
				base[k] = v
			}
		}
		for k, v := range chosen {
			base[k] = v
		}
		return base
	}

	return schema
}

func dedupeStringList(existing []interface{}, added interface{}) []interface{} {
	seen := make(map[string]bool, len(existing))
	out := make([]interface{}, 0, len(existing))
	for _, v := range existing {
		if s, ok := v.(string); ok && !seen[s] {
			seen[s] = true
			out = append(out, v)
		}
	}
	if addedList, ok := added.([]interface{}); ok {
		for _, v := range addedList {
			if s, ok := v.(string); ok && !seen[s] {
				seen[s] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// antigravityResponseEnvelope matches the v1internal wire format, which
// wraps the actual Gemini response under a "response" key alongside a
// traceId and metadata the provider doesn't need.
type antigravityResponseEnvelope struct {
	Response *antigravityGeminiResponse `json:"response"`
	antigravityGeminiResponse
}

type antigravityGeminiResponse struct {
	Candidates    []antigravityCandidate   `json:"candidates"`
	UsageMetadata *antigravityUsageMetadata `json:"usageMetadata"`
}

type antigravityCandidate struct {
	Content      antigravityContent `json:"content"`
	FinishReason string             `json:"finishReason"`
}

type antigravityUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (e antigravityResponseEnvelope) unwrap() antigravityGeminiResponse {
	if e.Response != nil {
		return *e.Response
	}
	return e.antigravityGeminiResponse
}

// parseGeminiResponse parses one non-streaming Antigravity/Gemini response
// into the module's wire-neutral LLMResponse shape.
func parseGeminiResponse(body []byte) (*LLMResponse, error) {
	var envelope antigravityResponseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	inner := envelope.unwrap()

	if len(inner.Candidates) == 0 {
		return &LLMResponse{FinishReason: "error"}, nil
	}

	candidate := inner.Candidates[0]
	var contentParts []string
	var reasoning string
	var toolCalls []ToolCall

	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			toolCalls = append(toolCalls, ToolCall{
				ID:        "ag_" + randomHex(6),
				Type:      "function",
				Function:  &FunctionCall{Name: part.FunctionCall.Name, Arguments: string(argsJSON)},
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		case part.Text != "":
			if part.Thought {
				reasoning = part.Text
			} else {
				contentParts = append(contentParts, part.Text)
			}
		}
	}

	content := ""
	for i, p := range contentParts {
		if i > 0 {
			content += "\n"
		}
		content += p
	}

	resp := &LLMResponse{
		Content:          content,
		ReasoningContent: reasoning,
		ToolCalls:        toolCalls,
		FinishReason:     mapGeminiFinishReason(candidate.FinishReason),
	}
	if inner.UsageMetadata != nil {
		resp.Usage = &UsageInfo{
			PromptTokens:     inner.UsageMetadata.PromptTokenCount,
			CompletionTokens: inner.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      inner.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

// parseGeminiStreamChunk parses one SSE event from the Antigravity streaming
// endpoint into the module's wire-neutral LLMStreamChunk shape.
func parseGeminiStreamChunk(eventData []byte) (LLMStreamChunk, error) {
	var envelope antigravityResponseEnvelope
	if err := json.Unmarshal(eventData, &envelope); err != nil {
		return LLMStreamChunk{}, err
	}
	inner := envelope.unwrap()

	var chunk LLMStreamChunk
	if len(inner.Candidates) > 0 {
		candidate := inner.Candidates[0]
		for _, part := range candidate.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				chunk.ToolCallsDelta = append(chunk.ToolCallsDelta, ToolCall{
					ID:        "ag_" + randomHex(6),
					Type:      "function",
					Function:  &FunctionCall{Name: part.FunctionCall.Name, Arguments: string(argsJSON)},
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			case part.Text != "":
				if part.Thought {
					chunk.ReasoningDelta = part.Text
				} else {
					chunk.ContentDelta = part.Text
				}
			}
		}
		if candidate.FinishReason != "" {
			chunk.FinishReason = mapGeminiFinishReason(candidate.FinishReason)
		}
	}
	if inner.UsageMetadata != nil {
		chunk.Usage = &UsageInfo{
			PromptTokens:     inner.UsageMetadata.PromptTokenCount,
			CompletionTokens: inner.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      inner.UsageMetadata.TotalTokenCount,
		}
	}
	return chunk, nil
}

func mapGeminiFinishReason(reason string) string {
	switch reason {
	case "STOP", "FINISH_REASON_UNSPECIFIED", "":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "000000"
	}
	return hex.EncodeToString(buf)
}
