// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package config loads and persists the agent's settings. Config is read
// from a JSON file (config.json in the workspace by default) and then
// overlaid with environment variables via github.com/caarlos0/env/v11,
// so secrets like bridge tokens or channel tokens can come from the
// environment in dev/test contexts without touching disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// AgentDefaults controls the agent loop's model, limits, and timeouts.
type AgentDefaults struct {
	// Provider explicitly selects the LLM backend ("openai", "anthropic",
	// "antigravity"); empty falls back to model-name sniffing in CreateProvider.
	Provider             string `json:"provider" env:"NANOBOT_PROVIDER"`
	Model                string `json:"model" env:"NANOBOT_MODEL"`
	MaxTokens            int    `json:"max_tokens" env:"NANOBOT_MAX_TOKENS"`
	MaxToolIterations    int    `json:"max_tool_iterations" env:"NANOBOT_MAX_TOOL_ITERATIONS"`
	LLMTimeoutSeconds    int    `json:"llm_timeout_seconds" env:"NANOBOT_LLM_TIMEOUT_SECONDS"`
	ToolTimeoutSeconds   int    `json:"tool_timeout_seconds" env:"NANOBOT_TOOL_TIMEOUT_SECONDS"`
	MaxParallelToolCalls int    `json:"max_parallel_tool_calls" env:"NANOBOT_MAX_PARALLEL_TOOL_CALLS"`
}

// AgentsConfig groups agent-wide settings.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// WebSearchConfig configures the web_search tool.
type WebSearchConfig struct {
	APIKey     string `json:"api_key" env:"NANOBOT_WEB_SEARCH_API_KEY"`
	MaxResults int    `json:"max_results" env:"NANOBOT_WEB_SEARCH_MAX_RESULTS"`
}

// WebToolsConfig groups web-facing tool configuration.
type WebToolsConfig struct {
	Search WebSearchConfig `json:"search"`
}

// ToolsConfig groups all tool configuration.
type ToolsConfig struct {
	Web WebToolsConfig `json:"web"`
}

// OpenRouterConfig configures the OpenRouter aggregator provider.
type OpenRouterConfig struct {
	APIKey  string                 `json:"api_key" env:"OPENROUTER_API_KEY"`
	APIBase string                 `json:"api_base" env:"OPENROUTER_API_BASE"`
	Routing map[string]interface{} `json:"routing,omitempty"`
}

// OAuthCapableProviderConfig is shared by providers that support either a
// plain API key or an OAuth/token login flow (Anthropic, OpenAI).
type OAuthCapableProviderConfig struct {
	APIKey     string `json:"api_key"`
	APIBase    string `json:"api_base"`
	AuthMethod string `json:"auth_method"` // "", "oauth", or "token"
}

// SimpleProviderConfig is a plain API-key-plus-base provider (Gemini, Zhipu,
// Groq, Modal).
type SimpleProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
}

// VLLMConfig configures a self-hosted vLLM-compatible endpoint. Presence of
// APIBase alone (no key required) selects this provider.
type VLLMConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
}

// AntigravityConfig selects the OAuth-backed Antigravity/Gemini backend.
// Unlike the other providers this never takes a plain API key: credentials
// come from `nanobot auth login --provider antigravity`'s multi-account
// store, keyed by Google account email.
type AntigravityConfig struct {
	Enabled   bool   `json:"enabled"`
	ProjectID string `json:"project_id,omitempty"`
	Account   string `json:"account,omitempty"` // email; "" uses the active account
}

// ProvidersConfig groups every upstream LLM provider's settings.
type ProvidersConfig struct {
	OpenRouter  OpenRouterConfig           `json:"openrouter"`
	Anthropic   OAuthCapableProviderConfig `json:"anthropic"`
	OpenAI      OAuthCapableProviderConfig `json:"openai"`
	Gemini      SimpleProviderConfig       `json:"gemini"`
	Zhipu       SimpleProviderConfig       `json:"zhipu"`
	Groq        SimpleProviderConfig       `json:"groq"`
	Modal       SimpleProviderConfig       `json:"modal"`
	VLLM        VLLMConfig                 `json:"vllm"`
	Antigravity AntigravityConfig          `json:"antigravity"`
}

// TelegramConfig configures the Telegram channel adapter.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token" env:"TELEGRAM_TOKEN"`
	AllowFrom []string `json:"allow_from"`
}

// WhatsAppConfig configures the WhatsApp bridge channel adapter.
type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled"`
	BridgeURL string   `json:"bridge_url" env:"WHATSAPP_BRIDGE_URL"`
	AllowFrom []string `json:"allow_from"`
}

// DiscordConfig configures the Discord channel adapter.
type DiscordConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token" env:"DISCORD_TOKEN"`
	AllowFrom []string `json:"allow_from"`
}

// SlackConfig configures the Slack channel adapter.
type SlackConfig struct {
	Enabled   bool     `json:"enabled"`
	BotToken  string   `json:"bot_token" env:"SLACK_BOT_TOKEN"`
	AppToken  string   `json:"app_token" env:"SLACK_APP_TOKEN"`
	AllowFrom []string `json:"allow_from"`
}

// FeishuConfig configures the Feishu/Lark channel adapter.
type FeishuConfig struct {
	Enabled   bool     `json:"enabled"`
	AppID     string   `json:"app_id" env:"FEISHU_APP_ID"`
	AppSecret string   `json:"app_secret" env:"FEISHU_APP_SECRET"`
	AllowFrom []string `json:"allow_from"`
}

// DingTalkConfig configures the DingTalk stream-mode bot channel adapter.
type DingTalkConfig struct {
	Enabled   bool     `json:"enabled"`
	ClientID  string   `json:"client_id" env:"DINGTALK_CLIENT_ID"`
	Secret    string   `json:"secret" env:"DINGTALK_SECRET"`
	AllowFrom []string `json:"allow_from"`
}

// HeartbeatConfig configures the idle-heartbeat service.
type HeartbeatConfig struct {
	Enabled         bool   `json:"enabled"`
	IntervalSeconds int    `json:"interval_seconds"`
	Channel         string `json:"channel"`
	ChatID          string `json:"chat_id"`
}

// Config is the agent's complete runtime configuration.
type Config struct {
	Workspace   string          `json:"workspace" env:"NANOBOT_WORKSPACE"`
	BridgeToken string          `json:"bridge_token" env:"BRIDGE_TOKEN"`
	Agents      AgentsConfig    `json:"agents"`
	Tools       ToolsConfig     `json:"tools"`
	Providers   ProvidersConfig `json:"providers"`
	Telegram    TelegramConfig  `json:"telegram"`
	WhatsApp    WhatsAppConfig  `json:"whatsapp"`
	Discord     DiscordConfig   `json:"discord"`
	Slack       SlackConfig     `json:"slack"`
	Feishu      FeishuConfig    `json:"feishu"`
	DingTalk    DingTalkConfig  `json:"dingtalk"`
	Heartbeat   HeartbeatConfig `json:"heartbeat"`
}

// DefaultConfig returns a Config populated with sane defaults; every
// provider/channel is present but disabled/keyless until overridden.
func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.nanobot/workspace",
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Model:                "anthropic/claude-sonnet-4-5",
				MaxTokens:            180000,
				MaxToolIterations:    25,
				LLMTimeoutSeconds:    120,
				ToolTimeoutSeconds:   60,
				MaxParallelToolCalls: 4,
			},
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				Search: WebSearchConfig{MaxResults: 5},
			},
		},
		Heartbeat: HeartbeatConfig{IntervalSeconds: 3600},
	}
}

// WorkspacePath resolves the configured workspace, expanding a leading ~
// to the user's home directory.
func (c *Config) WorkspacePath() string {
	path := c.Workspace
	if path == "" {
		path = "~/.nanobot/workspace"
	}
	if path == "~" || len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				path = home
			} else {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	return path
}

// Load reads Config from path (JSON), falling back to DefaultConfig()'s
// values for anything missing when the file does not exist, then overlays
// environment variables via caarlos0/env.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

// Save writes cfg as indented JSON to path, creating parent directories as
// needed.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
