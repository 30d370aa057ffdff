// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package providers

import (
	"fmt"
	"math/rand"
)

// Antigravity OAuth client credentials, captured from the public Antigravity
// desktop client — not secret, the same pair every Antigravity install ships.
const (
	antigravityClientID     = "1071006060591-tmhssin2h21lcre235vtolojh4g403ep.apps.googleusercontent.com"
	antigravityClientSecret = "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"

	antigravityAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	antigravityTokenURL    = "https://oauth2.googleapis.com/token"
	antigravityUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// antigravityScopes are requested during the OAuth consent flow.
var antigravityScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/cclog",
	"https://www.googleapis.com/auth/experimentsandconfigs",
}

// Antigravity API endpoints, tried in order: daily -> autopush -> prod.
const (
	antigravityEndpointDaily    = "https://daily-cloudcode-pa.sandbox.googleapis.com"
	antigravityEndpointAutopush = "https://autopush-cloudcode-pa.sandbox.googleapis.com"
	antigravityEndpointProd     = "https://cloudcode-pa.googleapis.com"
)

var antigravityEndpointFallbacks = []string{
	antigravityEndpointDaily,
	antigravityEndpointAutopush,
	antigravityEndpointProd,
}

const (
	antigravityGenerateContentPath       = "/v1internal:generateContent"
	antigravityStreamGenerateContentPath = "/v1internal:streamGenerateContent"
	antigravityLoadCodeAssistPath        = "/v1internal:loadCodeAssist"

	antigravityOAuthRedirectPort = 51121

	antigravityVersion = "1.15.8"

	antigravityDefaultModel     = "claude-sonnet-4-5"
	antigravityDefaultProjectID = "rising-fact-p41fc"
)

var antigravityOAuthRedirectURI = fmt.Sprintf("http://localhost:%d/oauth-callback", antigravityOAuthRedirectPort)

// antigravityPlatforms/antigravityAPIClients are impersonated at random per
// request, matching the reference Antigravity Manager's rotation behavior.
var (
	antigravityPlatforms = []string{"windows/amd64", "darwin/arm64", "darwin/amd64"}

	antigravityAPIClients = []string{
		"google-cloud-sdk vscode_cloudshelleditor/0.1",
		"google-cloud-sdk vscode/1.96.0",
		"google-cloud-sdk vscode/1.95.0",
	}
)

// antigravityModels lists every model the Antigravity/Gemini backend serves;
// the antigravity- prefixed subset uses the Antigravity endpoints above,
// the rest (gemini-2.5-*, the -preview suffixed 3.x models) hit prod only.
var antigravityModels = []string{
	"claude-sonnet-4-5",
	"claude-sonnet-4-5-thinking",
	"claude-opus-4-6-thinking",
	"gemini-3-pro",
	"gemini-3-flash",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-3-flash-preview",
	"gemini-3-pro-preview",
}

// antigravityModelAliases maps deprecated/shorthand model names forward.
var antigravityModelAliases = map[string]string{
	"claude-opus-4-5":            "claude-opus-4-6-thinking",
	"claude-opus-4-5-thinking":   "claude-opus-4-6-thinking",
	"claude-opus-4-6":            "claude-opus-4-6-thinking",
}

func resolveAntigravityModel(model string) string {
	if alias, ok := antigravityModelAliases[model]; ok {
		return alias
	}
	return model
}

const (
	antigravityCredentialsDir  = ".nanobot/antigravity"
	antigravityCredentialsFile = "credentials.json"
)

var antigravityRetryableStatusCodes = map[int]bool{429: true, 500: true, 503: true}
var antigravityFallbackStatusCodes = map[int]bool{403: true, 404: true}

const (
	antigravityMaxRetries      = 3
	antigravityRetryBaseDelaySec = 1.0
)

// antigravityRejectedSchemaKeys are JSON Schema keys the Gemini API rejects
// outright and that transform.go strips from every tool parameter schema.
var antigravityRejectedSchemaKeys = map[string]bool{
	"const":    true,
	"$ref":     true,
	"$defs":    true,
	"default":  true,
	"examples": true,
	"title":    true,
}

// antigravityCompositionSchemaKeys need special flattening rather than a
// straight strip, since they carry nested subschemas.
var antigravityCompositionSchemaKeys = map[string]bool{
	"anyOf": true,
	"oneOf": true,
	"allOf": true,
}

// antigravityRandomUserAgent returns the short-format User-Agent used on
// generateContent/streamGenerateContent calls (discovery calls use the
// longer Electron-flavored string in antigravityDiscoveryHeaders).
func antigravityRandomUserAgent() string {
	plat := antigravityPlatforms[rand.Intn(len(antigravityPlatforms))]
	return fmt.Sprintf("antigravity/%s %s", antigravityVersion, plat)
}

// antigravityContentRequestHeaders returns the minimal header set required
// for generateContent/streamGenerateContent: per the reference
// implementation, these calls must NOT send X-Goog-Api-Client or
// Client-Metadata — only loadCodeAssist (discovery) does.
func antigravityContentRequestHeaders() map[string]string {
	return map[string]string{
		"User-Agent": antigravityRandomUserAgent(),
	}
}

// antigravityDiscoveryHeaders returns the full header set used for the
// loadCodeAssist discovery call.
func antigravityDiscoveryHeaders() map[string]string {
	platformTag := "WINDOWS"
	// The reference implementation special-cases macOS; Go has no build-time
	// equivalent of Python's platform.system() without an extra dependency,
	// so this is pinned to the Windows tag used by the majority rotation.
	return map[string]string{
		"Content-Type": "application/json",
		"User-Agent": fmt.Sprintf(
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Antigravity/%s Chrome/138.0.7204.235 Electron/37.3.1 Safari/537.36",
			antigravityVersion,
		),
		"X-Goog-Api-Client": antigravityAPIClients[0],
		"Client-Metadata":   fmt.Sprintf(`{"ideType":"ANTIGRAVITY","platform":"%s","pluginType":"GEMINI"}`, platformTag),
	}
}
