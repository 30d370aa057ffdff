// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package auth implements the OAuth 2.0 Authorization Code + PKCE flow used
// to authenticate the single-credential-per-provider LLM backends (OpenAI,
// Anthropic) that the agent can talk to directly, alongside API-key auth.
// The Antigravity/Gemini backend's own multi-account credential store lives
// in pkg/providers (it has a materially different on-disk shape: one file
// keyed by account email rather than by provider name).
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AuthCredential is a single provider's OAuth (or static token) credential.
type AuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Provider     string    `json:"provider"`
	AuthMethod   string    `json:"auth_method"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccountID    string    `json:"account_id,omitempty"`
}

// IsExpired reports whether the credential needs a refresh, with a 5 minute
// safety margin mirroring the Antigravity provider's is_expired rule.
func (c *AuthCredential) IsExpired() bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt.Add(-5 * time.Minute))
}

// OAuthProviderConfig describes one OAuth provider's endpoints and client
// registration. Port/Originator/etc. are provider-specific quirks needed to
// match each vendor's CLI-login flow byte-for-byte.
type OAuthProviderConfig struct {
	Issuer           string
	AuthorizeBaseURL string // overrides Issuer for the /authorize request, when set
	ClientID         string
	Scopes           string
	Originator       string
	Port             int
	Provider         string
	TokenEndpoint    string // defaults to "/oauth/token"
}

func (c OAuthProviderConfig) tokenEndpointURL() string {
	ep := c.TokenEndpoint
	if ep == "" {
		ep = "/oauth/token"
	}
	return c.Issuer + ep
}

func (c OAuthProviderConfig) authorizeURL() string {
	base := c.AuthorizeBaseURL
	if base == "" {
		base = c.Issuer
	}
	return base + "/oauth/authorize"
}

// OpenAIOAuthConfig returns the OAuth registration used for `nanobot auth
// login --provider openai`.
func OpenAIOAuthConfig() OAuthProviderConfig {
	return OAuthProviderConfig{
		Issuer:     "https://auth.openai.com",
		ClientID:   "app_EMoamEEZ73f0CkXaXp7hrann",
		Scopes:     "openid profile email offline_access",
		Originator: "codex_cli_rs",
		Port:       1455,
		Provider:   "openai",
	}
}

// AnthropicOAuthConfig returns the OAuth registration used for `nanobot auth
// login --provider anthropic`.
func AnthropicOAuthConfig() OAuthProviderConfig {
	return OAuthProviderConfig{
		Issuer:           "https://console.anthropic.com",
		AuthorizeBaseURL: "https://claude.ai",
		ClientID:         "9d1c250a-e61b-44d9-88ed-5944d1962f5e",
		Scopes:           "org:create_api_key user:profile user:inference",
		Port:             8080,
		Provider:         "anthropic",
		TokenEndpoint:    "/v1/oauth/token",
	}
}

// PKCECodes is a generated Proof Key for Code Exchange verifier/challenge pair.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCE creates a fresh RFC 7636 verifier/challenge pair.
func GeneratePKCE() (PKCECodes, error) {
	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		return PKCECodes{}, fmt.Errorf("generating PKCE verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return PKCECodes{CodeVerifier: verifier, CodeChallenge: challenge}, nil
}

// GenerateState creates a random CSRF state token.
func GenerateState() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// BuildAuthorizeURL constructs the browser-facing authorization URL.
func BuildAuthorizeURL(cfg OAuthProviderConfig, pkce PKCECodes, state, redirectURI string) string {
	v := url.Values{}
	v.Set("client_id", cfg.ClientID)
	v.Set("response_type", "code")
	v.Set("redirect_uri", redirectURI)
	v.Set("scope", cfg.Scopes)
	v.Set("code_challenge", pkce.CodeChallenge)
	v.Set("code_challenge_method", "S256")
	v.Set("state", state)

	if cfg.Provider == "openai" {
		v.Set("id_token_add_organizations", "true")
		v.Set("codex_cli_simplified_flow", "true")
		if cfg.Originator != "" {
			v.Set("originator", cfg.Originator)
		}
	}

	return cfg.authorizeURL() + "?" + v.Encode()
}

func parseTokenResponse(body []byte, provider string) (*AuthCredential, error) {
	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		IDToken      string `json:"id_token"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if raw.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	expiresIn := raw.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	cred := &AuthCredential{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		Provider:     provider,
		AuthMethod:   "oauth",
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	if accountID := accountIDFromJWT(raw.IDToken); accountID != "" {
		cred.AccountID = accountID
	} else if accountID := accountIDFromJWT(raw.AccessToken); accountID != "" {
		cred.AccountID = accountID
	}

	return cred, nil
}

// accountIDFromJWT best-effort extracts a ChatGPT-style account ID claim
// from an unverified JWT payload (the ID token is only used locally to
// label the credential, never for authorization decisions).
func accountIDFromJWT(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	var claims struct {
		Auth struct {
			ChatGPTAccountID string `json:"chatgpt_account_id"`
		} `json:"https://api.openai.com/auth"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	return claims.Auth.ChatGPTAccountID
}

func postForm(tokenURL string, form url.Values) ([]byte, error) {
	resp, err := http.PostForm(tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	return readBodyChecked(resp)
}

func postJSON(tokenURL string, payload map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling token request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, tokenURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	return readBodyChecked(resp)
}

func readBodyChecked(resp *http.Response) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, string(buf))
	}
	return buf, nil
}

// exchangeCodeForTokens trades an authorization code for an access/refresh
// token pair. Anthropic's token endpoint expects a JSON body; every other
// provider (OpenAI included) uses the standard form-urlencoded body.
func exchangeCodeForTokens(cfg OAuthProviderConfig, code, verifier, redirectURI string) (*AuthCredential, error) {
	if cfg.Provider == "anthropic" {
		payload := map[string]string{
			"grant_type":    "authorization_code",
			"code":          code,
			"redirect_uri":  redirectURI,
			"client_id":     cfg.ClientID,
			"code_verifier": verifier,
		}
		body, err := postJSON(cfg.tokenEndpointURL(), payload)
		if err != nil {
			return nil, err
		}
		return parseTokenResponse(body, cfg.Provider)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", cfg.ClientID)
	form.Set("code_verifier", verifier)

	body, err := postForm(cfg.tokenEndpointURL(), form)
	if err != nil {
		return nil, err
	}
	return parseTokenResponse(body, cfg.Provider)
}

// RefreshAccessToken exchanges a credential's refresh_token for a new
// access_token, preserving provider/auth_method on the returned credential.
func RefreshAccessToken(cred *AuthCredential, cfg OAuthProviderConfig) (*AuthCredential, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, fmt.Errorf("credential has no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", cfg.ClientID)

	body, err := postForm(cfg.tokenEndpointURL(), form)
	if err != nil {
		return nil, err
	}

	refreshed, err := parseTokenResponse(body, cred.Provider)
	if err != nil {
		return nil, err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}
	refreshed.AuthMethod = cred.AuthMethod
	refreshed.AccountID = cred.AccountID
	return refreshed, nil
}

// DeviceCodeResponse is the RFC 8628 device authorization response shape
// used by some providers' headless login flow.
type DeviceCodeResponse struct {
	DeviceAuthID string `json:"device_auth_id"`
	UserCode     string `json:"user_code"`
	Interval     int    `json:"interval"`
}

func parseDeviceCodeResponse(body []byte) (*DeviceCodeResponse, error) {
	var raw struct {
		DeviceAuthID string      `json:"device_auth_id"`
		UserCode     string      `json:"user_code"`
		Interval     interface{} `json:"interval"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}

	resp := &DeviceCodeResponse{DeviceAuthID: raw.DeviceAuthID, UserCode: raw.UserCode}

	switch v := raw.Interval.(type) {
	case float64:
		resp.Interval = int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", v, err)
		}
		resp.Interval = n
	case nil:
		resp.Interval = 5
	default:
		return nil, fmt.Errorf("unsupported interval type %T", v)
	}

	return resp, nil
}
