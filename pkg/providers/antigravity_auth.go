// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package providers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// defaultOpenBrowser mirrors pkg/auth's unexported helper of the same name;
// it can't be reused directly since pkg/auth doesn't export it.
func defaultOpenBrowser(url string) error {
	var cmd string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		cmd, args = "open", []string{url}
	case "windows":
		cmd, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		cmd, args = "xdg-open", []string{url}
	}
	return exec.Command(cmd, args...).Start()
}

// antigravityCredentials is one account's OAuth token set.
type antigravityCredentials struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
	Email        string  `json:"email,omitempty"`
}

func (c *antigravityCredentials) isExpired() bool {
	return float64(time.Now().Unix()) >= (c.ExpiresAt - 300)
}

// antigravityCredentialFile is the on-disk multi-account store shape.
type antigravityCredentialFile struct {
	Active   string                             `json:"active"`
	Accounts map[string]*antigravityCredentials `json:"accounts"`
}

// AntigravityAuthManager manages the OAuth PKCE login flow and token
// lifecycle across multiple Google accounts, persisted as a single
// email-keyed JSON file under ~/.nanobot/antigravity/credentials.json.
type AntigravityAuthManager struct {
	credsPath string

	mu       sync.Mutex
	accounts map[string]*antigravityCredentials
	active   string

	httpClient *http.Client
}

// antigravityTokenSource adapts AntigravityAuthManager to the stdlib
// oauth2.TokenSource contract, matching how the Claude/Codex providers wrap
// pkg/auth in oauth_providers.go.
type antigravityTokenSource struct {
	manager *AntigravityAuthManager
}

func (s antigravityTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.manager.GetValidToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// NewAntigravityAuthManager loads (or creates) the credential store at the
// default location, migrating a legacy single-credential file if found.
func NewAntigravityAuthManager() *AntigravityAuthManager {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, antigravityCredentialsDir)

	m := &AntigravityAuthManager{
		credsPath:  filepath.Join(dir, antigravityCredentialsFile),
		accounts:   make(map[string]*antigravityCredentials),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	m.load()
	return m
}

func (m *AntigravityAuthManager) load() {
	data, err := os.ReadFile(m.credsPath)
	if err != nil {
		return
	}

	var file antigravityCredentialFile
	if err := json.Unmarshal(data, &file); err == nil && file.Accounts != nil {
		m.active = file.Active
		m.accounts = file.Accounts
		return
	}

	// Legacy single-credential format: a flat {access_token, ...} object.
	var legacy antigravityCredentials
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.AccessToken != "" {
		email := legacy.Email
		if email == "" {
			email = "unknown"
		}
		m.accounts[email] = &legacy
		m.active = email
		m.save()
	}
}

func (m *AntigravityAuthManager) save() {
	dir := filepath.Dir(m.credsPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		logger.WarnCF("antigravity", "failed to create credentials dir", map[string]interface{}{"error": err.Error()})
		return
	}

	data, err := json.MarshalIndent(antigravityCredentialFile{Active: m.active, Accounts: m.accounts}, "", "  ")
	if err != nil {
		logger.WarnCF("antigravity", "failed to marshal credentials", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(m.credsPath, data, 0600); err != nil {
		logger.WarnCF("antigravity", "failed to persist credentials", map[string]interface{}{"error": err.Error()})
	}
}

// IsAuthenticated reports whether an active account with stored credentials exists.
func (m *AntigravityAuthManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[m.active]
	return m.active != "" && ok
}

// Email returns the active account's email, or "" if unauthenticated.
func (m *AntigravityAuthManager) Email() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[m.active]; !ok {
		return ""
	}
	return m.active
}

// Accounts returns every stored account's email.
func (m *AntigravityAuthManager) Accounts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	emails := make([]string, 0, len(m.accounts))
	for email := range m.accounts {
		emails = append(emails, email)
	}
	return emails
}

// Switch makes email the active account. Returns false if it isn't stored.
func (m *AntigravityAuthManager) Switch(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[email]; !ok {
		return false
	}
	m.active = email
	m.save()
	return true
}

// TokenSource exposes this manager as an oauth2.TokenSource for use by the
// Antigravity HTTP client, refreshed lazily on every Token() call.
func (m *AntigravityAuthManager) TokenSource() oauth2.TokenSource {
	return antigravityTokenSource{manager: m}
}

// GetValidToken returns a valid access token for the active account,
// refreshing it first if it's within 5 minutes of expiry.
func (m *AntigravityAuthManager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	creds, ok := m.accounts[m.active]
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("not authenticated: run `nanobot auth login --provider antigravity` first")
	}
	if creds.isExpired() {
		if err := m.refresh(ctx, creds); err != nil {
			return "", err
		}
	}
	return creds.AccessToken, nil
}

func (m *AntigravityAuthManager) refresh(ctx context.Context, creds *antigravityCredentials) error {
	if creds.RefreshToken == "" {
		return fmt.Errorf("no refresh token stored; run `nanobot auth login --provider antigravity` again")
	}

	form := url.Values{
		"client_id":     {antigravityClientID},
		"client_secret": {antigravityClientSecret},
		"refresh_token": {creds.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, antigravityTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refreshing antigravity token: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding token refresh response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	m.mu.Lock()
	creds.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		creds.RefreshToken = payload.RefreshToken
	}
	if payload.ExpiresIn == 0 {
		payload.ExpiresIn = 3600
	}
	creds.ExpiresAt = float64(time.Now().Unix() + int64(payload.ExpiresIn))
	m.save()
	m.mu.Unlock()

	return nil
}

// Login runs the OAuth 2.0 PKCE flow: opens the system browser at Google's
// consent screen, runs a one-shot local callback server on
// antigravityOAuthRedirectPort, exchanges the code for tokens, fetches the
// account email, and stores the result as the new active account.
func (m *AntigravityAuthManager) Login(ctx context.Context, openBrowser func(url string) error) (string, error) {
	verifier, err := randomURLSafeString(64)
	if err != nil {
		return "", err
	}
	challenge := pkceChallengeS256(verifier)
	state, err := randomURLSafeString(32)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"client_id":             {antigravityClientID},
		"redirect_uri":          {antigravityOAuthRedirectURI},
		"response_type":         {"code"},
		"scope":                 {joinScopes(antigravityScopes)},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"access_type":           {"offline"},
		"prompt":                {"consent"},
	}
	authURL := antigravityAuthURL + "?" + params.Encode()

	type result struct {
		code string
		err  error
	}
	resultCh := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth-callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			fmt.Fprint(w, "<h1>Authentication failed</h1><p>You can close this tab.</p>")
			resultCh <- result{err: fmt.Errorf("oauth error: %s", errMsg)}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			resultCh <- result{err: fmt.Errorf("oauth state mismatch")}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			resultCh <- result{err: fmt.Errorf("no authorization code received")}
			return
		}
		fmt.Fprint(w, "<h1>Authentication successful!</h1><p>You can close this tab and return to the terminal.</p>")
		resultCh <- result{code: code}
	})

	server := &http.Server{Addr: "localhost:" + strconv.Itoa(antigravityOAuthRedirectPort), Handler: mux}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()
	defer server.Close()

	if openBrowser == nil {
		openBrowser = defaultOpenBrowser
	}
	logger.InfoCF("antigravity", "opening browser for OAuth login", nil)
	if err := openBrowser(authURL); err != nil {
		logger.WarnCF("antigravity", "failed to open browser automatically", map[string]interface{}{"error": err.Error(), "url": authURL})
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	var code string
	select {
	case res := <-resultCh:
		if res.err != nil {
			return "", res.err
		}
		code = res.code
	case err := <-serverErrCh:
		return "", fmt.Errorf("oauth callback server failed: %w", err)
	case <-timeoutCtx.Done():
		return "", fmt.Errorf("oauth login timed out waiting for browser callback")
	}

	tokenData, err := m.exchangeCode(ctx, code, verifier)
	if err != nil {
		return "", err
	}

	email := m.fetchEmail(ctx, tokenData.AccessToken)

	creds := &antigravityCredentials{
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
		ExpiresAt:    float64(time.Now().Unix() + int64(tokenData.ExpiresIn)),
		Email:        email,
	}

	m.mu.Lock()
	m.accounts[email] = creds
	m.active = email
	m.save()
	m.mu.Unlock()

	return email, nil
}

type antigravityTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (m *AntigravityAuthManager) exchangeCode(ctx context.Context, code, verifier string) (*antigravityTokenResponse, error) {
	form := url.Values{
		"client_id":     {antigravityClientID},
		"client_secret": {antigravityClientSecret},
		"code":          {code},
		"code_verifier": {verifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {antigravityOAuthRedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, antigravityTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchanging antigravity auth code: %w", err)
	}
	defer resp.Body.Close()

	var payload antigravityTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding token exchange response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}
	return &payload, nil
}

func (m *AntigravityAuthManager) fetchEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, antigravityUserinfoURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Email
}

// Logout removes a stored account's credentials. email == "" removes the
// active account; email == "*" removes every account.
func (m *AntigravityAuthManager) Logout(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch email {
	case "*":
		m.accounts = make(map[string]*antigravityCredentials)
		m.active = ""
	case "":
		if m.active != "" {
			delete(m.accounts, m.active)
			m.active = firstKey(m.accounts)
		}
	default:
		delete(m.accounts, email)
		if m.active == email {
			m.active = firstKey(m.accounts)
		}
	}

	if len(m.accounts) > 0 {
		m.save()
		return nil
	}
	if err := os.Remove(m.credsPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func firstKey(m map[string]*antigravityCredentials) string {
	for k := range m {
		return k
	}
	return ""
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

func randomURLSafeString(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, big.NewInt(256))
		if err != nil {
			return "", err
		}
		buf[i] = byte(v.Int64())
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pkceChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
