// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package auth

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// Login runs the OAuth 2.0 Authorization Code + PKCE flow for one of the
// single-credential providers (openai, anthropic): open the system browser
// at the provider's authorize URL, run a one-shot local HTTP server on the
// provider's registered port to catch the redirect, exchange the code for
// tokens, and persist the resulting credential.
func Login(ctx context.Context, provider string, openBrowser func(url string) error) (*AuthCredential, error) {
	var cfg OAuthProviderConfig
	switch provider {
	case "openai":
		cfg = OpenAIOAuthConfig()
	case "anthropic":
		cfg = AnthropicOAuthConfig()
	default:
		return nil, fmt.Errorf("unsupported oauth provider %q", provider)
	}

	pkce, err := GeneratePKCE()
	if err != nil {
		return nil, err
	}
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	redirectURI := fmt.Sprintf("http://localhost:%d/auth/callback", cfg.Port)
	authorizeURL := BuildAuthorizeURL(cfg, pkce, state, redirectURI)

	type callbackResult struct {
		code string
		err  error
	}
	resultCh := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			resultCh <- callbackResult{err: fmt.Errorf("oauth state mismatch")}
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, errMsg, http.StatusBadRequest)
			resultCh <- callbackResult{err: fmt.Errorf("oauth error: %s", errMsg)}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			resultCh <- callbackResult{err: fmt.Errorf("oauth callback missing code")}
			return
		}
		fmt.Fprint(w, "Login complete. You may close this tab and return to nanobot.")
		resultCh <- callbackResult{code: code}
	})

	server := &http.Server{Addr: fmt.Sprintf("localhost:%d", cfg.Port), Handler: mux}
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
	logger.InfoCF("auth", "Opening browser for OAuth login", map[string]interface{}{"provider": provider})
	if err := openBrowser(authorizeURL); err != nil {
		logger.WarnCF("auth", "Failed to open browser automatically", map[string]interface{}{
			"error": err.Error(),
			"url":   authorizeURL,
		})
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		cred, err := exchangeCodeForTokens(cfg, res.code, pkce.CodeVerifier, redirectURI)
		if err != nil {
			return nil, err
		}
		if err := SaveCredential(cred); err != nil {
			return nil, err
		}
		return cred, nil
	case err := <-serverErrCh:
		return nil, fmt.Errorf("oauth callback server failed: %w", err)
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("oauth login timed out waiting for browser callback")
	}
}

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
