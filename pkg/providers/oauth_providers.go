// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package providers

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/nanobot-ai/nanobot/pkg/auth"
)

// credentialTokenSource adapts pkg/auth's refresh-on-read credential store
// to golang.org/x/oauth2.TokenSource, so the teacher's OAuth-backed
// Claude/Codex providers can be expressed in terms of the stdlib oauth2
// token-refresh contract rather than a bespoke one.
type credentialTokenSource struct {
	provider string
}

func (s credentialTokenSource) Token() (*oauth2.Token, error) {
	cred, err := auth.GetCredential(s.provider)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("no oauth credential stored for %s", s.provider)
	}
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.ExpiresAt,
	}, nil
}

func createClaudeTokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, credentialTokenSource{provider: "anthropic"})
}

func createCodexTokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, credentialTokenSource{provider: "openai"})
}

// NewClaudeProviderWithTokenSource builds an HTTPProvider against the
// Anthropic Messages-compatible chat endpoint whose bearer token is
// refreshed from ts before every request.
func NewClaudeProviderWithTokenSource(accessToken string, ts oauth2.TokenSource) *HTTPProvider {
	p := NewHTTPProvider(accessToken, "https://api.anthropic.com/v1")
	p.tokenSource = ts
	return p
}

// NewCodexProviderWithTokenSource builds an HTTPProvider against the OpenAI
// chat endpoint using a ChatGPT-account-scoped OAuth token refreshed from ts.
func NewCodexProviderWithTokenSource(accessToken, accountID string, ts oauth2.TokenSource) *HTTPProvider {
	p := NewHTTPProvider(accessToken, "https://api.openai.com/v1")
	p.tokenSource = ts
	p.accountID = accountID
	return p
}

// refreshFromTokenSource pulls the latest access token before a request is
// sent, when the provider was constructed with a token source.
func (p *HTTPProvider) refreshFromTokenSource(ctx context.Context) error {
	if p.tokenSource == nil {
		return nil
	}
	tok, err := p.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("refreshing oauth token: %w", err)
	}
	p.apiKey = tok.AccessToken
	return nil
}
