// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// storeFile returns ~/.nanobot/auth/credentials.json.
func storeFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".nanobot", "auth", "credentials.json"), nil
}

var storeMu sync.Mutex

// loadAll reads the provider→credential map, tolerating a missing file.
func loadAll() (map[string]*AuthCredential, error) {
	path, err := storeFile()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]*AuthCredential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential store: %w", err)
	}

	creds := map[string]*AuthCredential{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credential store: %w", err)
	}
	return creds, nil
}

func saveAll(creds map[string]*AuthCredential) error {
	path, err := storeFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating credential store dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credential store: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing credential store: %w", err)
	}
	return os.Rename(tmp, path)
}

// GetCredential returns the stored credential for a provider ("openai",
// "anthropic"), refreshing it first if expired. Returns (nil, nil) when no
// credential is stored for that provider.
func GetCredential(provider string) (*AuthCredential, error) {
	storeMu.Lock()
	defer storeMu.Unlock()

	creds, err := loadAll()
	if err != nil {
		return nil, err
	}

	cred, ok := creds[provider]
	if !ok || cred == nil {
		return nil, nil
	}

	if cred.AuthMethod == "oauth" && cred.IsExpired() {
		var cfg OAuthProviderConfig
		switch provider {
		case "openai":
			cfg = OpenAIOAuthConfig()
		case "anthropic":
			cfg = AnthropicOAuthConfig()
		default:
			return cred, nil
		}

		refreshed, err := RefreshAccessToken(cred, cfg)
		if err != nil {
			return cred, fmt.Errorf("refreshing %s credential: %w", provider, err)
		}
		creds[provider] = refreshed
		if err := saveAll(creds); err != nil {
			return refreshed, err
		}
		return refreshed, nil
	}

	return cred, nil
}

// SaveCredential upserts a provider's credential and persists the store with
// mode 0600.
func SaveCredential(cred *AuthCredential) error {
	storeMu.Lock()
	defer storeMu.Unlock()

	creds, err := loadAll()
	if err != nil {
		return err
	}
	creds[cred.Provider] = cred
	return saveAll(creds)
}

// RemoveCredential deletes a provider's stored credential, if any.
func RemoveCredential(provider string) error {
	storeMu.Lock()
	defer storeMu.Unlock()

	creds, err := loadAll()
	if err != nil {
		return err
	}
	delete(creds, provider)
	return saveAll(creds)
}
