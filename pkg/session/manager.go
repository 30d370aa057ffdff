// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package session holds per-conversation message history and rolling
// summaries in memory, optionally persisting each session as a JSON file
// so a restart doesn't lose context.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nanobot-ai/nanobot/pkg/providers"
)

// Session is one conversation's history and rolling summary.
type Session struct {
	Key      string              `json:"key"`
	Messages []providers.Message `json:"messages"`
	Summary  string              `json:"summary"`
}

// SessionManager owns every active Session, keyed by session key (typically
// "<channel>:<chat_id>"). Sessions are held in memory and, when storageDir
// is non-empty, persisted to and lazily reloaded from disk.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	storageDir string
}

// NewSessionManager builds a SessionManager. An empty storageDir disables
// persistence entirely — sessions live only in memory.
func NewSessionManager(storageDir string) *SessionManager {
	if storageDir != "" {
		_ = os.MkdirAll(storageDir, 0755)
	}
	return &SessionManager{
		sessions:   make(map[string]*Session),
		storageDir: storageDir,
	}
}

func (sm *SessionManager) sessionPath(key string) string {
	return filepath.Join(sm.storageDir, sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// GetOrCreate returns the existing session for key, lazily loading it from
// disk if persisted, or creating a fresh empty one.
func (sm *SessionManager) GetOrCreate(key string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.getOrCreateLocked(key)
}

func (sm *SessionManager) getOrCreateLocked(key string) *Session {
	if s, ok := sm.sessions[key]; ok {
		return s
	}

	if sm.storageDir != "" {
		if s := sm.loadLocked(key); s != nil {
			sm.sessions[key] = s
			return s
		}
	}

	s := &Session{Key: key, Messages: []providers.Message{}}
	sm.sessions[key] = s
	return s
}

func (sm *SessionManager) loadLocked(key string) *Session {
	data, err := os.ReadFile(sm.sessionPath(key))
	if err != nil {
		return nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s.Key = key
	return &s
}

// AddMessage appends a plain role/content message to key's history,
// creating the session if it doesn't exist yet.
func (sm *SessionManager) AddMessage(key, role, content string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.getOrCreateLocked(key)
	s.Messages = append(s.Messages, providers.Message{Role: role, Content: content})
}

// AddFullMessage appends a complete providers.Message (preserving tool
// calls/tool-call IDs) to key's history.
func (sm *SessionManager) AddFullMessage(key string, msg providers.Message) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := sm.getOrCreateLocked(key)
	s.Messages = append(s.Messages, msg)
}

// GetHistory returns a deep copy of key's message history, or an empty
// (non-nil) slice if the session doesn't exist.
func (sm *SessionManager) GetHistory(key string) []providers.Message {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[key]
	if !ok {
		if sm.storageDir != "" {
			if loaded := sm.loadLocked(key); loaded != nil {
				sm.sessions[key] = loaded
				s = loaded
				ok = true
			}
		}
	}
	if !ok {
		return []providers.Message{}
	}

	history := make([]providers.Message, len(s.Messages))
	copy(history, s.Messages)
	return history
}

// GetSummary returns key's rolling summary, or "" if none is set.
func (sm *SessionManager) GetSummary(key string) string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[key]
	if !ok {
		return ""
	}
	return s.Summary
}

// SetSummary sets key's rolling summary. A no-op if the session doesn't
// exist.
func (sm *SessionManager) SetSummary(key, summary string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[key]
	if !ok {
		return
	}
	s.Summary = summary
}

// TruncateHistory keeps only the most recent keep messages for key. A no-op
// if the session doesn't exist or already has keep or fewer messages.
func (sm *SessionManager) TruncateHistory(key string, keep int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[key]
	if !ok {
		return
	}
	if len(s.Messages) <= keep {
		return
	}
	s.Messages = s.Messages[len(s.Messages)-keep:]
}

// Save persists session to disk as JSON. A no-op returning nil when
// persistence is disabled.
func (sm *SessionManager) Save(session *Session) error {
	if sm.storageDir == "" {
		return nil
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", session.Key, err)
	}

	if err := os.WriteFile(sm.sessionPath(session.Key), data, 0644); err != nil {
		return fmt.Errorf("writing session %s: %w", session.Key, err)
	}
	return nil
}
