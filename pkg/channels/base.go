// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package channels adapts external messaging surfaces (Telegram, WhatsApp,
// Discord, Slack, Feishu, the CLI) onto the shared message bus. Every
// adapter embeds BaseChannel for its name, allow-list, and inbound
// publishing, and is driven uniformly by Manager.
package channels

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nanobot-ai/nanobot/pkg/bus"
)

// Channel is the interface every messaging adapter implements so Manager
// can drive it generically.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannel provides the shared name/allow-list/publish plumbing every
// concrete adapter embeds.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]bool
	running   atomic.Bool
	mu        sync.RWMutex
}

// NewBaseChannel builds a BaseChannel. cfg is accepted for symmetry with
// concrete adapters (e.g. NewTelegramChannel) that carry channel-specific
// config alongside the base but is unused here. An empty allowFrom permits
// every sender.
func NewBaseChannel(name string, cfg interface{}, msgBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	allow := make(map[string]bool, len(allowFrom))
	for _, id := range allowFrom {
		allow[id] = true
	}
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowFrom: allow,
	}
}

func (c *BaseChannel) Name() string { return c.name }

// IsAllowed reports whether senderID may use this channel. An empty
// allow-list means the channel is open to everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.allowFrom) == 0 {
		return true
	}
	return c.allowFrom[senderID]
}

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

func (c *BaseChannel) setRunning(running bool) { c.running.Store(running) }

// HandleMessage publishes an inbound message from senderID if permitted by
// the allow-list, silently dropping it otherwise.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, media []string, metadata map[string]string) {
	if !c.IsAllowed(senderID) {
		return
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		SenderID:   senderID,
		ChatID:     chatID,
		Content:    content,
		Media:      media,
		Metadata:   metadata,
		SessionKey: fmt.Sprintf("%s:%s", c.name, chatID),
	})
}
