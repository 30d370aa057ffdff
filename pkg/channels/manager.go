// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// Manager owns every registered Channel and fans outbound bus messages out
// to whichever channel their Channel field names.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	bus      *bus.MessageBus
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager builds an empty Manager bound to msgBus.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
	}
}

// RegisterChannel adds or replaces a channel under name.
func (m *Manager) RegisterChannel(name string, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = ch
}

// UnregisterChannel removes a channel. It does not stop it first; callers
// should Stop a running channel before unregistering it.
func (m *Manager) UnregisterChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, name)
}

// GetChannel looks up a registered channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// GetEnabledChannels returns the names of every registered channel.
func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// SendToChannel routes content directly to a named channel, bypassing the
// bus. Used by callers (e.g. cron direct delivery) that already know the
// target channel.
func (m *Manager) SendToChannel(ctx context.Context, name, chatID, content string) error {
	ch, ok := m.GetChannel(name)
	if !ok {
		return fmt.Errorf("unknown channel: %s", name)
	}
	return ch.Send(ctx, bus.OutboundMessage{Channel: name, ChatID: chatID, Content: content})
}

// StartAll starts every registered channel and begins dispatching outbound
// bus messages to them. Idempotent: a second call is a no-op while the
// manager is already started.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	dispatchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		channelsCopy[name] = ch
	}
	m.mu.Unlock()

	for name, ch := range channelsCopy {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("starting channel %s: %w", name, err)
		}
	}

	m.wg.Add(1)
	go m.dispatchLoop(dispatchCtx)

	return nil
}

// StopAll stops the outbound dispatcher and every registered channel.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	cancel := m.cancel
	m.cancel = nil
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		channelsCopy[name] = ch
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	var firstErr error
	for name, ch := range channelsCopy {
		if err := ch.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stopping channel %s: %w", name, err)
		}
	}
	return firstErr
}

// GetStatus reports running/enabled state per registered channel.
func (m *Manager) GetStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]interface{}, len(m.channels))
	for name, ch := range m.channels {
		status[name] = map[string]interface{}{
			"running": ch.IsRunning(),
			"enabled": true,
		}
	}
	return status
}

func (m *Manager) dispatchLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		ch, ok := m.GetChannel(msg.Channel)
		if !ok {
			logger.WarnCF("channels", "Dropping outbound message for unknown channel", map[string]interface{}{"channel": msg.Channel})
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Failed to send outbound message", map[string]interface{}{"channel": msg.Channel, "error": err.Error()})
		}
	}
}
