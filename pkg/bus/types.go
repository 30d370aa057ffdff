// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package bus decouples channel adapters from the agent loop with a pair of
// unbounded, lossless queues: inbound messages flow from channels toward
// the agent, outbound messages flow back. Publishers never block and no
// message is ever dropped while the bus is running, per the process-local
// pub/sub contract it implements.
package bus

// InboundMessage is one message arriving from a channel (or a synthetic
// "system" channel used for subagent reports and cron deliveries), bound
// for the agent loop.
type InboundMessage struct {
	Channel    string
	SenderID   string
	ChatID     string
	Content    string
	Media      []string
	Metadata   map[string]string
	SessionKey string
}

// OutboundMessage is the agent's reply, bound for a channel adapter to
// deliver back to the user.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Media   []string
}

// MessageHandler delivers an inbound message to a channel-specific
// consumer registered via MessageBus.RegisterHandler.
type MessageHandler func(msg InboundMessage) error
