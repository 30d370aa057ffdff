// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package bus

import (
	"context"
	"sync"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// queue is an unbounded, mutex-guarded FIFO. Publishers never block and
// messages are never dropped while the bus is open — channel adapters and
// the agent loop pull at whatever pace they can manage, and a slow consumer
// just makes the queue grow rather than losing a turn.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
	done   chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{notify: make(chan struct{}, 1), done: make(chan struct{})}
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, v)
	n := len(q.items)
	q.mu.Unlock()

	if n > queueWarnThreshold && n%queueWarnThreshold == 0 {
		logger.WarnCF("bus", "queue backlog growing, consumer may be stalled", map[string]interface{}{"depth": n})
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, false
		}

		select {
		case <-q.notify:
			continue
		case <-q.done:
			return zero, false
		case <-ctx.Done():
			return zero, false
		}
	}
}

func (q *queue[T]) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

// queueWarnThreshold is the backlog depth (and repeat interval) at which a
// growing queue logs a warning instead of growing silently.
const queueWarnThreshold = 100

// MessageBus decouples channel adapters from the agent loop with a pair of
// unbounded, lossless queues: inbound messages flow from channels toward
// the agent, outbound messages flow back.
type MessageBus struct {
	inbound   *queue[InboundMessage]
	outbound  *queue[OutboundMessage]
	handlers  map[string]MessageHandler
	closeOnce sync.Once
	mu        sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  newQueue[InboundMessage](),
		outbound: newQueue[OutboundMessage](),
		handlers: make(map[string]MessageHandler),
	}
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.inbound.push(msg)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return mb.inbound.pop(ctx)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.outbound.push(msg)
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return mb.outbound.pop(ctx)
}

func (mb *MessageBus) RegisterHandler(channel string, handler MessageHandler) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.handlers[channel] = handler
}

func (mb *MessageBus) GetHandler(channel string) (MessageHandler, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	handler, ok := mb.handlers[channel]
	return handler, ok
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		mb.inbound.close()
		mb.outbound.close()
	})
}
