package channels

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chzyer/readline"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// CLIChannel drives an interactive terminal session: stdin lines become
// inbound messages under a fixed chat ID, and outbound replies are printed
// to stdout. Intended for local/direct use (a single operator, no
// allow-list), not for a shared deployment.
type CLIChannel struct {
	*BaseChannel
	chatID string

	mu      sync.Mutex
	rl      *readline.Instance
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCLIChannel builds a CLIChannel reading from stdin and writing to
// stdout under the fixed chat ID "direct".
func NewCLIChannel(msgBus *bus.MessageBus) (*CLIChannel, error) {
	base := NewBaseChannel("cli", nil, msgBus, nil)
	return &CLIChannel{BaseChannel: base, chatID: "direct"}, nil
}

func (c *CLIChannel) Start(ctx context.Context) error {
	logger.InfoCF("cli", "Starting CLI channel", nil)

	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.rl = rl
	c.cancel = cancel
	c.mu.Unlock()

	c.setRunning(true)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop(runCtx, rl)
	}()

	return nil
}

func (c *CLIChannel) Stop(ctx context.Context) error {
	logger.InfoCF("cli", "Stopping CLI channel", nil)

	c.mu.Lock()
	cancel := c.cancel
	rl := c.rl
	c.cancel = nil
	c.rl = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if rl != nil {
		_ = rl.Close()
	}
	c.wg.Wait()

	c.setRunning(false)
	return nil
}

func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	w := bufio.NewWriter(os.Stdout)
	fmt.Fprintf(w, "\n%s\n> ", msg.Content)
	return w.Flush()
}

func (c *CLIChannel) readLoop(ctx context.Context, rl *readline.Instance) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			return
		}
		if line == "" {
			continue
		}

		c.HandleMessage("operator", c.chatID, line, nil, nil)
	}
}
