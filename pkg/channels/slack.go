package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/config"
	"github.com/nanobot-ai/nanobot/pkg/logger"
	"github.com/nanobot-ai/nanobot/pkg/utils"
)

// SlackChannel adapts a Slack app running in Socket Mode onto the bus.
type SlackChannel struct {
	*BaseChannel
	cfg config.SlackConfig

	mu     sync.Mutex
	api    *slack.Client
	client *socketmode.Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSlackChannel(cfg config.SlackConfig, msgBus *bus.MessageBus) (*SlackChannel, error) {
	base := NewBaseChannel("slack", cfg, msgBus, cfg.AllowFrom)
	return &SlackChannel{BaseChannel: base, cfg: cfg}, nil
}

func (c *SlackChannel) Start(ctx context.Context) error {
	if c.cfg.BotToken == "" || c.cfg.AppToken == "" {
		return fmt.Errorf("slack: bot token and app token are required")
	}

	logger.InfoCF("slack", "Starting Slack channel", nil)

	api := slack.New(c.cfg.BotToken, slack.OptionAppLevelToken(c.cfg.AppToken))
	client := socketmode.New(api)

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.api = api
	c.client = client
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.handleEvents(runCtx, client)
	}()
	go func() {
		defer c.wg.Done()
		_ = client.RunContext(runCtx)
	}()

	c.setRunning(true)
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoCF("slack", "Stopping Slack channel", nil)

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.setRunning(false)
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	api := c.api
	c.mu.Unlock()

	if api == nil {
		return fmt.Errorf("slack client not established")
	}

	if _, _, err := api.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false)); err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) handleEvents(ctx context.Context, client *socketmode.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-client.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			client.Ack(*evt.Request)

			if eventsAPIEvent.Type != slackevents.CallbackEvent {
				continue
			}
			switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				c.onMessageEvent(ev)
			}
		}
	}
}

func (c *SlackChannel) onMessageEvent(ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.SubType != "" {
		return
	}

	logger.DebugCF("slack", "Received message", map[string]interface{}{"sender": ev.User, "preview": utils.Truncate(ev.Text, 50)})

	c.HandleMessage(ev.User, ev.Channel, ev.Text, nil, nil)
}
