package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/config"
	"github.com/nanobot-ai/nanobot/pkg/logger"
	"github.com/nanobot-ai/nanobot/pkg/utils"
)

// DiscordChannel adapts a Discord bot connection onto the bus.
type DiscordChannel struct {
	*BaseChannel
	cfg config.DiscordConfig

	mu      sync.Mutex
	session *discordgo.Session
}

func NewDiscordChannel(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*DiscordChannel, error) {
	base := NewBaseChannel("discord", cfg, msgBus, cfg.AllowFrom)
	return &DiscordChannel{BaseChannel: base, cfg: cfg}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	if c.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	logger.InfoCF("discord", "Starting Discord channel", nil)

	session, err := discordgo.New("Bot " + c.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	session.AddHandler(c.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.setRunning(true)
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoCF("discord", "Stopping Discord channel", nil)

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	c.setRunning(false)

	if session == nil {
		return nil
	}
	return session.Close()
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return fmt.Errorf("discord session not established")
	}

	if _, err := session.ChannelMessageSend(msg.ChatID, msg.Content); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	metadata := map[string]string{"user_name": m.Author.Username}

	logger.DebugCF("discord", "Received message", map[string]interface{}{"sender": m.Author.ID, "preview": utils.Truncate(m.Content, 50)})

	c.HandleMessage(m.Author.ID, m.ChannelID, m.Content, nil, metadata)
}
