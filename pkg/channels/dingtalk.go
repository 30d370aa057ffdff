package channels

import (
	"context"
	"fmt"
	"sync"

	dtclient "github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/config"
	"github.com/nanobot-ai/nanobot/pkg/logger"
	"github.com/nanobot-ai/nanobot/pkg/utils"
)

// DingTalkChannel adapts a DingTalk stream-mode chatbot onto the bus.
type DingTalkChannel struct {
	*BaseChannel
	cfg config.DingTalkConfig

	mu     sync.Mutex
	client *dtclient.StreamClient
}

// NewDingTalkChannel builds a DingTalkChannel. bus is mandatory; cfg.ClientID/Secret
// are required for Start to succeed.
func NewDingTalkChannel(cfg config.DingTalkConfig, msgBus *bus.MessageBus) (*DingTalkChannel, error) {
	base := NewBaseChannel("dingtalk", cfg, msgBus, cfg.AllowFrom)
	return &DingTalkChannel{BaseChannel: base, cfg: cfg}, nil
}

func (c *DingTalkChannel) Start(ctx context.Context) error {
	if c.cfg.ClientID == "" || c.cfg.Secret == "" {
		return fmt.Errorf("dingtalk: client id and secret are required")
	}

	logger.InfoCF("dingtalk", "Starting DingTalk channel", nil)

	cli := dtclient.NewStreamClient(dtclient.WithAppCredential(dtclient.NewAppCredentialConfig(c.cfg.ClientID, c.cfg.Secret)))
	cli.RegisterChatBotCallbackRouter(chatbot.NewDefaultChatBotFrameHandler(c.onChatBotMessageReceived).OnEventReceived)

	if err := cli.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dingtalk stream client: %w", err)
	}

	c.mu.Lock()
	c.client = cli
	c.mu.Unlock()

	c.setRunning(true)
	return nil
}

func (c *DingTalkChannel) Stop(ctx context.Context) error {
	logger.InfoCF("dingtalk", "Stopping DingTalk channel", nil)

	c.mu.Lock()
	cli := c.client
	c.client = nil
	c.mu.Unlock()

	if cli != nil {
		cli.Close()
	}

	c.setRunning(false)
	return nil
}

// Send is a no-op: DingTalk stream-mode bots reply via the per-message
// session webhook captured at receive time, not an out-of-band push API.
func (c *DingTalkChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	return nil
}

// onChatBotMessageReceived is the stream-client callback invoked for every
// inbound chatbot message. A nil payload (malformed frame, or exercised
// directly in tests) is handled gracefully rather than panicking.
func (c *DingTalkChannel) onChatBotMessageReceived(ctx context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	if data == nil {
		return []byte(""), nil
	}

	senderID := data.SenderStaffId
	if senderID == "" {
		senderID = data.SenderId
	}
	chatID := data.ConversationId
	content := data.Text.Content

	metadata := map[string]string{
		"sender_nick": data.SenderNick,
		"msg_id":      data.MsgId,
	}

	logger.DebugCF("dingtalk", "Received message", map[string]interface{}{"sender": senderID, "preview": utils.Truncate(content, 50)})

	c.HandleMessage(senderID, chatID, content, nil, metadata)

	return []byte(""), nil
}
