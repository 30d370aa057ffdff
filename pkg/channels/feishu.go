package channels

import (
	"context"
	"fmt"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/nanobot-ai/nanobot/pkg/bus"
	"github.com/nanobot-ai/nanobot/pkg/config"
	"github.com/nanobot-ai/nanobot/pkg/logger"
	"github.com/nanobot-ai/nanobot/pkg/utils"
)

// FeishuChannel adapts a Feishu/Lark bot running the long-connection
// (websocket) event client onto the bus.
type FeishuChannel struct {
	*BaseChannel
	cfg config.FeishuConfig

	mu       sync.Mutex
	client   *lark.Client
	wsClient *larkws.Client
	cancel   context.CancelFunc
}

func NewFeishuChannel(cfg config.FeishuConfig, msgBus *bus.MessageBus) (*FeishuChannel, error) {
	base := NewBaseChannel("feishu", cfg, msgBus, cfg.AllowFrom)
	return &FeishuChannel{BaseChannel: base, cfg: cfg}, nil
}

func (c *FeishuChannel) Start(ctx context.Context) error {
	if c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		return fmt.Errorf("feishu: app id and app secret are required")
	}

	logger.InfoCF("feishu", "Starting Feishu channel", nil)

	client := lark.NewClient(c.cfg.AppID, c.cfg.AppSecret)

	handler := lark.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(c.onMessageReceive)

	wsClient := larkws.NewClient(c.cfg.AppID, c.cfg.AppSecret, larkws.WithEventHandler(handler))

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.client = client
	c.wsClient = wsClient
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		if err := wsClient.Start(runCtx); err != nil {
			logger.ErrorCF("feishu", "Feishu stream client stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	c.setRunning(true)
	return nil
}

func (c *FeishuChannel) Stop(ctx context.Context) error {
	logger.InfoCF("feishu", "Stopping Feishu channel", nil)

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.setRunning(false)
	return nil
}

func (c *FeishuChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return fmt.Errorf("feishu client not established")
	}

	content, err := larkim.NewTextMsgBuilder().Text(msg.Content).Build()
	if err != nil {
		return fmt.Errorf("failed to build feishu message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType("text").
			Content(content).
			Build()).
		Build()

	resp, err := client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send feishu message: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("feishu send failed: %s", resp.Msg)
	}
	return nil
}

func (c *FeishuChannel) onMessageReceive(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}

	msg := event.Event.Message
	var senderID, chatID string
	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
		senderID = *event.Event.Sender.SenderId.OpenId
	}
	if msg.ChatId != nil {
		chatID = *msg.ChatId
	}

	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}

	logger.DebugCF("feishu", "Received message", map[string]interface{}{"sender": senderID, "preview": utils.Truncate(content, 50)})

	c.HandleMessage(senderID, chatID, content, nil, nil)
	return nil
}
