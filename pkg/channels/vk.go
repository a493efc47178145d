package channels

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Edd-G/vkgate/pkg/bus"
	"github.com/Edd-G/vkgate/pkg/config"
	"github.com/Edd-G/vkgate/pkg/logger"
	"github.com/Edd-G/vkgate/pkg/vk"
)

const vkTypingTimeout = 5 * time.Second

// VKChannel adapts the VK Callback API: inbound events arrive through the
// webhook handler exposed by HTTPHandler, outbound messages go out through
// the VK API client.
type VKChannel struct {
	*BaseChannel
	config  config.VKConfig
	client  *vk.Client
	handler http.Handler
}

func NewVKChannel(cfg config.VKConfig, messageBus *bus.MessageBus) (*VKChannel, error) {
	if cfg.AccessToken == "" || cfg.APIVersion == "" {
		return nil, fmt.Errorf("vk access_token and api_version not configured")
	}

	base := NewBaseChannel("vk", messageBus, cfg.AllowFrom)
	c := &VKChannel{
		BaseChannel: base,
		config:      cfg,
		client:      vk.NewClient(cfg),
	}
	c.handler = vk.NewHandler(cfg, c.handleGenericEvent, c.handleMessage)
	return c, nil
}

// HTTPHandler returns the webhook handler for the configured callback path.
func (c *VKChannel) HTTPHandler() http.Handler {
	return c.handler
}

func (c *VKChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}
	logger.InfoCF("vk", "Starting VK channel (callback mode)", map[string]interface{}{
		"group_id": c.config.GroupID,
	})
	c.setRunning(true)
	return nil
}

func (c *VKChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		return nil
	}
	logger.InfoC("vk", "Stopping VK channel")
	c.setRunning(false)
	return nil
}

func (c *VKChannel) HealthCheck(ctx context.Context) error {
	if !c.IsRunning() {
		return fmt.Errorf("vk channel not running")
	}
	return nil
}

func (c *VKChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("vk channel not running")
	}

	peerID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}

	var reply interface{}
	if len(msg.Buttons) > 0 {
		question := &vk.Question{Text: msg.Content}
		for _, b := range msg.Buttons {
			question.Buttons = append(question.Buttons, vk.Button{
				Label: b.Label,
				Value: b.Value,
				Extra: b.Extra,
			})
		}
		reply = question
	} else {
		reply = &vk.OutgoingMessage{Text: msg.Content}
	}

	payload, err := vk.BuildSendPayload(reply, peerID, msg.Extra)
	if err != nil {
		return fmt.Errorf("build send payload: %w", err)
	}

	if err := c.client.SendMessage(ctx, payload); err != nil {
		logger.ErrorCF("vk", "Failed to send message", map[string]interface{}{
			logger.FieldPeerID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
		return err
	}
	return nil
}

func (c *VKChannel) handleMessage(msg *vk.Message) {
	if !c.IsRunning() {
		return
	}

	senderID := strconv.FormatInt(msg.SenderID, 10)
	chatID := strconv.FormatInt(msg.ConversationID, 10)

	if !c.IsAllowed(senderID) {
		logger.WarnCF("vk", "Message rejected by allowlist", map[string]interface{}{
			logger.FieldSenderID: senderID,
			logger.FieldChatID:   chatID,
		})
		return
	}

	answer := msg.Answer()
	logger.InfoCF("vk", "Message received", map[string]interface{}{
		logger.FieldSenderID: senderID,
		logger.FieldChatID:   chatID,
		logger.FieldPreview:  truncateString(msg.Text, 50),
		"interactive":        answer.Interactive,
	})

	// Best-effort typing indicator while the runtime thinks.
	typingCtx, cancel := context.WithTimeout(context.Background(), vkTypingTimeout)
	if err := c.client.SendTyping(typingCtx, msg.ConversationID); err != nil {
		logger.DebugCF("vk", "Typing indicator failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	cancel()

	metadata := map[string]string{
		"peer_id":     chatID,
		"from_id":     senderID,
		"interactive": strconv.FormatBool(answer.Interactive),
	}
	c.HandleMessage(senderID, chatID, msg.Text, metadata)
}

func (c *VKChannel) handleGenericEvent(name string, payload map[string]interface{}) {
	logger.InfoCF("vk", "Platform event", map[string]interface{}{
		logger.FieldEventType: name,
		"payload_keys":        len(payload),
	})
}
