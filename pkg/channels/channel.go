package channels

import (
	"context"
	"sync"

	"github.com/Edd-G/vkgate/pkg/bus"
)

// Channel is a chat platform adapter bridging inbound deliveries onto the
// message bus and outbound messages back to the platform.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsAllowed(senderID string) bool
	HealthCheck(ctx context.Context) error
}

// BaseChannel carries the state every channel shares: name, bus handle,
// allowlist and the running flag.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]bool
	running   bool
	mu        sync.RWMutex
}

func NewBaseChannel(name string, messageBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	allowed := make(map[string]bool, len(allowFrom))
	for _, id := range allowFrom {
		allowed[id] = true
	}
	return &BaseChannel{
		name:      name,
		bus:       messageBus,
		allowFrom: allowed,
	}
}

func (b *BaseChannel) Name() string {
	return b.name
}

func (b *BaseChannel) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *BaseChannel) setRunning(running bool) {
	b.mu.Lock()
	b.running = running
	b.mu.Unlock()
}

// IsAllowed reports whether senderID passes the allowlist. An empty
// allowlist admits everyone.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	return b.allowFrom[senderID]
}

// HandleMessage publishes an inbound message to the bus under this
// channel's name.
func (b *BaseChannel) HandleMessage(senderID, chatID, content string, metadata map[string]string) {
	b.bus.PublishInbound(bus.InboundMessage{
		Channel:    b.name,
		SenderID:   senderID,
		ChatID:     chatID,
		Content:    content,
		SessionKey: b.name + ":" + chatID,
		Metadata:   metadata,
	})
}
