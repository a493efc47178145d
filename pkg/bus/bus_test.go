package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "vk", SenderID: "1", ChatID: "2", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatalf("expected message")
	}
	if msg.Content != "hi" || msg.Channel != "vk" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestPublishSubscribeOutbound(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishOutbound(OutboundMessage{Channel: "vk", ChatID: "2", Content: "reply", Buttons: []Button{{Label: "Ok", Value: "ok"}}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := mb.SubscribeOutbound(ctx)
	if !ok {
		t.Fatalf("expected message")
	}
	if len(msg.Buttons) != 1 || msg.Buttons[0].Value != "ok" {
		t.Fatalf("buttons not carried: %+v", msg)
	}
}

func TestConsumeCanceled(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatalf("expected no message on canceled context")
	}
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "vk"})
	mb.PublishOutbound(OutboundMessage{Channel: "vk"})
}
