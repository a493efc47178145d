package vk

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Edd-G/vkgate/pkg/config"
)

func testHandlerConfig() config.VKConfig {
	return config.VKConfig{
		SecretKey:    "s3cret",
		GroupID:      100,
		Confirmation: "CONFIRM123",
	}
}

type captured struct {
	mu       sync.Mutex
	events   []string
	messages []*Message
}

func (c *captured) onEvent(name string, payload map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, name)
}

func (c *captured) onMessage(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func postCallback(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vk/callback", strings.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandshakeAnsweredVerbatim(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"confirmation","group_id":100,"secret":"s3cret"}`)
	if rec.Body.String() != "CONFIRM123" {
		t.Fatalf("confirmation body mismatch: %q", rec.Body.String())
	}
	if len(cap.events) != 0 || len(cap.messages) != 0 {
		t.Fatalf("handshake must short-circuit all processing")
	}
}

func TestHandshakeWrongGroupGetsAck(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"confirmation","group_id":999,"secret":"s3cret"}`)
	if rec.Body.String() != "ok" {
		t.Fatalf("expected generic ack, got %q", rec.Body.String())
	}
}

func TestUserMessageAckedAndDelivered(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"message_new","group_id":100,"secret":"s3cret","object":{"text":"hi","from_id":1,"peer_id":2}}`)
	if rec.Body.String() != "ok" {
		t.Fatalf("ack mismatch: %q", rec.Body.String())
	}
	if len(cap.messages) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(cap.messages))
	}
	if msg := cap.messages[0]; msg.Text != "hi" || msg.SenderID != 1 || msg.ConversationID != 2 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestGenericEventAcked(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"chat_title_update","group_id":100,"secret":"s3cret","object":{"peer_id":2}}`)
	if rec.Body.String() != "ok" {
		t.Fatalf("ack mismatch: %q", rec.Body.String())
	}
	if len(cap.events) != 1 || cap.events[0] != "chat_title_update" {
		t.Fatalf("event not delivered: %v", cap.events)
	}
	if len(cap.messages) != 0 {
		t.Fatalf("generic event must not produce a message")
	}
}

func TestSecretMismatchIgnored(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"message_new","group_id":100,"secret":"wrong","object":{"text":"hi","from_id":1,"peer_id":2}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unauthenticated request must not fault: %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("unauthenticated request must not be acknowledged: %q", rec.Body.String())
	}
	if len(cap.events) != 0 || len(cap.messages) != 0 {
		t.Fatalf("unauthenticated request must be ignored")
	}
}

func TestMalformedBodyIgnored(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":`)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed body must not fault: %d", rec.Code)
	}
	if len(cap.events) != 0 || len(cap.messages) != 0 {
		t.Fatalf("malformed body must be ignored")
	}
}

func TestUnprocessableMessageStillAcked(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"message_new","group_id":100,"secret":"s3cret","object":{"from_id":1,"peer_id":2}}`)
	if rec.Body.String() != "ok" {
		t.Fatalf("message without content must still be acknowledged: %q", rec.Body.String())
	}
	if len(cap.messages) != 0 {
		t.Fatalf("message without content must be dropped")
	}
}

func TestUnmatchedNoiseAcked(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"wall_post_new","group_id":100,"secret":"s3cret","object":{}}`)
	if rec.Body.String() != "ok" {
		t.Fatalf("unmatched authenticated noise must be acknowledged: %q", rec.Body.String())
	}
}

func TestDenyForwarding(t *testing.T) {
	t.Parallel()

	cfg := testHandlerConfig()
	cfg.ForwardDeny = true
	cap := &captured{}
	h := NewHandler(cfg, cap.onEvent, cap.onMessage)

	rec := postCallback(h, `{"type":"message_deny","group_id":100,"secret":"s3cret","object":{"user_id":7}}`)
	if rec.Body.String() != "ok" {
		t.Fatalf("ack mismatch: %q", rec.Body.String())
	}
	if len(cap.messages) != 1 {
		t.Fatalf("expected synthetic deny message, got %d", len(cap.messages))
	}
	if msg := cap.messages[0]; msg.Text != DenyCommand || msg.SenderID != 7 {
		t.Fatalf("unexpected deny message: %+v", msg)
	}
	if len(cap.events) != 1 || cap.events[0] != "message_deny" {
		t.Fatalf("deny event must still reach the event hook: %v", cap.events)
	}
}

func TestDenyNotForwardedByDefault(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	postCallback(h, `{"type":"message_deny","group_id":100,"secret":"s3cret","object":{"user_id":7}}`)
	if len(cap.messages) != 0 {
		t.Fatalf("deny forwarding is opt-in")
	}
}

func TestNonPostRejected(t *testing.T) {
	t.Parallel()

	h := NewHandler(testHandlerConfig(), nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vk/callback", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

// Concurrent deliveries must not share response state: each request gets
// exactly its own body.
func TestConcurrentRequestsIsolated(t *testing.T) {
	t.Parallel()

	cap := &captured{}
	h := NewHandler(testHandlerConfig(), cap.onEvent, cap.onMessage)

	const rounds = 50
	var wg sync.WaitGroup
	errCh := make(chan string, rounds*2)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rec := postCallback(h, `{"type":"confirmation","group_id":100,"secret":"s3cret"}`)
			if rec.Body.String() != "CONFIRM123" {
				errCh <- "confirmation body: " + rec.Body.String()
			}
		}()
		go func() {
			defer wg.Done()
			rec := postCallback(h, `{"type":"message_new","group_id":100,"secret":"s3cret","object":{"text":"hi","from_id":1,"peer_id":2}}`)
			if rec.Body.String() != "ok" {
				errCh <- "ack body: " + rec.Body.String()
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for msg := range errCh {
		t.Fatalf("request interference: %s", msg)
	}
	if len(cap.messages) != rounds {
		t.Fatalf("expected %d delivered messages, got %d", rounds, len(cap.messages))
	}
}
