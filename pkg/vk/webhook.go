package vk

import (
	"io"
	"net/http"

	"github.com/Edd-G/vkgate/pkg/config"
	"github.com/Edd-G/vkgate/pkg/logger"
)

const (
	maxCallbackBody = 1 << 20
	ackBody         = "ok"
)

// EventFunc receives administrative events after they are acknowledged.
type EventFunc func(name string, payload map[string]interface{})

// MessageFunc receives normalized user messages.
type MessageFunc func(msg *Message)

// Handler terminates one VK callback request: authenticate, classify, answer
// the confirmation handshake or acknowledge, then hand the result to the
// registered callbacks. All mutable state is scoped to the request, so
// concurrent deliveries cannot interfere with each other.
type Handler struct {
	cfg       config.VKConfig
	onEvent   EventFunc
	onMessage MessageFunc
}

func NewHandler(cfg config.VKConfig, onEvent EventFunc, onMessage MessageFunc) *Handler {
	return &Handler{cfg: cfg, onEvent: onEvent, onMessage: onMessage}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	event, err := ParseEvent(body)
	if err != nil {
		logger.DebugC("vk", "Dropping malformed callback body")
		w.WriteHeader(http.StatusOK)
		return
	}

	if !Authenticate(event.Secret, h.cfg.SecretKey) {
		logger.WarnCF("vk", "Callback secret mismatch, ignoring request", map[string]interface{}{
			logger.FieldEventType: event.Type,
		})
		w.WriteHeader(http.StatusOK)
		return
	}

	// resp guards the platform response: at most one body per request, no
	// matter how many branches below would write one.
	resp := &responder{w: w}

	switch c := Classify(event, h.cfg.GroupID); c.Kind {
	case Confirmation:
		// The handshake answer short-circuits all further processing.
		resp.confirm(h.cfg.Confirmation)
		logger.InfoCF("vk", "Confirmation handshake answered", map[string]interface{}{
			"group_id": event.GroupID,
		})
		return

	case GenericEvent:
		resp.ack()
		logger.DebugCF("vk", "Generic event received", map[string]interface{}{
			logger.FieldEventType: c.Name,
		})
		if c.Name == EventMessageDeny && h.cfg.ForwardDeny && h.onMessage != nil {
			if msg, err := DenyMessage(event); err == nil {
				h.onMessage(msg)
			}
		}
		if h.onEvent != nil {
			h.onEvent(c.Name, c.Payload)
		}

	case UserMessage:
		resp.ack()
		msg, err := Normalize(event)
		if err != nil {
			logger.WarnCF("vk", "Dropping unprocessable message", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			return
		}
		if h.onMessage != nil {
			h.onMessage(msg)
		}

	default:
		// Authenticated but unrecognized webhook noise still needs the
		// acknowledgment, otherwise the platform keeps retrying delivery.
		resp.ack()
	}
}

// responder enforces the at-most-once response per request.
type responder struct {
	w    http.ResponseWriter
	sent bool
}

func (r *responder) confirm(token string) {
	r.write(token)
}

func (r *responder) ack() {
	r.write(ackBody)
}

func (r *responder) write(body string) {
	if r.sent {
		return
	}
	r.sent = true
	io.WriteString(r.w, body)
}
