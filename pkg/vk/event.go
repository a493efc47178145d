package vk

import (
	"crypto/subtle"
	"errors"

	"github.com/tidwall/gjson"
)

// Callback event types with dedicated handling.
const (
	EventConfirmation = "confirmation"
	EventMessageNew   = "message_new"
	EventMessageDeny  = "message_deny"
)

// genericEventNames is the fixed set of administrative callback types. It is
// the single source of truth for what counts as a platform event rather than
// a user message, both at the envelope level and nested inside a message's
// action object.
var genericEventNames = map[string]bool{
	"confirmation":             true,
	"chat_create":              true,
	"chat_invite_user":         true,
	"chat_invite_user_by_link": true,
	"chat_kick_user":           true,
	"chat_photo_remove":        true,
	"chat_photo_update":        true,
	"chat_pin_message":         true,
	"chat_title_update":        true,
	"chat_unpin_message":       true,
	"message_allow":            true,
	"message_deny":             true,
	"message_edit":             true,
	"message_reply":            true,
}

// ErrMalformedPayload reports a callback body that is not a JSON object.
// Callers treat it as "ignore this request", never as a fault: webhook
// senders cannot be trusted to always deliver well-formed bodies.
var ErrMalformedPayload = errors.New("vk: malformed callback payload")

// Event is one parsed inbound callback envelope. The object shape depends on
// Type, so it is kept as raw JSON and inspected lazily.
type Event struct {
	Type    string
	GroupID int64
	Secret  string

	raw    []byte
	object gjson.Result
}

func ParseEvent(body []byte) (*Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedPayload
	}

	raw := make([]byte, len(body))
	copy(raw, body)

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrMalformedPayload
	}

	return &Event{
		Type:    root.Get("type").String(),
		GroupID: root.Get("group_id").Int(),
		Secret:  root.Get("secret").String(),
		raw:     raw,
		object:  root.Get("object"),
	}, nil
}

// Object returns the event's opaque nested object.
func (e *Event) Object() gjson.Result {
	return e.object
}

// Raw returns the original callback body.
func (e *Event) Raw() []byte {
	return e.raw
}

// Authenticate reports whether the secret carried by a callback matches the
// configured secret key. An absent secret compares as a mismatch.
func Authenticate(secret, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(configured)) == 1
}

// Kind tags the classification outcome of an inbound event.
type Kind int

const (
	Unmatched Kind = iota
	Confirmation
	GenericEvent
	UserMessage
)

// Classification is the result of deciding what an inbound event represents.
// Name and Payload are set for GenericEvent only.
type Classification struct {
	Kind    Kind
	Name    string
	Payload map[string]interface{}
}

// Classify decides what an authenticated event represents. Checks are
// ordered, first match wins: the confirmation handshake, then administrative
// types on the envelope, then chat actions nested inside a message wrapper,
// then a genuine user message. The envelope check runs before the nested one
// because a top-level event name is unambiguous while a nested action name
// is only meaningful once the envelope fails to match.
//
// Missing type or object fields classify as Unmatched, never an error.
func Classify(e *Event, groupID int64) Classification {
	if e.Type == EventConfirmation && e.GroupID == groupID {
		return Classification{Kind: Confirmation}
	}

	if genericEventNames[e.Type] {
		return Classification{Kind: GenericEvent, Name: e.Type, Payload: resultMap(e.object)}
	}

	if action := e.object.Get("action"); action.Exists() {
		if name := action.Get("type").String(); genericEventNames[name] {
			payload := resultMap(action)
			delete(payload, "type")
			return Classification{Kind: GenericEvent, Name: name, Payload: payload}
		}
	}

	if e.Type == EventMessageNew && !e.object.Get("action").Exists() {
		return Classification{Kind: UserMessage}
	}

	return Classification{Kind: Unmatched}
}

func resultMap(r gjson.Result) map[string]interface{} {
	if m, ok := r.Value().(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
