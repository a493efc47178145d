package vk

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	// ErrMissingContent reports a message object with neither a quick-reply
	// command nor a text field.
	ErrMissingContent = errors.New("vk: message carries neither payload command nor text")
	// ErrMissingRouting reports a message object without from_id/peer_id;
	// routing depends on both.
	ErrMissingRouting = errors.New("vk: message lacks from_id or peer_id")
)

// DenyCommand is the synthetic command delivered when a user denies messages
// from the community and deny forwarding is enabled.
const DenyCommand = "_message_deny"

// Message is a normalized incoming user message. Raw retains the full
// enclosing event for consumers that need platform-specific fields.
type Message struct {
	Text           string
	SenderID       int64
	ConversationID int64
	Raw            *Event
}

// Normalize converts a user-message event's object into a Message. A button
// click arrives with a payload whose command becomes the message text,
// closing the loop with the outbound keyboard encoding; otherwise the
// literal text field is used.
func Normalize(e *Event) (*Message, error) {
	obj := e.Object()

	text, ok := messageText(obj)
	if !ok {
		return nil, ErrMissingContent
	}

	from := obj.Get("from_id")
	peer := obj.Get("peer_id")
	if !from.Exists() || !peer.Exists() {
		return nil, ErrMissingRouting
	}

	return &Message{
		Text:           text,
		SenderID:       from.Int(),
		ConversationID: peer.Int(),
		Raw:            e,
	}, nil
}

// DenyMessage builds the synthetic message for a message_deny event, whose
// object carries only user_id.
func DenyMessage(e *Event) (*Message, error) {
	userID := e.Object().Get("user_id")
	if !userID.Exists() {
		return nil, ErrMissingRouting
	}
	return &Message{
		Text:           DenyCommand,
		SenderID:       userID.Int(),
		ConversationID: userID.Int(),
		Raw:            e,
	}, nil
}

func messageText(obj gjson.Result) (string, bool) {
	if cmd := buttonCommand(obj); cmd.Exists() {
		return cmd.String(), true
	}
	if t := obj.Get("text"); t.Exists() {
		return t.String(), true
	}
	return "", false
}

// buttonCommand digs the quick-reply command out of object.payload. VK
// delivers the button payload as a JSON-encoded string field; a plain
// object is tolerated as well.
func buttonCommand(obj gjson.Result) gjson.Result {
	p := obj.Get("payload")
	if !p.Exists() {
		return gjson.Result{}
	}
	if p.Type == gjson.String {
		return gjson.Parse(p.String()).Get("command")
	}
	return p.Get("command")
}

// Answer is the conversation reply extracted from a message: a button click
// comes back interactive with the original command as its value, plain text
// as-is.
type Answer struct {
	Text        string
	Value       string
	Interactive bool
}

func (m *Message) Answer() Answer {
	if m.Raw != nil {
		obj := m.Raw.Object()
		if cmd := buttonCommand(obj); cmd.Exists() {
			return Answer{
				Text:        obj.Get("text").String(),
				Value:       cmd.String(),
				Interactive: true,
			}
		}
	}
	return Answer{Text: m.Text, Value: m.Text}
}
