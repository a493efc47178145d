package bus

// InboundMessage is a normalized user message handed to the host runtime.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Button is one quick-reply option attached to an outbound message.
// Extra carries platform-specific styling/behavior keys verbatim; the
// "onetime" key is consumed by the sending channel, not forwarded.
type Button struct {
	Label string                 `json:"label"`
	Value string                 `json:"value"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

type OutboundMessage struct {
	Channel string                 `json:"channel"`
	ChatID  string                 `json:"chat_id"`
	Content string                 `json:"content"`
	Buttons []Button               `json:"buttons,omitempty"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

type MessageHandler func(InboundMessage) error
