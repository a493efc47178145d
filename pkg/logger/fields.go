package logger

const (
	FieldChannel   = "channel"
	FieldChatID    = "chat_id"
	FieldSenderID  = "sender_id"
	FieldPeerID    = "peer_id"
	FieldEventType = "event_type"
	FieldRequestID = "request_id"
	FieldPreview   = "preview"
	FieldError     = "error"
)
