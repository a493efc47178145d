package vk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OneTimeKey marks a button whose keyboard should disappear after one use.
// The marker sits on individual buttons but its effect is keyboard-wide: it
// is stripped from the button's emitted fields and hoisted to the keyboard's
// one_time flag.
const OneTimeKey = "onetime"

// Button is one quick-reply option. Value is coerced to a string and echoed
// back by the platform as the payload command when clicked. Extra fields
// (color, styling) are merged into the emitted button verbatim.
type Button struct {
	Label string
	Value interface{}
	Extra map[string]interface{}
}

// Question is an outgoing message with an interactive keyboard.
type Question struct {
	Text    string
	Buttons []Button
}

// OutgoingMessage is a plain outgoing text message.
type OutgoingMessage struct {
	Text string
}

// BuildSendPayload constructs the messages.send parameter map for a reply
// addressed to peerID. The reply may be a *Question, an *OutgoingMessage, or
// any bare value, which is coerced into the message field. Extra parameters
// are merged recursively; array-valued keys append rather than overwrite.
//
// The one-time keyboard flag is scoped to this single call: it cannot leak
// between requests.
func BuildSendPayload(reply interface{}, peerID int64, extra map[string]interface{}) (map[string]interface{}, error) {
	payload := mergeParams(map[string]interface{}{"peer_id": peerID}, extra)

	switch r := reply.(type) {
	case *Question:
		payload["message"] = r.Text
		keyboard, err := buildKeyboard(r.Buttons)
		if err != nil {
			return nil, err
		}
		payload["keyboard"] = keyboard
	case Question:
		return BuildSendPayload(&r, peerID, extra)
	case *OutgoingMessage:
		payload["message"] = r.Text
	case OutgoingMessage:
		payload["message"] = r.Text
	case string:
		payload["message"] = r
	default:
		payload["message"] = fmt.Sprint(r)
	}

	return payload, nil
}

// buildKeyboard serializes buttons into the wire keyboard JSON, one button
// per row, with non-ASCII characters preserved literally.
func buildKeyboard(buttons []Button) (string, error) {
	oneTime := false
	rows := make([][]map[string]interface{}, 0, len(buttons))

	for _, b := range buttons {
		command, err := encodeJSON(map[string]string{"command": coerceString(b.Value)})
		if err != nil {
			return "", fmt.Errorf("encode button payload: %w", err)
		}

		entry := map[string]interface{}{
			"action": map[string]interface{}{
				"type":    "text",
				"payload": command,
				"label":   b.Label,
			},
		}
		for key, value := range b.Extra {
			if key == OneTimeKey {
				oneTime = true
				continue
			}
			entry[key] = value
		}
		rows = append(rows, []map[string]interface{}{entry})
	}

	keyboard, err := encodeJSON(map[string]interface{}{
		"buttons":  rows,
		"one_time": oneTime,
	})
	if err != nil {
		return "", fmt.Errorf("encode keyboard: %w", err)
	}
	return keyboard, nil
}

// mergeParams merges src into dst recursively. Nested maps merge key-wise,
// array values append, scalar conflicts take the src value.
func mergeParams(dst, src map[string]interface{}) map[string]interface{} {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}
		switch ev := existing.(type) {
		case map[string]interface{}:
			if sv, ok := value.(map[string]interface{}); ok {
				dst[key] = mergeParams(ev, sv)
				continue
			}
		case []interface{}:
			if sv, ok := value.([]interface{}); ok {
				dst[key] = append(ev, sv...)
				continue
			}
			dst[key] = append(ev, value)
			continue
		}
		dst[key] = value
	}
	return dst
}

func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// encodeJSON marshals v without escaping HTML characters, so keyboard labels
// and payloads keep their characters literal on the wire.
func encodeJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
