package ws

import (
	"encoding/json"
	"time"
)

// WSMessage is the envelope for every frame, in both directions. Inbound
// frames carry Data as raw JSON until the event type is known.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload structs
type JoinPayload struct {
	DeviceCode    string `json:"deviceCode"`
	EncryptionKey string `json:"encryptionKey"`
}

type UpdatePayload struct {
	Text string `json:"text"`
}

type JoinedPayload struct {
	DeviceCode       string `json:"deviceCode"`
	CurrentClipboard string `json:"currentClipboard"`
}

type UpdatedPayload struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type ClearedPayload struct {
	Timestamp string `json:"timestamp"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewJoined(code, currentClipboard string) *WSMessage {
	return &WSMessage{
		Type: JoinedDevice,
		Data: JoinedPayload{
			DeviceCode:       code,
			CurrentClipboard: currentClipboard,
		},
	}
}

func NewUpdated(text string, ts time.Time) *WSMessage {
	return &WSMessage{
		Type: ClipboardUpdated,
		Data: UpdatedPayload{
			Text:      text,
			Timestamp: ts.UTC().Format(time.RFC3339),
		},
	}
}

func NewCleared(ts time.Time) *WSMessage {
	return &WSMessage{
		Type: ClipboardCleared,
		Data: ClearedPayload{
			Timestamp: ts.UTC().Format(time.RFC3339),
		},
	}
}

func NewDeviceConnected() *WSMessage {
	return &WSMessage{
		Type: DeviceConnected,
		Data: NoticePayload{Message: "New device connected"},
	}
}

func NewDeviceDisconnected() *WSMessage {
	return &WSMessage{
		Type: DeviceDisconnected,
		Data: NoticePayload{Message: "Device disconnected"},
	}
}

func NewError(message string) *WSMessage {
	return &WSMessage{
		Type: ErrorEvent,
		Data: ErrorPayload{Message: message},
	}
}
