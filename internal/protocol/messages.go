package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeChatMessage    MessageType = "chat_message"
	TypeClientControl  MessageType = "client_control"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ChatMessage is a user line sent to the bot.
type ChatMessage struct {
	Type        MessageType `json:"type"`
	Text        string      `json:"text"`
	DisplayName string      `json:"display_name,omitempty"`
	TSMs        int64       `json:"ts_ms,omitempty"`
}

// ClientControl carries out-of-band actions such as "clear".
type ClientControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

type AssistantReply struct {
	Type       MessageType `json:"type"`
	UserID     string      `json:"user_id"`
	ExchangeID string      `json:"exchange_id"`
	Command    string      `json:"command"`
	Chunks     []string    `json:"reply_chunks"`
	Remembered bool        `json:"remembered"`
	HasContext bool        `json:"has_context"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"user_id"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	UserID    string      `json:"user_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChatMessage:
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, errors.New("invalid chat_message: empty text")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
