package domain

import (
	"encoding/json"
	"time"

	apperrors "chathub/errors"
)

// Frame is the closed set of inbound client frames. Dispatch is
// exhaustive: anything outside the known tags fails decoding with
// ErrUnknownFrameType instead of being accepted silently.
type Frame interface {
	frame()
}

type PingFrame struct{}

type MessageFrame struct {
	Content string
}

func (PingFrame) frame()    {}
func (MessageFrame) frame() {}

type frameEnvelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DecodeFrame parses one inbound text frame.
func DecodeFrame(data []byte) (Frame, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.ErrUnknownFrameType
	}
	switch env.Type {
	case "ping":
		return PingFrame{}, nil
	case "message":
		return MessageFrame{Content: env.Content}, nil
	default:
		return nil, apperrors.ErrUnknownFrameType
	}
}

// PongFrame answers a ping with the current server time.
type PongFrame struct {
	Type string `json:"type"`
	TS   string `json:"ts"`
}

// DeliveryFrame carries a persisted message to every live connection of
// the chat members.
type DeliveryFrame struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chat_id"`
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ErrorFrame reports a local, non-fatal failure to the sender only.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewPongFrame(ts time.Time) PongFrame {
	return PongFrame{Type: "pong", TS: ts.UTC().Format(time.RFC3339Nano)}
}

func NewDeliveryFrame(m Message) DeliveryFrame {
	return DeliveryFrame{
		Type:      "message",
		ID:        int64(m.ID),
		ChatID:    int64(m.ChatID),
		SenderID:  int64(m.SenderID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func NewErrorFrame(tag string) ErrorFrame {
	return ErrorFrame{Type: "error", Error: tag}
}
