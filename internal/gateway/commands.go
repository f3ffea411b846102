package gateway

import (
	"encoding/json"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
)

// CommandType discriminates client-to-server operations on the wire.
type CommandType string

const (
	CommandChat       CommandType = "Chat"
	CommandStroke     CommandType = "Stroke"
	CommandStartMatch CommandType = "StartMatch"
	CommandKick       CommandType = "Kick"
	CommandLeave      CommandType = "Leave"
)

// Command is the client-to-server half of the duplex protocol. Seq is
// echoed back in a CommandAck so callers can bound each operation with a
// timeout.
type Command struct {
	Seq  uint64          `json:"seq"`
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ChatCommandPayload struct {
	Text string `json:"text"`
}

// StrokeCommandPayload reuses the broadcast wire shape.
type StrokeCommandPayload = events.StrokePayload

type KickCommandPayload struct {
	TargetID string `json:"targetId"`
}
