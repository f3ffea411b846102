package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every server-to-client push. Payloads travel as
// a tagged union: Type discriminates, Data carries the typed payload. A
// structured variant per notification replaces the sentinel-prefixed chat
// strings the protocol used to overload.
type Event struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"roomCode"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Type discriminates event payloads on the wire.
type Type string

const (
	TypePlayerJoined           Type = "PlayerJoined"
	TypePlayerLeft             Type = "PlayerLeft"
	TypePlayerKicked           Type = "PlayerKicked"
	TypeRoomCancelled          Type = "RoomCancelled"
	TypeRoundStarted           Type = "RoundStarted"
	TypeStrokeBroadcast        Type = "StrokeBroadcast"
	TypeChatMessage            Type = "ChatMessage"
	TypePlayerGuessedCorrectly Type = "PlayerGuessedCorrectly"
	TypeRoundEnded             Type = "RoundEnded"
	TypeMatchEnded             Type = "MatchEnded"
	TypeRoomListUpdated        Type = "RoomListUpdated"
	TypeCommandAck             Type = "CommandAck"
)

// New builds an event envelope around a marshalled payload.
func New(roomCode string, t Type, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      t,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParsePayload decodes an event's Data into its payload struct. Unknown
// types return (nil, nil) so newer servers don't break older clients.
func ParsePayload(ev *Event) (any, error) {
	switch ev.Type {
	case TypePlayerJoined:
		return decode[PlayerJoinedPayload](ev)
	case TypePlayerLeft:
		return decode[PlayerLeftPayload](ev)
	case TypePlayerKicked:
		return decode[PlayerKickedPayload](ev)
	case TypeRoomCancelled:
		return decode[RoomCancelledPayload](ev)
	case TypeRoundStarted:
		return decode[RoundStartedPayload](ev)
	case TypeStrokeBroadcast:
		return decode[StrokePayload](ev)
	case TypeChatMessage:
		return decode[ChatMessagePayload](ev)
	case TypePlayerGuessedCorrectly:
		return decode[GuessScoredPayload](ev)
	case TypeRoundEnded:
		return decode[RoundEndedPayload](ev)
	case TypeMatchEnded:
		return decode[MatchEndedPayload](ev)
	case TypeRoomListUpdated:
		return decode[RoomListUpdatedPayload](ev)
	case TypeCommandAck:
		return decode[CommandAckPayload](ev)
	default:
		return nil, nil
	}
}

func decode[T any](ev *Event) (any, error) {
	var payload T
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", ev.Type, err)
	}
	return payload, nil
}
