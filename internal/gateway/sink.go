package gateway

import (
	"encoding/json"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
)

// roomSink routes one session's events into the connection manager's
// fan-out queue. Enqueueing never blocks, so sessions can emit while
// holding their lock.
type roomSink struct {
	cm   *ConnectionManager
	code string
}

// NewRoomSink builds the sink a session for roomCode broadcasts through.
func NewRoomSink(cm *ConnectionManager, code string) session.Sink {
	return roomSink{cm: cm, code: code}
}

func (s roomSink) Broadcast(ev *events.Event) {
	s.cm.Broadcast(s.code, ev)
}

func (s roomSink) BroadcastExcept(playerID string, ev *events.Event) {
	s.cm.BroadcastExcept(s.code, playerID, ev)
}

func (s roomSink) SendTo(playerID string, ev *events.Event) {
	s.cm.SendTo(s.code, playerID, ev)
}

func encodeEvent(ev *events.Event) ([]byte, error) {
	return json.Marshal(ev)
}
