package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/registry"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
)

// DefaultGracePeriod is how long a faulted subscriber may stay on the
// roster before the server treats the fault as a Leave. A resubscribe
// within the window simply replaces the stale channel.
const DefaultGracePeriod = 10 * time.Second

// Service is the server half of the session protocol: it upgrades
// subscribers, dispatches their commands into sessions, fans session
// events back out, and evicts subscribers whose channels fault.
type Service struct {
	cm       *ConnectionManager
	registry *registry.Registry
	clock    clockwork.Clock
	grace    time.Duration

	mu       sync.Mutex
	faultGen map[string]int
}

// NewService wires the gateway over a connection manager and a registry.
func NewService(cm *ConnectionManager, reg *registry.Registry, clk clockwork.Clock, grace time.Duration) *Service {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	s := &Service{
		cm:       cm,
		registry: reg,
		clock:    clk,
		grace:    grace,
		faultGen: make(map[string]int),
	}
	cm.onClientMessage = s.handleClientMessage
	cm.onFault = s.handleFault
	reg.SubscribeList(listSink{cm: cm, clock: clk})
	return s
}

// RegisterRoutes mounts the gateway's HTTP surface.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/rooms", s.handleRoomSocket)
	mux.HandleFunc("/ws/lobby", s.handleLobbySocket)
	mux.HandleFunc("/api/rooms", s.handleRooms)
	log.Info().Msg("gateway routes registered")
}

// Stats returns live connection counts per room.
func (s *Service) Stats() map[string]any {
	s.cm.mu.RLock()
	defer s.cm.mu.RUnlock()

	total := 0
	perRoom := make(map[string]int)
	for code, conns := range s.cm.roomConns {
		perRoom[code] = len(conns)
		total += len(conns)
	}
	return map[string]any{
		"total_connections": total,
		"room_connections":  perRoom,
	}
}

// handleRoomSocket is the subscribe operation: it joins the player to the
// room, then upgrades the request into the room's push channel. Joining
// again with the same player id replaces the stale channel instead of
// erroring, so client-driven reconnects are idempotent.
func (s *Service) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	playerID := q.Get("playerId")
	name := q.Get("name")
	if code == "" || playerID == "" {
		http.Error(w, session.CodeValidation, http.StatusBadRequest)
		return
	}
	if name == "" {
		name = registry.GuestDisplayName()
	}

	sess, ok := s.registry.FindRoom(code)
	if !ok {
		http.Error(w, session.CodeRoomClosed, http.StatusNotFound)
		return
	}

	roster, created, err := sess.Join(playerID, name)
	if err != nil {
		log.Debug().Err(err).Str("room_code", code).Str("player_id", playerID).Msg("join rejected")
		http.Error(w, session.ErrorCode(err), joinStatus(err))
		return
	}

	conn, err := s.cm.Upgrade(w, r, code, playerID, name)
	if err != nil {
		// The upgrader already wrote its error response. Only a roster
		// entry this request created is rolled back; a bad handshake for an
		// existing member must not evict them, and any grace eviction
		// pending for them is still armed.
		log.Warn().Err(err).Str("room_code", code).Str("player_id", playerID).Msg("upgrade after join failed")
		if created {
			sess.Leave(playerID)
		}
		return
	}
	s.cancelPendingEviction(playerKey(code, playerID))

	// The joiner's own roster snapshot rides the new channel as the first
	// event.
	ev, err := events.New(code, events.TypePlayerJoined, s.clock.Now(), events.PlayerJoinedPayload{
		PlayerID:    playerID,
		DisplayName: name,
		Roster:      roster,
	})
	if err == nil {
		s.cm.SendTo(code, conn.PlayerID, ev)
	}
	s.registry.NotifyListChanged()
}

// handleLobbySocket subscribes a client to public-room-list deltas.
func (s *Service) handleLobbySocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	conn, err := s.cm.Upgrade(w, r, LobbyRoom, clientID, "")
	if err != nil {
		return
	}

	ev, err := events.New(LobbyRoom, events.TypeRoomListUpdated, s.clock.Now(), events.RoomListUpdatedPayload{
		Rooms: registry.Summaries(s.registry.ListPublicRooms()),
	})
	if err == nil {
		s.cm.SendTo(LobbyRoom, conn.PlayerID, ev)
	}
}

type createRoomRequest struct {
	HostID string         `json:"hostId"`
	Config session.Config `json:"config"`
}

type createRoomResponse struct {
	Code   string `json:"code"`
	HostID string `json:"hostId"`
}

func (s *Service) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, registry.Summaries(s.registry.ListPublicRooms()))

	case http.MethodPost:
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, session.CodeValidation, http.StatusBadRequest)
			return
		}
		if req.HostID == "" {
			req.HostID = uuid.New().String()
		}
		sess, err := s.registry.CreateRoom(req.HostID, req.Config)
		if err != nil {
			http.Error(w, session.ErrorCode(err), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, createRoomResponse{Code: sess.Code(), HostID: req.HostID})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClientMessage dispatches one decoded client command into its room
// session and acks it back to the sender.
func (s *Service) handleClientMessage(c *Connection, data []byte) {
	if c.RoomCode == LobbyRoom {
		return
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed command")
		return
	}

	sess, ok := s.registry.FindRoom(c.RoomCode)
	if !ok {
		// The room was evicted while channels were still open; sweep them.
		s.ack(c, cmd, session.ErrRoomClosed)
		s.cm.CloseRoom(c.RoomCode)
		return
	}

	switch cmd.Type {
	case CommandChat:
		var p ChatCommandPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			s.ack(c, cmd, session.ErrValidation)
			return
		}
		_, err := sess.SubmitChat(c.PlayerID, p.Text)
		s.ack(c, cmd, err)

	case CommandStroke:
		var p StrokeCommandPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			s.ack(c, cmd, session.ErrValidation)
			return
		}
		sess.SubmitStroke(c.PlayerID, p)
		s.ack(c, cmd, nil)

	case CommandStartMatch:
		err := sess.StartMatch(c.PlayerID)
		s.ack(c, cmd, err)
		if err == nil {
			s.registry.NotifyListChanged()
		}

	case CommandKick:
		var p KickCommandPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			s.ack(c, cmd, session.ErrValidation)
			return
		}
		err := sess.Kick(c.PlayerID, p.TargetID)
		s.ack(c, cmd, err)
		if err == nil {
			s.cm.ClosePlayer(c.RoomCode, p.TargetID)
			s.registry.NotifyListChanged()
		}

	case CommandLeave:
		sess.Leave(c.PlayerID)
		s.ack(c, cmd, nil)
		s.cm.ClosePlayer(c.RoomCode, c.PlayerID)
		s.registry.NotifyListChanged()

	default:
		log.Warn().Str("command_type", string(cmd.Type)).Str("connection_id", c.ID).
			Msg("unknown command type")
		s.ack(c, cmd, session.ErrValidation)
	}
}

// handleFault runs when a push channel dies without an explicit Leave. The
// subscriber keeps their roster slot for the grace period; if neither side
// re-establishes the channel in time, the fault becomes a Leave.
func (s *Service) handleFault(c *Connection) {
	if c.RoomCode == LobbyRoom {
		return
	}
	if s.cm.HasConnection(c.RoomCode, c.PlayerID) {
		// Replaced by a fresh subscribe; nothing faulted.
		return
	}
	sess, ok := s.registry.FindRoom(c.RoomCode)
	if !ok {
		return
	}
	sess.MarkConnected(c.PlayerID, false)

	key := playerKey(c.RoomCode, c.PlayerID)
	s.mu.Lock()
	s.faultGen[key]++
	gen := s.faultGen[key]
	s.mu.Unlock()

	log.Info().Str("room_code", c.RoomCode).Str("player_id", c.PlayerID).
		Dur("grace", s.grace).Msg("push channel faulted, eviction pending")

	s.clock.AfterFunc(s.grace, func() {
		s.mu.Lock()
		current := s.faultGen[key]
		s.mu.Unlock()
		if gen != current || s.cm.HasConnection(c.RoomCode, c.PlayerID) {
			return
		}
		log.Info().Str("room_code", c.RoomCode).Str("player_id", c.PlayerID).
			Msg("grace period expired, evicting subscriber")
		sess.Leave(c.PlayerID)
		s.registry.NotifyListChanged()
	})
}

func (s *Service) cancelPendingEviction(key string) {
	s.mu.Lock()
	s.faultGen[key]++
	s.mu.Unlock()
}

// ack answers a command on the sender's own channel. Commands without a
// sequence number are fire-and-forget.
func (s *Service) ack(c *Connection, cmd Command, err error) {
	if cmd.Seq == 0 {
		return
	}
	payload := events.CommandAckPayload{
		Seq: cmd.Seq,
		Op:  string(cmd.Type),
		OK:  err == nil,
	}
	if err != nil {
		payload.Code = session.ErrorCode(err)
		payload.Message = err.Error()
	}
	ev, evErr := events.New(c.RoomCode, events.TypeCommandAck, s.clock.Now(), payload)
	if evErr != nil {
		log.Error().Err(evErr).Msg("ack build failed")
		return
	}
	s.cm.SendTo(c.RoomCode, c.PlayerID, ev)
}

func joinStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrRoomFull), errors.Is(err, session.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, session.ErrRoomClosed):
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

// listSink pushes public-room-list deltas to every lobby subscriber.
type listSink struct {
	cm    *ConnectionManager
	clock clockwork.Clock
}

func (l listSink) RoomListUpdated(rooms []registry.RoomSummary) {
	ev, err := events.New(LobbyRoom, events.TypeRoomListUpdated, l.clock.Now(), events.RoomListUpdatedPayload{
		Rooms: registry.Summaries(rooms),
	})
	if err != nil {
		log.Error().Err(err).Msg("room list event build failed")
		return
	}
	l.cm.Broadcast(LobbyRoom, ev)
}
