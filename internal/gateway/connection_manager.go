package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
)

// LobbyRoom is the pseudo room code for connections subscribed to the
// public room list instead of a match session.
const LobbyRoom = "!lobby"

// ConnectionManager owns every live push channel, pooled by room code.
// Fan-out runs on a single broadcast goroutine so events for a room are
// delivered in the order the session emitted them.
type ConnectionManager struct {
	mu        sync.RWMutex
	roomConns map[string]map[*Connection]bool
	byPlayer  map[string]*Connection // roomCode+"/"+playerID

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	// Hooks installed by the Service before any connection exists.
	onClientMessage func(c *Connection, data []byte)
	onFault         func(c *Connection)
}

// Connection is one subscriber's push channel.
type Connection struct {
	ID          string
	PlayerID    string
	DisplayName string
	RoomCode    string

	conn    *websocket.Conn
	send    chan []byte
	manager *ConnectionManager

	connectedAt time.Time
	lastPing    time.Time
}

// ConnectionConfig holds websocket tuning for the gateway.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the default websocket tuning.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024, // strokes carry point lists
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

type broadcastMessage struct {
	roomCode string
	event    *events.Event
	targetID string // deliver only to this player
	exceptID string // deliver to everyone but this player
}

// NewConnectionManager creates a manager with no live connections.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConns: make(map[string]map[*Connection]bool),
		byPlayer:  make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1024),
	}
}

// Start drains the broadcast queue until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// Upgrade turns an HTTP request into a registered push channel. A live
// connection for the same player in the same room is replaced: the stale
// channel closes and the fresh one takes over, which is what makes
// resubscribing idempotent.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, roomCode, playerID, displayName string) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	now := time.Now()
	c := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		DisplayName: displayName,
		RoomCode:    roomCode,
		conn:        ws,
		send:        make(chan []byte, 256),
		manager:     cm,
		connectedAt: now,
		lastPing:    now,
	}
	cm.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.ID).Str("player_id", playerID).
		Str("room_code", roomCode).Msg("push channel established")
	return c, nil
}

// HasConnection reports whether a player currently holds a live channel in
// the room.
func (cm *ConnectionManager) HasConnection(roomCode, playerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.byPlayer[playerKey(roomCode, playerID)]
	return ok
}

// Broadcast queues an event for every subscriber of a room.
func (cm *ConnectionManager) Broadcast(roomCode string, ev *events.Event) {
	cm.enqueue(broadcastMessage{roomCode: roomCode, event: ev})
}

// BroadcastExcept queues an event for every subscriber but one player.
func (cm *ConnectionManager) BroadcastExcept(roomCode, exceptID string, ev *events.Event) {
	cm.enqueue(broadcastMessage{roomCode: roomCode, event: ev, exceptID: exceptID})
}

// SendTo queues an event for a single player.
func (cm *ConnectionManager) SendTo(roomCode, playerID string, ev *events.Event) {
	cm.enqueue(broadcastMessage{roomCode: roomCode, event: ev, targetID: playerID})
}

// CloseRoom drops every channel in a room, e.g. after cancellation.
func (cm *ConnectionManager) CloseRoom(roomCode string) {
	cm.mu.Lock()
	conns := make([]*Connection, 0, len(cm.roomConns[roomCode]))
	for c := range cm.roomConns[roomCode] {
		conns = append(conns, c)
	}
	cm.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// ClosePlayer drops one player's channel, e.g. after a kick.
func (cm *ConnectionManager) ClosePlayer(roomCode, playerID string) {
	cm.mu.RLock()
	c := cm.byPlayer[playerKey(roomCode, playerID)]
	cm.mu.RUnlock()
	if c != nil {
		c.conn.Close()
	}
}

// enqueue hands an event to the fan-out goroutine without blocking. When
// the queue is saturated an event would otherwise vanish and desync every
// subscriber of the room for the rest of the round, so the room's channels
// are closed instead: clients resubscribe into a fresh snapshot. Lobby
// list updates are self-contained snapshots and can simply be dropped.
func (cm *ConnectionManager) enqueue(msg broadcastMessage) {
	select {
	case cm.broadcastCh <- msg:
	default:
		if msg.roomCode == LobbyRoom {
			log.Warn().Msg("broadcast queue full, dropping room list update")
			return
		}
		log.Warn().Str("room_code", msg.roomCode).Str("event_type", string(msg.event.Type)).
			Msg("broadcast queue full, closing room channels")
		go cm.CloseRoom(msg.roomCode)
	}
}

func (cm *ConnectionManager) register(c *Connection) {
	key := playerKey(c.RoomCode, c.PlayerID)

	cm.mu.Lock()
	stale := cm.byPlayer[key]
	if cm.roomConns[c.RoomCode] == nil {
		cm.roomConns[c.RoomCode] = make(map[*Connection]bool)
	}
	cm.roomConns[c.RoomCode][c] = true
	cm.byPlayer[key] = c
	cm.mu.Unlock()

	if stale != nil {
		log.Debug().Str("room_code", c.RoomCode).Str("player_id", c.PlayerID).
			Msg("replacing stale push channel")
		stale.conn.Close()
	}
}

func (cm *ConnectionManager) unregister(c *Connection) {
	key := playerKey(c.RoomCode, c.PlayerID)

	cm.mu.Lock()
	conns, exists := cm.roomConns[c.RoomCode]
	if !exists || !conns[c] {
		cm.mu.Unlock()
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(cm.roomConns, c.RoomCode)
	}
	// Keep the index pointing at a replacement connection if one was
	// registered before this one unregistered.
	if cm.byPlayer[key] == c {
		delete(cm.byPlayer, key)
	}
	cm.mu.Unlock()

	log.Info().Str("connection_id", c.ID).Str("player_id", c.PlayerID).
		Str("room_code", c.RoomCode).Msg("push channel closed")
}

func (cm *ConnectionManager) deliver(msg broadcastMessage) {
	cm.mu.RLock()
	conns, exists := cm.roomConns[msg.roomCode]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(conns))
	for c := range conns {
		if msg.targetID != "" && c.PlayerID != msg.targetID {
			continue
		}
		if msg.exceptID != "" && c.PlayerID == msg.exceptID {
			continue
		}
		targets = append(targets, c)
	}
	cm.mu.RUnlock()

	data, err := encodeEvent(msg.event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(msg.event.Type)).Msg("event encode failed")
		return
	}

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Slow or dead consumer; drop the channel rather than stall
			// the room's fan-out.
			log.Warn().Str("connection_id", c.ID).Str("player_id", c.PlayerID).
				Msg("send buffer full, closing push channel")
			cm.unregister(c)
			c.conn.Close()
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("push write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.lastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.conn.Close()
		if c.manager.onFault != nil {
			c.manager.onFault(c)
		}
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.lastPing = time.Now()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected close")
			}
			return
		}
		if c.manager.onClientMessage != nil {
			c.manager.onClientMessage(c, data)
		}
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}

func playerKey(roomCode, playerID string) string {
	return roomCode + "/" + playerID
}
