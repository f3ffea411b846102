package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/gateway"
)

// EventSink is the notification surface the presentation layer implements:
// one callback per push event, invoked on a single serial context in
// room-emission order.
type EventSink interface {
	OnPlayerJoined(events.PlayerJoinedPayload)
	OnPlayerLeft(events.PlayerLeftPayload)
	OnPlayerKicked(events.PlayerKickedPayload)
	OnRoomCancelled(events.RoomCancelledPayload)
	OnRoundStarted(events.RoundStartedPayload)
	OnStroke(events.StrokePayload)
	OnChatMessage(events.ChatMessagePayload)
	OnPlayerGuessedCorrectly(events.GuessScoredPayload)
	OnRoundEnded(events.RoundEndedPayload)
	OnMatchEnded(events.MatchEndedPayload)
}

type ackResult struct {
	ack events.CommandAckPayload
	err error
}

// Reconciler owns a client's single outbound channel to one room. All
// subscribe, send and unsubscribe operations pass through one critical
// section, so two racing reconnect attempts can never both register a
// channel. A transport fault triggers exactly one automatic resubscribe
// using the last known room code and player id; a second consecutive
// failure surfaces as a fatal Communication error instead of retrying
// forever.
type Reconciler struct {
	baseURL string
	sink    EventSink
	dialer  *websocket.Dialer
	clock   clockwork.Clock
	disp    *dispatcher

	ackTimeout time.Duration
	onFatal    func(error)

	mu          sync.Mutex
	conn        *websocket.Conn
	subscribed  bool
	closed      bool
	readGen     int
	roomCode    string
	playerID    string
	displayName string
	seq         uint64
	pending     map[uint64]chan ackResult
}

// NewReconciler creates a reconciler for a server at baseURL, e.g.
// "ws://localhost:8080".
func NewReconciler(baseURL string, sink EventSink) *Reconciler {
	return &Reconciler{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sink:       sink,
		dialer:     websocket.DefaultDialer,
		clock:      clockwork.NewRealClock(),
		disp:       newDispatcher(),
		ackTimeout: 10 * time.Second,
		pending:    make(map[uint64]chan ackResult),
	}
}

// SetFatalHandler installs the callback invoked when the automatic
// resubscribe after a channel fault also fails.
func (r *Reconciler) SetFatalHandler(fn func(error)) {
	r.onFatal = fn
}

// Subscribe joins the room and opens the push channel. Subscribing while
// already subscribed replaces the previous channel.
func (r *Reconciler) Subscribe(ctx context.Context, roomCode, playerID, displayName string) error {
	if roomCode == "" || playerID == "" || displayName == "" {
		return newError(KindValidation, "room code, player id and display name are required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return newError(KindCommunication, "reconciler closed", nil)
	}
	r.roomCode = roomCode
	r.playerID = playerID
	r.displayName = displayName
	return r.connectLocked(ctx)
}

// Unsubscribe sends a best-effort Leave and tears down the channel. Any
// in-flight operations fail with a Communication error.
func (r *Reconciler) Unsubscribe() {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.subscribed = false
	r.readGen++
	r.failPendingLocked(newError(KindCommunication, "unsubscribed", nil))
	r.mu.Unlock()

	if conn != nil {
		_ = conn.WriteJSON(gateway.Command{Type: gateway.CommandLeave})
		conn.Close()
	}
}

// Close unsubscribes and stops the dispatch context.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.Unsubscribe()
	r.disp.Close()
}

// SendChat submits a chat message or guess.
func (r *Reconciler) SendChat(ctx context.Context, text string) error {
	return r.roundTrip(ctx, gateway.CommandChat, gateway.ChatCommandPayload{Text: text})
}

// SendStroke submits a drawing action.
func (r *Reconciler) SendStroke(ctx context.Context, stroke events.StrokePayload) error {
	return r.roundTrip(ctx, gateway.CommandStroke, stroke)
}

// StartMatch asks the server to begin the match. Host only.
func (r *Reconciler) StartMatch(ctx context.Context) error {
	return r.roundTrip(ctx, gateway.CommandStartMatch, nil)
}

// Kick asks the server to remove a player. Host only.
func (r *Reconciler) Kick(ctx context.Context, targetID string) error {
	return r.roundTrip(ctx, gateway.CommandKick, gateway.KickCommandPayload{TargetID: targetID})
}

// roundTrip sends one command and waits for its ack. A transport fault or
// ack timeout triggers one resubscribe-and-retry; the second consecutive
// failure is fatal.
func (r *Reconciler) roundTrip(ctx context.Context, t gateway.CommandType, payload any) error {
	for attempt := 0; ; attempt++ {
		ch, seq, err := r.send(t, payload)
		if err != nil {
			if attempt == 0 && r.resubscribe(ctx) == nil {
				continue
			}
			return newError(KindCommunication, "send failed", err)
		}

		timeout := r.clock.After(r.ackTimeout)
		select {
		case res := <-ch:
			if res.err != nil {
				if attempt == 0 && r.resubscribe(ctx) == nil {
					continue
				}
				return newError(KindCommunication, "channel faulted", res.err)
			}
			if res.ack.OK {
				return nil
			}
			return newError(kindFromCode(res.ack.Code), res.ack.Message, nil)

		case <-ctx.Done():
			r.clearPending(seq)
			return newError(KindTimeout, "operation cancelled", ctx.Err())

		case <-timeout:
			r.clearPending(seq)
			if attempt == 0 && r.resubscribe(ctx) == nil {
				continue
			}
			return newError(KindCommunication, "no acknowledgement after retry", nil)
		}
	}
}

func (r *Reconciler) send(t gateway.CommandType, payload any) (chan ackResult, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.subscribed || r.conn == nil {
		return nil, 0, fmt.Errorf("not subscribed")
	}

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal command payload: %w", err)
		}
		data = raw
	}

	r.seq++
	seq := r.seq
	ch := make(chan ackResult, 1)
	r.pending[seq] = ch

	if err := r.conn.WriteJSON(gateway.Command{Seq: seq, Type: t, Data: data}); err != nil {
		delete(r.pending, seq)
		return nil, 0, fmt.Errorf("write command: %w", err)
	}
	return ch, seq, nil
}

// resubscribe performs the single automatic reconnect with the last known
// identity. Rejoining with the same player id replaces the server's stale
// entry, so racing the server's own grace-period eviction is harmless.
func (r *Reconciler) resubscribe(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.roomCode == "" {
		return fmt.Errorf("nothing to resubscribe")
	}
	log.Debug().Str("room_code", r.roomCode).Str("player_id", r.playerID).Msg("resubscribing")
	return r.connectLocked(ctx)
}

func (r *Reconciler) connectLocked(ctx context.Context) error {
	q := url.Values{}
	q.Set("code", r.roomCode)
	q.Set("playerId", r.playerID)
	q.Set("name", r.displayName)
	endpoint := r.baseURL + "/ws/rooms?" + q.Encode()

	conn, resp, err := r.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			resp.Body.Close()
			code := strings.TrimSpace(string(body))
			if kind := kindFromCode(code); kind != KindUnknown {
				return newError(kind, "subscribe rejected", err)
			}
		}
		if ctx.Err() != nil {
			return newError(KindTimeout, "subscribe cancelled", err)
		}
		return newError(KindCommunication, "subscribe failed", err)
	}

	if r.conn != nil {
		r.conn.Close()
	}
	r.conn = conn
	r.subscribed = true
	r.readGen++
	go r.readLoop(conn, r.readGen)
	return nil
}

func (r *Reconciler) readLoop(conn *websocket.Conn, gen int) {
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			r.handleReadFault(conn, gen, err)
			return
		}
		if ev.Type == events.TypeCommandAck {
			r.resolveAck(&ev)
			continue
		}
		r.dispatchEvent(&ev)
	}
}

// handleReadFault converts a dead push channel into the one automatic
// resubscribe. A loop belonging to a channel that was already replaced
// does nothing.
func (r *Reconciler) handleReadFault(conn *websocket.Conn, gen int, cause error) {
	r.mu.Lock()
	if r.closed || gen != r.readGen {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	r.subscribed = false
	r.failPendingLocked(newError(KindCommunication, "push channel faulted", cause))
	r.mu.Unlock()

	log.Warn().Err(cause).Str("room_code", r.roomCode).Msg("push channel faulted")

	ctx, cancel := context.WithTimeout(context.Background(), r.ackTimeout)
	defer cancel()
	if err := r.resubscribe(ctx); err != nil {
		log.Error().Err(err).Str("room_code", r.roomCode).Msg("automatic resubscribe failed")
		if r.onFatal != nil {
			r.onFatal(newError(KindCommunication, "connection lost", cause))
		}
	}
}

func (r *Reconciler) resolveAck(ev *events.Event) {
	var ack events.CommandAckPayload
	if err := json.Unmarshal(ev.Data, &ack); err != nil {
		log.Debug().Err(err).Msg("malformed ack")
		return
	}
	r.mu.Lock()
	ch, ok := r.pending[ack.Seq]
	delete(r.pending, ack.Seq)
	r.mu.Unlock()
	if ok {
		ch <- ackResult{ack: ack}
	}
}

func (r *Reconciler) clearPending(seq uint64) {
	r.mu.Lock()
	delete(r.pending, seq)
	r.mu.Unlock()
}

func (r *Reconciler) failPendingLocked(err error) {
	for seq, ch := range r.pending {
		delete(r.pending, seq)
		ch <- ackResult{err: err}
	}
}

// dispatchEvent marshals a push event onto the serial sink context. Events
// for a room arrive and dispatch in server-emission order.
func (r *Reconciler) dispatchEvent(ev *events.Event) {
	payload, err := events.ParsePayload(ev)
	if err != nil {
		log.Debug().Err(err).Str("event_type", string(ev.Type)).Msg("malformed event payload")
		return
	}
	if payload == nil {
		return
	}
	r.disp.Do(func() {
		switch p := payload.(type) {
		case events.PlayerJoinedPayload:
			r.sink.OnPlayerJoined(p)
		case events.PlayerLeftPayload:
			r.sink.OnPlayerLeft(p)
		case events.PlayerKickedPayload:
			r.sink.OnPlayerKicked(p)
		case events.RoomCancelledPayload:
			r.sink.OnRoomCancelled(p)
		case events.RoundStartedPayload:
			r.sink.OnRoundStarted(p)
		case events.StrokePayload:
			r.sink.OnStroke(p)
		case events.ChatMessagePayload:
			r.sink.OnChatMessage(p)
		case events.GuessScoredPayload:
			r.sink.OnPlayerGuessedCorrectly(p)
		case events.RoundEndedPayload:
			r.sink.OnRoundEnded(p)
		case events.MatchEndedPayload:
			r.sink.OnMatchEnded(p)
		}
	})
}
