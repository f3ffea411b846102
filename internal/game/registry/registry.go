package registry

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// RoomSummary is the lobby-list view of a room.
type RoomSummary struct {
	Code       string `json:"code"`
	HostName   string `json:"hostName"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	State      string `json:"state"`
}

// SinkFactory builds the event sink a new session broadcasts through,
// keyed by room code. The gateway supplies it at composition time.
type SinkFactory func(roomCode string) session.Sink

// ListSink receives public-room-list deltas.
type ListSink interface {
	RoomListUpdated(rooms []RoomSummary)
}

// Registry maps room codes to sessions. It is an explicitly constructed
// instance owned by the composition root, not a process-wide singleton, so
// tests can run isolated registries side by side.
type Registry struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	words     session.WordSource
	sinks     SinkFactory
	rnd       *rand.Rand
	rooms     map[string]*session.Session
	listSinks map[ListSink]struct{}
}

// New constructs an empty registry.
func New(clk clockwork.Clock, words session.WordSource, sinks SinkFactory, seed int64) *Registry {
	return &Registry{
		clock:     clk,
		words:     words,
		sinks:     sinks,
		rnd:       rand.New(rand.NewSource(seed)),
		rooms:     make(map[string]*session.Session),
		listSinks: make(map[ListSink]struct{}),
	}
}

// CreateRoom materializes a new session under a fresh code. The host still
// joins through the normal subscribe path.
func (r *Registry) CreateRoom(hostID string, cfg session.Config) (*session.Session, error) {
	if hostID == "" {
		return nil, fmt.Errorf("create room: empty host id: %w", session.ErrValidation)
	}

	r.mu.Lock()
	code := r.generateCodeLocked()
	sess := session.New(code, hostID, cfg, r.clock, r.sinks(code), r.words, r.evict)
	r.rooms[code] = sess
	r.mu.Unlock()

	log.Info().Str("room_code", code).Str("host_id", hostID).Msg("room created")

	r.notifyList()
	return sess, nil
}

// FindRoom looks up a session by code.
func (r *Registry) FindRoom(code string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.rooms[code]
	return sess, ok
}

// ListPublicRooms returns summaries of rooms that are visible in the lobby.
func (r *Registry) ListPublicRooms() []RoomSummary {
	r.mu.Lock()
	rooms := make([]*session.Session, 0, len(r.rooms))
	for _, sess := range r.rooms {
		rooms = append(rooms, sess)
	}
	r.mu.Unlock()

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, sess := range rooms {
		snap := sess.Snapshot()
		if snap.Config.Private || snap.State == session.StateCancelled {
			continue
		}
		summary := RoomSummary{
			Code:       snap.Code,
			Players:    len(snap.Roster),
			MaxPlayers: session.MaxPlayers,
			State:      snap.State.String(),
		}
		for _, entry := range snap.Roster {
			if entry.IsHost {
				summary.HostName = entry.DisplayName
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// SubscribeList registers a lobby subscriber and returns its unsubscribe
// function. The subscriber immediately receives the current list.
func (r *Registry) SubscribeList(sink ListSink) func() {
	r.mu.Lock()
	r.listSinks[sink] = struct{}{}
	r.mu.Unlock()

	sink.RoomListUpdated(r.ListPublicRooms())
	return func() {
		r.mu.Lock()
		delete(r.listSinks, sink)
		r.mu.Unlock()
	}
}

// NotifyListChanged pushes a fresh public list to all lobby subscribers.
// The gateway calls it after membership or state changes it routes.
func (r *Registry) NotifyListChanged() {
	r.notifyList()
}

// GuestDisplayName generates a collision-unlikely guest name, for callers
// that must pre-resolve display-name conflicts before joining.
func GuestDisplayName() string {
	return "Guest-" + uuid.New().String()[:8]
}

// evict removes a torn-down session. Wired as each session's teardown
// callback.
func (r *Registry) evict(code string) {
	r.mu.Lock()
	_, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()

	if ok {
		log.Info().Str("room_code", code).Msg("room evicted")
		r.notifyList()
	}
}

func (r *Registry) notifyList() {
	r.mu.Lock()
	sinks := make([]ListSink, 0, len(r.listSinks))
	for sink := range r.listSinks {
		sinks = append(sinks, sink)
	}
	r.mu.Unlock()

	rooms := r.ListPublicRooms()
	for _, sink := range sinks {
		sink.RoomListUpdated(rooms)
	}
}

func (r *Registry) generateCodeLocked() string {
	for {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[r.rnd.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := r.rooms[code]; !taken {
			return code
		}
	}
}

// Summaries converts registry summaries to their wire payload form.
func Summaries(rooms []RoomSummary) []events.RoomSummaryPayload {
	out := make([]events.RoomSummaryPayload, len(rooms))
	for i, room := range rooms {
		out[i] = events.RoomSummaryPayload{
			Code:       room.Code,
			HostName:   room.HostName,
			Players:    room.Players,
			MaxPlayers: room.MaxPlayers,
			State:      room.State,
		}
	}
	return out
}
