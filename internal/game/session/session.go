package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/guess"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/turn"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/words"
)

// Fixed behavioral constants. Not runtime-configurable.
const (
	MaxPlayers        = 4
	MinPlayersToStart = 2
	RoleRevealSeconds = 5
	RevealSeconds     = 5
)

// State is the room lifecycle. Transitions are one-directional:
// Lobby -> InProgress -> Cancelled, with InProgress returning to Lobby only
// when a match ends normally so the room can be reused.
type State int

const (
	StateLobby State = iota
	StateInProgress
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateInProgress:
		return "in_progress"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Phase sub-divides an in-progress round.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseRoleReveal
	PhaseActive
	PhaseReveal
)

func (p Phase) String() string {
	switch p {
	case PhaseRoleReveal:
		return "role_reveal"
	case PhaseActive:
		return "active"
	case PhaseReveal:
		return "reveal"
	}
	return "none"
}

// Config is the room configuration chosen at creation time.
type Config struct {
	RoundCount      int    `json:"roundCount"`
	SecondsPerRound int    `json:"secondsPerRound"`
	SongLanguage    string `json:"songLanguage"`
	Difficulty      string `json:"difficulty"`
	Private         bool   `json:"private"`
}

func (c Config) withDefaults() Config {
	if c.RoundCount <= 0 {
		c.RoundCount = 3
	}
	if c.SecondsPerRound <= 0 {
		c.SecondsPerRound = 60
	}
	if c.SongLanguage == "" {
		c.SongLanguage = "es"
	}
	if c.Difficulty == "" {
		c.Difficulty = "normal"
	}
	return c
}

// Player is a roster member. Scores are non-negative and never decrease
// within a match.
type Player struct {
	ID          string
	DisplayName string
	Score       int
	Connected   bool
}

// Sink receives the events a session emits. The gateway implements it per
// room; tests use a recorder. Implementations must not block: events are
// emitted under the session lock and fan-out happens downstream.
type Sink interface {
	Broadcast(ev *events.Event)
	BroadcastExcept(playerID string, ev *events.Event)
	SendTo(playerID string, ev *events.Event)
}

// WordSource supplies the secret answer for a round.
type WordSource interface {
	Pick(language, difficulty string) (words.Song, error)
}

// ChatOutcome is the result of routing a chat message through guess
// evaluation.
type ChatOutcome struct {
	Kind       guess.Outcome
	ScoreDelta int
	BonusDelta int
}

// Session is the server-authoritative aggregate for one room: roster,
// configuration and the round state machine. Every mutation for a given
// room is serialized under a single mutex, so concurrent joins, leaves and
// chat submissions never interleave; events are emitted under that same
// lock so each broadcast reflects the snapshot its mutation produced.
type Session struct {
	mu sync.Mutex

	code      string
	creatorID string
	cfg       Config

	clock      clockwork.Clock
	sink       Sink
	wordSource WordSource
	onTeardown func(code string)

	state        State
	roster       []*Player
	sched        *turn.Scheduler
	round        *roundState
	roundNumber  int
	lastDrawerID string

	phaseTimer clockwork.Timer
	phaseGen   int
}

// New constructs a session in the Lobby state. onTeardown is invoked once
// when the room empties or cancels, so the owning registry can evict it.
func New(code, creatorID string, cfg Config, clk clockwork.Clock, sink Sink, src WordSource, onTeardown func(code string)) *Session {
	return &Session{
		code:       code,
		creatorID:  creatorID,
		cfg:        cfg.withDefaults(),
		clock:      clk,
		sink:       sink,
		wordSource: src,
		onTeardown: onTeardown,
		state:      StateLobby,
		sched:      turn.NewScheduler(),
	}
}

// Code returns the room code.
func (s *Session) Code() string {
	return s.code
}

// CreatorID returns the host's player id.
func (s *Session) CreatorID() string {
	return s.creatorID
}

// Snapshot is a consistent public view of the room.
type Snapshot struct {
	Code        string
	CreatorID   string
	State       State
	Config      Config
	Roster      []events.RosterEntry
	RoundNumber int
	Phase       Phase
	DrawerID    string
}

// Snapshot returns the room's current public view under the room lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Code:        s.code,
		CreatorID:   s.creatorID,
		State:       s.state,
		Config:      s.cfg,
		Roster:      s.rosterEntriesLocked(),
		RoundNumber: s.roundNumber,
		Phase:       PhaseNone,
	}
	if s.round != nil {
		snap.Phase = s.round.phase
		snap.DrawerID = s.round.drawerID
	}
	return snap
}

// Join adds a player to the roster and broadcasts PlayerJoined to everyone
// else. It returns the roster after the join and whether the player was
// newly added. Re-joining with an id already on the roster is the reconnect
// path: the stale entry is refreshed in place, nothing is double-fired, and
// created is false, so callers rolling back a failed subscribe know not to
// remove a member this call never added. Display-name collisions are the
// caller's problem to pre-resolve; they are rejected here with
// ErrDuplicateName.
func (s *Session) Join(playerID, displayName string) ([]events.RosterEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if playerID == "" || strings.TrimSpace(displayName) == "" {
		return nil, false, fmt.Errorf("join: %w", ErrValidation)
	}
	if s.state == StateCancelled {
		return nil, false, fmt.Errorf("join: %w", ErrRoomClosed)
	}

	if p := s.findLocked(playerID); p != nil {
		p.Connected = true
		log.Debug().Str("room_code", s.code).Str("player_id", playerID).Msg("player resubscribed")
		return s.rosterEntriesLocked(), false, nil
	}

	if len(s.roster) >= MaxPlayers {
		return nil, false, fmt.Errorf("join: %w", ErrRoomFull)
	}
	for _, p := range s.roster {
		if strings.EqualFold(p.DisplayName, displayName) {
			return nil, false, fmt.Errorf("join %q: %w", displayName, ErrDuplicateName)
		}
	}

	s.roster = append(s.roster, &Player{ID: playerID, DisplayName: displayName, Connected: true})
	if s.state == StateInProgress {
		s.sched.RosterChanged()
	}

	log.Info().Str("room_code", s.code).Str("player_id", playerID).Str("name", displayName).
		Int("roster_size", len(s.roster)).Msg("player joined")

	s.emitExceptLocked(playerID, events.TypePlayerJoined, events.PlayerJoinedPayload{
		PlayerID:    playerID,
		DisplayName: displayName,
		Roster:      s.rosterEntriesLocked(),
	})
	return s.rosterEntriesLocked(), true, nil
}

// Leave removes a player. It is idempotent: leaving twice, or while not a
// member, is a no-op.
func (s *Session) Leave(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findLocked(playerID)
	if p == nil {
		return
	}
	s.removeLocked(playerID)

	log.Info().Str("room_code", s.code).Str("player_id", playerID).
		Int("roster_size", len(s.roster)).Msg("player left")

	s.emitBroadcastLocked(events.TypePlayerLeft, events.PlayerLeftPayload{
		PlayerID:    playerID,
		DisplayName: p.DisplayName,
		Roster:      s.rosterEntriesLocked(),
	})
	s.afterDepartureLocked(playerID)
}

// Kick removes a player at the host's request. Only the host may kick, the
// host cannot kick themself, and the target must be a member.
func (s *Session) Kick(requesterID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requesterID != s.creatorID {
		return fmt.Errorf("kick: %w", ErrHostOnly)
	}
	if targetID == requesterID {
		return fmt.Errorf("kick: host cannot kick themself: %w", ErrValidation)
	}
	p := s.findLocked(targetID)
	if p == nil {
		return fmt.Errorf("kick %q: %w", targetID, ErrPlayerNotFound)
	}
	s.removeLocked(targetID)

	log.Info().Str("room_code", s.code).Str("player_id", targetID).Msg("player kicked")

	s.emitBroadcastLocked(events.TypePlayerKicked, events.PlayerKickedPayload{
		PlayerID:    targetID,
		DisplayName: p.DisplayName,
	})
	s.afterDepartureLocked(targetID)
	return nil
}

// StartMatch transitions Lobby -> InProgress and begins round 1. Host only;
// at least MinPlayersToStart members.
func (s *Session) StartMatch(requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCancelled {
		return fmt.Errorf("start: %w", ErrRoomClosed)
	}
	if s.state != StateLobby {
		return fmt.Errorf("start: match already running: %w", ErrValidation)
	}
	if requesterID != s.creatorID {
		return fmt.Errorf("start: %w", ErrHostOnly)
	}
	if len(s.roster) < MinPlayersToStart {
		return fmt.Errorf("start: have %d of %d players: %w", len(s.roster), MinPlayersToStart, ErrInsufficientPlayers)
	}

	for _, p := range s.roster {
		p.Score = 0
	}
	s.state = StateInProgress
	s.sched.Reset()
	s.roundNumber = 1
	s.lastDrawerID = ""

	log.Info().Str("room_code", s.code).Int("players", len(s.roster)).
		Int("round_count", s.cfg.RoundCount).Msg("match started")

	s.startTurnLocked()
	return nil
}

// SubmitStroke relays a drawing action to everyone but the sender. Strokes
// are accepted only from the current drawer during the active phase and are
// otherwise dropped without error: late strokes from a finished round are
// an expected race, not a fault.
func (s *Session) SubmitStroke(playerID string, stroke events.StrokePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress || s.round == nil || s.round.phase != PhaseActive {
		return
	}
	if playerID != s.round.drawerID {
		return
	}
	s.emitExceptLocked(playerID, events.TypeStrokeBroadcast, stroke)
}

// SubmitChat routes a chat message through guess evaluation. Misses and
// out-of-round chat are relayed as ordinary messages; a first correct guess
// scores the sender by remaining seconds and credits the drawer a 20% cut.
// When every non-drawer has scored, the round ends early.
func (s *Session) SubmitChat(playerID, text string) (ChatOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return ChatOutcome{}, fmt.Errorf("chat: empty message: %w", ErrValidation)
	}
	sender := s.findLocked(playerID)
	if sender == nil {
		return ChatOutcome{}, fmt.Errorf("chat: %w", ErrPlayerNotFound)
	}

	in := guess.Input{
		Text:     text,
		SenderID: playerID,
	}
	if s.state == StateInProgress && s.round != nil && s.round.phase == PhaseActive {
		in.RoundActive = true
		in.DrawerID = s.round.drawerID
		in.SecretAnswer = s.round.song.Title
		_, in.AlreadyScored = s.round.acknowledged[playerID]
	}

	switch outcome := guess.Evaluate(in); outcome {
	case guess.Blocked:
		return ChatOutcome{Kind: guess.Blocked}, nil

	case guess.Passthrough, guess.Miss:
		s.emitBroadcastLocked(events.TypeChatMessage, events.ChatMessagePayload{
			SenderID:   playerID,
			SenderName: sender.DisplayName,
			Text:       text,
			SentAt:     s.clock.Now(),
		})
		return ChatOutcome{Kind: outcome}, nil

	case guess.Hit:
		// Remaining time is read at the moment of evaluation, never
		// cached, so delayed messages cannot be awarded stale values.
		scoreDelta := s.round.clk.RemainingSeconds()
		bonusDelta := guess.DrawerBonus(scoreDelta)
		sender.Score += scoreDelta
		if drawer := s.findLocked(s.round.drawerID); drawer != nil {
			drawer.Score += bonusDelta
		}
		s.round.acknowledged[playerID] = struct{}{}

		log.Info().Str("room_code", s.code).Str("player_id", playerID).
			Int("score_delta", scoreDelta).Int("bonus_delta", bonusDelta).Msg("correct guess")

		s.emitBroadcastLocked(events.TypePlayerGuessedCorrectly, events.GuessScoredPayload{
			PlayerID:    playerID,
			DisplayName: sender.DisplayName,
			ScoreDelta:  scoreDelta,
			BonusDelta:  bonusDelta,
		})

		// Threshold recomputed against the roster as it stands right now.
		if len(s.round.acknowledged) >= len(s.roster)-1 {
			s.endRoundLocked(true)
		}
		return ChatOutcome{Kind: guess.Hit, ScoreDelta: scoreDelta, BonusDelta: bonusDelta}, nil
	}

	return ChatOutcome{}, nil
}

// MarkConnected updates a member's connected flag. Used by the gateway when
// a push channel faults and when it recovers.
func (s *Session) MarkConnected(playerID string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.findLocked(playerID); p != nil {
		p.Connected = connected
	}
}

// afterDepartureLocked applies the state-machine consequences of a member
// leaving or being kicked, after their departure event has been emitted.
func (s *Session) afterDepartureLocked(playerID string) {
	if len(s.roster) == 0 {
		s.teardownLocked()
		return
	}

	switch s.state {
	case StateInProgress:
		if playerID == s.creatorID {
			s.cancelLocked("host left")
			return
		}
		if len(s.roster) < MinPlayersToStart {
			s.cancelLocked("insufficient players")
			return
		}
		s.sched.RosterChanged()
		if s.round != nil && s.round.drawerID == playerID && s.round.phase != PhaseReveal {
			// No drawer, nothing to guess. End the round and rotate on.
			s.endRoundLocked(true)
		}
	case StateLobby:
		if playerID == s.creatorID {
			s.cancelLocked("host left")
		}
	}
}

func (s *Session) findLocked(playerID string) *Player {
	for _, p := range s.roster {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (s *Session) removeLocked(playerID string) {
	for i, p := range s.roster {
		if p.ID == playerID {
			s.roster = append(s.roster[:i], s.roster[i+1:]...)
			return
		}
	}
}

func (s *Session) rosterIDsLocked() []string {
	ids := make([]string, len(s.roster))
	for i, p := range s.roster {
		ids[i] = p.ID
	}
	return ids
}

func (s *Session) rosterEntriesLocked() []events.RosterEntry {
	entries := make([]events.RosterEntry, len(s.roster))
	for i, p := range s.roster {
		entries[i] = events.RosterEntry{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			IsHost:      p.ID == s.creatorID,
			Connected:   p.Connected,
		}
	}
	return entries
}

func (s *Session) scoreboardLocked() []events.ScoreboardEntry {
	board := make([]events.ScoreboardEntry, len(s.roster))
	for i, p := range s.roster {
		board[i] = events.ScoreboardEntry{PlayerID: p.ID, DisplayName: p.DisplayName, Score: p.Score}
	}
	sort.SliceStable(board, func(i, j int) bool { return board[i].Score > board[j].Score })
	for i := range board {
		board[i].Rank = i + 1
	}
	return board
}
