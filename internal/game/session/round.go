package session

import (
	"time"

	"github.com/rs/zerolog/log"

	roundclock "github.com/UrielCendon/PictionaryMusical-sub001/internal/game/clock"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/words"
)

// roundState is one drawer turn: secret song, countdown and the set of
// players who already scored this round.
type roundState struct {
	number       int
	drawerID     string
	song         words.Song
	budget       int
	clk          *roundclock.RoundClock
	phase        Phase
	startedAt    time.Time
	acknowledged map[string]struct{}
}

// startTurnLocked assigns the next drawer, picks a song and enters the
// role-reveal phase.
func (s *Session) startTurnLocked() {
	drawerID := s.sched.NextDrawer(s.rosterIDsLocked(), s.lastDrawerID)
	if drawerID == "" {
		s.cancelLocked("insufficient players")
		return
	}

	song, err := s.wordSource.Pick(s.cfg.SongLanguage, s.cfg.Difficulty)
	if err != nil {
		log.Error().Err(err).Str("room_code", s.code).Str("language", s.cfg.SongLanguage).
			Msg("song selection failed")
		s.cancelLocked("internal error")
		return
	}

	s.lastDrawerID = drawerID
	s.round = &roundState{
		number:       s.roundNumber,
		drawerID:     drawerID,
		song:         song,
		budget:       s.cfg.SecondsPerRound,
		clk:          roundclock.New(s.clock),
		phase:        PhaseRoleReveal,
		acknowledged: make(map[string]struct{}),
	}

	log.Info().Str("room_code", s.code).Int("round", s.roundNumber).
		Str("drawer_id", drawerID).Str("song", song.Title).Msg("round starting")

	// Guessers get the hints; only the drawer gets the answer.
	artist, genre := song.Artist, song.Genre
	s.emitExceptLocked(drawerID, events.TypeRoundStarted, events.RoundStartedPayload{
		RoundNumber:       s.round.number,
		DrawerID:          drawerID,
		HintArtist:        &artist,
		HintGenre:         &genre,
		TimeBudgetSeconds: s.round.budget,
	})
	s.emitToLocked(drawerID, events.TypeRoundStarted, events.RoundStartedPayload{
		RoundNumber:       s.round.number,
		DrawerID:          drawerID,
		SecretAnswer:      song.Title,
		TimeBudgetSeconds: s.round.budget,
	})

	s.armPhaseTimerLocked(RoleRevealSeconds*time.Second, s.beginActiveLocked)
}

// beginActiveLocked starts the countdown for the guessing phase.
func (s *Session) beginActiveLocked() {
	if s.round == nil {
		return
	}
	s.round.phase = PhaseActive
	s.round.startedAt = s.clock.Now()
	s.round.clk.Start(s.round.budget)
	s.armPhaseTimerLocked(time.Duration(s.round.budget)*time.Second, func() {
		s.endRoundLocked(false)
	})
}

// endRoundLocked moves the round into the reveal phase. The phase check
// makes the zero-crossing idempotent: a timer firing after an early
// termination already revealed the round is a no-op.
func (s *Session) endRoundLocked(early bool) {
	if s.round == nil || s.round.phase == PhaseReveal {
		return
	}
	s.round.phase = PhaseReveal
	s.round.clk.Stop()

	log.Info().Str("room_code", s.code).Int("round", s.round.number).
		Bool("early", early).Msg("round ended")

	s.emitBroadcastLocked(events.TypeRoundEnded, events.RoundEndedPayload{
		RoundNumber:  s.round.number,
		Early:        early,
		SecretAnswer: s.round.song.Title,
	})
	s.armPhaseTimerLocked(RevealSeconds*time.Second, s.advanceTurnLocked)
}

// advanceTurnLocked runs after the reveal phase: it credits the completed
// turn to the rotation and either starts the next turn or ends the match.
func (s *Session) advanceTurnLocked() {
	if s.sched.CompleteTurn(len(s.roster)) {
		if s.sched.Rotations() >= s.cfg.RoundCount {
			s.endMatchLocked()
			return
		}
		s.roundNumber++
	}
	s.startTurnLocked()
}

// endMatchLocked emits the ranked scoreboard and returns the room to the
// lobby for reuse. Scores stay visible until the next match start resets
// them.
func (s *Session) endMatchLocked() {
	s.stopPhaseTimerLocked()
	s.round = nil
	s.state = StateLobby

	log.Info().Str("room_code", s.code).Int("rotations", s.sched.Rotations()).Msg("match ended")

	s.emitBroadcastLocked(events.TypeMatchEnded, events.MatchEndedPayload{
		Scoreboard: s.scoreboardLocked(),
	})
}

// cancelLocked is the terminal transition. Timers are torn down
// synchronously and the registry eviction callback fires once.
func (s *Session) cancelLocked(reason string) {
	if s.state == StateCancelled {
		return
	}
	s.stopPhaseTimerLocked()
	s.round = nil
	s.state = StateCancelled

	log.Info().Str("room_code", s.code).Str("reason", reason).Msg("room cancelled")

	s.emitBroadcastLocked(events.TypeRoomCancelled, events.RoomCancelledPayload{Reason: reason})
	if s.onTeardown != nil {
		s.onTeardown(s.code)
	}
}

// teardownLocked evicts an emptied room without a cancellation broadcast;
// there is nobody left to hear it.
func (s *Session) teardownLocked() {
	if s.state == StateCancelled {
		return
	}
	s.stopPhaseTimerLocked()
	s.round = nil
	s.state = StateCancelled

	log.Info().Str("room_code", s.code).Msg("room emptied, tearing down")

	if s.onTeardown != nil {
		s.onTeardown(s.code)
	}
}

// armPhaseTimerLocked schedules fn on the session clock. Each arm
// invalidates every previously armed timer via the generation counter, so a
// stale callback that races the transition it was scheduled for observes
// the bumped generation and returns without effect.
func (s *Session) armPhaseTimerLocked(d time.Duration, fn func()) {
	s.phaseGen++
	gen := s.phaseGen
	if s.phaseTimer != nil {
		s.phaseTimer.Stop()
	}
	s.phaseTimer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.phaseGen || s.state != StateInProgress {
			return
		}
		fn()
	})
}

func (s *Session) stopPhaseTimerLocked() {
	s.phaseGen++
	if s.phaseTimer != nil {
		s.phaseTimer.Stop()
		s.phaseTimer = nil
	}
}

func (s *Session) emitBroadcastLocked(t events.Type, payload any) {
	ev, err := events.New(s.code, t, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", s.code).Str("event_type", string(t)).Msg("event build failed")
		return
	}
	s.sink.Broadcast(ev)
}

func (s *Session) emitExceptLocked(playerID string, t events.Type, payload any) {
	ev, err := events.New(s.code, t, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", s.code).Str("event_type", string(t)).Msg("event build failed")
		return
	}
	s.sink.BroadcastExcept(playerID, ev)
}

func (s *Session) emitToLocked(playerID string, t events.Type, payload any) {
	ev, err := events.New(s.code, t, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", s.code).Str("event_type", string(t)).Msg("event build failed")
		return
	}
	s.sink.SendTo(playerID, ev)
}
