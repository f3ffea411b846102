package events

import "time"

// RosterEntry is a player's public view inside roster snapshots.
type RosterEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	Connected   bool   `json:"connected"`
}

type PlayerJoinedPayload struct {
	PlayerID    string        `json:"playerId"`
	DisplayName string        `json:"displayName"`
	Roster      []RosterEntry `json:"roster"`
}

type PlayerLeftPayload struct {
	PlayerID    string        `json:"playerId"`
	DisplayName string        `json:"displayName"`
	Roster      []RosterEntry `json:"roster"`
}

type PlayerKickedPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

type RoomCancelledPayload struct {
	Reason string `json:"reason"`
}

// RoundStartedPayload is the round-start wire shape. SecretAnswer is set
// only on the copy sent to the drawer; guessers receive the hints instead.
type RoundStartedPayload struct {
	RoundNumber       int     `json:"roundNumber"`
	DrawerID          string  `json:"drawerId"`
	SecretAnswer      string  `json:"secretAnswer,omitempty"`
	HintArtist        *string `json:"hintArtist,omitempty"`
	HintGenre         *string `json:"hintGenre,omitempty"`
	TimeBudgetSeconds int     `json:"timeBudgetSeconds"`
}

// Point is a single canvas coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload carries one drawing action. Strokes are transient: they are
// broadcast live and never persisted beyond the round.
type StrokePayload struct {
	Points      []Point `json:"points"`
	ColorHex    string  `json:"colorHex"`
	StrokeWidth int     `json:"strokeWidth"`
	IsErase     bool    `json:"isErase"`
	IsClearAll  bool    `json:"isClearAll"`
}

type ChatMessagePayload struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

// GuessScoredPayload is the scoring wire shape for a correct guess.
type GuessScoredPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	ScoreDelta  int    `json:"scoreDelta"`
	BonusDelta  int    `json:"bonusDelta"`
}

type RoundEndedPayload struct {
	RoundNumber  int    `json:"roundNumber"`
	Early        bool   `json:"early"`
	SecretAnswer string `json:"secretAnswer"`
}

// ScoreboardEntry is one row of the ranked final scoreboard.
type ScoreboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

type MatchEndedPayload struct {
	Scoreboard []ScoreboardEntry `json:"scoreboard"`
}

// RoomSummaryPayload is one public room in the lobby list.
type RoomSummaryPayload struct {
	Code       string `json:"code"`
	HostName   string `json:"hostName"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	State      string `json:"state"`
}

type RoomListUpdatedPayload struct {
	Rooms []RoomSummaryPayload `json:"rooms"`
}

// CommandAckPayload answers a client command carrying a sequence number, so
// callers can treat joins and sends as bounded round trips.
type CommandAckPayload struct {
	Seq     uint64 `json:"seq"`
	Op      string `json:"op"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
