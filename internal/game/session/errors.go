package session

import "errors"

// Business-rule rejections. These cross the room boundary as values, are
// surfaced to the caller verbatim, and are never retried.
var (
	ErrValidation          = errors.New("invalid input")
	ErrRoomFull            = errors.New("room is full")
	ErrDuplicateName       = errors.New("display name already taken")
	ErrHostOnly            = errors.New("operation restricted to the host")
	ErrInsufficientPlayers = errors.New("not enough players")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrRoomClosed          = errors.New("room is closed")
)

// Error codes as they appear on the wire in command acks.
const (
	CodeValidation          = "VALIDATION"
	CodeRoomFull            = "ROOM_FULL"
	CodeDuplicateName       = "DUPLICATE_NAME"
	CodeHostOnly            = "HOST_ONLY"
	CodeInsufficientPlayers = "INSUFFICIENT_PLAYERS"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeRoomClosed          = "ROOM_CLOSED"
	CodeUnknown             = "UNKNOWN"
)

// ErrorCode maps a session error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, ErrDuplicateName):
		return CodeDuplicateName
	case errors.Is(err, ErrHostOnly):
		return CodeHostOnly
	case errors.Is(err, ErrInsufficientPlayers):
		return CodeInsufficientPlayers
	case errors.Is(err, ErrPlayerNotFound):
		return CodePlayerNotFound
	case errors.Is(err, ErrRoomClosed):
		return CodeRoomClosed
	default:
		return CodeUnknown
	}
}
