package client

import (
	"fmt"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
)

// Kind classifies an operation failure for the presentation layer.
// Business-rule rejections map to a specific, localizable message;
// transport faults collapse into Communication/Timeout after the single
// automatic retry is exhausted.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindRoomFull
	KindDuplicateName
	KindHostOnly
	KindInsufficientPlayers
	KindPlayerNotFound
	KindRoomClosed
	KindCommunication
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRoomFull:
		return "room_full"
	case KindDuplicateName:
		return "duplicate_name"
	case KindHostOnly:
		return "host_only"
	case KindInsufficientPlayers:
		return "insufficient_players"
	case KindPlayerNotFound:
		return "player_not_found"
	case KindRoomClosed:
		return "room_closed"
	case KindCommunication:
		return "communication"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Error is the typed failure surfaced by every reconciler operation.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsTransient reports whether the failure was a transport fault rather
// than a business-rule rejection.
func (e *Error) IsTransient() bool {
	return e.Kind == KindCommunication || e.Kind == KindTimeout
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// kindFromCode maps a wire error code to its client-side kind.
func kindFromCode(code string) Kind {
	switch code {
	case session.CodeValidation:
		return KindValidation
	case session.CodeRoomFull:
		return KindRoomFull
	case session.CodeDuplicateName:
		return KindDuplicateName
	case session.CodeHostOnly:
		return KindHostOnly
	case session.CodeInsufficientPlayers:
		return KindInsufficientPlayers
	case session.CodePlayerNotFound:
		return KindPlayerNotFound
	case session.CodeRoomClosed:
		return KindRoomClosed
	}
	return KindUnknown
}
