package app

import (
	"errors"
	"fmt"
)

// ErrorKind classifies request failures independently of the transport.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInvalidRequest
	KindForbidden
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Status returns the HTTP-style status for the kind.
func (k ErrorKind) Status() int {
	switch k {
	case KindNotFound:
		return 404
	case KindInvalidRequest:
		return 400
	case KindForbidden:
		return 403
	case KindConflict:
		return 409
	default:
		return 500
	}
}

// GRPCCode returns the gRPC status code Nakama uses for runtime errors.
func (k ErrorKind) GRPCCode() int {
	switch k {
	case KindNotFound:
		return 5 // NOT_FOUND
	case KindInvalidRequest:
		return 3 // INVALID_ARGUMENT
	case KindForbidden:
		return 7 // PERMISSION_DENIED
	case KindConflict:
		return 9 // FAILED_PRECONDITION
	default:
		return 13 // INTERNAL
	}
}

// Error is a request-level failure. No state was changed when it is returned.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same code so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrSessionNotFound       = newError(KindNotFound, "session_not_found", "session not found")
	ErrDeckNotFound          = newError(KindNotFound, "deck_not_found", "deck not found")
	ErrDeckEmpty             = newError(KindInvalidRequest, "deck_empty", "deck has no active cards")
	ErrMissingField          = newError(KindInvalidRequest, "missing_field", "required field missing")
	ErrPositionOutOfBounds   = newError(KindInvalidRequest, "position_out_of_bounds", "position out of bounds")
	ErrCardMismatch          = newError(KindInvalidRequest, "card_mismatch", "card does not match the card in hand")
	ErrInvalidTicket         = newError(KindInvalidRequest, "invalid_ticket", "invite ticket is invalid or expired")
	ErrNotYourTurn           = newError(KindForbidden, "not_your_turn", "not your turn")
	ErrSelfChallenge         = newError(KindForbidden, "self_challenge", "cannot challenge your own move")
	ErrNotAPlayer            = newError(KindForbidden, "not_a_player", "user is not a player in this session")
	ErrSoloSession           = newError(KindForbidden, "solo_session", "solo sessions cannot be joined")
	ErrSessionNotActive      = newError(KindConflict, "session_not_active", "game is not active")
	ErrNoPendingChallenge    = newError(KindConflict, "no_pending_challenge", "no pending challenge")
	ErrChallengeWindowClosed = newError(KindConflict, "challenge_window_closed", "challenge window closed")
	ErrChallengeWindowOpen   = newError(KindConflict, "challenge_window_open", "challenge window still open")
	ErrWriteContention       = newError(KindConflict, "write_contention", "session is busy, retry")
)

// internalError wraps a collaborator failure.
func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
