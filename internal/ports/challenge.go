package ports

import (
	"context"
	"errors"
	"time"
)

// ErrWindowBusy is returned when an unexpired challenge window already exists.
var ErrWindowBusy = errors.New("challenge window already open")

// ChallengeWindows is a single-slot, self-expiring lock per session. It is the
// authority on whether a bluff can still be challenged.
type ChallengeWindows interface {
	// Open records turnID for the session for the given duration. It fails with
	// ErrWindowBusy if an unexpired window is present.
	Open(ctx context.Context, sessionID, turnID string, d time.Duration) error

	// IsOpenFor returns the turn id of the open window, or "" if none or expired.
	IsOpenFor(ctx context.Context, sessionID string) (string, error)

	// Close removes the window early if it still belongs to turnID. A window
	// opened by a later turn is left in place.
	Close(ctx context.Context, sessionID, turnID string) error
}
