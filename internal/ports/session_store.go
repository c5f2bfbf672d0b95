package ports

import (
	"context"
	"errors"

	"comparity/internal/domain"
)

// ErrVersionConflict is returned when a write carries a stale version.
var ErrVersionConflict = errors.New("session version conflict")

// SessionStore holds one live document per session with a refreshing expiry.
type SessionStore interface {
	// Get returns the session and stamps it with the version read, or nil if absent or expired.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Put writes the session if the stored version still equals session.Version.
	// An empty version means the session must not exist yet. Every write refreshes
	// the expiry. On success session.Version is updated; on a mismatch Put returns
	// ErrVersionConflict and writes nothing.
	Put(ctx context.Context, session *domain.Session) error

	// Delete evicts the session unconditionally.
	Delete(ctx context.Context, sessionID string) error
}
