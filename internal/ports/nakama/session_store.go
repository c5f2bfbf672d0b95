package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comparity/internal/domain"
	"comparity/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

type sessionRecord struct {
	Session   *domain.Session `json:"session"`
	ExpiresAt int64           `json:"expires_at"` // unix millis
}

// NakamaSessionStore keeps sessions as system-owned storage objects. The object
// version is the session version; expiry is enforced on read.
type NakamaSessionStore struct {
	nk  StorageAPI
	ttl time.Duration
	now func() time.Time
}

// NewNakamaSessionStore creates a session store whose writes live for ttl.
func NewNakamaSessionStore(nk StorageAPI, ttl time.Duration) *NakamaSessionStore {
	return &NakamaSessionStore{nk: nk, ttl: ttl, now: time.Now}
}

func (s *NakamaSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	obj, err := readObject(ctx, s.nk, collectionSessions, sessionID, systemUserID)
	if err != nil || obj == nil {
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(obj.GetValue()), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	if rec.Session == nil {
		return nil, fmt.Errorf("session %s record is empty", sessionID)
	}
	if s.now().UnixMilli() >= rec.ExpiresAt {
		// Best effort; a concurrent refresh changes the version and keeps the object.
		_ = deleteObject(ctx, s.nk, collectionSessions, sessionID, systemUserID, obj.GetVersion())
		return nil, nil
	}
	if rec.Session.SchemaVersion != domain.SessionSchemaVersion {
		return nil, fmt.Errorf("session %s has unsupported schema version %d", sessionID, rec.Session.SchemaVersion)
	}

	rec.Session.Version = obj.GetVersion()
	return rec.Session, nil
}

func (s *NakamaSessionStore) Put(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	version := session.Version
	if version == "" {
		version = "*"
	}
	rec := sessionRecord{
		Session:   session,
		ExpiresAt: s.now().Add(s.ttl).UnixMilli(),
	}
	newVersion, err := writeObject(ctx, s.nk, collectionSessions, session.ID, systemUserID, version, rec)
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return ports.ErrVersionConflict
		}
		return fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}
	session.Version = newVersion
	return nil
}

func (s *NakamaSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := deleteObject(ctx, s.nk, collectionSessions, sessionID, systemUserID, ""); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

var _ ports.SessionStore = (*NakamaSessionStore)(nil)
