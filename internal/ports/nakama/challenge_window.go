package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comparity/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

type windowRecord struct {
	TurnID    string `json:"turn_id"`
	ExpiresAt int64  `json:"expires_at"` // unix millis
}

// NakamaChallengeWindows stores one window object per session. Creation uses
// conditional writes so only one opener can win.
type NakamaChallengeWindows struct {
	nk  StorageAPI
	now func() time.Time
}

func NewNakamaChallengeWindows(nk StorageAPI) *NakamaChallengeWindows {
	return &NakamaChallengeWindows{nk: nk, now: time.Now}
}

func (w *NakamaChallengeWindows) Open(ctx context.Context, sessionID, turnID string, d time.Duration) error {
	if turnID == "" {
		return fmt.Errorf("turn id is required")
	}
	now := w.now()

	version := "*"
	obj, rec, err := w.read(ctx, sessionID)
	if err != nil {
		return err
	}
	if obj != nil {
		if now.UnixMilli() < rec.ExpiresAt {
			return ports.ErrWindowBusy
		}
		// Replace the expired window only if nobody else has.
		version = obj.GetVersion()
	}

	_, err = writeObject(ctx, w.nk, collectionWindows, sessionID, systemUserID, version, windowRecord{
		TurnID:    turnID,
		ExpiresAt: now.Add(d).UnixMilli(),
	})
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return ports.ErrWindowBusy
	}
	if err != nil {
		return fmt.Errorf("failed to open challenge window for %s: %w", sessionID, err)
	}
	return nil
}

func (w *NakamaChallengeWindows) IsOpenFor(ctx context.Context, sessionID string) (string, error) {
	obj, rec, err := w.read(ctx, sessionID)
	if err != nil || obj == nil {
		return "", err
	}
	if w.now().UnixMilli() >= rec.ExpiresAt {
		return "", nil
	}
	return rec.TurnID, nil
}

func (w *NakamaChallengeWindows) Close(ctx context.Context, sessionID, turnID string) error {
	obj, rec, err := w.read(ctx, sessionID)
	if err != nil {
		return err
	}
	if obj == nil || rec.TurnID != turnID {
		return nil
	}
	// Delete at the version read so a window that replaced it survives.
	err = deleteObject(ctx, w.nk, collectionWindows, sessionID, systemUserID, obj.GetVersion())
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to close challenge window for %s: %w", sessionID, err)
	}
	return nil
}

func (w *NakamaChallengeWindows) read(ctx context.Context, sessionID string) (*api.StorageObject, windowRecord, error) {
	var rec windowRecord
	obj, err := readObject(ctx, w.nk, collectionWindows, sessionID, systemUserID)
	if err != nil || obj == nil {
		return nil, rec, err
	}
	if err := json.Unmarshal([]byte(obj.GetValue()), &rec); err != nil {
		return nil, rec, fmt.Errorf("failed to unmarshal challenge window %s: %w", sessionID, err)
	}
	return obj, rec, nil
}

var _ ports.ChallengeWindows = (*NakamaChallengeWindows)(nil)
