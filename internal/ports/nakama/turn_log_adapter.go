package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"comparity/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaTurnLog writes one audit object per turn, keyed by turn id.
type NakamaTurnLog struct {
	nk StorageAPI
}

func NewNakamaTurnLog(nk StorageAPI) *NakamaTurnLog {
	return &NakamaTurnLog{nk: nk}
}

func (l *NakamaTurnLog) AppendTurn(ctx context.Context, turn ports.TurnRecord) error {
	if turn.ID == "" {
		return fmt.Errorf("turn id is required")
	}
	if _, err := writeObject(ctx, l.nk, collectionTurns, turn.ID, systemUserID, "*", turn); err != nil {
		return fmt.Errorf("failed to append turn %s: %w", turn.ID, err)
	}
	return nil
}

// ResolveTurn completes a bluff's entry with its outcome. A missing entry is
// recreated with only the resolution fields set.
func (l *NakamaTurnLog) ResolveTurn(ctx context.Context, turnID string, res ports.TurnResolution) error {
	obj, err := readObject(ctx, l.nk, collectionTurns, turnID, systemUserID)
	if err != nil {
		return err
	}

	turn := ports.TurnRecord{ID: turnID}
	version := "*"
	if obj != nil {
		if err := json.Unmarshal([]byte(obj.GetValue()), &turn); err != nil {
			return fmt.Errorf("failed to unmarshal turn %s: %w", turnID, err)
		}
		version = obj.GetVersion()
	}
	resolvedAt := res.ResolvedAt
	turn.Status = res.Status
	turn.ChallengedBy = res.ChallengedBy
	turn.ScoreDeltaPlacer = res.ScoreDeltaPlacer
	turn.ScoreDeltaChall = res.ScoreDeltaChall
	turn.ResolvedAt = &resolvedAt

	_, err = writeObject(ctx, l.nk, collectionTurns, turnID, systemUserID, version, turn)
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return fmt.Errorf("turn %s was resolved concurrently", turnID)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve turn %s: %w", turnID, err)
	}
	return nil
}

// Get returns the audit entry of a turn, or nil.
func (l *NakamaTurnLog) Get(ctx context.Context, turnID string) (*ports.TurnRecord, error) {
	obj, err := readObject(ctx, l.nk, collectionTurns, turnID, systemUserID)
	if err != nil || obj == nil {
		return nil, err
	}
	var turn ports.TurnRecord
	if err := json.Unmarshal([]byte(obj.GetValue()), &turn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turn %s: %w", turnID, err)
	}
	return &turn, nil
}

var _ ports.TurnLog = (*NakamaTurnLog)(nil)
