package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"comparity/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const statsWriteAttempts = 5

// PlayerStats is the per-user aggregate stored under stats/aggregate.
type PlayerStats struct {
	ScoreTotal int64 `json:"score_total"`
	GamesTotal int64 `json:"games_total"`
	GamesWon   int64 `json:"games_won"`
	GamesLost  int64 `json:"games_lost"`
}

// NakamaStatsAdapter accumulates finished games into user-owned storage objects.
type NakamaStatsAdapter struct {
	nk StorageAPI
}

func NewNakamaStatsAdapter(nk StorageAPI) *NakamaStatsAdapter {
	return &NakamaStatsAdapter{nk: nk}
}

// RecordGameResult updates every player's aggregate once. A failure for one
// player does not stop the others; all failures are returned together.
func (a *NakamaStatsAdapter) RecordGameResult(ctx context.Context, result ports.GameResult) error {
	var errs []error
	for _, p := range result.Players {
		if err := a.apply(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", p.UserID, err))
		}
	}
	return errors.Join(errs...)
}

// Get returns the user's aggregate, zero if none recorded yet.
func (a *NakamaStatsAdapter) Get(ctx context.Context, userID string) (PlayerStats, string, error) {
	var stats PlayerStats
	obj, err := readObject(ctx, a.nk, collectionStats, keyStatsAggregate, userID)
	if err != nil || obj == nil {
		return stats, "", err
	}
	if err := json.Unmarshal([]byte(obj.GetValue()), &stats); err != nil {
		return stats, "", fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return stats, obj.GetVersion(), nil
}

func (a *NakamaStatsAdapter) apply(ctx context.Context, p ports.PlayerResult) error {
	for i := 0; i < statsWriteAttempts; i++ {
		stats, version, err := a.Get(ctx, p.UserID)
		if err != nil {
			return err
		}
		if version == "" {
			version = "*"
		}

		stats.ScoreTotal += int64(p.Score)
		stats.GamesTotal++
		if p.Won {
			stats.GamesWon++
		} else {
			stats.GamesLost++
		}

		_, err = writeObject(ctx, a.nk, collectionStats, keyStatsAggregate, p.UserID, version, stats)
		if err == nil {
			return nil
		}
		if !errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return fmt.Errorf("failed to write stats: %w", err)
		}
	}
	return fmt.Errorf("stats write kept conflicting after %d attempts", statsWriteAttempts)
}

var _ ports.StatsPort = (*NakamaStatsAdapter)(nil)
