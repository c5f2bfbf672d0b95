package nakama

import (
	"context"
	"fmt"
	"sync"

	"comparity/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// LeaderboardAPI is the subset of runtime.NakamaModule the leaderboard adapter uses.
type LeaderboardAPI interface {
	LeaderboardCreate(ctx context.Context, id string, authoritative bool, sortOrder, operator, resetSchedule string, metadata map[string]interface{}, enableRanks bool) error
	LeaderboardRecordWrite(ctx context.Context, id, ownerID, username string, score, subscore int64, metadata map[string]interface{}, overrideOperator *int) (*api.LeaderboardRecord, error)
}

// NakamaLeaderboardAdapter keeps a global and a per-deck running score.
// Leaderboards are authoritative so clients cannot submit scores.
type NakamaLeaderboardAdapter struct {
	nk      LeaderboardAPI
	created sync.Map // leaderboard id -> struct{}
}

func NewNakamaLeaderboardAdapter(nk LeaderboardAPI) *NakamaLeaderboardAdapter {
	return &NakamaLeaderboardAdapter{nk: nk}
}

// DeckLeaderboardID returns the id of a deck's leaderboard.
func DeckLeaderboardID(deckID string) string {
	return leaderboardDeckPrefix + deckID
}

// EnsureGlobal creates the global leaderboard.
func (a *NakamaLeaderboardAdapter) EnsureGlobal(ctx context.Context) error {
	return a.ensure(ctx, leaderboardGlobal)
}

func (a *NakamaLeaderboardAdapter) IncrementScore(ctx context.Context, userID string, delta int, deckID string) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}
	if delta == 0 {
		return nil
	}

	ids := []string{leaderboardGlobal}
	if deckID != "" {
		ids = append(ids, DeckLeaderboardID(deckID))
	}

	// Records only take non-negative scores; a loss is applied as a decrement.
	score := int64(delta)
	operator := int(api.Operator_INCREMENT)
	if delta < 0 {
		score = -score
		operator = int(api.Operator_DECREMENT)
	}

	for _, id := range ids {
		if err := a.ensure(ctx, id); err != nil {
			return err
		}
		if _, err := a.nk.LeaderboardRecordWrite(ctx, id, userID, "", score, 0, nil, &operator); err != nil {
			return fmt.Errorf("failed to write leaderboard %s: %w", id, err)
		}
	}
	return nil
}

func (a *NakamaLeaderboardAdapter) ensure(ctx context.Context, id string) error {
	if _, ok := a.created.Load(id); ok {
		return nil
	}
	metadata := map[string]interface{}{"game": "comparity"}
	// Creating an existing leaderboard is a no-op in Nakama.
	if err := a.nk.LeaderboardCreate(ctx, id, true, "desc", "incr", "", metadata, true); err != nil {
		return fmt.Errorf("failed to create leaderboard %s: %w", id, err)
	}
	a.created.Store(id, struct{}{})
	return nil
}

var _ ports.LeaderboardPort = (*NakamaLeaderboardAdapter)(nil)

var _ LeaderboardAPI = (runtime.NakamaModule)(nil)
