package ports

import "context"

// PlayerResult is one player's contribution to their aggregate statistics.
type PlayerResult struct {
	UserID string
	Score  int
	Won    bool
}

// GameResult is flushed once when a session finishes.
type GameResult struct {
	SessionID string
	DeckID    string
	Players   []PlayerResult
	Winners   []string
}

// StatsPort persists per-user aggregates (total score, games, wins, losses).
type StatsPort interface {
	// RecordGameResult applies the result to every listed player exactly once.
	RecordGameResult(ctx context.Context, result GameResult) error
}

// LeaderboardPort receives score deltas as they happen.
type LeaderboardPort interface {
	// IncrementScore adds delta to the user's global score and, if deckID is set, the deck score.
	IncrementScore(ctx context.Context, userID string, delta int, deckID string) error
}
