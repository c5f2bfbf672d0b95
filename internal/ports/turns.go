package ports

import (
	"context"
	"time"
)

// TurnRecord is the audit entry for one move or bluff.
type TurnRecord struct {
	ID               string     `json:"id"`
	SessionID        string     `json:"session_id"`
	UserID           string     `json:"user_id"`
	CardID           string     `json:"card_id"`
	Position         int        `json:"proposed_position"`
	IsBluff          bool       `json:"is_bluff"`
	Status           string     `json:"status"`
	ChallengedBy     string     `json:"challenged_by,omitempty"`
	ScoreDeltaPlacer int        `json:"score_delta_placer"`
	ScoreDeltaChall  int        `json:"score_delta_chall"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// TurnResolution completes a pending bluff's audit entry.
type TurnResolution struct {
	Status           string
	ChallengedBy     string
	ScoreDeltaPlacer int
	ScoreDeltaChall  int
	ResolvedAt       time.Time
}

// TurnLog is the append-only history of turns. It is not needed for gameplay.
type TurnLog interface {
	AppendTurn(ctx context.Context, turn TurnRecord) error
	ResolveTurn(ctx context.Context, turnID string, resolution TurnResolution) error
}
