package app

import (
	"time"

	"comparity/internal/domain"
)

// EventKind identifies events published to a session's viewers.
type EventKind string

const (
	EventState         EventKind = "STATE"
	EventChainUpdated  EventKind = "CHAIN_UPDATED"
	EventChallengeEnd  EventKind = "CHALLENGE_END"
	EventGameAbandoned EventKind = "GAME_ABANDONED"
	EventPlayerJoined  EventKind = "PLAYER_JOINED"
	EventKeepAlive     EventKind = "KEEPALIVE"
)

// TurnStatus is the outcome of a move.
type TurnStatus string

const (
	TurnCorrect      TurnStatus = "CORRECT"
	TurnIncorrect    TurnStatus = "INCORRECT"
	TurnPending      TurnStatus = "PENDING"
	TurnUnchallenged TurnStatus = "UNCHALLENGED"
	TurnBluffHeld    TurnStatus = "BLUFF_HELD"
	TurnBluffCaught  TurnStatus = "BLUFF_CAUGHT"
)

type TurnResult struct {
	Status     TurnStatus    `json:"status"`
	ScoreDelta int           `json:"scoreDelta"`
	Reason     domain.Reason `json:"reason,omitempty"`
}

// ChainUpdatedPayload follows a move or an expired bluff.
type ChainUpdatedPayload struct {
	Chain            domain.Chain             `json:"chain"`
	TurnResult       TurnResult               `json:"turnResult"`
	Players          domain.Players           `json:"players"`
	NextCard         *domain.Card             `json:"nextCard"`
	NextPlayerID     string                   `json:"nextPlayerId,omitempty"`
	PendingChallenge *domain.PendingChallenge `json:"pendingChallenge"`
	GameOver         bool                     `json:"gameOver"`
	Winners          []string                 `json:"winners"`
}

// ChallengeEndPayload follows a resolved challenge.
type ChallengeEndPayload struct {
	BluffCaught          bool           `json:"bluffCaught"`
	Reason               domain.Reason  `json:"reason"`
	Chain                domain.Chain   `json:"chain"`
	Players              domain.Players `json:"players"`
	PlacerID             string         `json:"placerId"`
	ChallengerID         string         `json:"challengerId"`
	ScoreDeltaPlacer     int            `json:"scoreDeltaPlacer"`
	ScoreDeltaChallenger int            `json:"scoreDeltaChallenger"`
	RevealedCard         domain.Card    `json:"revealedCard"`
	NextCard             *domain.Card   `json:"nextCard"`
	NextPlayerID         string         `json:"nextPlayerId,omitempty"`
	GameOver             bool           `json:"gameOver"`
	Winners              []string       `json:"winners"`
}

type GameAbandonedPayload struct {
	Reason string `json:"reason"`
	UserID string `json:"userId"`
}

type PlayerJoinedPayload struct {
	UserID  string         `json:"userId"`
	Players domain.Players `json:"players"`
}

// IsTerminalEvent reports whether no further events follow kind/payload for the session.
func IsTerminalEvent(kind EventKind, payload interface{}) bool {
	switch kind {
	case EventGameAbandoned:
		return true
	case EventChainUpdated:
		if p, ok := payload.(ChainUpdatedPayload); ok {
			return p.GameOver
		}
	case EventChallengeEnd:
		if p, ok := payload.(ChallengeEndPayload); ok {
			return p.GameOver
		}
	}
	return false
}

// PendingExpiry returns when the bluff announced by payload stops being challengeable.
func PendingExpiry(kind EventKind, payload interface{}) (time.Time, bool) {
	switch kind {
	case EventChainUpdated:
		if p, ok := payload.(ChainUpdatedPayload); ok && p.PendingChallenge != nil {
			return p.PendingChallenge.ExpiresAt, true
		}
	case EventState:
		if s, ok := payload.(*domain.Session); ok && s != nil && s.PendingChallenge != nil {
			return s.PendingChallenge.ExpiresAt, true
		}
	}
	return time.Time{}, false
}
