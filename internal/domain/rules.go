package domain

// Reason explains why a placement was rejected.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonPositionOutOfBounds Reason = "position_out_of_bounds"
	ReasonLessThanLeft        Reason = "less_than_left"
	ReasonGreaterThanRight    Reason = "greater_than_right"
	ReasonBluffHeld           Reason = "bluff_held"
	ReasonBluffCaught         Reason = "bluff_caught"
)

// MoveCheck is the typed outcome of ValidateMove. An invalid move is not an error.
type MoveCheck struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

// ChallengeOutcome is the result of resolving a challenge against a face-down card.
type ChallengeOutcome struct {
	BluffCaught          bool   `json:"bluffCaught"`
	Chain                Chain  `json:"chain"`
	ScoreDeltaPlacer     int    `json:"scoreDeltaPlacer"`
	ScoreDeltaChallenger int    `json:"scoreDeltaChallenger"`
	Reason               Reason `json:"reason"`
}

// ValidateMove checks whether card may be inserted at position.
// Positions run from 0 (before the first card) to len(chain) (after the last).
// Face-down placements are transparent: only the nearest revealed neighbour on
// each side constrains the card.
func ValidateMove(chain Chain, card Card, position int) MoveCheck {
	if position < 0 || position > len(chain) {
		return MoveCheck{Valid: false, Reason: ReasonPositionOutOfBounds}
	}

	left, hasLeft := revealedNeighbor(chain, position-1, -1)
	right, hasRight := revealedNeighbor(chain, position, 1)

	if hasLeft && card.HiddenValue < left.HiddenValue {
		return MoveCheck{Valid: false, Reason: ReasonLessThanLeft}
	}
	if hasRight && card.HiddenValue > right.HiddenValue {
		return MoveCheck{Valid: false, Reason: ReasonGreaterThanRight}
	}
	return MoveCheck{Valid: true}
}

func revealedNeighbor(chain Chain, start, step int) (Placement, bool) {
	for i := start; i >= 0 && i < len(chain); i += step {
		if !chain[i].IsFaceDown {
			return chain[i], true
		}
	}
	return Placement{}, false
}

// InsertCard returns a new chain with card spliced in at position. It does not validate.
func InsertCard(chain Chain, card Card, position int, isFaceDown bool, placedBy string) Chain {
	out := make(Chain, 0, len(chain)+1)
	out = append(out, chain[:position]...)
	out = append(out, NewPlacement(card, isFaceDown, placedBy))
	out = append(out, chain[position:]...)
	return out
}

// RemoveCard returns a new chain without the entry at position.
func RemoveCard(chain Chain, position int) Chain {
	out := make(Chain, 0, len(chain))
	out = append(out, chain[:position]...)
	out = append(out, chain[position+1:]...)
	return out
}

// RevealCard returns a new chain with the entry at position turned face up.
func RevealCard(chain Chain, position int) Chain {
	out := chain.Clone()
	out[position].IsFaceDown = false
	return out
}

// ResolveChallenge decides a challenge against the face-down card at position.
// The claim is checked against the chain with that entry removed, using the
// card's true value.
func ResolveChallenge(chain Chain, position int, card Card, placerID, challengerID string) ChallengeOutcome {
	check := ValidateMove(RemoveCard(chain, position), card, position)
	if check.Valid {
		return ChallengeOutcome{
			BluffCaught:          false,
			Chain:                RevealCard(chain, position),
			ScoreDeltaPlacer:     ScoreBluffHeld,
			ScoreDeltaChallenger: ScoreChallengeLose,
			Reason:               ReasonBluffHeld,
		}
	}
	return ChallengeOutcome{
		BluffCaught:          true,
		Chain:                RemoveCard(chain, position),
		ScoreDeltaPlacer:     ScoreBluffCaught,
		ScoreDeltaChallenger: ScoreChallengeWin,
		Reason:               ReasonBluffCaught,
	}
}

// IsGameOver reports whether the chain is full or the deck has no undrawn cards.
func IsGameOver(chain Chain, maxChainLength, remainingCards int) bool {
	return len(chain) >= maxChainLength || remainingCards <= 0
}
