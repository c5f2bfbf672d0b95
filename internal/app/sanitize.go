package app

import (
	"time"

	"comparity/internal/domain"
)

// HiddenPlaceholder replaces the display value of cards a viewer may not see.
const HiddenPlaceholder = "?"

// PlacementView is a chain entry as shown to one viewer.
type PlacementView struct {
	CardID       string   `json:"cardId"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	HiddenValue  *float64 `json:"hiddenValue"`
	DisplayValue string   `json:"displayValue"`
	IsFaceDown   bool     `json:"isFaceDown"`
	PlacedBy     string   `json:"placedBy,omitempty"`
}

// CardView is a card in hand; its value is never shown.
type CardView struct {
	ID           string   `json:"cardId"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	HiddenValue  *float64 `json:"hiddenValue"`
	DisplayValue string   `json:"displayValue"`
	FlavorText   string   `json:"flavorText,omitempty"`
}

type CurrentTurnView struct {
	PlayerID  string    `json:"userId"`
	Card      CardView  `json:"card"`
	StartedAt time.Time `json:"startedAt"`
}

// SessionView is the STATE payload.
type SessionView struct {
	ID                string                   `json:"id"`
	Type              domain.SessionType       `json:"type"`
	Status            domain.Status            `json:"status"`
	DeckID            string                   `json:"deckId"`
	DeckName          string                   `json:"deckName"`
	DeckParameterName string                   `json:"deckParameterName"`
	DeckParameterUnit string                   `json:"deckParameterUnit"`
	Chain             []PlacementView          `json:"chain"`
	Players           domain.Players           `json:"players"`
	CurrentTurn       *CurrentTurnView         `json:"currentTurn"`
	PendingChallenge  *domain.PendingChallenge `json:"pendingChallenge"`
	RemainingCards    int                      `json:"remainingCards"`
	ChatID            string                   `json:"chatId,omitempty"`
	MatchID           string                   `json:"matchId,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

type chainUpdatedView struct {
	Chain            []PlacementView          `json:"chain"`
	TurnResult       TurnResult               `json:"turnResult"`
	Players          domain.Players           `json:"players"`
	NextCard         *CardView                `json:"nextCard"`
	NextPlayerID     string                   `json:"nextPlayerId,omitempty"`
	PendingChallenge *domain.PendingChallenge `json:"pendingChallenge"`
	GameOver         bool                     `json:"gameOver"`
	Winners          []string                 `json:"winners"`
}

type challengeEndView struct {
	BluffCaught          bool            `json:"bluffCaught"`
	Reason               domain.Reason   `json:"reason"`
	Chain                []PlacementView `json:"chain"`
	Players              domain.Players  `json:"players"`
	PlacerID             string          `json:"placerId"`
	ChallengerID         string          `json:"challengerId"`
	ScoreDeltaPlacer     int             `json:"scoreDeltaPlacer"`
	ScoreDeltaChallenger int             `json:"scoreDeltaChallenger"`
	RevealedCard         domain.Card     `json:"revealedCard"`
	NextCard             *CardView       `json:"nextCard"`
	NextPlayerID         string          `json:"nextPlayerId,omitempty"`
	GameOver             bool            `json:"gameOver"`
	Winners              []string        `json:"winners"`
}

// SanitizeChain masks face-down entries placed by anyone other than viewerID.
func SanitizeChain(chain domain.Chain, viewerID string) []PlacementView {
	out := make([]PlacementView, len(chain))
	for i, pl := range chain {
		view := PlacementView{
			CardID:       pl.CardID,
			Title:        pl.Title,
			Subtitle:     pl.Subtitle,
			ImageURL:     pl.ImageURL,
			DisplayValue: pl.DisplayValue,
			IsFaceDown:   pl.IsFaceDown,
			PlacedBy:     pl.PlacedBy,
		}
		if pl.IsFaceDown && (viewerID == "" || pl.PlacedBy != viewerID) {
			view.DisplayValue = HiddenPlaceholder
		} else {
			v := pl.HiddenValue
			view.HiddenValue = &v
		}
		out[i] = view
	}
	return out
}

// SanitizeHandCard hides a card that has not been placed yet.
func SanitizeHandCard(card *domain.Card) *CardView {
	if card == nil {
		return nil
	}
	return &CardView{
		ID:           card.ID,
		Title:        card.Title,
		Subtitle:     card.Subtitle,
		ImageURL:     card.ImageURL,
		DisplayValue: HiddenPlaceholder,
		FlavorText:   card.FlavorText,
	}
}

// SanitizeSession builds the STATE payload for viewerID.
func SanitizeSession(s *domain.Session, viewerID string) *SessionView {
	if s == nil {
		return nil
	}
	view := &SessionView{
		ID:                s.ID,
		Type:              s.Type,
		Status:            s.Status,
		DeckID:            s.DeckID,
		DeckName:          s.DeckName,
		DeckParameterName: s.DeckParameterName,
		DeckParameterUnit: s.DeckParameterUnit,
		Chain:             SanitizeChain(s.Chain, viewerID),
		Players:           s.Players,
		PendingChallenge:  s.PendingChallenge,
		RemainingCards:    len(s.RemainingCardIDs()),
		ChatID:            s.ChatID,
		MatchID:           s.MatchID,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.CurrentTurn != nil {
		view.CurrentTurn = &CurrentTurnView{
			PlayerID:  s.CurrentTurn.PlayerID,
			Card:      *SanitizeHandCard(&s.CurrentTurn.Card),
			StartedAt: s.CurrentTurn.StartedAt,
		}
	}
	return view
}

// SanitizeEvent returns the payload of an event as viewerID may see it.
func SanitizeEvent(kind EventKind, payload interface{}, viewerID string) interface{} {
	switch p := payload.(type) {
	case *domain.Session:
		return SanitizeSession(p, viewerID)
	case ChainUpdatedPayload:
		return chainUpdatedView{
			Chain:            SanitizeChain(p.Chain, viewerID),
			TurnResult:       p.TurnResult,
			Players:          p.Players,
			NextCard:         SanitizeHandCard(p.NextCard),
			NextPlayerID:     p.NextPlayerID,
			PendingChallenge: p.PendingChallenge,
			GameOver:         p.GameOver,
			Winners:          p.Winners,
		}
	case ChallengeEndPayload:
		return challengeEndView{
			BluffCaught:          p.BluffCaught,
			Reason:               p.Reason,
			Chain:                SanitizeChain(p.Chain, viewerID),
			Players:              p.Players,
			PlacerID:             p.PlacerID,
			ChallengerID:         p.ChallengerID,
			ScoreDeltaPlacer:     p.ScoreDeltaPlacer,
			ScoreDeltaChallenger: p.ScoreDeltaChallenger,
			RevealedCard:         p.RevealedCard,
			NextCard:             SanitizeHandCard(p.NextCard),
			NextPlayerID:         p.NextPlayerID,
			GameOver:             p.GameOver,
			Winners:              p.Winners,
		}
	default:
		return payload
	}
}
