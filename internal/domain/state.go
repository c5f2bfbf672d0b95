package domain

import (
	"sort"
	"time"
)

// SessionType distinguishes private games from chat group games.
type SessionType string

const (
	SessionSolo  SessionType = "SOLO"
	SessionGroup SessionType = "GROUP"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	// StatusActive accepts moves and challenges.
	StatusActive Status = "ACTIVE"
	// StatusFinished is terminal; the chain filled up or the deck ran out.
	StatusFinished Status = "FINISHED"
	// StatusAbandoned is terminal; a player quit.
	StatusAbandoned Status = "ABANDONED"
)

// Player holds a participant's standing within one session.
type Player struct {
	Score     int `json:"score"`
	TurnOrder int `json:"turnOrder"`
}

// Players maps player id to standing.
type Players map[string]Player

// CurrentTurn is the card in a player's hand waiting to be placed.
type CurrentTurn struct {
	PlayerID  string    `json:"userId"`
	Card      Card      `json:"card"`
	StartedAt time.Time `json:"startedAt"`
}

// PendingChallenge exists while a bluff awaits resolution. It mirrors the
// challenge window; the window is authoritative.
type PendingChallenge struct {
	TurnID    string    `json:"turnId"`
	Position  int       `json:"position"`
	CardID    string    `json:"cardId"`
	PlacerID  string    `json:"placerId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is the aggregate root of one game.
type Session struct {
	SchemaVersion     int               `json:"schemaVersion"`
	ID                string            `json:"id"`
	Type              SessionType       `json:"type"`
	Status            Status            `json:"status"`
	DeckID            string            `json:"deckId"`
	DeckName          string            `json:"deckName"`
	DeckParameterName string            `json:"deckParameterName"`
	DeckParameterUnit string            `json:"deckParameterUnit"`
	Chain             Chain             `json:"chain"`
	UsedCardIDs       []string          `json:"usedCardIds"`
	AllCardIDs        []string          `json:"allCardIds"`
	Players           Players           `json:"players"`
	CurrentTurn       *CurrentTurn      `json:"currentTurn"`
	PendingChallenge  *PendingChallenge `json:"pendingChallenge"`
	ResolvedTurnID    string            `json:"resolvedTurnId,omitempty"` // last bluff settled; its window may linger
	ChatID            string            `json:"chatId,omitempty"`
	CreatedBy         string            `json:"createdBy"`
	MatchID           string            `json:"matchId,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`

	// Version is the storage version the session was read at. Not serialised.
	Version string `json:"-"`
}

// Clone deep-copies the session so a failed write attempt leaves the original untouched.
func (s *Session) Clone() *Session {
	out := *s
	out.Chain = s.Chain.Clone()
	out.UsedCardIDs = append([]string(nil), s.UsedCardIDs...)
	out.AllCardIDs = append([]string(nil), s.AllCardIDs...)
	out.Players = make(Players, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p
	}
	if s.CurrentTurn != nil {
		turn := *s.CurrentTurn
		out.CurrentTurn = &turn
	}
	if s.PendingChallenge != nil {
		pending := *s.PendingChallenge
		out.PendingChallenge = &pending
	}
	return &out
}

// IsTerminal reports whether the session no longer accepts mutations.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusFinished || s.Status == StatusAbandoned
}

// UsedSet returns the drawn card ids as a set.
func (s *Session) UsedSet() map[string]struct{} {
	used := make(map[string]struct{}, len(s.UsedCardIDs))
	for _, id := range s.UsedCardIDs {
		used[id] = struct{}{}
	}
	return used
}

// MarkUsed records cardID as drawn, keeping insertion order and uniqueness.
func (s *Session) MarkUsed(cardID string) {
	for _, id := range s.UsedCardIDs {
		if id == cardID {
			return
		}
	}
	s.UsedCardIDs = append(s.UsedCardIDs, cardID)
}

// RemainingCardIDs returns the undrawn card ids in deck order.
func (s *Session) RemainingCardIDs() []string {
	used := s.UsedSet()
	remaining := make([]string, 0, len(s.AllCardIDs))
	for _, id := range s.AllCardIDs {
		if _, ok := used[id]; !ok {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// PlayerOrder returns player ids sorted by turn order.
func (s *Session) PlayerOrder() []string {
	return s.Players.Ordered()
}

// AddPlayer seats userID after the existing players. It reports false if already seated.
func (s *Session) AddPlayer(userID string) bool {
	if _, ok := s.Players[userID]; ok {
		return false
	}
	next := 0
	for _, p := range s.Players {
		if p.TurnOrder >= next {
			next = p.TurnOrder + 1
		}
	}
	if s.Players == nil {
		s.Players = Players{}
	}
	s.Players[userID] = Player{TurnOrder: next}
	return true
}

// NextPlayerAfter returns the player whose turn follows userID.
// An unknown id hands the turn to the first player.
func (s *Session) NextPlayerAfter(userID string) string {
	order := s.PlayerOrder()
	if len(order) == 0 {
		return userID
	}
	for i, id := range order {
		if id == userID {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

// Ordered returns player ids by turn order, ties broken by id.
func (p Players) Ordered() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := p[ids[i]], p[ids[j]]
		if a.TurnOrder != b.TurnOrder {
			return a.TurnOrder < b.TurnOrder
		}
		return ids[i] < ids[j]
	})
	return ids
}
