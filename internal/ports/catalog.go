package ports

import (
	"context"

	"comparity/internal/domain"
)

// CatalogPort is the read-only deck catalog.
type CatalogPort interface {
	// GetDeck returns the deck or nil if the id is unknown.
	GetDeck(ctx context.Context, deckID string) (*domain.Deck, error)

	// ListActiveCards returns the deck's playable cards.
	ListActiveCards(ctx context.Context, deckID string) ([]domain.Card, error)

	// GetCardsByIDs returns the cards of the deck whose ids are listed. Unknown ids are skipped.
	GetCardsByIDs(ctx context.Context, deckID string, ids []string) ([]domain.Card, error)
}
