package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"comparity/internal/domain"
	"comparity/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// CatalogCard is a card as stored in the catalog.
type CatalogCard struct {
	domain.Card
	Active bool `json:"isActive"`
}

// CatalogDeck is one catalog document: a deck and all of its cards.
type CatalogDeck struct {
	domain.Deck
	Active bool          `json:"isActive"`
	Cards  []CatalogCard `json:"cards"`
}

// NakamaCatalogAdapter reads decks from system-owned storage, one object per deck.
type NakamaCatalogAdapter struct {
	nk StorageAPI
}

func NewNakamaCatalogAdapter(nk StorageAPI) *NakamaCatalogAdapter {
	return &NakamaCatalogAdapter{nk: nk}
}

func (a *NakamaCatalogAdapter) GetDeck(ctx context.Context, deckID string) (*domain.Deck, error) {
	doc, err := a.read(ctx, deckID)
	if err != nil || doc == nil || !doc.Active {
		return nil, err
	}
	deck := doc.Deck
	return &deck, nil
}

// ListActiveCards returns the active cards ordered by value.
func (a *NakamaCatalogAdapter) ListActiveCards(ctx context.Context, deckID string) ([]domain.Card, error) {
	doc, err := a.read(ctx, deckID)
	if err != nil || doc == nil || !doc.Active {
		return nil, err
	}
	cards := make([]domain.Card, 0, len(doc.Cards))
	for _, c := range doc.Cards {
		if c.Active {
			cards = append(cards, c.Card)
		}
	}
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].HiddenValue < cards[j].HiddenValue })
	return cards, nil
}

// GetCardsByIDs looks cards up regardless of their active flag so retired
// cards already in play still resolve.
func (a *NakamaCatalogAdapter) GetCardsByIDs(ctx context.Context, deckID string, ids []string) ([]domain.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	doc, err := a.read(ctx, deckID)
	if err != nil || doc == nil {
		return nil, err
	}
	byID := make(map[string]domain.Card, len(doc.Cards))
	for _, c := range doc.Cards {
		byID[c.ID] = c.Card
	}
	cards := make([]domain.Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			cards = append(cards, c)
		}
	}
	return cards, nil
}

// Seed writes each deck unless a document for it already exists.
func (a *NakamaCatalogAdapter) Seed(ctx context.Context, decks []CatalogDeck) (int, error) {
	written := 0
	for _, deck := range decks {
		if deck.ID == "" {
			return written, fmt.Errorf("catalog deck without id")
		}
		_, err := writeObject(ctx, a.nk, collectionCatalog, deck.ID, systemUserID, "*", deck)
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("failed to seed deck %s: %w", deck.ID, err)
		}
		written++
	}
	return written, nil
}

func (a *NakamaCatalogAdapter) read(ctx context.Context, deckID string) (*CatalogDeck, error) {
	obj, err := readObject(ctx, a.nk, collectionCatalog, deckID, systemUserID)
	if err != nil || obj == nil {
		return nil, err
	}
	var doc CatalogDeck
	if err := json.Unmarshal([]byte(obj.GetValue()), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deck %s: %w", deckID, err)
	}
	return &doc, nil
}

// LoadCatalogFile reads seed decks from a JSON array.
func LoadCatalogFile(path string) ([]CatalogDeck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var decks []CatalogDeck
	if err := json.Unmarshal(data, &decks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return decks, nil
}

var _ ports.CatalogPort = (*NakamaCatalogAdapter)(nil)
