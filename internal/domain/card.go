package domain

// Card is a catalog card as dealt to a player.
type Card struct {
	ID           string  `json:"cardId"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	HiddenValue  float64 `json:"hiddenValue"`
	DisplayValue string  `json:"displayValue"`
	FlavorText   string  `json:"flavorText,omitempty"`
}

// Deck describes the parameter a deck's cards are ordered by.
type Deck struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ParameterName string `json:"parameterName"`
	ParameterUnit string `json:"parameterUnit"`
}

// Placement is a card laid on the chain. Only IsFaceDown may change after creation.
type Placement struct {
	CardID       string  `json:"cardId"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	HiddenValue  float64 `json:"hiddenValue"`
	DisplayValue string  `json:"displayValue"`
	IsFaceDown   bool    `json:"isFaceDown"`
	PlacedBy     string  `json:"placedBy,omitempty"` // empty for the starting card
}

// Chain is the ordered board. Revealed placements read left to right never decrease.
type Chain []Placement

// NewPlacement builds a chain entry for card.
func NewPlacement(card Card, isFaceDown bool, placedBy string) Placement {
	return Placement{
		CardID:       card.ID,
		Title:        card.Title,
		Subtitle:     card.Subtitle,
		ImageURL:     card.ImageURL,
		HiddenValue:  card.HiddenValue,
		DisplayValue: card.DisplayValue,
		IsFaceDown:   isFaceDown,
		PlacedBy:     placedBy,
	}
}

// Clone returns a copy that shares no backing array with c.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	out := make(Chain, len(c))
	copy(out, c)
	return out
}

// IndexOf returns the position of cardID in the chain or -1.
func (c Chain) IndexOf(cardID string) int {
	for i, p := range c {
		if p.CardID == cardID {
			return i
		}
	}
	return -1
}
