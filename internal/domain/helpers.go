package domain

import "math/rand"

// ApplyScore returns a copy of players with delta added to playerID's score.
// A missing player is seated after everyone else with a zero score first.
func ApplyScore(players Players, playerID string, delta int) Players {
	out := make(Players, len(players)+1)
	next := 0
	for id, p := range players {
		out[id] = p
		if p.TurnOrder >= next {
			next = p.TurnOrder + 1
		}
	}
	p, ok := out[playerID]
	if !ok {
		p = Player{Score: 0, TurnOrder: next}
	}
	p.Score += delta
	out[playerID] = p
	return out
}

// GetWinners returns every player holding the top score, in turn order.
func GetWinners(players Players) []string {
	if len(players) == 0 {
		return []string{}
	}
	ordered := players.Ordered()
	best := players[ordered[0]].Score
	for _, id := range ordered[1:] {
		if s := players[id].Score; s > best {
			best = s
		}
	}
	winners := make([]string, 0, len(ordered))
	for _, id := range ordered {
		if players[id].Score == best {
			winners = append(winners, id)
		}
	}
	return winners
}

// DrawCard picks uniformly among deck cards not in used. It returns nil when none remain.
func DrawCard(deck []Card, used map[string]struct{}, rng *rand.Rand) *Card {
	available := make([]Card, 0, len(deck))
	for _, c := range deck {
		if _, ok := used[c.ID]; !ok {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return nil
	}
	card := available[rng.Intn(len(available))]
	return &card
}

// ShuffleCards returns a shuffled copy of the given cards.
func ShuffleCards(cards []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
