package state

import (
	"math/rand/v2"

	"github.com/elvirus/virus-server-go/internal/game/cards"
)

// DrawResult summarizes a multi-card draw.
type DrawResult struct {
	Requested  int
	Drawn      []cards.Card
	Reshuffles int
}

// Exhausted reports whether fewer cards were drawn than requested.
func (r DrawResult) Exhausted() bool {
	return len(r.Drawn) < r.Requested
}

// Reshuffle moves every discarded card except the top one into the deck and shuffles it.
// It reports false when there is nothing to move.
func (m *Match) Reshuffle(rng *rand.Rand) bool {
	if len(m.DiscardPile) <= 1 {
		return false
	}
	top := m.DiscardPile[len(m.DiscardPile)-1]
	moved := m.DiscardPile[:len(m.DiscardPile)-1]

	deck := make([]cards.Card, 0, len(m.Deck)+len(moved))
	deck = append(deck, m.Deck...)
	deck = append(deck, moved...)
	m.Deck = cards.Shuffle(deck, rng)
	m.DiscardPile = []cards.Card{top}
	return true
}

// DrawCard pops the top of the deck, reshuffling the discard pile first when the deck is
// empty. ok is false when neither deck nor discard-minus-top has a card.
func (m *Match) DrawCard(rng *rand.Rand) (card cards.Card, reshuffled bool, ok bool) {
	if len(m.Deck) == 0 {
		if !m.Reshuffle(rng) {
			return cards.Card{}, false, false
		}
		reshuffled = true
	}
	card = m.Deck[len(m.Deck)-1]
	m.Deck = m.Deck[:len(m.Deck)-1]
	return card, reshuffled, true
}

// DrawInto draws up to n cards into the player's hand, stopping early when the deck and
// discard pile are exhausted.
func (m *Match) DrawInto(p *Player, n int, rng *rand.Rand) DrawResult {
	result := DrawResult{Requested: n}
	for i := 0; i < n; i++ {
		card, reshuffled, ok := m.DrawCard(rng)
		if reshuffled {
			result.Reshuffles++
		}
		if !ok {
			break
		}
		p.Hand = append(p.Hand, card)
		result.Drawn = append(result.Drawn, card)
	}
	return result
}
