package state

import "github.com/elvirus/virus-server-go/internal/game/cards"

// Clone returns a deep copy of the match. Nil and empty slices are preserved as they are.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	out := *m
	out.Deck = cloneCards(m.Deck)
	out.DiscardPile = cloneCards(m.DiscardPile)
	if m.Players != nil {
		out.Players = make([]*Player, len(m.Players))
		for i, p := range m.Players {
			out.Players[i] = p.Clone()
		}
	}
	if m.Winner != nil {
		w := *m.Winner
		out.Winner = &w
	}
	if m.LastAction != nil {
		la := *m.LastAction
		out.LastAction = &la
	}
	return &out
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	out := *p
	out.Hand = cloneCards(p.Hand)
	if p.Organs != nil {
		out.Organs = make([]*OrganSlot, len(p.Organs))
		for i, organ := range p.Organs {
			slot := *organ
			slot.Attachments = cloneCards(organ.Attachments)
			out.Organs[i] = &slot
		}
	}
	return &out
}

func cloneCards(in []cards.Card) []cards.Card {
	if in == nil {
		return nil
	}
	out := make([]cards.Card, len(in))
	copy(out, in)
	return out
}
