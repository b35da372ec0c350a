package state

import (
	"errors"
	"fmt"

	"github.com/elvirus/virus-server-go/internal/game/cards"
)

// CardCount returns the number of cards in every container of the match.
func (m *Match) CardCount() int {
	total := len(m.Deck) + len(m.DiscardPile)
	for _, p := range m.Players {
		total += len(p.Hand)
		for _, organ := range p.Organs {
			total += 1 + len(organ.Attachments)
		}
	}
	return total
}

// CheckInvariants verifies the structural rules every persisted or in-memory match must obey
// and returns all violations joined into one error.
func (m *Match) CheckInvariants() error {
	var errs []error

	seen := make(map[string]string)
	track := func(where string, c cards.Card) {
		if prev, ok := seen[c.ID]; ok {
			errs = append(errs, fmt.Errorf("card %s in both %s and %s", c.ID, prev, where))
			return
		}
		seen[c.ID] = where
	}
	for _, c := range m.Deck {
		track("deck", c)
	}
	for _, c := range m.DiscardPile {
		track("discard", c)
	}
	for _, p := range m.Players {
		for _, c := range p.Hand {
			track("hand of "+p.UserID, c)
		}
		colors := make(map[cards.Color]bool)
		for _, organ := range p.Organs {
			track("body of "+p.UserID, organ.Card)
			for _, c := range organ.Attachments {
				track("organ "+organ.ID(), c)
			}
			if organ.Card.Kind != cards.KindOrgan {
				errs = append(errs, fmt.Errorf("slot %s of %s holds a %s card", organ.ID(), p.UserID, organ.Card.Kind))
			}
			if colors[organ.Color()] {
				errs = append(errs, fmt.Errorf("player %s holds two %s organs", p.UserID, organ.Color()))
			}
			colors[organ.Color()] = true
			if err := checkSlot(organ); err != nil {
				errs = append(errs, fmt.Errorf("organ %s of %s: %w", organ.ID(), p.UserID, err))
			}
		}
	}

	if m.DeckSize > 0 && len(seen) != m.DeckSize {
		errs = append(errs, fmt.Errorf("card count %d does not match deck size %d", len(seen), m.DeckSize))
	}

	if (m.Winner != nil) != (m.Status == StatusCompleted) {
		errs = append(errs, fmt.Errorf("winner set=%t but status is %s", m.Winner != nil, m.Status))
	}

	if m.Status == StatusActive {
		current := m.CurrentPlayer()
		switch {
		case current == nil:
			errs = append(errs, fmt.Errorf("current player index %d out of range", m.CurrentPlayerIndex))
		case !current.IsActive:
			errs = append(errs, fmt.Errorf("current player %s is inactive", current.UserID))
		}
	}

	return errors.Join(errs...)
}

func checkSlot(organ *OrganSlot) error {
	pathogens, remedies := 0, 0
	for _, c := range organ.Attachments {
		switch c.Kind {
		case cards.KindPathogen:
			pathogens++
		case cards.KindRemedy:
			remedies++
		default:
			return fmt.Errorf("%s card %s attached", c.Kind, c.ID)
		}
	}

	var wantPathogens, wantRemedies int
	switch organ.Status {
	case OrganHealthy:
	case OrganInfected:
		wantPathogens = 1
	case OrganVaccinated:
		wantRemedies = 1
	case OrganImmunized:
		wantRemedies = 2
	default:
		return fmt.Errorf("unknown status %q", organ.Status)
	}
	if pathogens != wantPathogens || remedies != wantRemedies {
		return fmt.Errorf("status %s with %d pathogens and %d remedies", organ.Status, pathogens, remedies)
	}
	return nil
}
