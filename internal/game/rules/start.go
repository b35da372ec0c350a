package rules

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
)

// Seat is a player joining a match at start.
type Seat struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// StartParams configures a new match.
type StartParams struct {
	MatchID             string
	RoomID              string
	Players             []Seat
	MinPlayers          int
	MaxPlayers          int
	InitialHandSize     int
	TurnTimeLimit       time.Duration
	RequiredOrgansToWin int
}

func (p StartParams) validate() error {
	if len(p.Players) == 0 || len(p.Players) < p.MinPlayers || len(p.Players) > p.MaxPlayers {
		return newError(KindInvalidConfiguration, "need %d-%d players, got %d", p.MinPlayers, p.MaxPlayers, len(p.Players)).
			with("players", strconv.Itoa(len(p.Players)))
	}
	seen := make(map[string]bool, len(p.Players))
	for _, seat := range p.Players {
		if seat.UserID == "" {
			return newError(KindInvalidConfiguration, "player without user id")
		}
		if seen[seat.UserID] {
			return newError(KindInvalidConfiguration, "player %s seated twice", seat.UserID)
		}
		seen[seat.UserID] = true
	}
	if p.InitialHandSize < 0 {
		return newError(KindInvalidConfiguration, "negative initial hand size %d", p.InitialHandSize)
	}
	if p.RequiredOrgansToWin < 1 {
		return newError(KindInvalidConfiguration, "required organs to win must be positive")
	}
	if p.TurnTimeLimit < time.Second {
		return newError(KindInvalidConfiguration, "turn time limit %s below one second", p.TurnTimeLimit)
	}
	return nil
}

// StartMatch shuffles deck, seats the players, picks a random first player and deals the
// opening hands in turn order. deck is consumed.
func StartMatch(p StartParams, deck []cards.Card, rng *rand.Rand, now time.Time) (*state.Match, []Event, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}
	now = now.UTC()

	m := &state.Match{
		ID:                   p.MatchID,
		RoomID:               p.RoomID,
		Players:              make([]*state.Player, len(p.Players)),
		Deck:                 cards.Shuffle(deck, rng),
		DiscardPile:          []cards.Card{},
		CurrentPlayerIndex:   rng.IntN(len(p.Players)),
		TurnGeneration:       1,
		TurnStartedAt:        now,
		TurnTimeLimitSeconds: int(p.TurnTimeLimit / time.Second),
		RequiredOrgansToWin:  p.RequiredOrgansToWin,
		DeckSize:             len(deck),
		Status:               state.StatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	for i, seat := range p.Players {
		m.Players[i] = &state.Player{
			UserID:   seat.UserID,
			Username: seat.Username,
			Hand:     []cards.Card{},
			Organs:   []*state.OrganSlot{},
			IsActive: true,
		}
	}

	for round := 0; round < p.InitialHandSize; round++ {
		for offset := range m.Players {
			player := m.Players[(m.CurrentPlayerIndex+offset)%len(m.Players)]
			if len(m.Deck) == 0 {
				return nil, nil, newError(KindInvalidConfiguration,
					"deck of %d cards cannot deal %d cards to %d players", len(deck), p.InitialHandSize, len(p.Players))
			}
			player.Hand = append(player.Hand, m.Deck[len(m.Deck)-1])
			m.Deck = m.Deck[:len(m.Deck)-1]
		}
	}

	current := m.CurrentPlayer()
	events := []Event{
		NewEventWithAmount(EventMatchStarted, m.ID, current.UserID, m.RoomID, "", len(m.Players), now),
		NewEventWithAmount(EventTurnChanged, m.ID, current.UserID, "", "", int(m.TurnGeneration), now),
	}
	return m, events, nil
}
