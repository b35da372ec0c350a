package rules

import (
	"fmt"
	"testing"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/elvirus/virus-server-go/internal/game/targeting"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func organ(id string, color cards.Color) cards.Card {
	return cards.Card{ID: id, Kind: cards.KindOrgan, Color: color, Name: id}
}

func pathogen(id string, color cards.Color) cards.Card {
	return cards.Card{ID: id, Kind: cards.KindPathogen, Color: color, Name: id}
}

func remedy(id string, color cards.Color) cards.Card {
	return cards.Card{ID: id, Kind: cards.KindRemedy, Color: color, Name: id}
}

func treatment(id string, effect cards.TreatmentEffect) cards.Card {
	return cards.Card{ID: id, Kind: cards.KindTreatment, Color: cards.ColorNone, Effect: effect, Name: id}
}

func slot(c cards.Card, status state.OrganStatus, attachments ...cards.Card) *state.OrganSlot {
	s := &state.OrganSlot{Card: c, Status: status}
	if len(attachments) > 0 {
		s.Attachments = attachments
	}
	return s
}

func seat(id string, hand []cards.Card, organs ...*state.OrganSlot) *state.Player {
	if hand == nil {
		hand = []cards.Card{}
	}
	if organs == nil {
		organs = []*state.OrganSlot{}
	}
	return &state.Player{UserID: id, Username: id, Hand: hand, Organs: organs, IsActive: true}
}

func fillerDeck(n int) []cards.Card {
	deck := make([]cards.Card, n)
	for i := range deck {
		deck[i] = remedy(fmt.Sprintf("deck-%d", i), cards.ColorYellow)
	}
	return deck
}

// newTable seats players with alice (the first seat) to act and a ten-card filler deck.
func newTable(players ...*state.Player) *state.Match {
	m := &state.Match{
		ID:                   "m1",
		RoomID:               "r1",
		Players:              players,
		Deck:                 fillerDeck(10),
		DiscardPile:          []cards.Card{},
		TurnGeneration:       1,
		TurnStartedAt:        testNow,
		TurnTimeLimitSeconds: 60,
		RequiredOrgansToWin:  4,
		Status:               state.StatusActive,
		CreatedAt:            testNow,
		UpdatedAt:            testNow,
	}
	m.DeckSize = m.CardCount()
	return m
}

func testEnv() Env {
	return Env{Now: testNow.Add(5 * time.Second), Rand: cards.NewRand(1)}
}

func onOrgan(organID string) targeting.Target {
	return targeting.Target{Organs: []targeting.OrganRef{{OrganID: organID}}}
}

func onPlayer(userID string) targeting.Target {
	return targeting.Target{PlayerID: userID}
}

func onPair(own, other string) targeting.Target {
	return targeting.Target{Organs: []targeting.OrganRef{{OrganID: own}, {OrganID: other}}}
}

func play(playerID, cardID string, target targeting.Target) Action {
	return Action{PlayerID: playerID, CardID: cardID, Target: target}
}

func requireConsistent(t *testing.T, m *state.Match) {
	t.Helper()
	require.NoError(t, m.CheckInvariants())
	require.Equal(t, m.DeckSize, m.CardCount())
}

func mustApply(t *testing.T, m *state.Match, a Action) *Outcome {
	t.Helper()
	out, err := Apply(m, a, testEnv())
	require.NoError(t, err)
	requireConsistent(t, m)
	return out
}

func passTurn(t *testing.T, m *state.Match) {
	t.Helper()
	_, err := EndTurn(m, m.CurrentPlayer().UserID, nil, testEnv())
	require.NoError(t, err)
}

func hasEvent(events []Event, eventType EventType) bool {
	for _, evt := range events {
		if evt.Type == eventType {
			return true
		}
	}
	return false
}
