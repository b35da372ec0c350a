package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(id string, kind cards.Kind, color cards.Color) cards.Card {
	return cards.Card{ID: id, Kind: kind, Color: color, Name: id}
}

// midGameMatch builds a two-player match with organs in every status.
func midGameMatch() *Match {
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	alice := &Player{
		UserID:   "alice",
		Username: "Alice",
		Hand:     []cards.Card{card("p-blue", cards.KindPathogen, cards.ColorBlue), card("r-red", cards.KindRemedy, cards.ColorRed)},
		Organs: []*OrganSlot{
			{Card: card("o-red", cards.KindOrgan, cards.ColorRed), Status: OrganHealthy},
			{Card: card("o-green", cards.KindOrgan, cards.ColorGreen), Status: OrganInfected,
				Attachments: []cards.Card{card("p-green", cards.KindPathogen, cards.ColorGreen)}},
		},
		IsActive: true,
	}
	bob := &Player{
		UserID:   "bob",
		Username: "Bob",
		Hand:     []cards.Card{card("o-yellow", cards.KindOrgan, cards.ColorYellow)},
		Organs: []*OrganSlot{
			{Card: card("o-blue", cards.KindOrgan, cards.ColorBlue), Status: OrganVaccinated,
				Attachments: []cards.Card{card("r-blue", cards.KindRemedy, cards.ColorBlue)}},
			{Card: card("o-multi", cards.KindOrgan, cards.ColorMulti), Status: OrganImmunized,
				Attachments: []cards.Card{card("r-multi", cards.KindRemedy, cards.ColorMulti), card("r-green", cards.KindRemedy, cards.ColorGreen)}},
		},
		IsActive: true,
	}
	m := &Match{
		ID:                   "match-1",
		RoomID:               "room-1",
		Players:              []*Player{alice, bob},
		Deck:                 []cards.Card{card("p-red", cards.KindPathogen, cards.ColorRed), card("o-red-2", cards.KindOrgan, cards.ColorRed)},
		DiscardPile:          []cards.Card{card("r-yellow", cards.KindRemedy, cards.ColorYellow)},
		CurrentPlayerIndex:   1,
		TurnGeneration:       7,
		TurnStartedAt:        now,
		TurnTimeLimitSeconds: 60,
		RequiredOrgansToWin:  4,
		Status:               StatusActive,
		LastAction:           &LastAction{PlayerID: "alice", Action: ActionPlayPathogen, CardID: "p-green", TargetID: "o-green", Timestamp: now},
		CreatedAt:            now.Add(-time.Hour),
		UpdatedAt:            now,
	}
	m.DeckSize = m.CardCount()
	return m
}

func TestMidGameMatchIsValid(t *testing.T) {
	m := midGameMatch()
	require.NoError(t, m.CheckInvariants())
	assert.Equal(t, 14, m.DeckSize)
}

func TestCheckInvariantsDetectsViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Match)
		want   string
	}{
		{"duplicate card", func(m *Match) {
			m.Deck = append(m.Deck, m.DiscardPile[0])
		}, "in both"},
		{"lost card", func(m *Match) {
			m.Deck = m.Deck[:1]
		}, "does not match deck size"},
		{"two organs of one color", func(m *Match) {
			m.Players[0].Organs[1].Card.Color = cards.ColorRed
		}, "two red organs"},
		{"winner without completion", func(m *Match) {
			m.Winner = &Winner{UserID: "alice"}
		}, "winner set=true"},
		{"completion without winner", func(m *Match) {
			m.Status = StatusCompleted
		}, "winner set=false"},
		{"inactive current player", func(m *Match) {
			m.Players[1].IsActive = false
		}, "inactive"},
		{"pointer out of range", func(m *Match) {
			m.CurrentPlayerIndex = 5
		}, "out of range"},
		{"status without attachments", func(m *Match) {
			m.Players[1].Organs[1].Attachments = m.Players[1].Organs[1].Attachments[:1]
			m.Deck = append(m.Deck, card("r-green", cards.KindRemedy, cards.ColorGreen))
		}, "status immunized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := midGameMatch()
			tt.mutate(m)
			err := m.CheckInvariants()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInactiveCurrentPlayerAllowedWhenAbandoned(t *testing.T) {
	m := midGameMatch()
	for _, p := range m.Players {
		p.IsActive = false
	}
	m.Status = StatusAbandoned
	assert.NoError(t, m.CheckInvariants())
}

func TestReshuffleOnEmptyDeck(t *testing.T) {
	discard := []cards.Card{
		card("d0", cards.KindRemedy, cards.ColorRed),
		card("d1", cards.KindRemedy, cards.ColorBlue),
		card("d2", cards.KindRemedy, cards.ColorGreen),
		card("d3", cards.KindRemedy, cards.ColorYellow),
		card("d4", cards.KindRemedy, cards.ColorMulti),
	}
	p := &Player{UserID: "alice", IsActive: true}
	m := &Match{Players: []*Player{p}, DiscardPile: append([]cards.Card(nil), discard...)}

	drawn, reshuffled, ok := m.DrawCard(cards.NewRand(1))
	require.True(t, ok)
	assert.True(t, reshuffled)
	assert.Contains(t, discard[:4], drawn)

	assert.Len(t, m.Deck, 3)
	assert.Equal(t, []cards.Card{discard[4]}, m.DiscardPile)
	assert.ElementsMatch(t, discard[:4], append(append([]cards.Card{}, m.Deck...), drawn))
}

func TestReshuffleKeepsTopDiscard(t *testing.T) {
	discard := []cards.Card{
		card("d0", cards.KindRemedy, cards.ColorRed),
		card("d1", cards.KindRemedy, cards.ColorBlue),
		card("d2", cards.KindRemedy, cards.ColorGreen),
		card("d3", cards.KindRemedy, cards.ColorYellow),
		card("d4", cards.KindRemedy, cards.ColorMulti),
	}
	m := &Match{DiscardPile: append([]cards.Card(nil), discard...)}

	require.True(t, m.Reshuffle(cards.NewRand(3)))
	assert.Len(t, m.Deck, 4)
	assert.Equal(t, []cards.Card{discard[4]}, m.DiscardPile)
	assert.ElementsMatch(t, discard[:4], m.Deck)
}

func TestDrawIntoStopsWhenExhausted(t *testing.T) {
	p := &Player{UserID: "alice"}
	m := &Match{
		Players:     []*Player{p},
		Deck:        []cards.Card{card("a", cards.KindOrgan, cards.ColorRed)},
		DiscardPile: []cards.Card{card("b", cards.KindOrgan, cards.ColorBlue), card("top", cards.KindOrgan, cards.ColorGreen)},
	}

	result := m.DrawInto(p, 3, cards.NewRand(1))
	assert.True(t, result.Exhausted())
	assert.Len(t, result.Drawn, 2)
	assert.Equal(t, 1, result.Reshuffles)
	assert.Len(t, p.Hand, 2)
	assert.Empty(t, m.Deck)
	assert.Equal(t, "top", m.DiscardPile[0].ID)

	_, _, ok := m.DrawCard(cards.NewRand(1))
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	m := midGameMatch()
	c := m.Clone()
	require.Equal(t, m, c)

	c.Players[0].Hand[0].ID = "changed"
	c.Players[1].Organs[0].Status = OrganInfected
	c.Players[1].Organs[0].Attachments[0].ID = "changed"
	c.Deck[0].ID = "changed"
	c.LastAction.CardID = "changed"

	assert.Equal(t, "p-blue", m.Players[0].Hand[0].ID)
	assert.Equal(t, OrganVaccinated, m.Players[1].Organs[0].Status)
	assert.Equal(t, "r-blue", m.Players[1].Organs[0].Attachments[0].ID)
	assert.Equal(t, "p-red", m.Deck[0].ID)
	assert.Equal(t, "p-green", m.LastAction.CardID)
}

func TestRoundTripPersistence(t *testing.T) {
	m := midGameMatch()

	data, err := Marshal(m)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
	assert.NoError(t, decoded.CheckInvariants())

	again, err := Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, data, again)

	require.NoError(t, ValidateRoundtrip(m))
}

func TestUnmarshalRejectsBrokenRecord(t *testing.T) {
	m := midGameMatch()
	m.Deck = append(m.Deck, m.Deck[0])
	data, err := json.Marshal(m)
	require.NoError(t, err)

	_, err = Unmarshal(data)
	assert.ErrorContains(t, err, "violates invariants")

	_, err = Unmarshal([]byte("{"))
	assert.Error(t, err)
}

func TestChecksumIgnoresTimestamps(t *testing.T) {
	m := midGameMatch()
	before := m.ComputeChecksum()

	c := m.Clone()
	c.UpdatedAt = c.UpdatedAt.Add(time.Minute)
	c.LastAction.Timestamp = time.Time{}
	assert.Equal(t, before, c.ComputeChecksum())
	assert.True(t, c.VerifyChecksum(before))

	c.Deck[0], c.Deck[1] = c.Deck[1], c.Deck[0]
	assert.NotEqual(t, before.Hash, c.ComputeChecksum().Hash)
	assert.False(t, c.VerifyChecksum(before))
}

func TestViewForRedactsHiddenInformation(t *testing.T) {
	m := midGameMatch()
	now := m.TurnStartedAt.Add(15 * time.Second)

	view := m.ViewFor("alice", now)
	assert.Equal(t, m.Players[0].Hand, view.Hand)
	assert.Equal(t, "bob", view.CurrentPlayerID)
	assert.Equal(t, 45, view.TurnTimeLeftSeconds)
	assert.Equal(t, 2, view.DeckCount)
	assert.Equal(t, 1, view.DiscardCount)
	require.NotNil(t, view.TopDiscard)
	assert.Equal(t, "r-yellow", view.TopDiscard.ID)

	require.Len(t, view.Players, 2)
	assert.Equal(t, 1, view.Players[1].HandCount)
	assert.True(t, view.Players[1].IsCurrent)
	assert.Len(t, view.Players[1].Organs, 2)

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "o-yellow", "bob's hand must not leak")
	assert.NotContains(t, string(data), "p-red", "deck contents must not leak")

	outsider := m.ViewFor("carol", now)
	assert.Empty(t, outsider.Hand)
}

func TestViewForFinishedMatch(t *testing.T) {
	m := midGameMatch()
	m.Status = StatusCompleted
	m.Winner = &Winner{UserID: "bob", Username: "Bob"}

	view := m.ViewFor("bob", m.TurnStartedAt.Add(2*time.Minute))
	assert.Equal(t, "", view.CurrentPlayerID)
	assert.Equal(t, 0, view.TurnTimeLeftSeconds)
	require.NotNil(t, view.Winner)
	assert.Equal(t, "bob", view.Winner.UserID)
}

func TestPlayerHelpers(t *testing.T) {
	m := midGameMatch()
	alice, ok := m.Player("alice")
	require.True(t, ok)
	assert.True(t, alice.HasColor(cards.ColorRed, ""))
	assert.False(t, alice.HasColor(cards.ColorRed, "o-red"))
	assert.Equal(t, 1, alice.IntactOrganCount())

	owner, ok := m.OrganOwner("o-multi")
	require.True(t, ok)
	assert.Equal(t, "bob", owner)
	assert.False(t, m.HasPlayer("carol"))

	assert.Equal(t, m.TurnStartedAt.Add(time.Minute), m.TurnDeadline())
	assert.Equal(t, time.Duration(0), m.TurnTimeLeft(m.TurnStartedAt.Add(2*time.Minute)))
}
