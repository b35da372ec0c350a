package rules

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startParams(players ...string) StartParams {
	seats := make([]Seat, len(players))
	for i, id := range players {
		seats[i] = Seat{UserID: id, Username: id + "-name"}
	}
	return StartParams{
		MatchID:             "m1",
		RoomID:              "r1",
		Players:             seats,
		MinPlayers:          2,
		MaxPlayers:          6,
		InitialHandSize:     3,
		TurnTimeLimit:       60 * time.Second,
		RequiredOrgansToWin: 4,
	}
}

func TestStartMatch(t *testing.T) {
	deck := cards.BuildDeck(cards.DefaultDistribution())
	m, events, err := StartMatch(startParams("alice", "bob", "carol"), deck, cards.NewRand(3), testNow)
	require.NoError(t, err)

	assert.Equal(t, state.StatusActive, m.Status)
	assert.Equal(t, uint64(1), m.TurnGeneration)
	assert.Equal(t, 60, m.TurnTimeLimitSeconds)
	assert.Equal(t, 69, m.DeckSize)
	assert.Len(t, m.Deck, 69-9)
	assert.Empty(t, m.DiscardPile)
	assert.Nil(t, m.Winner)
	for _, p := range m.Players {
		assert.Len(t, p.Hand, 3, p.UserID)
		assert.Empty(t, p.Organs, p.UserID)
		assert.True(t, p.IsActive)
	}
	assert.Equal(t, "bob-name", m.Players[1].Username)
	require.NoError(t, m.CheckInvariants())

	require.Len(t, events, 2)
	assert.Equal(t, EventMatchStarted, events[0].Type)
	assert.Equal(t, 3, events[0].Amount)
	assert.Equal(t, EventTurnChanged, events[1].Type)
	assert.Equal(t, m.CurrentPlayer().UserID, events[1].PlayerID)
}

func TestStartMatchDealsInTurnOrder(t *testing.T) {
	deck := cards.BuildDeck(cards.DefaultDistribution())
	expected := append([]cards.Card(nil), deck...)

	m, _, err := StartMatch(startParams("alice", "bob", "carol"), deck, cards.NewRand(11), testNow)
	require.NoError(t, err)

	// Replay the same random draws: shuffle first, then the first player.
	rng := cards.NewRand(11)
	cards.Shuffle(expected, rng)
	first := rng.IntN(3)
	require.Equal(t, first, m.CurrentPlayerIndex)

	top := len(expected) - 1
	for round := 0; round < 3; round++ {
		for offset := 0; offset < 3; offset++ {
			player := m.Players[(first+offset)%3]
			assert.Equal(t, expected[top].ID, player.Hand[round].ID, "round %d seat %s", round, player.UserID)
			top--
		}
	}
}

func TestStartMatchPicksRandomFirstPlayer(t *testing.T) {
	seen := make(map[int]bool)
	for seed := uint64(1); seed <= 40; seed++ {
		deck := cards.BuildDeck(cards.DefaultDistribution())
		m, _, err := StartMatch(startParams("a", "b", "c", "d"), deck, cards.NewRand(seed), testNow)
		require.NoError(t, err)
		seen[m.CurrentPlayerIndex] = true
	}
	assert.Greater(t, len(seen), 1, "first player never varies")
}

func TestStartMatchRejectsConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *StartParams)
	}{
		{"no players", func(p *StartParams) { p.Players = nil }},
		{"too few players", func(p *StartParams) { p.Players = p.Players[:1] }},
		{"too many players", func(p *StartParams) { p.MaxPlayers = 2 }},
		{"empty user id", func(p *StartParams) { p.Players[1].UserID = "" }},
		{"duplicate seat", func(p *StartParams) { p.Players[2].UserID = "alice" }},
		{"negative hand", func(p *StartParams) { p.InitialHandSize = -1 }},
		{"no organs to win", func(p *StartParams) { p.RequiredOrgansToWin = 0 }},
		{"short turn", func(p *StartParams) { p.TurnTimeLimit = 500 * time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := startParams("alice", "bob", "carol")
			tt.mutate(&p)
			m, events, err := StartMatch(p, cards.BuildDeck(cards.DefaultDistribution()), cards.NewRand(1), testNow)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "got %v", err)
			assert.Nil(t, m)
			assert.Nil(t, events)
		})
	}
}

func TestStartMatchRejectsSmallDeck(t *testing.T) {
	deck := fillerDeck(5)
	_, _, err := StartMatch(startParams("alice", "bob"), deck, cards.NewRand(1), testNow)
	require.True(t, errors.Is(err, ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), "cannot deal")

	_, _, err = StartMatch(startParams("alice", "bob"), fillerDeck(6), cards.NewRand(1), testNow)
	assert.NoError(t, err, "exactly enough cards")
}

func TestStartMatchSeatCounts(t *testing.T) {
	for n := 2; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("p%d", i)
			}
			m, _, err := StartMatch(startParams(ids...), cards.BuildDeck(cards.DefaultDistribution()), cards.NewRand(uint64(n)), testNow)
			require.NoError(t, err)
			assert.Len(t, m.Players, n)
			assert.Equal(t, m.DeckSize, m.CardCount())
			assert.NoError(t, m.CheckInvariants())
		})
	}
}
