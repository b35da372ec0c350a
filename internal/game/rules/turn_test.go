package rules

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
)

func threeSeats() *state.Match {
	return newTable(seat("alice", nil), seat("bob", nil), seat("carol", nil))
}

func TestAdvanceTurnRotation(t *testing.T) {
	m := threeSeats()

	for i, want := range []string{"bob", "carol", "alice", "bob"} {
		events := AdvanceTurn(m, testNow)
		if got := m.CurrentPlayer().UserID; got != want {
			t.Fatalf("advance %d: expected %s, got %s", i, want, got)
		}
		if len(events) != 1 || events[0].Type != EventTurnChanged {
			t.Fatalf("advance %d: expected one TURN_CHANGED event, got %+v", i, events)
		}
		if m.TurnGeneration != uint64(i+2) {
			t.Fatalf("advance %d: expected generation %d, got %d", i, i+2, m.TurnGeneration)
		}
	}
}

func TestAdvanceTurnSkipsInactive(t *testing.T) {
	m := threeSeats()
	m.Players[1].IsActive = false

	AdvanceTurn(m, testNow)
	if got := m.CurrentPlayer().UserID; got != "carol" {
		t.Fatalf("expected carol after skipping bob, got %s", got)
	}
	AdvanceTurn(m, testNow)
	if got := m.CurrentPlayer().UserID; got != "alice" {
		t.Fatalf("expected alice, got %s", got)
	}
	requireConsistent(t, m)
}

func TestAdvanceTurnAbandonsWithoutOpponents(t *testing.T) {
	m := newTable(seat("alice", nil), seat("bob", nil))
	m.Players[1].IsActive = false
	generation := m.TurnGeneration

	events := AdvanceTurn(m, testNow)

	if m.Status != state.StatusAbandoned {
		t.Fatalf("expected abandoned match, got %s", m.Status)
	}
	if m.Winner != nil {
		t.Fatal("abandoned match must not have a winner")
	}
	if !hasEvent(events, EventMatchAbandoned) {
		t.Fatalf("expected MATCH_ABANDONED, got %+v", events)
	}
	if m.TurnGeneration == generation {
		t.Fatal("abandoning must bump the turn generation")
	}
	requireConsistent(t, m)
}

func TestEndTurn(t *testing.T) {
	m := newTable(seat("alice", []cards.Card{organ("a1", cards.ColorRed)}), seat("bob", nil))

	out, err := EndTurn(m, "alice", nil, testEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CurrentPlayer().UserID != "bob" {
		t.Fatalf("expected bob to act, got %s", m.CurrentPlayer().UserID)
	}
	if m.LastAction == nil || m.LastAction.Action != state.ActionEndTurn || m.LastAction.PlayerID != "alice" {
		t.Fatalf("unexpected last action %+v", m.LastAction)
	}
	if !out.TurnChanged || !hasEvent(out.Events, EventTurnEnded) {
		t.Fatalf("expected TURN_ENDED and TURN_CHANGED, got %+v", out.Events)
	}
	if len(m.Players[0].Hand) != 1 {
		t.Fatalf("passing must not draw, hand has %d cards", len(m.Players[0].Hand))
	}
	requireConsistent(t, m)
}

func TestEndTurnDiscardsAndRedraws(t *testing.T) {
	m := newTable(
		seat("alice", []cards.Card{organ("a1", cards.ColorRed), organ("a2", cards.ColorBlue), organ("a3", cards.ColorGreen)}),
		seat("bob", nil),
	)

	out, err := EndTurn(m, "alice", []string{"a1", "a3"}, testEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hand := m.Players[0].Hand
	if len(hand) != 3 {
		t.Fatalf("expected hand refilled to 3, got %d", len(hand))
	}
	if hand[0].ID != "a2" {
		t.Fatalf("expected kept card first, got %s", hand[0].ID)
	}
	if len(m.DiscardPile) != 2 || m.DiscardPile[0].ID != "a1" || m.DiscardPile[1].ID != "a3" {
		t.Fatalf("unexpected discard pile %+v", m.DiscardPile)
	}
	var discarded *Event
	for i := range out.Events {
		if out.Events[i].Type == EventCardsDiscarded {
			discarded = &out.Events[i]
		}
	}
	if discarded == nil || discarded.Amount != 2 {
		t.Fatalf("expected CARDS_DISCARDED with amount 2, got %+v", discarded)
	}
	if !hasEvent(out.Events, EventCardsDrawn) {
		t.Fatal("expected CARDS_DRAWN")
	}
	requireConsistent(t, m)
}

func TestEndTurnRejects(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(m *state.Match)
		playerID string
		discard  []string
		want     error
	}{
		{"finished match", func(m *state.Match) { m.Status = state.StatusAbandoned }, "alice", nil, ErrMatchNotActive},
		{"not seated", nil, "carol", nil, ErrNotYourTurn},
		{"not current", nil, "bob", nil, ErrNotYourTurn},
		{"unknown discard", nil, "alice", []string{"ghost"}, ErrCardNotInHand},
		{"duplicate discard", nil, "alice", []string{"a1", "a1"}, ErrCardNotInHand},
		{"partially valid discard", nil, "alice", []string{"a1", "ghost"}, ErrCardNotInHand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTable(seat("alice", []cards.Card{organ("a1", cards.ColorRed)}), seat("bob", nil))
			if tt.setup != nil {
				tt.setup(m)
			}
			before := m.Clone()

			out, err := EndTurn(m, tt.playerID, tt.discard, testEnv())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if out != nil {
				t.Fatal("expected nil outcome on error")
			}
			if !reflect.DeepEqual(before, m) {
				t.Fatal("rejected end turn mutated the match")
			}
		})
	}
}

func TestExpireTurn(t *testing.T) {
	m := newTable(seat("alice", nil), seat("bob", nil))
	armed := m.TurnGeneration

	out := ExpireTurn(m, armed, testNow.Add(time.Minute))
	if out == nil {
		t.Fatal("expected the current turn to expire")
	}
	if m.CurrentPlayer().UserID != "bob" {
		t.Fatalf("expected bob to act, got %s", m.CurrentPlayer().UserID)
	}
	if m.LastAction.Action != state.ActionTimeout || m.LastAction.PlayerID != "alice" {
		t.Fatalf("unexpected last action %+v", m.LastAction)
	}
	if !hasEvent(out.Events, EventTurnTimedOut) || !out.TurnChanged {
		t.Fatalf("expected TURN_TIMED_OUT and TURN_CHANGED, got %+v", out.Events)
	}

	// A timer armed for alice's turn fires late: nothing happens.
	before := m.Clone()
	if out := ExpireTurn(m, armed, testNow.Add(2*time.Minute)); out != nil {
		t.Fatalf("stale expiry must be a no-op, got %+v", out)
	}
	if !reflect.DeepEqual(before, m) {
		t.Fatal("stale expiry mutated the match")
	}
}

func TestExpireTurnIgnoresFinishedMatch(t *testing.T) {
	m := newTable(seat("alice", nil), seat("bob", nil))
	if _, err := Abandon(m, "test", testNow); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if out := ExpireTurn(m, m.TurnGeneration, testNow); out != nil {
		t.Fatal("expiry after the match finished must be a no-op")
	}
}

func TestMarkInactiveOnOwnTurn(t *testing.T) {
	m := threeSeats()

	out, err := MarkInactive(m, "alice", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Players[0].IsActive {
		t.Fatal("alice should be inactive")
	}
	if m.CurrentPlayer().UserID != "bob" {
		t.Fatalf("expected bob to act, got %s", m.CurrentPlayer().UserID)
	}
	if m.LastAction.Action != state.ActionTimeout {
		t.Fatalf("expected timeout last action, got %s", m.LastAction.Action)
	}
	for _, want := range []EventType{EventPlayerLeft, EventTurnTimedOut, EventTurnChanged} {
		if !hasEvent(out.Events, want) {
			t.Fatalf("missing %s in %+v", want, out.Events)
		}
	}
	requireConsistent(t, m)

	// Alice is skipped until she returns.
	AdvanceTurn(m, testNow)
	AdvanceTurn(m, testNow)
	if m.CurrentPlayer().UserID != "bob" {
		t.Fatalf("expected rotation bob -> carol -> bob, got %s", m.CurrentPlayer().UserID)
	}
}

func TestMarkInactiveOffTurn(t *testing.T) {
	m := newTable(seat("alice", nil), seat("bob", nil))
	generation := m.TurnGeneration

	out, err := MarkInactive(m, "bob", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TurnChanged || m.TurnGeneration != generation {
		t.Fatal("marking another player inactive must not end the current turn")
	}

	again, err := MarkInactive(m, "bob", testNow)
	if err != nil || len(again.Events) != 0 {
		t.Fatalf("second mark should be a no-op, got %+v, %v", again, err)
	}

	// With bob gone, alice's turn ends the match.
	if _, err := EndTurn(m, "alice", nil, testEnv()); err != nil {
		t.Fatalf("end turn: %v", err)
	}
	if m.Status != state.StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", m.Status)
	}

	if _, err := MarkInactive(m, "carol", testNow); !errors.Is(err, ErrPlayerNotInMatch) {
		t.Fatalf("expected PLAYER_NOT_IN_MATCH, got %v", err)
	}
}

func TestMarkInactiveAfterMatchEnds(t *testing.T) {
	m := threeSeats()
	if _, err := Abandon(m, "room closed", testNow); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	before := m.Clone()

	out, err := MarkInactive(m, "alice", testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Events) != 0 || out.Finished {
		t.Fatalf("disconnect after the end must not produce events, got %+v", out.Events)
	}
	if !reflect.DeepEqual(before, m) {
		t.Fatal("disconnect after the end mutated the match")
	}
}

func TestMarkActive(t *testing.T) {
	m := threeSeats()
	m.Players[1].IsActive = false

	out, err := MarkActive(m, "bob", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Players[1].IsActive || !hasEvent(out.Events, EventPlayerRejoined) {
		t.Fatalf("bob should be active again, events %+v", out.Events)
	}
	if m.CurrentPlayer().UserID != "alice" {
		t.Fatal("reconnecting must not change the current player")
	}

	again, err := MarkActive(m, "bob", testNow)
	if err != nil || len(again.Events) != 0 {
		t.Fatalf("second mark should be a no-op, got %+v, %v", again, err)
	}

	if _, err := MarkActive(m, "dave", testNow); !errors.Is(err, ErrPlayerNotInMatch) {
		t.Fatalf("expected PLAYER_NOT_IN_MATCH, got %v", err)
	}

	m.Status = state.StatusAbandoned
	if _, err := MarkActive(m, "bob", testNow); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("expected MATCH_NOT_ACTIVE, got %v", err)
	}
}

func TestAbandon(t *testing.T) {
	m := newTable(seat("alice", nil), seat("bob", nil))

	out, err := Abandon(m, "server shutdown", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != state.StatusAbandoned || !out.Finished {
		t.Fatalf("expected abandoned match, got %s", m.Status)
	}
	if m.LastAction.Action != state.ActionAbandon {
		t.Fatalf("expected abandon last action, got %s", m.LastAction.Action)
	}
	if out.Events[0].Metadata["reason"] != "server shutdown" {
		t.Fatalf("expected reason metadata, got %+v", out.Events[0].Metadata)
	}
	requireConsistent(t, m)

	if _, err := Abandon(m, "again", testNow); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("expected MATCH_NOT_ACTIVE, got %v", err)
	}
}
