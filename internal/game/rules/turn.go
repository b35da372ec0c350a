package rules

import (
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/state"
)

// AdvanceTurn passes the turn to the next active player in seat order, skipping inactive seats.
// When no other player is active the match is abandoned. Every advance bumps the turn
// generation so clocks armed for the previous turn become stale.
func AdvanceTurn(m *state.Match, now time.Time) []Event {
	now = now.UTC()
	n := len(m.Players)
	for step := 1; step < n; step++ {
		idx := (m.CurrentPlayerIndex + step) % n
		next := m.Players[idx]
		if !next.IsActive {
			continue
		}
		m.CurrentPlayerIndex = idx
		m.TurnGeneration++
		m.TurnStartedAt = now
		m.UpdatedAt = now
		return []Event{NewEventWithAmount(EventTurnChanged, m.ID, next.UserID, "", "", int(m.TurnGeneration), now)}
	}
	return abandon(m, now, "no active opponent left")
}

func abandon(m *state.Match, now time.Time, reason string) []Event {
	m.Status = state.StatusAbandoned
	m.TurnGeneration++
	m.UpdatedAt = now
	evt := NewEvent(EventMatchAbandoned, m.ID, "", "", "", now)
	evt.Metadata["reason"] = reason
	return []Event{evt}
}

// EndTurn ends playerID's turn. Cards listed in discardIDs are first moved from the player's
// hand to the discard pile and replaced with fresh draws.
func EndTurn(m *state.Match, playerID string, discardIDs []string, env Env) (*Outcome, error) {
	if m.Status != state.StatusActive {
		return nil, newError(KindMatchNotActive, "match is %s", m.Status)
	}
	// An unseated caller is rejected the same way Apply rejects it.
	player := m.CurrentPlayer()
	if player == nil || player.UserID != playerID {
		err := newError(KindNotYourTurn, "it is not %s's turn", playerID)
		if player != nil {
			err.with("current_player_id", player.UserID)
		}
		return nil, err
	}
	seen := make(map[string]bool, len(discardIDs))
	for _, id := range discardIDs {
		if seen[id] || cards.IndexOf(player.Hand, id) < 0 {
			return nil, newError(KindCardNotInHand, "card %s is not in your hand", id).withCard(id, "")
		}
		seen[id] = true
	}
	env = env.normalize()

	out := &Outcome{}
	if len(discardIDs) > 0 {
		for _, id := range discardIDs {
			idx := cards.IndexOf(player.Hand, id)
			m.Discard(player.Hand[idx])
			player.Hand = cards.Remove(player.Hand, idx)
		}
		out.add(NewEventWithAmount(EventCardsDiscarded, m.ID, playerID, "", "", len(discardIDs), env.Now))
		out.add(drawEvents(m, player, len(discardIDs), env)...)
	}

	m.LastAction = &state.LastAction{PlayerID: playerID, Action: state.ActionEndTurn, Timestamp: env.Now}
	out.add(NewEventWithAmount(EventTurnEnded, m.ID, playerID, "", "", int(m.TurnGeneration), env.Now))
	out.add(AdvanceTurn(m, env.Now)...)
	return out, nil
}

// ExpireTurn forces the turn of the given generation to end. A stale generation or a finished
// match is a silent no-op and returns nil.
func ExpireTurn(m *state.Match, generation uint64, now time.Time) *Outcome {
	if m.Status != state.StatusActive || m.TurnGeneration != generation {
		return nil
	}
	now = now.UTC()
	current := m.CurrentPlayer()

	out := &Outcome{}
	m.LastAction = &state.LastAction{PlayerID: current.UserID, Action: state.ActionTimeout, Timestamp: now}
	out.add(NewEventWithAmount(EventTurnTimedOut, m.ID, current.UserID, "", "", int(generation), now))
	out.add(AdvanceTurn(m, now)...)
	return out
}

// MarkInactive takes userID out of the turn rotation. If it was their turn, the turn is
// forfeited as a timeout. Marking an inactive player again, or any player of a finished match,
// changes nothing.
func MarkInactive(m *state.Match, userID string, now time.Time) (*Outcome, error) {
	idx := m.PlayerIndex(userID)
	if idx < 0 {
		return nil, newError(KindPlayerNotInMatch, "%s is not seated in this match", userID)
	}
	player := m.Players[idx]
	out := &Outcome{}
	if !player.IsActive || m.Status.Finished() {
		return out, nil
	}
	now = now.UTC()

	player.IsActive = false
	m.UpdatedAt = now
	out.add(NewEvent(EventPlayerLeft, m.ID, userID, "", "", now))

	if m.Status == state.StatusActive && idx == m.CurrentPlayerIndex {
		m.LastAction = &state.LastAction{PlayerID: userID, Action: state.ActionTimeout, Timestamp: now}
		out.add(NewEventWithAmount(EventTurnTimedOut, m.ID, userID, "", "", int(m.TurnGeneration), now))
		out.add(AdvanceTurn(m, now)...)
	}
	return out, nil
}

// MarkActive returns a reconnected player to the rotation. It is idempotent.
func MarkActive(m *state.Match, userID string, now time.Time) (*Outcome, error) {
	if m.Status != state.StatusActive {
		return nil, newError(KindMatchNotActive, "match is %s", m.Status)
	}
	player, ok := m.Player(userID)
	if !ok {
		return nil, newError(KindPlayerNotInMatch, "%s is not seated in this match", userID)
	}
	out := &Outcome{}
	if player.IsActive {
		return out, nil
	}
	now = now.UTC()
	player.IsActive = true
	m.UpdatedAt = now
	out.add(NewEvent(EventPlayerRejoined, m.ID, userID, "", "", now))
	return out, nil
}

// Abandon force-finishes an active match without a winner.
func Abandon(m *state.Match, reason string, now time.Time) (*Outcome, error) {
	if m.Status != state.StatusActive {
		return nil, newError(KindMatchNotActive, "match is %s", m.Status)
	}
	now = now.UTC()
	m.LastAction = &state.LastAction{Action: state.ActionAbandon, Timestamp: now}
	out := &Outcome{}
	out.add(abandon(m, now, reason)...)
	return out, nil
}
