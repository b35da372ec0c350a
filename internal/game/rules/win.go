package rules

import (
	"time"

	"github.com/elvirus/virus-server-go/internal/game/state"
)

// EvaluateWin returns the first player in seat order with at least RequiredOrgansToWin intact
// organs, or nil. Only one body changes per action, so ties cannot arise in practice; seat order
// decides them anyway.
func EvaluateWin(m *state.Match) *state.Winner {
	for _, p := range m.Players {
		if p.IntactOrganCount() >= m.RequiredOrgansToWin {
			return &state.Winner{UserID: p.UserID, Username: p.Username}
		}
	}
	return nil
}

func complete(m *state.Match, w *state.Winner, now time.Time) []Event {
	m.Status = state.StatusCompleted
	m.Winner = w
	m.TurnGeneration++
	m.UpdatedAt = now
	evt := NewEvent(EventMatchCompleted, m.ID, w.UserID, "", "", now)
	evt.Metadata["winner_username"] = w.Username
	return []Event{evt}
}
