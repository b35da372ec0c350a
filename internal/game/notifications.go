package game

import (
	"math"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/state"
)

// Notification types published to transports.
const (
	NotificationTurnChanged  = "TURN_CHANGED"
	NotificationStateUpdated = "STATE_UPDATED"
	NotificationMatchEnded   = "MATCH_ENDED"
	NotificationTimerTick    = "TIMER_TICK"
)

// Notification is an outbound message for the participants of a match.
type Notification struct {
	Type      string                 `json:"type"`
	MatchID   string                 `json:"match_id"`
	PlayerID  string                 `json:"player_id,omitempty"` // recipient; empty broadcasts to every seat
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Broadcast reports whether every participant should receive n.
func (n Notification) Broadcast() bool {
	return n.PlayerID == ""
}

// NotificationHandler receives notifications in the order they were produced for a match.
type NotificationHandler func(notification Notification)

func turnChangedNotification(m *state.Match, now time.Time) Notification {
	current := ""
	if p := m.CurrentPlayer(); p != nil {
		current = p.UserID
	}
	return Notification{
		Type:      NotificationTurnChanged,
		MatchID:   m.ID,
		Timestamp: now,
		Data: map[string]interface{}{
			"current_player_id": current,
			"turn_started_at":   m.TurnStartedAt,
			"turn_generation":   m.TurnGeneration,
		},
	}
}

func stateUpdatedNotifications(m *state.Match, now time.Time) []Notification {
	out := make([]Notification, 0, len(m.Players))
	for _, p := range m.Players {
		out = append(out, Notification{
			Type:      NotificationStateUpdated,
			MatchID:   m.ID,
			PlayerID:  p.UserID,
			Timestamp: now,
			Data:      map[string]interface{}{"view": m.ViewFor(p.UserID, now)},
		})
	}
	return out
}

func matchEndedNotification(m *state.Match, reason string, now time.Time) Notification {
	data := map[string]interface{}{"status": m.Status}
	if m.Winner != nil {
		data["winner"] = *m.Winner
	}
	if reason != "" {
		data["reason"] = reason
	}
	return Notification{
		Type:      NotificationMatchEnded,
		MatchID:   m.ID,
		Timestamp: now,
		Data:      data,
	}
}

func timerTickNotification(m *state.Match, now time.Time) Notification {
	current := ""
	if p := m.CurrentPlayer(); p != nil {
		current = p.UserID
	}
	return Notification{
		Type:      NotificationTimerTick,
		MatchID:   m.ID,
		Timestamp: now,
		Data: map[string]interface{}{
			"seconds_left":      int(math.Ceil(m.TurnTimeLeft(now).Seconds())),
			"current_player_id": current,
			"turn_generation":   m.TurnGeneration,
		},
	}
}
