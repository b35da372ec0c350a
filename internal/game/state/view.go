package state

import (
	"math"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
)

// OrganView is the public face of an organ slot.
type OrganView struct {
	ID          string       `json:"id"`
	Color       cards.Color  `json:"color"`
	Status      OrganStatus  `json:"status"`
	Attachments []cards.Card `json:"attachments"`
}

// PlayerSummary is what every participant may see about a seat.
type PlayerSummary struct {
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	HandCount int         `json:"hand_count"`
	Organs    []OrganView `json:"organs"`
	IsActive  bool        `json:"is_active"`
	IsCurrent bool        `json:"is_current"`
}

// PlayerView is the redacted match state sent to one player. Other players' hands are reduced
// to counts and only the top of the discard pile is revealed.
type PlayerView struct {
	MatchID             string          `json:"match_id"`
	RoomID              string          `json:"room_id"`
	Status              Status          `json:"status"`
	ViewerID            string          `json:"viewer_id"`
	Hand                []cards.Card    `json:"hand"`
	Players             []PlayerSummary `json:"players"`
	CurrentPlayerID     string          `json:"current_player_id"`
	TurnGeneration      uint64          `json:"turn_generation"`
	TurnStartedAt       time.Time       `json:"turn_started_at"`
	TurnTimeLeftSeconds int             `json:"turn_time_left_seconds"`
	DeckCount           int             `json:"deck_count"`
	DiscardCount        int             `json:"discard_count"`
	TopDiscard          *cards.Card     `json:"top_discard,omitempty"`
	RequiredOrgansToWin int             `json:"required_organs_to_win"`
	Winner              *Winner         `json:"winner,omitempty"`
	LastAction          *LastAction     `json:"last_action,omitempty"`
}

// ViewFor builds the redacted view for viewerID at now. The view shares no memory with the match.
func (m *Match) ViewFor(viewerID string, now time.Time) PlayerView {
	view := PlayerView{
		MatchID:             m.ID,
		RoomID:              m.RoomID,
		Status:              m.Status,
		ViewerID:            viewerID,
		Hand:                []cards.Card{},
		Players:             make([]PlayerSummary, 0, len(m.Players)),
		TurnGeneration:      m.TurnGeneration,
		TurnStartedAt:       m.TurnStartedAt,
		DeckCount:           len(m.Deck),
		DiscardCount:        len(m.DiscardPile),
		RequiredOrgansToWin: m.RequiredOrgansToWin,
	}

	for i, p := range m.Players {
		summary := PlayerSummary{
			UserID:    p.UserID,
			Username:  p.Username,
			HandCount: len(p.Hand),
			Organs:    make([]OrganView, 0, len(p.Organs)),
			IsActive:  p.IsActive,
			IsCurrent: i == m.CurrentPlayerIndex && m.Status == StatusActive,
		}
		for _, organ := range p.Organs {
			summary.Organs = append(summary.Organs, OrganView{
				ID:          organ.ID(),
				Color:       organ.Color(),
				Status:      organ.Status,
				Attachments: append([]cards.Card{}, organ.Attachments...),
			})
		}
		view.Players = append(view.Players, summary)
		if p.UserID == viewerID {
			view.Hand = append(view.Hand, p.Hand...)
		}
	}

	if m.Status == StatusActive {
		if current := m.CurrentPlayer(); current != nil {
			view.CurrentPlayerID = current.UserID
		}
		view.TurnTimeLeftSeconds = int(math.Ceil(m.TurnTimeLeft(now).Seconds()))
	}
	if top, ok := m.TopDiscard(); ok {
		view.TopDiscard = &top
	}
	if m.Winner != nil {
		w := *m.Winner
		view.Winner = &w
	}
	if m.LastAction != nil {
		la := *m.LastAction
		view.LastAction = &la
	}
	return view
}
