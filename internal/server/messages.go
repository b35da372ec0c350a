package server

import (
	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/elvirus/virus-server-go/internal/game/targeting"
	"github.com/elvirus/virus-server-go/internal/game/watchers"
	"github.com/elvirus/virus-server-go/internal/repository"
)

// StartMatchRequest opens a match for a room. Seat order is turn order.
type StartMatchRequest struct {
	MatchID string       `json:"match_id,omitempty"`
	RoomID  string       `json:"room_id"`
	Players []rules.Seat `json:"players"`
}

// StartMatchResponse carries one ticket per seat, keyed by user id.
type StartMatchResponse struct {
	MatchID         string            `json:"match_id"`
	CurrentPlayerID string            `json:"current_player_id"`
	TurnGeneration  uint64            `json:"turn_generation"`
	Tickets         map[string]string `json:"tickets"`
}

// PlayCardRequest plays one card from the caller's hand. MatchID may be omitted; the ticket
// names the match.
type PlayCardRequest struct {
	MatchID string           `json:"match_id,omitempty"`
	CardID  string           `json:"card_id"`
	Kind    cards.Kind       `json:"kind,omitempty"`
	Target  targeting.Target `json:"target"`
}

// EndTurnRequest ends the caller's turn, optionally discarding and redrawing cards first.
type EndTurnRequest struct {
	MatchID    string   `json:"match_id,omitempty"`
	DiscardIDs []string `json:"discard_ids,omitempty"`
}

// MarkDisconnectedRequest takes the caller out of the turn rotation.
type MarkDisconnectedRequest struct {
	MatchID string `json:"match_id,omitempty"`
}

// GetStateRequest asks for the caller's view.
type GetStateRequest struct {
	MatchID string `json:"match_id,omitempty"`
}

// StateResponse is the caller's redacted view after an operation.
type StateResponse struct {
	View state.PlayerView `json:"view"`
}

// WatchRequest subscribes the caller to the notifications of their match.
type WatchRequest struct {
	MatchID string `json:"match_id,omitempty"`
}

// AbandonMatchRequest force-finishes a match.
type AbandonMatchRequest struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason,omitempty"`
}

// AbandonMatchResponse is empty on success.
type AbandonMatchResponse struct{}

// ListMatchesRequest filters stored matches by status. Zero values match everything.
type ListMatchesRequest struct {
	Status state.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// ListMatchesResponse lists stored match summaries, most recently updated first.
type ListMatchesResponse struct {
	Matches []repository.MatchSummary `json:"matches"`
}

// GetAnalyticsRequest asks for the event statistics of a live match.
type GetAnalyticsRequest struct {
	MatchID string `json:"match_id"`
}

// GetAnalyticsResponse wraps the statistics.
type GetAnalyticsResponse struct {
	Stats watchers.MatchStats `json:"stats"`
}

// Event is one streamed notification.
type Event = game.Notification
