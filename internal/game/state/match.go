package state

import (
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
)

// Status is the lifecycle stage of a match.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Finished reports whether the match reached a terminal state.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// OrganStatus is the health of an organ slot.
type OrganStatus string

const (
	OrganHealthy OrganStatus = "healthy"
	// OrganVaccinated is a healthy organ carrying one remedy.
	OrganVaccinated OrganStatus = "vaccinated"
	OrganInfected   OrganStatus = "infected"
	// OrganImmunized carries two remedies and can no longer be infected.
	OrganImmunized OrganStatus = "immunized"
)

// Intact reports whether the organ counts as healthy for winning, theft and exchange.
func (s OrganStatus) Intact() bool {
	return s == OrganHealthy || s == OrganVaccinated || s == OrganImmunized
}

// OrganSlot is one organ on a player's body. The organ card itself is the slot.
type OrganSlot struct {
	Card        cards.Card   `json:"card"`
	Status      OrganStatus  `json:"status"`
	Attachments []cards.Card `json:"attachments"`
}

// ID returns the slot id, which is the organ card id.
func (o *OrganSlot) ID() string {
	return o.Card.ID
}

// Color returns the organ color.
func (o *OrganSlot) Color() cards.Color {
	return o.Card.Color
}

// Player is a seat in a match.
type Player struct {
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Hand     []cards.Card `json:"hand"`
	Organs   []*OrganSlot `json:"organs"`
	IsActive bool         `json:"is_active"`
}

// OrganIndex returns the index of the organ slot with the given id, or -1.
func (p *Player) OrganIndex(organID string) int {
	for i, organ := range p.Organs {
		if organ.ID() == organID {
			return i
		}
	}
	return -1
}

// Organ returns the organ slot with the given id.
func (p *Player) Organ(organID string) (*OrganSlot, bool) {
	if i := p.OrganIndex(organID); i >= 0 {
		return p.Organs[i], true
	}
	return nil, false
}

// HasColor reports whether the player already holds an organ of exactly this color.
// The slot identified by exceptID, if any, is ignored.
func (p *Player) HasColor(color cards.Color, exceptID string) bool {
	for _, organ := range p.Organs {
		if organ.ID() == exceptID {
			continue
		}
		if organ.Color() == color {
			return true
		}
	}
	return false
}

// IntactOrganCount counts organs that are healthy, vaccinated or immunized.
func (p *Player) IntactOrganCount() int {
	count := 0
	for _, organ := range p.Organs {
		if organ.Status.Intact() {
			count++
		}
	}
	return count
}

// Winner identifies the player who completed a match.
type Winner struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// ActionType tags the last effect applied to a match.
type ActionType string

const (
	ActionPlayOrgan     ActionType = "play_organ"
	ActionPlayPathogen  ActionType = "play_pathogen"
	ActionPlayRemedy    ActionType = "play_remedy"
	ActionOrganTheft    ActionType = "organ_theft"
	ActionOrganExchange ActionType = "organ_exchange"
	ActionTransplant    ActionType = "transplant"
	ActionDiscardHand   ActionType = "discard_hand"
	ActionDrawThree     ActionType = "draw_three"
	ActionMedicalError  ActionType = "medical_error"
	ActionSpreading     ActionType = "spreading"
	ActionEndTurn       ActionType = "end_turn"
	ActionTimeout       ActionType = "timeout"
	ActionAbandon       ActionType = "abandon"
)

// LastAction records the most recent effect for audit and UI replay.
type LastAction struct {
	PlayerID  string     `json:"player_id"`
	Action    ActionType `json:"action"`
	CardID    string     `json:"card_id,omitempty"`
	TargetID  string     `json:"target_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Match is the aggregate root for one game session.
type Match struct {
	ID                   string       `json:"id"`
	RoomID               string       `json:"room_id"`
	Players              []*Player    `json:"players"`
	Deck                 []cards.Card `json:"deck"`
	DiscardPile          []cards.Card `json:"discard_pile"`
	CurrentPlayerIndex   int          `json:"current_player_index"`
	TurnGeneration       uint64       `json:"turn_generation"`
	TurnStartedAt        time.Time    `json:"turn_started_at"`
	TurnTimeLimitSeconds int          `json:"turn_time_limit_seconds"`
	RequiredOrgansToWin  int          `json:"required_organs_to_win"`
	DeckSize             int          `json:"deck_size"`
	Status               Status       `json:"status"`
	Winner               *Winner      `json:"winner"`
	LastAction           *LastAction  `json:"last_action"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// PlayerIndex returns the seat index of userID, or -1.
func (m *Match) PlayerIndex(userID string) int {
	for i, p := range m.Players {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// Player returns the seat for userID.
func (m *Match) Player(userID string) (*Player, bool) {
	if i := m.PlayerIndex(userID); i >= 0 {
		return m.Players[i], true
	}
	return nil, false
}

// HasPlayer reports whether userID holds a seat.
func (m *Match) HasPlayer(userID string) bool {
	return m.PlayerIndex(userID) >= 0
}

// OrganOwner returns the user currently holding the organ slot.
func (m *Match) OrganOwner(organID string) (string, bool) {
	for _, p := range m.Players {
		if p.OrganIndex(organID) >= 0 {
			return p.UserID, true
		}
	}
	return "", false
}

// CurrentPlayer returns the player whose turn it is, or nil for an empty match.
func (m *Match) CurrentPlayer() *Player {
	if m.CurrentPlayerIndex < 0 || m.CurrentPlayerIndex >= len(m.Players) {
		return nil
	}
	return m.Players[m.CurrentPlayerIndex]
}

// TopDiscard returns the most recently discarded card.
func (m *Match) TopDiscard() (cards.Card, bool) {
	if len(m.DiscardPile) == 0 {
		return cards.Card{}, false
	}
	return m.DiscardPile[len(m.DiscardPile)-1], true
}

// Discard pushes cards onto the discard pile in order.
func (m *Match) Discard(discarded ...cards.Card) {
	m.DiscardPile = append(m.DiscardPile, discarded...)
}

// TurnDeadline is the instant the current turn times out.
func (m *Match) TurnDeadline() time.Time {
	return m.TurnStartedAt.Add(time.Duration(m.TurnTimeLimitSeconds) * time.Second)
}

// TurnTimeLeft returns the remaining turn time at now, never negative.
func (m *Match) TurnTimeLeft(now time.Time) time.Duration {
	left := m.TurnDeadline().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
