package server

import (
	"sync"

	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 256

// Hub fans engine notifications out to the transports. Each subscriber receives the broadcasts
// of its match plus the notifications addressed to its player. A subscriber whose buffer is full
// is dropped and its channel closed.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu      sync.RWMutex
	matches map[string]map[*Subscription]bool
}

// Subscription is one registered receiver.
type Subscription struct {
	ID       string
	MatchID  string
	PlayerID string

	hub    *Hub
	send   chan game.Notification
	closed bool // guarded by hub.mu
}

// NewHub creates a hub. A non-positive buffer uses the default of 256 notifications.
func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		logger:  logger,
		buffer:  buffer,
		matches: make(map[string]map[*Subscription]bool),
	}
}

// Subscribe registers playerID's interest in matchID.
func (h *Hub) Subscribe(matchID, playerID string) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		MatchID:  matchID,
		PlayerID: playerID,
		hub:      h,
		send:     make(chan game.Notification, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.matches[matchID]
	if !ok {
		subs = make(map[*Subscription]bool)
		h.matches[matchID] = subs
	}
	subs[sub] = true

	h.logger.Debug("subscriber registered",
		zap.String("subscription_id", sub.ID),
		zap.String("match_id", matchID),
		zap.String("player_id", playerID),
	)
	return sub
}

// C returns the receive channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan game.Notification {
	return s.send
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}

func (h *Hub) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.send)
	if subs, ok := h.matches[sub.MatchID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.matches, sub.MatchID)
		}
	}
}

// Publish delivers n without blocking. It is installed as the engine's notification handler.
func (h *Hub) Publish(n game.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.matches[n.MatchID] {
		if !n.Broadcast() && sub.PlayerID != n.PlayerID {
			continue
		}
		select {
		case sub.send <- n:
		default:
			h.logger.Warn("dropping slow subscriber",
				zap.String("subscription_id", sub.ID),
				zap.String("match_id", sub.MatchID),
				zap.String("player_id", sub.PlayerID),
				zap.String("notification", n.Type),
			)
			h.removeLocked(sub)
		}
	}
}

// SubscriberCount returns the number of live subscriptions for matchID.
func (h *Hub) SubscriberCount(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// CloseAll ends every subscription.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.matches {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}
