package rules

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Match lifecycle events
	EventMatchStarted   EventType = "MATCH_STARTED"
	EventMatchCompleted EventType = "MATCH_COMPLETED"
	EventMatchAbandoned EventType = "MATCH_ABANDONED"

	// Turn events
	EventTurnChanged    EventType = "TURN_CHANGED"
	EventTurnEnded      EventType = "TURN_ENDED"
	EventTurnTimedOut   EventType = "TURN_TIMED_OUT"
	EventPlayerLeft     EventType = "PLAYER_DISCONNECTED"
	EventPlayerRejoined EventType = "PLAYER_RECONNECTED"

	// Card events
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventCardsDrawn     EventType = "CARDS_DRAWN"
	EventCardsDiscarded EventType = "CARDS_DISCARDED"
	EventDeckReshuffled EventType = "DECK_RESHUFFLED"
	EventDeckExhausted  EventType = "DECK_EXHAUSTED"

	// Organ events
	EventOrganPlaced      EventType = "ORGAN_PLACED"
	EventOrganInfected    EventType = "ORGAN_INFECTED"
	EventVaccineDestroyed EventType = "VACCINE_DESTROYED"
	EventOrganDestroyed   EventType = "ORGAN_DESTROYED"
	EventOrganVaccinated  EventType = "ORGAN_VACCINATED"
	EventOrganImmunized   EventType = "ORGAN_IMMUNIZED"
	EventOrganCured       EventType = "ORGAN_CURED"

	// Treatment events
	EventOrganStolen     EventType = "ORGAN_STOLEN"
	EventOrgansExchanged EventType = "ORGANS_EXCHANGED"
	EventHandDiscarded   EventType = "HAND_DISCARDED"
	EventHandsSwapped    EventType = "HANDS_SWAPPED"
	EventInfectionSpread EventType = "INFECTION_SPREAD"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type      EventType
	ID        string            // Unique event ID
	MatchID   string            // Match the event belongs to
	PlayerID  string            // Acting or affected player
	TargetID  string            // Organ or player the event applies to
	SourceID  string            // Card that caused the event
	Amount    int               // Card counts, turn generation, etc.
	Timestamp time.Time         // When the event occurred
	Metadata  map[string]string // Additional metadata
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener              // All listeners
	typedListeners map[EventType][]TypedListener // Listeners filtered by event type
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle, typed or not.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, matchID, playerID, targetID, sourceID string, at time.Time) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		MatchID:   matchID,
		PlayerID:  playerID,
		TargetID:  targetID,
		SourceID:  sourceID,
		Timestamp: at,
		Metadata:  make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, matchID, playerID, targetID, sourceID string, amount int, at time.Time) Event {
	evt := NewEvent(eventType, matchID, playerID, targetID, sourceID, at)
	evt.Amount = amount
	return evt
}
