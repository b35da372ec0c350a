package watchers

import (
	"github.com/elvirus/virus-server-go/internal/game/rules"
)

// CardsPlayedWatcher tracks cards played by players.
type CardsPlayedWatcher struct {
	*rules.BaseWatcher
	cardsPlayed map[string][]string // playerID -> list of card IDs
}

// NewCardsPlayedWatcher creates a new cards played watcher.
func NewCardsPlayedWatcher() *CardsPlayedWatcher {
	w := &CardsPlayedWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch),
		cardsPlayed: make(map[string][]string),
	}
	w.SetKey("CardsPlayedWatcher")
	return w
}

// Watch implements the Watcher interface.
func (w *CardsPlayedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCardPlayed || event.PlayerID == "" || event.SourceID == "" {
		return
	}
	w.cardsPlayed[event.PlayerID] = append(w.cardsPlayed[event.PlayerID], event.SourceID)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CardsPlayedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.cardsPlayed = make(map[string][]string)
}

// GetCardsPlayed returns the IDs of the cards a player has played, in order.
func (w *CardsPlayedWatcher) GetCardsPlayed(playerID string) []string {
	return w.cardsPlayed[playerID]
}

// GetCount returns the number of cards played by a player.
func (w *CardsPlayedWatcher) GetCount(playerID string) int {
	return len(w.cardsPlayed[playerID])
}

// Copy creates a copy of this watcher.
func (w *CardsPlayedWatcher) Copy() rules.Watcher {
	copy := NewCardsPlayedWatcher()
	copy.SetControllerID(w.GetControllerID())
	copy.SetCondition(w.ConditionMet())
	for k, v := range w.cardsPlayed {
		copy.cardsPlayed[k] = append([]string(nil), v...)
	}
	return copy
}

// OrgansDestroyedWatcher tracks organs destroyed by a second pathogen.
type OrgansDestroyedWatcher struct {
	*rules.BaseWatcher
	destroyedBy map[string]int // attacking playerID -> count
	lostBy      map[string]int // ownerID -> count
}

// NewOrgansDestroyedWatcher creates a new organs destroyed watcher.
func NewOrgansDestroyedWatcher() *OrgansDestroyedWatcher {
	w := &OrgansDestroyedWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch),
		destroyedBy: make(map[string]int),
		lostBy:      make(map[string]int),
	}
	w.SetKey("OrgansDestroyedWatcher")
	return w
}

// Watch implements the Watcher interface.
func (w *OrgansDestroyedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventOrganDestroyed {
		return
	}
	if event.PlayerID != "" {
		w.destroyedBy[event.PlayerID]++
	}
	if ownerID := event.Metadata["owner_id"]; ownerID != "" {
		w.lostBy[ownerID]++
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *OrgansDestroyedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.destroyedBy = make(map[string]int)
	w.lostBy = make(map[string]int)
}

// GetDestroyedBy returns how many organs a player destroyed.
func (w *OrgansDestroyedWatcher) GetDestroyedBy(playerID string) int {
	return w.destroyedBy[playerID]
}

// GetLostBy returns how many organs a player lost.
func (w *OrgansDestroyedWatcher) GetLostBy(ownerID string) int {
	return w.lostBy[ownerID]
}

// GetTotalAmount returns the total number of organs destroyed.
func (w *OrgansDestroyedWatcher) GetTotalAmount() int {
	total := 0
	for _, count := range w.destroyedBy {
		total += count
	}
	return total
}

// Copy creates a copy of this watcher.
func (w *OrgansDestroyedWatcher) Copy() rules.Watcher {
	copy := NewOrgansDestroyedWatcher()
	copy.SetControllerID(w.GetControllerID())
	copy.SetCondition(w.ConditionMet())
	for k, v := range w.destroyedBy {
		copy.destroyedBy[k] = v
	}
	for k, v := range w.lostBy {
		copy.lostBy[k] = v
	}
	return copy
}

// CardsDrawnWatcher tracks cards drawn by players.
type CardsDrawnWatcher struct {
	*rules.BaseWatcher
	cardsDrawn map[string]int // playerID -> count
}

// NewCardsDrawnWatcher creates a new cards drawn watcher.
func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	w := &CardsDrawnWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch),
		cardsDrawn:  make(map[string]int),
	}
	w.SetKey("CardsDrawnWatcher")
	return w
}

// Watch implements the Watcher interface. A single event may carry several cards.
func (w *CardsDrawnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCardsDrawn || event.PlayerID == "" {
		return
	}
	w.cardsDrawn[event.PlayerID] += event.Amount
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CardsDrawnWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.cardsDrawn = make(map[string]int)
}

// GetCount returns the number of cards drawn by a player.
func (w *CardsDrawnWatcher) GetCount(playerID string) int {
	return w.cardsDrawn[playerID]
}

// Copy creates a copy of this watcher.
func (w *CardsDrawnWatcher) Copy() rules.Watcher {
	copy := NewCardsDrawnWatcher()
	copy.SetControllerID(w.GetControllerID())
	copy.SetCondition(w.ConditionMet())
	for k, v := range w.cardsDrawn {
		copy.cardsDrawn[k] = v
	}
	return copy
}

// OrgansPlacedWatcher tracks organs put into play.
type OrgansPlacedWatcher struct {
	*rules.BaseWatcher
	organsPlaced map[string][]string // playerID -> list of organ IDs
}

// NewOrgansPlacedWatcher creates a new organs placed watcher.
func NewOrgansPlacedWatcher() *OrgansPlacedWatcher {
	w := &OrgansPlacedWatcher{
		BaseWatcher:  rules.NewBaseWatcher(rules.WatcherScopeMatch),
		organsPlaced: make(map[string][]string),
	}
	w.SetKey("OrgansPlacedWatcher")
	return w
}

// Watch implements the Watcher interface.
func (w *OrgansPlacedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventOrganPlaced || event.PlayerID == "" {
		return
	}
	organID := event.TargetID
	if organID == "" {
		organID = event.SourceID
	}
	if organID == "" {
		return
	}
	w.organsPlaced[event.PlayerID] = append(w.organsPlaced[event.PlayerID], organID)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *OrgansPlacedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.organsPlaced = make(map[string][]string)
}

// GetOrgansPlaced returns the organ IDs a player has put into play.
func (w *OrgansPlacedWatcher) GetOrgansPlaced(playerID string) []string {
	return w.organsPlaced[playerID]
}

// Copy creates a copy of this watcher.
func (w *OrgansPlacedWatcher) Copy() rules.Watcher {
	copy := NewOrgansPlacedWatcher()
	copy.SetControllerID(w.GetControllerID())
	copy.SetCondition(w.ConditionMet())
	for k, v := range w.organsPlaced {
		copy.organsPlaced[k] = append([]string(nil), v...)
	}
	return copy
}
