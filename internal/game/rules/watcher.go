package rules

import (
	"sort"
	"sync"
)

// WatcherScope says whether a watcher follows the whole match or one seat.
type WatcherScope int

const (
	WatcherScopeMatch WatcherScope = iota
	WatcherScopePlayer
)

var scopeNames = map[WatcherScope]string{
	WatcherScopeMatch:  "MATCH",
	WatcherScopePlayer: "PLAYER",
}

func (ws WatcherScope) String() string {
	if name, ok := scopeNames[ws]; ok {
		return name
	}
	return "UNKNOWN"
}

// Watcher observes every event of one match and raises a flag when its condition holds.
// Analytics are built from watchers registered per match.
type Watcher interface {
	Watch(event Event)
	Reset()
	ConditionMet() bool
	GetScope() WatcherScope
	GetKey() string
	// Copy returns an independent watcher; later events on either side do not leak.
	Copy() Watcher
}

// BaseWatcher holds the bookkeeping shared by concrete watchers. Embed it and implement
// Watch and Copy.
type BaseWatcher struct {
	scope        WatcherScope
	controllerID string
	key          string
	condition    bool
}

func NewBaseWatcher(scope WatcherScope) *BaseWatcher {
	return &BaseWatcher{scope: scope}
}

func (bw *BaseWatcher) GetScope() WatcherScope { return bw.scope }

// SetControllerID binds a PLAYER scope watcher to a seat.
func (bw *BaseWatcher) SetControllerID(id string) { bw.controllerID = id }

func (bw *BaseWatcher) GetControllerID() string { return bw.controllerID }

func (bw *BaseWatcher) ConditionMet() bool { return bw.condition }

func (bw *BaseWatcher) SetCondition(condition bool) { bw.condition = condition }

func (bw *BaseWatcher) Reset() { bw.condition = false }

func (bw *BaseWatcher) GetKey() string { return bw.key }

func (bw *BaseWatcher) SetKey(key string) { bw.key = key }

// controlled is implemented by watchers that follow a single player.
type controlled interface {
	GetControllerID() string
}

// registryKey prefixes player scoped keys with the controller so one watcher type can be
// registered once per seat.
func registryKey(w Watcher) string {
	if w.GetScope() != WatcherScopePlayer {
		return w.GetKey()
	}
	if c, ok := w.(controlled); ok && c.GetControllerID() != "" {
		return c.GetControllerID() + "_" + w.GetKey()
	}
	return w.GetKey()
}

// WatcherRegistry holds the watchers of one match.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
}

func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{watchers: make(map[string]Watcher)}
}

// AddWatcher registers w, replacing any watcher under the same key. Nil is ignored.
func (wr *WatcherRegistry) AddWatcher(w Watcher) {
	if w == nil {
		return
	}
	key := registryKey(w)
	wr.mu.Lock()
	wr.watchers[key] = w
	wr.mu.Unlock()
}

func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	delete(wr.watchers, key)
	wr.mu.Unlock()
}

// GetWatcher returns nil for an unknown key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// Keys lists the registry keys in sorted order.
func (wr *WatcherRegistry) Keys() []string {
	wr.mu.RLock()
	keys := make([]string, 0, len(wr.watchers))
	for key := range wr.watchers {
		keys = append(keys, key)
	}
	wr.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (wr *WatcherRegistry) ResetWatchers() {
	wr.each(func(w Watcher) { w.Reset() })
}

// NotifyWatchers hands the event to every watcher; each one filters for itself.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.each(func(w Watcher) { w.Watch(event) })
}

func (wr *WatcherRegistry) each(fn func(Watcher)) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, w := range wr.watchers {
		fn(w)
	}
}
