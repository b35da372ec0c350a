package watchers

import (
	"time"

	"github.com/elvirus/virus-server-go/internal/game/rules"
)

// PlayerStats are the per-player counters of a match.
type PlayerStats struct {
	CardsPlayed     int `json:"cards_played"`
	Infections      int `json:"infections"`
	OrgansDestroyed int `json:"organs_destroyed"`
	OrgansLost      int `json:"organs_lost"`
	Cures           int `json:"cures"`
	Thefts          int `json:"thefts"`
	Timeouts        int `json:"timeouts"`
}

// MatchStats summarizes a match.
type MatchStats struct {
	MatchID       string                  `json:"match_id"`
	Turns         int                     `json:"turns"`
	CardsPlayed   int                     `json:"cards_played"`
	Infections    int                     `json:"infections"`
	Destroyed     int                     `json:"organs_destroyed"`
	Cures         int                     `json:"cures"`
	Thefts        int                     `json:"thefts"`
	Timeouts      int                     `json:"timeouts"`
	Reshuffles    int                     `json:"reshuffles"`
	Exhaustions   int                     `json:"deck_exhaustions"`
	DurationSecs  float64                 `json:"duration_seconds"`
	AvgTurnSecs   float64                 `json:"avg_turn_seconds"`
	Players       map[string]*PlayerStats `json:"players"`
	Finished      bool                    `json:"finished"`
	WinnerID      string                  `json:"winner_id,omitempty"`
	AbandonReason string                  `json:"abandon_reason,omitempty"`
	// Partial is set when counting started after a restart; counters then cover only the
	// events since ResumedAt.
	Partial   bool      `json:"partial,omitempty"`
	ResumedAt *time.Time `json:"resumed_at,omitempty"`
}

// MatchStatsWatcher aggregates match analytics from the event stream.
type MatchStatsWatcher struct {
	*rules.BaseWatcher
	stats     MatchStats
	startedAt time.Time
	lastEvent time.Time
}

// NewMatchStatsWatcher creates a stats watcher for one match.
func NewMatchStatsWatcher(matchID string) *MatchStatsWatcher {
	w := &MatchStatsWatcher{BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch)}
	w.SetKey("MatchStatsWatcher")
	w.stats = MatchStats{MatchID: matchID, Players: make(map[string]*PlayerStats)}
	return w
}

func (w *MatchStatsWatcher) player(id string) *PlayerStats {
	ps, ok := w.stats.Players[id]
	if !ok {
		ps = &PlayerStats{}
		w.stats.Players[id] = ps
	}
	return ps
}

// Watch implements the Watcher interface.
func (w *MatchStatsWatcher) Watch(event rules.Event) {
	if event.MatchID != "" && event.MatchID != w.stats.MatchID {
		return
	}
	if w.startedAt.IsZero() {
		w.startedAt = event.Timestamp
	}
	if event.Timestamp.After(w.lastEvent) {
		w.lastEvent = event.Timestamp
	}

	switch event.Type {
	case rules.EventTurnChanged:
		w.stats.Turns++
	case rules.EventCardPlayed:
		w.stats.CardsPlayed++
		w.player(event.PlayerID).CardsPlayed++
	case rules.EventOrganInfected, rules.EventInfectionSpread:
		w.stats.Infections++
		w.player(event.PlayerID).Infections++
	case rules.EventOrganDestroyed:
		w.stats.Destroyed++
		w.player(event.PlayerID).OrgansDestroyed++
		if owner := event.Metadata["owner_id"]; owner != "" {
			w.player(owner).OrgansLost++
		}
	case rules.EventOrganCured:
		w.stats.Cures++
		w.player(event.PlayerID).Cures++
	case rules.EventOrganStolen:
		w.stats.Thefts++
		w.player(event.PlayerID).Thefts++
	case rules.EventTurnTimedOut:
		w.stats.Timeouts++
		w.player(event.PlayerID).Timeouts++
	case rules.EventDeckReshuffled:
		w.stats.Reshuffles++
	case rules.EventDeckExhausted:
		w.stats.Exhaustions++
	case rules.EventMatchCompleted:
		w.stats.Finished = true
		w.stats.WinnerID = event.PlayerID
		w.SetCondition(true)
	case rules.EventMatchAbandoned:
		w.stats.Finished = true
		w.stats.AbandonReason = event.Metadata["reason"]
		w.SetCondition(true)
	}
}

// Reset clears the watcher's state.
func (w *MatchStatsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.stats = MatchStats{MatchID: w.stats.MatchID, Players: make(map[string]*PlayerStats)}
	w.startedAt = time.Time{}
	w.lastEvent = time.Time{}
}

// Summary returns a snapshot of the counters. now bounds the duration of an unfinished match.
func (w *MatchStatsWatcher) Summary(now time.Time) MatchStats {
	out := w.stats
	out.Players = make(map[string]*PlayerStats, len(w.stats.Players))
	for id, ps := range w.stats.Players {
		cp := *ps
		out.Players[id] = &cp
	}

	end := now
	if w.stats.Finished {
		end = w.lastEvent
	}
	if !w.startedAt.IsZero() && end.After(w.startedAt) {
		out.DurationSecs = end.Sub(w.startedAt).Seconds()
	}
	if out.Turns > 0 {
		out.AvgTurnSecs = out.DurationSecs / float64(out.Turns)
	}
	return out
}

// Copy creates a copy of this watcher.
func (w *MatchStatsWatcher) Copy() rules.Watcher {
	copy := NewMatchStatsWatcher(w.stats.MatchID)
	copy.SetControllerID(w.GetControllerID())
	copy.SetCondition(w.ConditionMet())
	copy.stats = w.Summary(w.lastEvent)
	copy.stats.DurationSecs = 0
	copy.stats.AvgTurnSecs = 0
	copy.startedAt = w.startedAt
	copy.lastEvent = w.lastEvent
	return copy
}

// MarkResumed flags the counters as partial for a match reloaded from storage. Durations are
// measured from startedAt, the match's creation time.
func (w *MatchStatsWatcher) MarkResumed(startedAt, resumedAt time.Time) {
	w.stats.Partial = true
	w.stats.ResumedAt = &resumedAt
	w.startedAt = startedAt
}

// Register adds the standard analytics watchers to registry and returns the stats watcher.
func Register(registry *rules.WatcherRegistry, matchID string) *MatchStatsWatcher {
	stats := NewMatchStatsWatcher(matchID)
	registry.AddWatcher(stats)
	registry.AddWatcher(NewCardsPlayedWatcher())
	registry.AddWatcher(NewCardsDrawnWatcher())
	registry.AddWatcher(NewOrgansPlacedWatcher())
	registry.AddWatcher(NewOrgansDestroyedWatcher())
	return stats
}
