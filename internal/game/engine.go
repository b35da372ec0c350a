package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/elvirus/virus-server-go/internal/game/watchers"
	"github.com/elvirus/virus-server-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrMatchStillActive is returned when archiving a match that has not finished.
	ErrMatchStillActive = errors.New("match is still active")
	// ErrEngineClosed is returned once Shutdown has been called.
	ErrEngineClosed = errors.New("engine is shut down")
	// ErrReplayDisabled is returned by LoadReplay when no replay directory is configured.
	ErrReplayDisabled = errors.New("replay recording is disabled")
)

// Options are the rules parameters and runtime settings of an Engine.
type Options struct {
	MinPlayers          int
	MaxPlayers          int
	InitialHandSize     int
	TurnTimeLimit       time.Duration
	RequiredOrgansToWin int
	TickInterval        time.Duration
	ReplayDir           string // empty disables replays
	Seed                uint64 // 0 seeds every match from crypto/rand
	Distribution        cards.Distribution
}

// OptionsFromConfig maps the loaded server configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinPlayers:          cfg.Game.MinPlayers,
		MaxPlayers:          cfg.Game.MaxPlayers,
		InitialHandSize:     cfg.Game.InitialHandSize,
		TurnTimeLimit:       cfg.Game.TurnTimeLimit,
		RequiredOrgansToWin: cfg.Game.RequiredOrgansToWin,
		TickInterval:        cfg.Game.TickInterval,
		ReplayDir:           cfg.Game.ReplayDir,
		Seed:                cfg.Game.Seed,
		Distribution:        cfg.Distribution(),
	}
}

// session owns one match and everything that mutates it. mu serializes player actions, clock
// expiry and ticks for the match.
type session struct {
	mu       sync.Mutex
	match    *state.Match
	rng      *rand.Rand
	bus      *rules.EventBus
	registry *rules.WatcherRegistry
	stats    *watchers.MatchStatsWatcher
	clock    *turnClock
}

// Engine coordinates every live match of the server.
type Engine struct {
	logger  *zap.Logger
	opts    Options
	store   repository.MatchStore
	replays *ReplayRecorder
	now     func() time.Time
	seeds   atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*session
	handler  NotificationHandler
	closed   bool
}

// NewEngine creates an engine persisting through store.
func NewEngine(logger *zap.Logger, opts Options, store repository.MatchStore) *Engine {
	if len(opts.Distribution) == 0 {
		opts.Distribution = cards.DefaultDistribution()
	}
	e := &Engine{
		logger:   logger,
		opts:     opts,
		store:    store,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	if opts.ReplayDir != "" {
		e.replays = NewReplayRecorder(logger, opts.ReplayDir)
	}
	return e
}

// SetNotificationHandler installs the receiver of outbound notifications. The handler is called
// synchronously after the match lock is released, so it must not block.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

func (e *Engine) emit(notifications []Notification) {
	e.mu.RLock()
	handler := e.handler
	e.mu.RUnlock()

	if handler == nil {
		return
	}
	for _, n := range notifications {
		handler(n)
	}
}

func (e *Engine) nextRand() *rand.Rand {
	if e.opts.Seed == 0 {
		return cards.NewRand(0)
	}
	return cards.NewRand(e.opts.Seed + e.seeds.Add(1) - 1)
}

func (e *Engine) newSession(m *state.Match, rng *rand.Rand) *session {
	s := &session{
		match:    m,
		rng:      rng,
		bus:      rules.NewEventBus(),
		registry: rules.NewWatcherRegistry(),
		clock:    newTurnClock(),
	}
	s.stats = watchers.Register(s.registry, m.ID)
	s.bus.Subscribe(func(event rules.Event) {
		s.registry.NotifyWatchers(event)
	})
	return s
}

func matchNotFound(matchID string) error {
	return &rules.ActionError{Kind: rules.KindMatchNotFound, Reason: fmt.Sprintf("match %s not found", matchID)}
}

func (e *Engine) session(matchID string) (*session, error) {
	e.mu.RLock()
	s, ok := e.sessions[matchID]
	e.mu.RUnlock()
	if !ok {
		return nil, matchNotFound(matchID)
	}
	return s, nil
}

// StartRequest asks the engine to open a match for a room.
type StartRequest struct {
	MatchID string // generated when empty
	RoomID  string
	Players []rules.Seat
}

// StartMatch deals a new match, arms its turn clock and returns a snapshot of it.
func (e *Engine) StartMatch(ctx context.Context, req StartRequest) (*state.Match, error) {
	matchID := req.MatchID
	if matchID == "" {
		matchID = uuid.NewString()
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	if _, exists := e.sessions[matchID]; exists {
		e.mu.Unlock()
		return nil, &rules.ActionError{Kind: rules.KindInvalidConfiguration, Reason: fmt.Sprintf("match %s already exists", matchID)}
	}

	now := e.now().UTC()
	rng := e.nextRand()
	m, events, err := rules.StartMatch(rules.StartParams{
		MatchID:             matchID,
		RoomID:              req.RoomID,
		Players:             req.Players,
		MinPlayers:          e.opts.MinPlayers,
		MaxPlayers:          e.opts.MaxPlayers,
		InitialHandSize:     e.opts.InitialHandSize,
		TurnTimeLimit:       e.opts.TurnTimeLimit,
		RequiredOrgansToWin: e.opts.RequiredOrgansToWin,
	}, cards.BuildDeck(e.opts.Distribution), rng, now)
	if err != nil {
		e.mu.Unlock()
		e.logger.Debug("rejected match start", zap.String("match_id", matchID), zap.Error(err))
		return nil, err
	}

	s := e.newSession(m, rng)
	s.mu.Lock()
	e.sessions[matchID] = s
	e.mu.Unlock()

	if e.replays != nil {
		e.replays.StartRecording(matchID)
	}
	notifications := e.commit(ctx, s, &rules.Outcome{Events: events, TurnChanged: true}, now)
	snapshot := m.Clone()
	s.mu.Unlock()

	e.logger.Info("match started",
		zap.String("match_id", matchID),
		zap.String("room_id", req.RoomID),
		zap.Int("players", len(req.Players)),
		zap.String("first_player", snapshot.CurrentPlayer().UserID),
	)
	e.emit(notifications)
	return snapshot, nil
}

type mutation func(m *state.Match, rng *rand.Rand, now time.Time) (*rules.Outcome, error)

// mutate runs fn under the match lock, commits the outcome and returns viewerID's view.
func (e *Engine) mutate(ctx context.Context, matchID, viewerID string, fn mutation) (state.PlayerView, error) {
	s, err := e.session(matchID)
	if err != nil {
		return state.PlayerView{}, err
	}

	s.mu.Lock()
	now := e.now().UTC()
	out, err := fn(s.match, s.rng, now)
	if err != nil {
		s.mu.Unlock()
		return state.PlayerView{}, err
	}
	var notifications []Notification
	if len(out.Events) > 0 {
		notifications = e.commit(ctx, s, out, now)
	}
	view := s.match.ViewFor(viewerID, now)
	s.mu.Unlock()

	e.emit(notifications)
	return view, nil
}

// ApplyAction plays a card and returns the acting player's view of the result.
func (e *Engine) ApplyAction(ctx context.Context, matchID string, action rules.Action) (state.PlayerView, error) {
	view, err := e.mutate(ctx, matchID, action.PlayerID, func(m *state.Match, rng *rand.Rand, now time.Time) (*rules.Outcome, error) {
		return rules.Apply(m, action, rules.Env{Now: now, Rand: rng})
	})
	if err != nil {
		e.logger.Debug("rejected action",
			zap.String("match_id", matchID),
			zap.String("player_id", action.PlayerID),
			zap.String("card_id", action.CardID),
			zap.Error(err),
		)
	}
	return view, err
}

// EndTurn ends playerID's turn after discarding and redrawing discardIDs.
func (e *Engine) EndTurn(ctx context.Context, matchID, playerID string, discardIDs []string) (state.PlayerView, error) {
	view, err := e.mutate(ctx, matchID, playerID, func(m *state.Match, rng *rand.Rand, now time.Time) (*rules.Outcome, error) {
		return rules.EndTurn(m, playerID, discardIDs, rules.Env{Now: now, Rand: rng})
	})
	if err != nil {
		e.logger.Debug("rejected end turn",
			zap.String("match_id", matchID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
	}
	return view, err
}

// MarkDisconnected takes userID out of the rotation. Repeated calls are no-ops.
func (e *Engine) MarkDisconnected(ctx context.Context, matchID, userID string) (state.PlayerView, error) {
	return e.mutate(ctx, matchID, userID, func(m *state.Match, _ *rand.Rand, now time.Time) (*rules.Outcome, error) {
		return rules.MarkInactive(m, userID, now)
	})
}

// MarkReconnected returns userID to the rotation of an active match.
func (e *Engine) MarkReconnected(ctx context.Context, matchID, userID string) (state.PlayerView, error) {
	return e.mutate(ctx, matchID, userID, func(m *state.Match, _ *rand.Rand, now time.Time) (*rules.Outcome, error) {
		return rules.MarkActive(m, userID, now)
	})
}

// AbandonMatch force-finishes an active match without a winner.
func (e *Engine) AbandonMatch(ctx context.Context, matchID, reason string) error {
	if reason == "" {
		reason = "abandoned by admin"
	}
	_, err := e.mutate(ctx, matchID, "", func(m *state.Match, _ *rand.Rand, now time.Time) (*rules.Outcome, error) {
		return rules.Abandon(m, reason, now)
	})
	if err == nil {
		e.logger.Info("match abandoned", zap.String("match_id", matchID), zap.String("reason", reason))
	}
	return err
}

// GetStateForPlayer returns userID's redacted view of the match.
func (e *Engine) GetStateForPlayer(matchID, userID string) (state.PlayerView, error) {
	s, err := e.session(matchID)
	if err != nil {
		return state.PlayerView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.match.HasPlayer(userID) {
		return state.PlayerView{}, &rules.ActionError{
			Kind:   rules.KindPlayerNotInMatch,
			Reason: fmt.Sprintf("%s is not seated in match %s", userID, matchID),
		}
	}
	return s.match.ViewFor(userID, e.now()), nil
}

// Snapshot returns a deep copy of the full match state.
func (e *Engine) Snapshot(matchID string) (*state.Match, error) {
	s, err := e.session(matchID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match.Clone(), nil
}

// GetMatchAnalytics summarizes the events seen for a live match.
func (e *Engine) GetMatchAnalytics(matchID string) (watchers.MatchStats, error) {
	s, err := e.session(matchID)
	if err != nil {
		return watchers.MatchStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Summary(e.now().UTC()), nil
}

// ListMatches returns stored match summaries.
func (e *Engine) ListMatches(ctx context.Context, filter repository.ListFilter) ([]repository.MatchSummary, error) {
	return e.store.ListMatches(ctx, filter)
}

// ArchiveMatch drops a finished match from memory. The stored record is kept.
func (e *Engine) ArchiveMatch(matchID string) error {
	e.mu.Lock()
	s, ok := e.sessions[matchID]
	if !ok {
		e.mu.Unlock()
		return matchNotFound(matchID)
	}
	s.mu.Lock()
	finished := s.match.Status.Finished()
	s.mu.Unlock()
	if !finished {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMatchStillActive, matchID)
	}
	s.clock.cancel()
	delete(e.sessions, matchID)
	e.mu.Unlock()

	if e.replays != nil {
		e.replays.ClearReplay(matchID)
	}
	e.logger.Info("match archived", zap.String("match_id", matchID))
	return nil
}

// LoadReplay returns the replay of a match, from memory while it is recorded and from disk
// once it was saved.
func (e *Engine) LoadReplay(matchID string) (*Replay, error) {
	if e.replays == nil {
		return nil, ErrReplayDisabled
	}
	if replay, ok := e.replays.GetReplay(matchID); ok {
		return replay, nil
	}
	return e.replays.LoadReplay(matchID)
}

// ExpireTurn forces the timeout of the given turn generation. It reports whether the turn was
// still current; stale generations change nothing.
func (e *Engine) ExpireTurn(ctx context.Context, matchID string, generation uint64) bool {
	e.mu.RLock()
	s, ok := e.sessions[matchID]
	closed := e.closed
	e.mu.RUnlock()
	if !ok || closed {
		return false
	}

	s.mu.Lock()
	now := e.now().UTC()
	out := rules.ExpireTurn(s.match, generation, now)
	if out == nil {
		s.mu.Unlock()
		e.logger.Debug("ignoring stale turn expiry",
			zap.String("match_id", matchID),
			zap.Uint64("turn_generation", generation),
		)
		return false
	}
	e.logger.Info("turn timed out",
		zap.String("match_id", matchID),
		zap.Uint64("turn_generation", generation),
	)
	notifications := e.commit(ctx, s, out, now)
	s.mu.Unlock()

	e.emit(notifications)
	return true
}

func (e *Engine) tick(matchID string, generation uint64) {
	e.mu.RLock()
	s, ok := e.sessions[matchID]
	closed := e.closed
	e.mu.RUnlock()
	if !ok || closed {
		return
	}

	s.mu.Lock()
	if s.match.Status != state.StatusActive || s.match.TurnGeneration != generation {
		s.mu.Unlock()
		return
	}
	n := timerTickNotification(s.match, e.now().UTC())
	s.mu.Unlock()

	e.emit([]Notification{n})
}

func (e *Engine) armClock(s *session) {
	m := s.match
	matchID := m.ID
	wait := m.TurnDeadline().Sub(e.now())
	s.clock.arm(m.TurnGeneration, wait, e.opts.TickInterval,
		func(generation uint64) { e.ExpireTurn(context.Background(), matchID, generation) },
		func(generation uint64) { e.tick(matchID, generation) },
	)
}

// commit publishes the outcome to the match's watchers, persists and records the new state, and
// reschedules or cancels the clock. It runs under s.mu and returns the notifications to emit
// once the lock is released.
func (e *Engine) commit(ctx context.Context, s *session, out *rules.Outcome, now time.Time) []Notification {
	m := s.match
	s.bus.PublishBatch(out.Events)
	e.logEvents(m, out.Events)

	if err := e.store.Save(ctx, m); err != nil {
		e.logger.Warn("failed to persist match",
			zap.String("match_id", m.ID),
			zap.Uint64("turn_generation", m.TurnGeneration),
			zap.Error(err),
		)
	}
	if e.replays != nil {
		e.replays.RecordState(m, now)
	}

	var notifications []Notification
	if out.TurnChanged && m.Status == state.StatusActive {
		notifications = append(notifications, turnChangedNotification(m, now))
	}
	notifications = append(notifications, stateUpdatedNotifications(m, now)...)

	// Only the transition into a finished state ends the match.
	switch {
	case out.Finished:
		s.clock.cancel()
		notifications = append(notifications, matchEndedNotification(m, abandonReason(out.Events), now))
		e.saveReplay(m.ID)
	case out.TurnChanged:
		e.armClock(s)
	}
	return notifications
}

func (e *Engine) logEvents(m *state.Match, events []rules.Event) {
	for _, evt := range events {
		switch evt.Type {
		case rules.EventMatchCompleted:
			e.logger.Info("match completed",
				zap.String("match_id", m.ID),
				zap.String("winner", evt.PlayerID),
			)
		case rules.EventDeckExhausted:
			e.logger.Info("deck exhausted, draw skipped",
				zap.String("match_id", m.ID),
				zap.String("player_id", evt.PlayerID),
				zap.Int("missing", evt.Amount),
			)
		case rules.EventDeckReshuffled:
			e.logger.Debug("discard pile reshuffled into deck", zap.String("match_id", m.ID))
		}
	}
}

func (e *Engine) saveReplay(matchID string) {
	if e.replays == nil {
		return
	}
	if err := e.replays.SaveReplay(matchID); err != nil {
		e.logger.Warn("failed to save replay", zap.String("match_id", matchID), zap.Error(err))
	}
}

func abandonReason(events []rules.Event) string {
	for _, evt := range events {
		if evt.Type == rules.EventMatchAbandoned {
			return evt.Metadata["reason"]
		}
	}
	return ""
}

// Resume reloads the active matches of the store, typically after a restart, and re-arms their
// clocks. A turn whose deadline passed while the server was down expires immediately. Matches
// already loaded are skipped. It returns the number of matches resumed.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	matches, err := e.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active matches: %w", err)
	}

	now := e.now().UTC()
	resumed := 0
	for _, m := range matches {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return resumed, ErrEngineClosed
		}
		if _, exists := e.sessions[m.ID]; exists {
			e.mu.Unlock()
			continue
		}
		s := e.newSession(m, e.nextRand())
		s.stats.MarkResumed(m.CreatedAt, now)
		s.mu.Lock()
		e.sessions[m.ID] = s
		e.mu.Unlock()

		if e.replays != nil {
			e.replays.StartRecording(m.ID)
			e.replays.RecordState(m, now)
		}
		e.armClock(s)
		s.mu.Unlock()

		resumed++
		e.logger.Info("match resumed",
			zap.String("match_id", m.ID),
			zap.Uint64("turn_generation", m.TurnGeneration),
			zap.Duration("time_left", m.TurnTimeLeft(now)),
		)
	}
	return resumed, nil
}

// ActiveMatchIDs lists the matches currently held in memory.
func (e *Engine) ActiveMatchIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every clock. Matches stay in the store and can be resumed by a new engine.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, s := range e.sessions {
		s.clock.cancel()
		if e.replays != nil {
			e.replays.StopRecording(id)
		}
	}
	e.logger.Info("engine shut down", zap.Int("matches", len(e.sessions)))
}
