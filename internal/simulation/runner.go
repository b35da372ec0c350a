// Package simulation plays random matches through the rules engine and checks the match
// invariants after every transition.
package simulation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/game/state"
)

// Config describes the matches to simulate.
type Config struct {
	Players             int
	InitialHandSize     int
	RequiredOrgansToWin int
	MaxTurns            int // a match still running after MaxTurns is counted as stalled
	Distribution        cards.Distribution
}

// DefaultConfig is a four player match with the standard deck.
func DefaultConfig() Config {
	return Config{
		Players:             4,
		InitialHandSize:     3,
		RequiredOrgansToWin: 4,
		MaxTurns:            2000,
		Distribution:        cards.DefaultDistribution(),
	}
}

// GameJob represents a single simulation job
type GameJob struct {
	SimID int
	Seed  uint64
}

// GameResult is the outcome of one simulated match.
type GameResult struct {
	SimID      int
	Seed       uint64
	Status     state.Status
	WinnerSeat int // -1 without a winner
	Turns      int
	Plays      int
	Passes     int
	Timeouts   int
	Reshuffles int
	Exhausted  int
	Err        error // first invariant violation, if any
}

// AggregatedStats summarizes a batch.
type AggregatedStats struct {
	Games      int
	Completed  int
	Abandoned  int
	Stalled    int
	Failed     int
	WinsBySeat []int
	AvgTurns   float64
	TotalPlays int
	Reshuffles int
	Exhausted  int
	Failures   []string
}

// RunSingleGame plays one match with random legal moves. Every step checks the structural
// invariants, the closed card count and that a rejected move leaves the match unchanged.
func RunSingleGame(cfg Config, simID int, seed uint64) GameResult {
	result := GameResult{SimID: simID, Seed: seed, WinnerSeat: -1}
	rng := cards.NewRand(seed)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	seats := make([]rules.Seat, cfg.Players)
	for i := range seats {
		seats[i] = rules.Seat{UserID: fmt.Sprintf("p%d", i+1), Username: fmt.Sprintf("Player %d", i+1)}
	}
	m, _, err := rules.StartMatch(rules.StartParams{
		MatchID:             fmt.Sprintf("sim-%d", simID),
		RoomID:              "simulation",
		Players:             seats,
		MinPlayers:          2,
		MaxPlayers:          6,
		InitialHandSize:     cfg.InitialHandSize,
		TurnTimeLimit:       time.Minute,
		RequiredOrgansToWin: cfg.RequiredOrgansToWin,
	}, cards.BuildDeck(cfg.Distribution), rng, now)
	if err != nil {
		result.Err = fmt.Errorf("start: %w", err)
		return result
	}
	total := m.CardCount()

	for result.Turns < cfg.MaxTurns && m.Status == state.StatusActive {
		now = now.Add(time.Second)
		env := rules.Env{Now: now, Rand: rng}

		if err := probeRejection(m, rng, env); err != nil {
			result.Err = fmt.Errorf("turn %d: %w", result.Turns, err)
			return result
		}

		out, err := step(m, rng, env, &result)
		if err != nil {
			result.Err = fmt.Errorf("turn %d: %w", result.Turns, err)
			return result
		}
		result.Turns++
		for _, evt := range out.Events {
			switch evt.Type {
			case rules.EventDeckReshuffled:
				result.Reshuffles++
			case rules.EventDeckExhausted:
				result.Exhausted++
			}
		}

		if err := m.CheckInvariants(); err != nil {
			result.Err = fmt.Errorf("turn %d: %w", result.Turns, err)
			return result
		}
		if got := m.CardCount(); got != total {
			result.Err = fmt.Errorf("turn %d: card count %d, want %d", result.Turns, got, total)
			return result
		}
	}

	result.Status = m.Status
	if m.Winner != nil {
		result.WinnerSeat = m.PlayerIndex(m.Winner.UserID)
	}
	return result
}

// step plays a random legal card most of the time, otherwise ends the turn (sometimes with a
// discard) or lets it time out.
func step(m *state.Match, rng *rand.Rand, env rules.Env, result *GameResult) (*rules.Outcome, error) {
	holder := m.CurrentPlayer()
	legal := rules.LegalActions(m, holder.UserID)

	switch roll := rng.IntN(20); {
	case roll == 0:
		result.Timeouts++
		out := rules.ExpireTurn(m, m.TurnGeneration, env.Now)
		if out == nil {
			return nil, errors.New("current generation did not expire")
		}
		return out, nil
	case len(legal) == 0 || roll == 1:
		result.Passes++
		var discard []string
		if len(holder.Hand) > 0 && rng.IntN(2) == 0 {
			discard = []string{holder.Hand[rng.IntN(len(holder.Hand))].ID}
		}
		return rules.EndTurn(m, holder.UserID, discard, env)
	default:
		result.Plays++
		action := legal[rng.IntN(len(legal))]
		out, err := rules.Apply(m, action, env)
		if err != nil {
			return nil, fmt.Errorf("legal action %s rejected: %w", action.CardID, err)
		}
		return out, nil
	}
}

// probeRejection plays a card out of turn and checks that nothing changed.
func probeRejection(m *state.Match, rng *rand.Rand, env rules.Env) error {
	idx := rng.IntN(len(m.Players))
	if idx == m.CurrentPlayerIndex {
		return nil
	}
	p := m.Players[idx]
	if len(p.Hand) == 0 {
		return nil
	}
	before := m.ComputeChecksum()
	_, err := rules.Apply(m, rules.Action{PlayerID: p.UserID, CardID: p.Hand[0].ID}, env)
	if !errors.Is(err, rules.ErrNotYourTurn) {
		return fmt.Errorf("out-of-turn play returned %v", err)
	}
	if !m.VerifyChecksum(before) {
		return errors.New("rejected play mutated the match")
	}
	return nil
}

// RunBatchParallel executes numGames simulations on numWorkers goroutines. Game seeds derive
// from seed, so a batch is reproducible regardless of the worker count.
func RunBatchParallel(cfg Config, numGames int, seed uint64, numWorkers int) AggregatedStats {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	jobs := make(chan GameJob, numGames)
	results := make(chan GameResult, numGames)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go worker(&wg, cfg, jobs, results)
	}

	rng := cards.NewRand(seed)
	for i := 0; i < numGames; i++ {
		jobs <- GameJob{SimID: i, Seed: rng.Uint64()}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	all := make([]GameResult, 0, numGames)
	for r := range results {
		all = append(all, r)
	}
	return Aggregate(cfg, all)
}

func worker(wg *sync.WaitGroup, cfg Config, jobs <-chan GameJob, results chan<- GameResult) {
	defer wg.Done()
	for job := range jobs {
		results <- RunSingleGame(cfg, job.SimID, job.Seed)
	}
}

// Aggregate folds individual results into batch statistics.
func Aggregate(cfg Config, results []GameResult) AggregatedStats {
	sort.Slice(results, func(i, j int) bool { return results[i].SimID < results[j].SimID })

	stats := AggregatedStats{Games: len(results), WinsBySeat: make([]int, cfg.Players)}
	turns := 0
	for _, r := range results {
		turns += r.Turns
		stats.TotalPlays += r.Plays
		stats.Reshuffles += r.Reshuffles
		stats.Exhausted += r.Exhausted

		switch {
		case r.Err != nil:
			stats.Failed++
			stats.Failures = append(stats.Failures, fmt.Sprintf("sim %d (seed %d): %v", r.SimID, r.Seed, r.Err))
		case r.Status == state.StatusCompleted:
			stats.Completed++
			if r.WinnerSeat >= 0 && r.WinnerSeat < len(stats.WinsBySeat) {
				stats.WinsBySeat[r.WinnerSeat]++
			}
		case r.Status == state.StatusAbandoned:
			stats.Abandoned++
		default:
			stats.Stalled++
		}
	}
	if len(results) > 0 {
		stats.AvgTurns = float64(turns) / float64(len(results))
	}
	return stats
}
