package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/simulation"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "optional configuration file for game and deck settings")
	games      = flag.Int("games", 100, "number of matches to simulate")
	players    = flag.Int("players", 4, "players per match")
	seed       = flag.Uint64("seed", 1, "batch seed")
	workers    = flag.Int("workers", 0, "worker goroutines (0 = one per CPU)")
	maxTurns   = flag.Int("max-turns", 2000, "turns before a match counts as stalled")
	verbose    = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	zapCfg := zap.NewDevelopmentConfig()
	if !*verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := simulation.DefaultConfig()
	cfg.Players = *players
	cfg.MaxTurns = *maxTurns
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", zap.Error(err))
		}
		cfg.InitialHandSize = loaded.Game.InitialHandSize
		cfg.RequiredOrgansToWin = loaded.Game.RequiredOrgansToWin
		cfg.Distribution = loaded.Distribution()
	}

	logger.Info("starting simulation",
		zap.Int("games", *games),
		zap.Int("players", cfg.Players),
		zap.Uint64("seed", *seed),
		zap.Int("workers", *workers),
	)

	start := time.Now()
	stats := simulation.RunBatchParallel(cfg, *games, *seed, *workers)

	logger.Info("simulation finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("games", stats.Games),
		zap.Int("completed", stats.Completed),
		zap.Int("abandoned", stats.Abandoned),
		zap.Int("stalled", stats.Stalled),
		zap.Int("failed", stats.Failed),
		zap.Ints("wins_by_seat", stats.WinsBySeat),
		zap.Float64("avg_turns", stats.AvgTurns),
		zap.Int("cards_played", stats.TotalPlays),
		zap.Int("reshuffles", stats.Reshuffles),
		zap.Int("deck_exhaustions", stats.Exhausted),
	)

	for _, failure := range stats.Failures {
		logger.Error("invariant violation", zap.String("detail", failure))
	}
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
