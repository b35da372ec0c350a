package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no match is stored under the requested id.
	ErrNotFound = errors.New("match not found")
	// ErrStaleWrite is returned when a save would overwrite a newer turn generation.
	ErrStaleWrite = errors.New("stale match write")
	// ErrChecksumMismatch is returned when a stored record no longer matches its checksum.
	ErrChecksumMismatch = errors.New("match checksum mismatch")
)

// MatchSummary is the listing row of a stored match.
type MatchSummary struct {
	ID             string       `json:"id"`
	RoomID         string       `json:"room_id"`
	Status         state.Status `json:"status"`
	PlayerIDs      []string     `json:"player_ids"`
	WinnerID       string       `json:"winner_id,omitempty"`
	TurnGeneration uint64       `json:"turn_generation"`
	Checksum       string       `json:"checksum"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ListFilter narrows ListMatches. Zero values match everything.
type ListFilter struct {
	Status state.Status
	Limit  int
}

// MatchStore persists one record per match keyed by match id.
type MatchStore interface {
	// Save upserts the match. It fails with ErrStaleWrite when the stored record carries a
	// higher turn generation.
	Save(ctx context.Context, m *state.Match) error
	Load(ctx context.Context, matchID string) (*state.Match, error)
	ListActive(ctx context.Context) ([]*state.Match, error)
	ListMatches(ctx context.Context, filter ListFilter) ([]MatchSummary, error)
	Delete(ctx context.Context, matchID string) error
}

func summarize(m *state.Match, checksum string) MatchSummary {
	ids := make([]string, len(m.Players))
	for i, p := range m.Players {
		ids[i] = p.UserID
	}
	s := MatchSummary{
		ID:             m.ID,
		RoomID:         m.RoomID,
		Status:         m.Status,
		PlayerIDs:      ids,
		TurnGeneration: m.TurnGeneration,
		Checksum:       checksum,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Winner != nil {
		s.WinnerID = m.Winner.UserID
	}
	return s
}

// Open builds the store selected by cfg.Driver. The returned close func releases any pool and
// is never nil.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (MatchStore, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("using in-memory match store")
		return NewMemoryMatchStore(logger), func() {}, nil
	case "postgres":
		db, err := NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		return NewPostgresMatchStore(db, logger), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
