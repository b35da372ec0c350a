package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresMatchStore persists matches as JSONB rows, one per match.
type PostgresMatchStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresMatchStore creates a store on top of db.
func NewPostgresMatchStore(db *DB, logger *zap.Logger) *PostgresMatchStore {
	return &PostgresMatchStore{pool: db.Pool(), logger: logger}
}

const upsertMatch = `
INSERT INTO matches (id, room_id, status, player_ids, winner_id, turn_generation, checksum, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	player_ids = EXCLUDED.player_ids,
	winner_id = EXCLUDED.winner_id,
	turn_generation = EXCLUDED.turn_generation,
	checksum = EXCLUDED.checksum,
	data = EXCLUDED.data,
	updated_at = EXCLUDED.updated_at
WHERE matches.turn_generation <= EXCLUDED.turn_generation`

// Save implements MatchStore.
func (s *PostgresMatchStore) Save(ctx context.Context, m *state.Match) error {
	data, err := state.Marshal(m)
	if err != nil {
		return err
	}
	sum := summarize(m, m.ComputeChecksum().Hash)

	tag, err := s.pool.Exec(ctx, upsertMatch,
		sum.ID, sum.RoomID, string(sum.Status), sum.PlayerIDs, sum.WinnerID,
		int64(sum.TurnGeneration), sum.Checksum, data, sum.CreatedAt, sum.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: match %s at generation %d", ErrStaleWrite, m.ID, m.TurnGeneration)
	}
	return nil
}

// Load implements MatchStore.
func (s *PostgresMatchStore) Load(ctx context.Context, matchID string) (*state.Match, error) {
	var (
		data     []byte
		checksum string
	)
	err := s.pool.QueryRow(ctx, `SELECT data, checksum FROM matches WHERE id = $1`, matchID).Scan(&data, &checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	return decode(data, checksum)
}

// ListActive implements MatchStore. Unreadable rows are logged and skipped.
func (s *PostgresMatchStore) ListActive(ctx context.Context) ([]*state.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, data, checksum FROM matches WHERE status = $1 ORDER BY id`, string(state.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list active matches: %w", err)
	}
	defer rows.Close()

	var matches []*state.Match
	for rows.Next() {
		var (
			id       string
			data     []byte
			checksum string
		)
		if err := rows.Scan(&id, &data, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		m, err := decode(data, checksum)
		if err != nil {
			s.logger.Warn("skipping unreadable match", zap.String("match_id", id), zap.Error(err))
			continue
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match rows: %w", err)
	}
	return matches, nil
}

// ListMatches implements MatchStore.
func (s *PostgresMatchStore) ListMatches(ctx context.Context, filter ListFilter) ([]MatchSummary, error) {
	query := `SELECT id, room_id, status, player_ids, COALESCE(winner_id, ''), turn_generation, checksum, created_at, updated_at
		FROM matches WHERE ($1 = '' OR status = $1) ORDER BY updated_at DESC, id`
	args := []any{string(filter.Status)}
	if filter.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	out := []MatchSummary{}
	for rows.Next() {
		var (
			sum        MatchSummary
			status     string
			generation int64
		)
		if err := rows.Scan(&sum.ID, &sum.RoomID, &status, &sum.PlayerIDs, &sum.WinnerID,
			&generation, &sum.Checksum, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match summary: %w", err)
		}
		sum.Status = state.Status(status)
		sum.TurnGeneration = uint64(generation)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match summaries: %w", err)
	}
	return out, nil
}

// Delete implements MatchStore.
func (s *PostgresMatchStore) Delete(ctx context.Context, matchID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return nil
}
