package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/elvirus/virus-server-go/internal/game/state"
	"go.uber.org/zap"
)

type memoryRecord struct {
	data    []byte
	summary MatchSummary
}

// MemoryMatchStore keeps serialized matches in process memory. Records go through the same
// JSON encoding as the Postgres store so decoding and invariant checks are exercised.
type MemoryMatchStore struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	records map[string]memoryRecord
}

// NewMemoryMatchStore creates an empty store.
func NewMemoryMatchStore(logger *zap.Logger) *MemoryMatchStore {
	return &MemoryMatchStore{
		logger:  logger,
		records: make(map[string]memoryRecord),
	}
}

// Save implements MatchStore.
func (s *MemoryMatchStore) Save(ctx context.Context, m *state.Match) error {
	data, err := state.Marshal(m)
	if err != nil {
		return err
	}
	checksum := m.ComputeChecksum()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[m.ID]; ok && existing.summary.TurnGeneration > m.TurnGeneration {
		return fmt.Errorf("%w: match %s stored at generation %d, got %d",
			ErrStaleWrite, m.ID, existing.summary.TurnGeneration, m.TurnGeneration)
	}
	s.records[m.ID] = memoryRecord{data: data, summary: summarize(m, checksum.Hash)}
	return nil
}

// Load implements MatchStore.
func (s *MemoryMatchStore) Load(ctx context.Context, matchID string) (*state.Match, error) {
	s.mu.RLock()
	rec, ok := s.records[matchID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return decode(rec.data, rec.summary.Checksum)
}

// ListActive implements MatchStore.
func (s *MemoryMatchStore) ListActive(ctx context.Context) ([]*state.Match, error) {
	s.mu.RLock()
	var active []memoryRecord
	for _, rec := range s.records {
		if rec.summary.Status == state.StatusActive {
			active = append(active, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool { return active[i].summary.ID < active[j].summary.ID })
	matches := make([]*state.Match, 0, len(active))
	for _, rec := range active {
		m, err := decode(rec.data, rec.summary.Checksum)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping unreadable match", zap.String("match_id", rec.summary.ID), zap.Error(err))
			}
			continue
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// ListMatches implements MatchStore. Results are ordered by most recent update first.
func (s *MemoryMatchStore) ListMatches(ctx context.Context, filter ListFilter) ([]MatchSummary, error) {
	s.mu.RLock()
	out := make([]MatchSummary, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Status != "" && rec.summary.Status != filter.Status {
			continue
		}
		out = append(out, rec.summary)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Delete implements MatchStore.
func (s *MemoryMatchStore) Delete(ctx context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[matchID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	delete(s.records, matchID)
	return nil
}

func decode(data []byte, checksum string) (*state.Match, error) {
	m, err := state.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if !m.VerifyChecksum(state.Checksum{Hash: checksum, Version: state.ChecksumVersion}) {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, m.ID)
	}
	return m, nil
}
