package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records which consumer already handled which event, letting
// at-least-once consumers drop redeliveries.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if the consumer has seen this event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE consumer = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, consumer, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id for the consumer, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MemoryProcessedStore is the in-process variant used when no database is
// configured.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

func (s *MemoryProcessedStore) AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[consumer+"/"+eventID]
	return ok, nil
}

func (s *MemoryProcessedStore) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := consumer + "/" + eventID
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}
