package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

type outboxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	pool outboxQuerier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec outboxQuerier) *OutboxStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &OutboxStore{pool: exec}
}

// Handle records the envelope so it survives a restart before delivery.
func (s *OutboxStore) Handle(ctx context.Context, env Envelope) error {
	return appendEnvelope(ctx, s.pool, env)
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]Envelope, error) {
	query := `
		SELECT id, payload
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []Envelope
	for rows.Next() {
		var (
			id      uuid.UUID
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("events: decode outbox %s: %w", id, err)
		}
		env.EventID = id
		entries = append(entries, env)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

type pendingStore interface {
	FetchPending(ctx context.Context, limit int32) ([]Envelope, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Deliverer polls the outbox and hands each envelope to the sink. Entries stay
// pending until the sink accepts them, so delivery is at-least-once.
type Deliverer struct {
	store     pendingStore
	sink      Sink
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store pendingStore, sink Sink, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		sink:      sink,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.sink == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, env := range entries {
		if err := d.sink.Deliver(ctx, env); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", env.EventID, "type", env.EventType)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, env.EventID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", env.EventID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "event_id", env.EventID, "type", env.EventType)
		}
	}
	return delivered
}
