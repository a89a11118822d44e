package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps the feed in the notifications table.
type PostgresStore struct {
	db pgxQuerier
}

func NewPostgresStore(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("notify: pgx pool required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO notifications (id, recipient_id, doctor_id, type, message, event_id, read, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8)
	`
	if _, err := s.db.Exec(ctx, query, n.ID, n.RecipientID, n.DoctorID, string(n.Type), n.Message, n.EventID, n.Read, n.CreatedAt); err != nil {
		return fmt.Errorf("notify: insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT id, COALESCE(recipient_id, ''), COALESCE(doctor_id, ''), type, message, COALESCE(event_id, ''), read, created_at
		FROM notifications
		WHERE recipient_id = $1 OR recipient_id IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.DoctorID, &typ, &n.Message, &n.EventID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkRead(ctx context.Context, recipientID, id string) error {
	ct, err := s.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
