package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Contact is how a patient can be reached outside the app.
type Contact struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// ContactBook resolves an account to its contact details. ok is false when
// the account is unknown.
type ContactBook interface {
	Lookup(ctx context.Context, accountID string) (Contact, bool, error)
}

type MemoryContactBook struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

func NewMemoryContactBook(seed ...Contact) *MemoryContactBook {
	b := &MemoryContactBook{contacts: make(map[string]Contact)}
	for _, c := range seed {
		b.contacts[c.AccountID] = c
	}
	return b
}

func (b *MemoryContactBook) Put(c Contact) {
	b.mu.Lock()
	b.contacts[c.AccountID] = c
	b.mu.Unlock()
}

func (b *MemoryContactBook) Lookup(ctx context.Context, accountID string) (Contact, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.contacts[accountID]
	return c, ok, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresContactBook reads the patients table.
type PostgresContactBook struct {
	db rowQuerier
}

func NewPostgresContactBook(db rowQuerier) *PostgresContactBook {
	return &PostgresContactBook{db: db}
}

func (b *PostgresContactBook) Lookup(ctx context.Context, accountID string) (Contact, bool, error) {
	c := Contact{AccountID: accountID}
	err := b.db.QueryRow(ctx,
		`SELECT name, COALESCE(phone, ''), COALESCE(email, '') FROM patients WHERE id = $1`,
		accountID,
	).Scan(&c.Name, &c.Phone, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, false, nil
		}
		return Contact{}, false, fmt.Errorf("notify: lookup contact: %w", err)
	}
	c.Phone = strings.TrimSpace(c.Phone)
	return c, true, nil
}
