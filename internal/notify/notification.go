package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is the category shown in the in-app notification feed.
type Type string

const (
	TypeAvailability      Type = "availability"
	TypeQueue             Type = "queue"
	TypeAppointment       Type = "appointment"
	TypeAppointmentCancel Type = "appointment-cancel"
	TypeCalled            Type = "called"
)

var ErrNotificationNotFound = errors.New("notify: notification not found")

// Notification is one feed entry. An empty RecipientID is a broadcast that
// every account sees.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId,omitempty"`
	DoctorID    string    `json:"doctorId,omitempty"`
	Type        Type      `json:"type"`
	Message     string    `json:"message"`
	EventID     string    `json:"eventId,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (n Notification) Broadcast() bool { return n.RecipientID == "" }

// Store persists the feed. List returns the recipient's own entries and
// broadcasts, newest first.
type Store interface {
	Add(ctx context.Context, n *Notification) error
	List(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) error
}

const defaultListLimit = 50

type MemoryStore struct {
	mu    sync.RWMutex
	items []Notification
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Add(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	s.items = append(s.items, *n)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.items {
		if n.RecipientID == recipientID || n.Broadcast() {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead only flags entries addressed to the recipient; broadcasts stay
// unread for everyone else.
func (s *MemoryStore) MarkRead(ctx context.Context, recipientID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].RecipientID == recipientID {
			s.items[i].Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}
