package doctors

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Query filters a directory search. Empty fields are ignored.
type Query struct {
	Specialty string
	Name      string
	City      string
	Limit     int
}

// Store persists doctor aggregates. Save is a compare-and-swap on Version:
// it fails with ErrVersionConflict when the stored version moved on, and
// bumps d.Version on success.
type Store interface {
	Get(ctx context.Context, id string) (*Doctor, error)
	Create(ctx context.Context, d *Doctor) error
	Save(ctx context.Context, d *Doctor) error
	Search(ctx context.Context, q Query) ([]*Doctor, error)
}

// MemoryStore keeps doctors in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	doctors map[string]*Doctor
}

func NewMemoryStore(seed ...*Doctor) *MemoryStore {
	s := &MemoryStore{doctors: make(map[string]*Doctor)}
	for _, d := range seed {
		_ = s.Create(context.Background(), d)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, d *Doctor) error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return ErrDoctorNotFound
	}
	d.applyDefaults()
	d.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.doctors[d.ID]; !exists {
		s.order = append(s.order, d.ID)
	}
	s.doctors[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, d *Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.doctors[d.ID]
	if !ok {
		return ErrDoctorNotFound
	}
	if current.Version != d.Version {
		return ErrVersionConflict
	}
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	s.doctors[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, q Query) ([]*Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Doctor
	for _, id := range s.order {
		d := s.doctors[id]
		if !q.matches(d) {
			continue
		}
		out = append(out, d.Clone())
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (q Query) matches(d *Doctor) bool {
	if q.Specialty != "" && !strings.EqualFold(d.Specialty, q.Specialty) {
		return false
	}
	if q.Name != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(q.Name)) {
		return false
	}
	if q.City != "" && !strings.EqualFold(d.City, q.City) {
		return false
	}
	return true
}
