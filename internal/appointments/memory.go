package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process Repository used when no database is
// configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Appointment)}
}

func (r *MemoryRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) FindActive(ctx context.Context, doctorID, patientID, today string) (*Appointment, error) {
	found := r.filter(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.PatientID == patientID && a.Active(today)
	})
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (r *MemoryRepository) ListByPatient(ctx context.Context, patientID string, statuses ...Status) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool { return a.PatientID == patientID && hasStatus(a, statuses) }), nil
}

func (r *MemoryRepository) ListByDoctor(ctx context.Context, doctorID string, statuses ...Status) ([]*Appointment, error) {
	return r.filter(func(a *Appointment) bool { return a.DoctorID == doctorID && hasStatus(a, statuses) }), nil
}

func hasStatus(a *Appointment, statuses []Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if a.Status == st {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != from {
		return ErrInvalidTransition
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) DeleteForSlot(ctx context.Context, doctorID, patientID, date, slot string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.items {
		if a.DoctorID == doctorID && a.PatientID == patientID && a.Date == date && a.Time == slot && a.Status == StatusScheduled {
			delete(r.items, id)
			return id, nil
		}
	}
	return "", nil
}

func (r *MemoryRepository) DeleteByDoctor(ctx context.Context, doctorID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, a := range r.items {
		if a.DoctorID == doctorID && a.Status == StatusScheduled {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) MarkCompletedBefore(ctx context.Context, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, a := range r.items {
		if a.Status == StatusScheduled && a.Date < date {
			a.Status = StatusCompleted
			a.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// filter returns matching copies ordered by date, then creation time.
func (r *MemoryRepository) filter(keep func(*Appointment) bool) []*Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.items {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
