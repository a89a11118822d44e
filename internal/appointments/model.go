// Package appointments keeps the reporting record of each booking. The doctor
// calendar stays the source of truth for slot occupancy; booking and queue
// code keep the two consistent.
package appointments

import (
	"context"
	"errors"
	"time"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("appointment status cannot change")
)

type Appointment struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctorId"`
	DoctorName  string    `json:"doctorName"`
	PatientID   string    `json:"patientId"`
	PatientName string    `json:"patientName,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Fee         int       `json:"fee"`
	Status      Status    `json:"status"`
	Symptoms    string    `json:"symptoms,omitempty"`
	TokenNumber int       `json:"tokenNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Active reports whether the appointment still holds its slot as of today
// (YYYY-MM-DD).
func (a *Appointment) Active(today string) bool {
	return a.Status == StatusScheduled && a.Date >= today
}

// Repository persists appointments. The list methods filter by status when
// any are given. Deletes only touch Scheduled records since those mirror
// calendar slots being released.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	FindActive(ctx context.Context, doctorID, patientID, today string) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID string, statuses ...Status) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, statuses ...Status) ([]*Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	DeleteForSlot(ctx context.Context, doctorID, patientID, date, time string) (string, error)
	DeleteByDoctor(ctx context.Context, doctorID string) (int64, error)
	MarkCompletedBefore(ctx context.Context, date string) (int64, error)
}
