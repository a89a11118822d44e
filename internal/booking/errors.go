package booking

import (
	"errors"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
)

// Precondition failures, in the order Book checks them. Each is recoverable
// and leaves no state behind.
var (
	ErrDoctorNotFound   = doctors.ErrDoctorNotFound
	ErrDuplicateBooking = errors.New("patient already has an active appointment with this doctor")
	ErrDateUnavailable  = doctors.ErrDateNotFound
	ErrSlotNotFound     = doctors.ErrSlotNotFound
	ErrSlotUnavailable  = doctors.ErrSlotBooked
)

var (
	ErrInvalidRequest = errors.New("booking: doctor, patient, date and time are required")
	ErrNotOwner       = errors.New("booking: appointment belongs to another patient")
	ErrNotCancellable = appointments.ErrInvalidTransition
)

// Outcome labels a booking error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrDoctorNotFound):
		return "doctor_not_found"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, ErrDateUnavailable):
		return "date_unavailable"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_taken"
	default:
		return "error"
	}
}

// IsPrecondition reports whether err is an expected, user-correctable failure.
func IsPrecondition(err error) bool {
	switch Outcome(err) {
	case "success", "error":
		return false
	default:
		return true
	}
}
