package doctors

import "errors"

var (
	// ErrDoctorNotFound is returned when no doctor matches the id.
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrDateNotFound is returned when the calendar has no entry for a date.
	ErrDateNotFound = errors.New("no availability for that date")

	// ErrSlotNotFound is returned when the date has no slot with that time.
	ErrSlotNotFound = errors.New("no slot at that time")

	// ErrSlotBooked is returned when the slot is already taken.
	ErrSlotBooked = errors.New("slot already booked")

	// ErrQueueEmpty is returned by CallNext when nobody is waiting.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrAlreadyQueued is returned when the patient already holds an active token.
	ErrAlreadyQueued = errors.New("patient already in queue")

	// ErrNotQueued is returned when the patient holds no active token.
	ErrNotQueued = errors.New("patient not in queue")

	// ErrDoctorUnavailable is returned when a doctor is not accepting patients.
	ErrDoctorUnavailable = errors.New("doctor is not available")

	// ErrInvalidCalendar is returned for malformed availability payloads.
	ErrInvalidCalendar = errors.New("invalid availability")

	// ErrBookedSlotRemoved is returned when a calendar replace would drop a booked slot.
	ErrBookedSlotRemoved = errors.New("availability would remove a booked slot")

	// ErrVersionConflict is returned when a concurrent writer saved first.
	ErrVersionConflict = errors.New("doctor was modified concurrently")
)
