// Package handlers serves the doctor dashboard and patient app endpoints
// that sit beside the conversational flow.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/booking"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-engine/internal/notify"
	"github.com/wolfman30/clinic-booking-engine/internal/queue"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.AccountID == "" {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return middleware.Principal{}, false
	}
	return p, true
}

// statusFor maps domain errors to HTTP statuses. Precondition failures are
// the caller's to fix; anything else is ours.
func statusFor(err error) int {
	switch {
	case errors.Is(err, doctors.ErrDoctorNotFound),
		errors.Is(err, appointments.ErrNotFound),
		errors.Is(err, doctors.ErrNotQueued),
		errors.Is(err, notify.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, doctors.ErrSlotBooked),
		errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, doctors.ErrAlreadyQueued),
		errors.Is(err, doctors.ErrBookedSlotRemoved),
		errors.Is(err, doctors.ErrDoctorUnavailable),
		errors.Is(err, doctors.ErrQueueEmpty),
		errors.Is(err, appointments.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, doctors.ErrDateNotFound),
		errors.Is(err, doctors.ErrSlotNotFound),
		errors.Is(err, doctors.ErrInvalidCalendar),
		errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, queue.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotOwner):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", "error", err)
		jsonError(w, "internal error", status)
		return
	}
	jsonError(w, err.Error(), status)
}
