package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/queue"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

type doctorService interface {
	Get(ctx context.Context, doctorID string) (*doctors.Doctor, error)
	PublishAvailability(ctx context.Context, doctorID string, days []doctors.Day) (*doctors.Doctor, error)
	SetStatus(ctx context.Context, doctorID string, status doctors.Status) (*doctors.Doctor, error)
}

type queueActions interface {
	Apply(ctx context.Context, doctorID string, action queue.Action) (any, error)
}

// DoctorHandler serves the doctor dashboard. Every route acts on the
// doctor named in the caller's token.
type DoctorHandler struct {
	doctors      doctorService
	queue        queueActions
	appointments appointments.Repository
	logger       *logging.Logger
}

func NewDoctorHandler(svc doctorService, q queueActions, repo appointments.Repository, logger *logging.Logger) *DoctorHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorHandler{doctors: svc, queue: q, appointments: repo, logger: logger.WithComponent("doctor-api")}
}

type SlotInput struct {
	Time string `json:"time" validate:"required,max=16"`
}

type DayInput struct {
	Date  string      `json:"date" validate:"required,datetime=2006-01-02"`
	Slots []SlotInput `json:"slots" validate:"max=96,dive"`
}

// AvailabilityRequest replaces the doctor's whole calendar.
type AvailabilityRequest struct {
	Availability []DayInput `json:"availability" validate:"max=60,dive"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type QueueActionRequest struct {
	Action string `json:"action" validate:"required,oneof=next reset"`
}

// Me handles GET /api/doctor/me.
func (h *DoctorHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	d, err := h.doctors.Get(r.Context(), p.DoctorID)
	if err != nil {
		writeDomainError(w, h.logger, "get doctor", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PublishAvailability handles PUT /api/doctor/availability.
func (h *DoctorHandler) PublishAvailability(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req AvailabilityRequest
	if !decode(w, r, &req) {
		return
	}

	days := make([]doctors.Day, 0, len(req.Availability))
	for _, in := range req.Availability {
		day := doctors.Day{Date: in.Date, Slots: make([]doctors.Slot, 0, len(in.Slots))}
		for _, s := range in.Slots {
			day.Slots = append(day.Slots, doctors.Slot{Time: strings.TrimSpace(s.Time)})
		}
		days = append(days, day)
	}

	d, err := h.doctors.PublishAvailability(r.Context(), p.DoctorID, days)
	if err != nil {
		writeDomainError(w, h.logger, "publish availability", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": d.Availability})
}

// SetStatus handles PUT /api/doctor/status.
func (h *DoctorHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !decode(w, r, &req) {
		return
	}
	var status doctors.Status
	switch doctors.Status(req.Status) {
	case doctors.StatusAvailable, doctors.StatusNotAvailable:
		status = doctors.Status(req.Status)
	default:
		jsonError(w, "status must be Available or Not Available", http.StatusBadRequest)
		return
	}

	d, err := h.doctors.SetStatus(r.Context(), p.DoctorID, status)
	if err != nil {
		writeDomainError(w, h.logger, "set status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currentStatus": d.Status})
}

// QueueAction handles POST /api/doctor/queue.
func (h *DoctorHandler) QueueAction(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req QueueActionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.queue.Apply(r.Context(), p.DoctorID, queue.Action(req.Action))
	if err != nil {
		writeDomainError(w, h.logger, "queue "+req.Action, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Appointments handles GET /api/doctor/appointments?status=Scheduled.
func (h *DoctorHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.appointments.ListByDoctor(r.Context(), p.DoctorID, statusFilter(r)...)
	if err != nil {
		writeDomainError(w, h.logger, "list doctor appointments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": nonNil(list)})
}

func statusFilter(r *http.Request) []appointments.Status {
	var out []appointments.Status
	for _, s := range r.URL.Query()["status"] {
		switch st := appointments.Status(s); st {
		case appointments.StatusScheduled, appointments.StatusCompleted, appointments.StatusCancelled:
			out = append(out, st)
		}
	}
	return out
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
