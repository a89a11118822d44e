package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/availability"
	"github.com/wolfman30/clinic-booking-engine/internal/booking"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

type doctorSearch interface {
	Search(ctx context.Context, q doctors.Query) ([]doctors.Summary, error)
}

type freeSlots interface {
	FreeSlots(ctx context.Context, doctorID string, horizonDays int) ([]availability.DaySlots, error)
}

type bookingService interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
	Cancel(ctx context.Context, appointmentID, patientID string) (*appointments.Appointment, error)
}

type queueService interface {
	Join(ctx context.Context, doctorID, patientID, patientName string) (doctors.QueueEntry, error)
	Status(ctx context.Context, doctorID, patientID string) (doctors.Position, error)
}

// PatientHandler serves the patient app: browsing doctors, booking outside
// the chat flow and the standalone queue.
type PatientHandler struct {
	directory    doctorSearch
	slots        freeSlots
	booking      bookingService
	queue        queueService
	appointments appointments.Repository
	horizonDays  int
	logger       *logging.Logger
}

func NewPatientHandler(dir doctorSearch, slots freeSlots, bk bookingService, q queueService, repo appointments.Repository, horizonDays int, logger *logging.Logger) *PatientHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientHandler{
		directory:    dir,
		slots:        slots,
		booking:      bk,
		queue:        q,
		appointments: repo,
		horizonDays:  horizonDays,
		logger:       logger.WithComponent("patient-api"),
	}
}

type BookRequest struct {
	DoctorID string `json:"doctorId" validate:"required,max=128"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,max=16"`
	Symptoms string `json:"symptoms" validate:"max=500"`
}

// SearchDoctors handles GET /api/doctors?specialty=&city=&name=.
func (h *PatientHandler) SearchDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := h.directory.Search(r.Context(), doctors.Query{
		Specialty: q.Get("specialty"),
		City:      q.Get("city"),
		Name:      q.Get("name"),
	})
	if err != nil {
		writeDomainError(w, h.logger, "search doctors", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": nonNil(results)})
}

// Slots handles GET /api/doctors/{doctorID}/slots?days=N.
func (h *PatientHandler) Slots(w http.ResponseWriter, r *http.Request) {
	days := h.horizonDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 60 {
			jsonError(w, "days must be between 1 and 60", http.StatusBadRequest)
			return
		}
		days = n
	}
	out, err := h.slots.FreeSlots(r.Context(), chi.URLParam(r, "doctorID"), days)
	if err != nil {
		writeDomainError(w, h.logger, "free slots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": nonNil(out)})
}

// Book handles POST /api/appointments.
func (h *PatientHandler) Book(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req BookRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.booking.Book(r.Context(), booking.Request{
		DoctorID:    req.DoctorID,
		PatientID:   p.AccountID,
		PatientName: p.Name,
		Date:        req.Date,
		Time:        req.Time,
		Symptoms:    req.Symptoms,
	})
	if err != nil {
		writeDomainError(w, h.logger, "book appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Cancel handles DELETE /api/appointments/{appointmentID}.
func (h *PatientHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	appt, err := h.booking.Cancel(r.Context(), chi.URLParam(r, "appointmentID"), p.AccountID)
	if err != nil {
		writeDomainError(w, h.logger, "cancel appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Appointments handles GET /api/appointments.
func (h *PatientHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.appointments.ListByPatient(r.Context(), p.AccountID, statusFilter(r)...)
	if err != nil {
		writeDomainError(w, h.logger, "list patient appointments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": nonNil(list)})
}

// JoinQueue handles POST /api/queue/{doctorID}/join.
func (h *PatientHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	entry, err := h.queue.Join(r.Context(), chi.URLParam(r, "doctorID"), p.AccountID, p.Name)
	if err != nil {
		writeDomainError(w, h.logger, "join queue", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// QueueStatus handles GET /api/queue/{doctorID}/status.
func (h *PatientHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	pos, err := h.queue.Status(r.Context(), chi.URLParam(r, "doctorID"), p.AccountID)
	if err != nil {
		writeDomainError(w, h.logger, "queue status", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
