// Package queue runs the per-doctor token queue: standalone joins, calling
// the next patient, resetting the day and reporting a patient's position.
package queue

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.queue")

// Action is a doctor-issued queue command.
type Action string

const (
	ActionNext  Action = "next"
	ActionReset Action = "reset"
)

var ErrUnknownAction = errors.New("queue: unknown action")

// ResetResult summarizes a reset.
type ResetResult struct {
	ClearedEntries      int      `json:"clearedEntries"`
	ReleasedSlots       int      `json:"releasedSlots"`
	DeletedAppointments int64    `json:"deletedAppointments"`
	NotifiedPatients    []string `json:"notifiedPatients"`
}

type Manager struct {
	aggregates   *doctors.Aggregates
	appointments appointments.Repository
	events       events.Publisher
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
	now          func() time.Time
}

func NewManager(agg *doctors.Aggregates, repo appointments.Repository, publisher events.Publisher, logger *logging.Logger) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		aggregates:   agg,
		appointments: repo,
		events:       publisher,
		logger:       logger.WithComponent("queue"),
		now:          time.Now,
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Manager) WithMetrics(sm *metrics.SchedulingMetrics) *Manager {
	m.metrics = sm
	return m
}

// Join admits the patient without a booking. The doctor must be Available
// and the patient must not already hold an active token.
func (m *Manager) Join(ctx context.Context, doctorID, patientID, patientName string) (entry doctors.QueueEntry, err error) {
	ctx, span := tracer.Start(ctx, "queue.join")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.doctor_id", doctorID))
	defer func() { m.metrics.ObserveQueueAction("join", outcome(err)) }()

	d, err := m.aggregates.Mutate(ctx, doctorID, func(d *doctors.Doctor) error {
		if d.Status != doctors.StatusAvailable {
			return doctors.ErrDoctorUnavailable
		}
		var admitted bool
		entry, admitted = d.Admit(patientID, patientName, m.now())
		if !admitted {
			return doctors.ErrAlreadyQueued
		}
		return nil
	})
	if err != nil {
		return doctors.QueueEntry{}, err
	}
	m.metrics.ObserveTokenIssued("join")
	m.logger.Info("patient joined queue", "doctor_id", doctorID, "patient_id", patientID, "token_number", entry.TokenNumber)

	m.events.Publish(ctx, events.DoctorAggregate(doctorID), events.QueueJoinedV1{
		DoctorID:    doctorID,
		DoctorName:  d.Name,
		PatientID:   patientID,
		PatientName: patientName,
		TokenNumber: entry.TokenNumber,
		JoinedAt:    entry.JoinedAt,
	})
	return entry, nil
}

// CallNext serves the lowest waiting token, frees that patient's slot and
// removes the mirrored appointment.
func (m *Manager) CallNext(ctx context.Context, doctorID string) (served doctors.Served, err error) {
	ctx, span := tracer.Start(ctx, "queue.call_next")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.doctor_id", doctorID))
	defer func() { m.metrics.ObserveQueueAction("next", outcome(err)) }()

	// the mirrored appointment is removed before the doctor is unlocked
	removeServed := func(ctx context.Context, _ *doctors.Doctor) error {
		if served.Released == nil {
			return nil
		}
		patientID := served.Entry.PatientID
		id, err := m.appointments.DeleteForSlot(ctx, doctorID, patientID, served.Released.Date, served.Released.Time)
		if err != nil {
			span.RecordError(err)
			m.logger.Error("failed to delete served appointment", "doctor_id", doctorID, "patient_id", patientID, "error", err)
		} else if id != "" {
			m.logger.Debug("served appointment removed", "appointment_id", id)
		}
		return nil
	}
	d, err := m.aggregates.MutateAndCommit(ctx, doctorID, func(d *doctors.Doctor) error {
		var err error
		served, err = d.CallNext(m.now())
		return err
	}, removeServed, nil)
	if err != nil {
		return doctors.Served{}, err
	}

	patientID := served.Entry.PatientID
	m.logger.Info("patient called", "doctor_id", doctorID, "patient_id", patientID, "token_number", served.Entry.TokenNumber)

	m.events.Publish(ctx, events.DoctorAggregate(doctorID), events.QueueCalledV1{
		DoctorID:    doctorID,
		DoctorName:  d.Name,
		PatientID:   patientID,
		PatientName: served.Entry.PatientName,
		TokenNumber: served.Entry.TokenNumber,
		CalledAt:    *served.Entry.ServedAt,
	})
	return served, nil
}

// Reset clears the queue and counters, frees every booked slot and removes
// the doctor's scheduled appointments. Each patient who lost a slot is sent
// one cancellation.
func (m *Manager) Reset(ctx context.Context, doctorID string) (res ResetResult, err error) {
	ctx, span := tracer.Start(ctx, "queue.reset")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.doctor_id", doctorID))
	defer func() { m.metrics.ObserveQueueAction("reset", outcome(err)) }()

	var (
		out     doctors.ResetOutcome
		deleted int64
	)
	deleteScheduled := func(ctx context.Context, _ *doctors.Doctor) error {
		var err error
		if deleted, err = m.appointments.DeleteByDoctor(ctx, doctorID); err != nil {
			// calendar is already reset; leftover rows are reported, not fatal
			span.RecordError(err)
			m.logger.Error("failed to delete appointments on reset", "doctor_id", doctorID, "error", err)
		}
		return nil
	}
	d, err := m.aggregates.MutateAndCommit(ctx, doctorID, func(d *doctors.Doctor) error {
		out = d.ResetQueue()
		return nil
	}, deleteScheduled, nil)
	if err != nil {
		return ResetResult{}, err
	}

	res = ResetResult{
		ClearedEntries:      len(out.ClearedEntries),
		ReleasedSlots:       len(out.ReleasedSlots),
		DeletedAppointments: deleted,
		NotifiedPatients:    out.AffectedPatients(),
	}
	m.logger.Info("queue reset", "doctor_id", doctorID, "cleared_entries", res.ClearedEntries,
		"released_slots", res.ReleasedSlots, "deleted_appointments", deleted)

	releasedAt := m.now().UTC()
	for _, ref := range firstSlotPerPatient(out.ReleasedSlots) {
		m.events.Publish(ctx, events.DoctorAggregate(doctorID), events.AppointmentCancelledV1{
			DoctorID:    doctorID,
			DoctorName:  d.Name,
			PatientID:   ref.PatientID,
			Date:        ref.Date,
			Time:        ref.Time,
			Reason:      "queue_reset",
			CancelledAt: releasedAt,
		})
	}
	return res, nil
}

// Status reports the patient's position in the doctor's queue.
func (m *Manager) Status(ctx context.Context, doctorID, patientID string) (doctors.Position, error) {
	d, err := m.aggregates.Get(ctx, doctorID)
	if err != nil {
		return doctors.Position{}, err
	}
	return d.PositionOf(patientID)
}

// Apply dispatches a doctor dashboard action.
func (m *Manager) Apply(ctx context.Context, doctorID string, action Action) (any, error) {
	switch action {
	case ActionNext:
		return m.CallNext(ctx, doctorID)
	case ActionReset:
		return m.Reset(ctx, doctorID)
	default:
		return nil, ErrUnknownAction
	}
}

func firstSlotPerPatient(refs []doctors.SlotRef) []doctors.SlotRef {
	seen := make(map[string]bool, len(refs))
	out := make([]doctors.SlotRef, 0, len(refs))
	for _, ref := range refs {
		if ref.PatientID == "" || seen[ref.PatientID] {
			continue
		}
		seen[ref.PatientID] = true
		out = append(out, ref)
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, doctors.ErrQueueEmpty):
		return "empty"
	case errors.Is(err, doctors.ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, doctors.ErrDoctorUnavailable):
		return "unavailable"
	case errors.Is(err, doctors.ErrDoctorNotFound):
		return "doctor_not_found"
	default:
		return "error"
	}
}
