// Package booking commits slot reservations and queue admission against the
// doctor aggregate and mirrors them into appointment records.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/internal/slottime"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.booking")

type Request struct {
	DoctorID    string
	PatientID   string
	PatientName string
	Date        string
	Time        string
	Symptoms    string
}

type Result struct {
	Appointment *appointments.Appointment `json:"appointment"`
	TokenNumber int                       `json:"tokenNumber"`
	Doctor      doctors.Summary           `json:"doctor"`
}

type Service struct {
	aggregates   *doctors.Aggregates
	appointments appointments.Repository
	events       events.Publisher
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
	now          func() time.Time
	loc          *time.Location
}

func NewService(agg *doctors.Aggregates, repo appointments.Repository, publisher events.Publisher, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		aggregates:   agg,
		appointments: repo,
		events:       publisher,
		logger:       logger.WithComponent("booking"),
		now:          time.Now,
		loc:          time.UTC,
	}
}

func (s *Service) WithClock(now func() time.Time, loc *time.Location) *Service {
	if now != nil {
		s.now = now
	}
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) today() string {
	return slottime.Day(s.now().In(s.loc)).Format(slottime.DateLayout)
}

// Book reserves the slot and admits the patient to the doctor's queue.
// Preconditions are evaluated under the doctor's lock in this order: doctor
// exists, no active appointment with the doctor, date published, slot free
// and not yet started.
func (s *Service) Book(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID),
		attribute.String("clinic.patient_id", req.PatientID),
	)
	defer func() {
		s.metrics.ObserveBooking(Outcome(err))
		if err != nil && !IsPrecondition(err) {
			span.RecordError(err)
		}
	}()

	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if req.DoctorID == "" || req.PatientID == "" || req.Date == "" || req.Time == "" {
		return nil, ErrInvalidRequest
	}

	today := s.today()
	var (
		slot     doctors.SlotRef
		entry    doctors.QueueEntry
		admitted bool
		appt     *appointments.Appointment
		recorded bool
	)
	apply := func(d *doctors.Doctor) error {
		if err := s.checkNotBooked(ctx, d, req.PatientID, today); err != nil {
			return err
		}
		var err error
		if slot, err = d.BookSlot(req.Date, req.Time, req.PatientID); err != nil {
			return err
		}
		if slottime.Passed(slot.Date, slot.Time, s.now().In(s.loc)) {
			return fmt.Errorf("%w: %s %s has already passed", ErrSlotNotFound, slot.Date, slot.Time)
		}
		entry, admitted = d.Admit(req.PatientID, req.PatientName, s.now())
		return nil
	}
	// The appointment is written while the doctor is still locked, so a
	// concurrent call-next or reset sees either none of the booking or all of it.
	record := func(ctx context.Context, d *doctors.Doctor) error {
		appt = &appointments.Appointment{
			DoctorID:    d.ID,
			DoctorName:  d.Name,
			PatientID:   req.PatientID,
			PatientName: req.PatientName,
			Date:        slot.Date,
			Time:        slot.Time,
			Fee:         d.Profile.ConsultationFee,
			Status:      appointments.StatusScheduled,
			Symptoms:    req.Symptoms,
			TokenNumber: entry.TokenNumber,
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return fmt.Errorf("booking: record appointment: %w", err)
		}
		recorded = true
		return nil
	}
	undo := func(d *doctors.Doctor) {
		d.ReleaseSlot(slot.Date, slot.Time, req.PatientID)
		if admitted {
			d.RemoveActiveEntry(req.PatientID)
		}
	}

	doc, err := s.aggregates.MutateAndCommit(ctx, req.DoctorID, apply, record, undo)
	if err != nil {
		switch {
		case IsPrecondition(err):
			s.logger.Info("booking rejected", "doctor_id", req.DoctorID, "patient_id", req.PatientID,
				"date", req.Date, "time", req.Time, "reason", Outcome(err))
		case appt != nil && !recorded:
			s.logger.Error("appointment insert failed, booking rolled back",
				"doctor_id", req.DoctorID, "patient_id", req.PatientID, "error", err)
		default:
			s.logger.Error("booking failed", "doctor_id", req.DoctorID, "patient_id", req.PatientID, "error", err)
		}
		return nil, err
	}
	if admitted {
		s.metrics.ObserveTokenIssued("booking")
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID, "doctor_id", doc.ID, "patient_id", req.PatientID,
		"date", slot.Date, "time", slot.Time, "token_number", entry.TokenNumber)

	s.events.Publish(ctx, events.DoctorAggregate(doc.ID), events.AppointmentCreatedV1{
		AppointmentID: appt.ID,
		DoctorID:      doc.ID,
		DoctorName:    doc.Name,
		PatientID:     req.PatientID,
		PatientName:   req.PatientName,
		Date:          slot.Date,
		Time:          slot.Time,
		Fee:           appt.Fee,
		TokenNumber:   entry.TokenNumber,
		Symptoms:      req.Symptoms,
		CreatedAt:     appt.CreatedAt,
	})
	return &Result{Appointment: appt, TokenNumber: entry.TokenNumber, Doctor: doc.Summary()}, nil
}

// checkNotBooked enforces one active appointment per patient and doctor. The
// calendar is consulted as well as the appointment store so a booking whose
// record is still being written is seen.
func (s *Service) checkNotBooked(ctx context.Context, d *doctors.Doctor, patientID, today string) error {
	for _, ref := range d.BookedSlots() {
		if ref.PatientID == patientID && ref.Date >= today {
			return ErrDuplicateBooking
		}
	}
	_, err := s.appointments.FindActive(ctx, d.ID, patientID, today)
	switch {
	case err == nil:
		return ErrDuplicateBooking
	case errors.Is(err, appointments.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("booking: check active appointment: %w", err)
	}
}

// Cancel releases the patient's slot and queue entry and marks the
// appointment Cancelled.
func (s *Service) Cancel(ctx context.Context, appointmentID, patientID string) (*appointments.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", appointmentID))

	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if patientID != "" && appt.PatientID != patientID {
		return nil, ErrNotOwner
	}
	if appt.Status != appointments.StatusScheduled {
		return nil, ErrNotCancellable
	}

	doctorName := appt.DoctorName
	markCancelled := func(ctx context.Context, _ *doctors.Doctor) error {
		return s.appointments.UpdateStatus(ctx, appt.ID, appointments.StatusScheduled, appointments.StatusCancelled)
	}
	_, err = s.aggregates.MutateAndCommit(ctx, appt.DoctorID, func(d *doctors.Doctor) error {
		doctorName = d.Name
		d.ReleaseSlot(appt.Date, appt.Time, appt.PatientID)
		d.RemoveActiveEntry(appt.PatientID)
		return nil
	}, markCancelled, func(d *doctors.Doctor) {
		// the queue entry is gone for good; the slot goes back to the patient
		_, _ = d.BookSlot(appt.Date, appt.Time, appt.PatientID)
	})
	if errors.Is(err, doctors.ErrDoctorNotFound) {
		err = markCancelled(ctx, nil)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = appointments.StatusCancelled

	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "patient_id", appt.PatientID)
	s.events.Publish(ctx, events.DoctorAggregate(appt.DoctorID), events.AppointmentCancelledV1{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		DoctorName:    doctorName,
		PatientID:     appt.PatientID,
		Date:          appt.Date,
		Time:          appt.Time,
		Reason:        "patient_cancelled",
		CancelledAt:   s.now().UTC(),
	})
	return appt, nil
}
