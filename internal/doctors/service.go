package doctors

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// Service is the doctor-facing calendar surface: publishing availability and
// presence status.
type Service struct {
	aggregates  *Aggregates
	events      events.Publisher
	logger      *logging.Logger
	now         func() time.Time
	loc         *time.Location
	horizonDays int
}

func NewService(aggregates *Aggregates, publisher events.Publisher, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		aggregates:  aggregates,
		events:      publisher,
		logger:      logger,
		now:         time.Now,
		loc:         time.UTC,
		horizonDays: 14,
	}
}

// WithClock overrides the clock and clinic timezone.
func (s *Service) WithClock(now func() time.Time, loc *time.Location) *Service {
	if now != nil {
		s.now = now
	}
	if loc != nil {
		s.loc = loc
	}
	return s
}

func (s *Service) WithHorizon(days int) *Service {
	if days > 0 {
		s.horizonDays = days
	}
	return s
}

func (s *Service) Get(ctx context.Context, doctorID string) (*Doctor, error) {
	return s.aggregates.Get(ctx, doctorID)
}

// Register creates a doctor record.
func (s *Service) Register(ctx context.Context, d *Doctor) error {
	if d == nil || d.ID == "" || d.Name == "" {
		return fmt.Errorf("doctors: id and name are required")
	}
	return s.aggregates.Store().Create(ctx, d)
}

// PublishAvailability replaces the whole calendar. Patients are notified when
// the doctor moves between having and not having free slots.
func (s *Service) PublishAvailability(ctx context.Context, doctorID string, days []Day) (*Doctor, error) {
	var before, after bool
	now := s.now().In(s.loc)
	d, err := s.aggregates.Mutate(ctx, doctorID, func(d *Doctor) error {
		before = d.HasFreeSlot(now, s.horizonDays)
		if err := d.ReplaceAvailability(days); err != nil {
			return err
		}
		after = d.HasFreeSlot(now, s.horizonDays)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("availability published", "doctor_id", doctorID, "days", len(days), "has_availability", after)
	if before != after {
		s.events.Publish(ctx, events.DoctorAggregate(d.ID), events.AvailabilityChangedV1{
			DoctorID:        d.ID,
			DoctorName:      d.Name,
			HasAvailability: after,
			Status:          string(d.Status),
			ChangedAt:       s.now().UTC(),
		})
	}
	return d, nil
}

// SetStatus flips the doctor's presence; a change is broadcast to patients.
func (s *Service) SetStatus(ctx context.Context, doctorID string, status Status) (*Doctor, error) {
	if status != StatusAvailable && status != StatusNotAvailable {
		return nil, fmt.Errorf("doctors: unknown status %q", status)
	}
	changed := false
	d, err := s.aggregates.Mutate(ctx, doctorID, func(d *Doctor) error {
		changed = d.Status != status
		d.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("doctor status changed", "doctor_id", doctorID, "status", status)
		s.events.Publish(ctx, events.DoctorAggregate(d.ID), events.AvailabilityChangedV1{
			DoctorID:        d.ID,
			DoctorName:      d.Name,
			HasAvailability: status == StatusAvailable && d.HasFreeSlot(s.now().In(s.loc), s.horizonDays),
			Status:          string(status),
			ChangedAt:       s.now().UTC(),
		})
	}
	return d, nil
}
