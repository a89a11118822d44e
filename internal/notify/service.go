package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// Consumer is the name under which processed events are recorded.
const Consumer = "notify"

type deduper interface {
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Service turns scheduling events into feed entries, SMS and email. Feed
// writes are the contract and their failures are returned; SMS and email
// are best-effort and only logged.
type Service struct {
	store    Store
	contacts ContactBook
	sms      SMSSender
	email    EmailSender
	dedupe   deduper
	logger   *logging.Logger
}

// NewService wires the senders; any of contacts, sms, email and dedupe may
// be nil.
func NewService(store Store, contacts ContactBook, sms SMSSender, email EmailSender, dedupe deduper, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, contacts: contacts, sms: sms, email: email, dedupe: dedupe, logger: logger}
}

// Handle implements events.Handler.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	if s.dedupe != nil {
		fresh, err := s.dedupe.MarkProcessed(ctx, Consumer, env.EventID.String())
		if err != nil {
			return err
		}
		if !fresh {
			s.logger.Debug("notify: duplicate event skipped", "event_id", env.EventID)
			return nil
		}
	}

	switch env.EventType {
	case events.TypeAppointmentCreated:
		var evt events.AppointmentCreatedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return s.appointmentCreated(ctx, env, evt)
	case events.TypeAppointmentCancelled:
		var evt events.AppointmentCancelledV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return s.appointmentCancelled(ctx, env, evt)
	case events.TypeQueueCalled:
		var evt events.QueueCalledV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return s.queueCalled(ctx, env, evt)
	case events.TypeQueueJoined:
		var evt events.QueueJoinedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return s.add(ctx, &Notification{
			RecipientID: evt.PatientID,
			DoctorID:    evt.DoctorID,
			Type:        TypeQueue,
			Message:     fmt.Sprintf("You joined %s's queue. Your token number is %d.", evt.DoctorName, evt.TokenNumber),
			EventID:     env.EventID.String(),
		})
	case events.TypeAvailabilityChanged:
		var evt events.AvailabilityChangedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		msg := fmt.Sprintf("%s is now accepting appointments.", evt.DoctorName)
		if !evt.HasAvailability {
			msg = fmt.Sprintf("%s is currently not available.", evt.DoctorName)
		}
		return s.add(ctx, &Notification{DoctorID: evt.DoctorID, Type: TypeAvailability, Message: msg, EventID: env.EventID.String()})
	default:
		return nil
	}
}

func (s *Service) appointmentCreated(ctx context.Context, env events.Envelope, evt events.AppointmentCreatedV1) error {
	patient := evt.PatientName
	if patient == "" {
		patient = "A patient"
	}
	if err := s.add(ctx, &Notification{
		RecipientID: evt.DoctorID,
		DoctorID:    evt.DoctorID,
		Type:        TypeAppointment,
		Message:     fmt.Sprintf("New appointment: %s on %s at %s (token %d).", patient, evt.Date, evt.Time, evt.TokenNumber),
		EventID:     env.EventID.String(),
	}); err != nil {
		return err
	}

	confirm := fmt.Sprintf("Your appointment with %s on %s at %s is confirmed. Token number: %d. Fee: Rs %d.",
		evt.DoctorName, evt.Date, evt.Time, evt.TokenNumber, evt.Fee)
	if err := s.add(ctx, &Notification{
		RecipientID: evt.PatientID,
		DoctorID:    evt.DoctorID,
		Type:        TypeAppointment,
		Message:     confirm,
		EventID:     env.EventID.String(),
	}); err != nil {
		return err
	}
	s.reach(ctx, evt.PatientID, "Appointment confirmed", confirm)
	return nil
}

func (s *Service) appointmentCancelled(ctx context.Context, env events.Envelope, evt events.AppointmentCancelledV1) error {
	msg := fmt.Sprintf("Your appointment with %s has been cancelled.", evt.DoctorName)
	if evt.Date != "" {
		msg = fmt.Sprintf("Your appointment with %s on %s at %s has been cancelled.", evt.DoctorName, evt.Date, evt.Time)
	}
	if err := s.add(ctx, &Notification{
		RecipientID: evt.PatientID,
		DoctorID:    evt.DoctorID,
		Type:        TypeAppointmentCancel,
		Message:     msg,
		EventID:     env.EventID.String(),
	}); err != nil {
		return err
	}
	s.reach(ctx, evt.PatientID, "Appointment cancelled", msg)
	return nil
}

func (s *Service) queueCalled(ctx context.Context, env events.Envelope, evt events.QueueCalledV1) error {
	msg := fmt.Sprintf("It's your turn! %s is ready to see you now (token %d).", evt.DoctorName, evt.TokenNumber)
	if err := s.add(ctx, &Notification{
		RecipientID: evt.PatientID,
		DoctorID:    evt.DoctorID,
		Type:        TypeCalled,
		Message:     msg,
		EventID:     env.EventID.String(),
	}); err != nil {
		return err
	}
	s.text(ctx, evt.PatientID, msg)
	return nil
}

func (s *Service) add(ctx context.Context, n *Notification) error {
	if err := s.store.Add(ctx, n); err != nil {
		return fmt.Errorf("notify: store %s notification: %w", n.Type, err)
	}
	return nil
}

// reach sends SMS and email to whatever channels the patient has.
func (s *Service) reach(ctx context.Context, accountID, subject, body string) {
	c, ok := s.contact(ctx, accountID)
	if !ok {
		return
	}
	if c.Phone != "" && s.sms != nil {
		if err := s.sms.SendSMS(ctx, c.Phone, body); err != nil {
			s.logger.Warn("notify: sms failed", "account_id", accountID, "error", err)
		}
	}
	if c.Email != "" && s.email != nil {
		if err := s.email.Send(ctx, EmailMessage{To: c.Email, ToName: c.Name, Subject: subject, Body: body}); err != nil {
			s.logger.Warn("notify: email failed", "account_id", accountID, "error", err)
		}
	}
}

func (s *Service) text(ctx context.Context, accountID, body string) {
	c, ok := s.contact(ctx, accountID)
	if !ok || c.Phone == "" || s.sms == nil {
		return
	}
	if err := s.sms.SendSMS(ctx, c.Phone, body); err != nil {
		s.logger.Warn("notify: sms failed", "account_id", accountID, "error", err)
	}
}

func (s *Service) contact(ctx context.Context, accountID string) (Contact, bool) {
	if s.contacts == nil {
		return Contact{}, false
	}
	c, ok, err := s.contacts.Lookup(ctx, accountID)
	if err != nil {
		s.logger.Warn("notify: contact lookup failed", "account_id", accountID, "error", err)
		return Contact{}, false
	}
	return c, ok
}

var _ events.Handler = (*Service)(nil)
