package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-engine/internal/availability"
	"github.com/wolfman30/clinic-booking-engine/internal/booking"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/intent"
	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.conversation")

// Action tells the client which widget to render next to the reply.
type Action string

const (
	ActionShowAvailability    Action = "SHOW_AVAILABILITY"
	ActionShowSlotsForBooking Action = "SHOW_SLOTS_FOR_BOOKING"
	ActionShowDoctorCards     Action = "SHOW_DOCTOR_CARDS"
	ActionShowProfiles        Action = "SHOW_PROFILES"
)

const availabilityHorizon = 14

var ErrEmptyMessage = errors.New("conversation: message is required")

// HistoryEntry is a prior turn supplied by the client.
type HistoryEntry struct {
	Role string `json:"role" validate:"required,oneof=user assistant"`
	Text string `json:"text" validate:"max=2000"`
}

type Request struct {
	Message       string
	AccountID     string
	SessionID     string
	RecentHistory []HistoryEntry
	// PatientName is copied onto appointments booked in this turn.
	PatientName string
}

// DoctorCard is a search result or profile shown in the chat.
type DoctorCard struct {
	doctors.Summary
	Bio     string `json:"bio,omitempty"`
	Timings string `json:"timings,omitempty"`
}

type AppointmentInfo struct {
	ID          string `json:"id"`
	DoctorID    string `json:"doctorId"`
	DoctorName  string `json:"doctorName"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Fee         int    `json:"fee"`
	Status      string `json:"status"`
	TokenNumber int    `json:"tokenNumber"`
}

type Response struct {
	Reply        string                  `json:"reply"`
	SessionID    string                  `json:"sessionId"`
	Intent       intent.Intent           `json:"intent"`
	Action       Action                  `json:"action,omitempty"`
	Doctors      []DoctorCard            `json:"doctors,omitempty"`
	Availability []availability.DaySlots `json:"availability,omitempty"`
	Appointment  *AppointmentInfo        `json:"appointment,omitempty"`
	Emergency    bool                    `json:"emergency,omitempty"`
}

type doctorFinder interface {
	Search(ctx context.Context, q doctors.Query) ([]doctors.Summary, error)
}

type doctorReader interface {
	Get(ctx context.Context, doctorID string) (*doctors.Doctor, error)
}

type slotIndex interface {
	FreeSlots(ctx context.Context, doctorID string, horizonDays int) ([]availability.DaySlots, error)
	EarliestDateFor(ctx context.Context, doctorID, label string, horizonDays int) (string, error)
}

type booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// ServiceDeps are the collaborators of Service. Classifier may be nil, in
// which case only local rules route messages.
type ServiceDeps struct {
	Store        ContextStore
	Resolver     *intent.Resolver
	Classifier   *HintClassifier
	Directory    doctorFinder
	Doctors      doctorReader
	Availability slotIndex
	Booking      booker
	Metrics      *metrics.ConversationMetrics
	Logger       *logging.Logger
}

// Service runs one conversational turn end to end.
type Service struct {
	ServiceDeps
	now func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Resolver == nil {
		deps.Resolver = intent.NewResolver(nil)
	}
	return &Service{ServiceDeps: deps, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// turn accumulates the reply and the context patch while one message is
// handled.
type turn struct {
	req   Request
	state State
	res   intent.Resolution
	resp  Response
	patch Patch
}

func (t *turn) selectDoctor(id, name string, pending bool) {
	t.patch.SelectedDoctorID = ptr(id)
	t.patch.SelectedDoctorName = ptr(name)
	t.patch.PendingBooking = ptr(pending)
}

// Handle routes one message and persists the transcript and context. Only
// an empty message or a context store failure is returned as an error;
// everything else becomes a reply.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if req.AccountID == "" {
		req.AccountID = AnonymousAccount
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "conversation.handle")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.session_id", req.SessionID))
	start := s.now()

	state := State{PreferredLanguage: DefaultLanguage}
	var history []Message
	conv, err := s.Store.Get(ctx, req.AccountID, req.SessionID)
	switch {
	case err == nil:
		state = conv.Context
		history = conv.Recent(hintHistoryTurns)
	case !errors.Is(err, ErrConversationNotFound):
		span.RecordError(err)
		return nil, err
	}
	if len(req.RecentHistory) > 0 {
		history = fromHistory(req.RecentHistory)
	}

	in := intent.Input{Message: req.Message, Context: state.IntentContext(), Now: start}
	res := s.Resolver.Resolve(in)
	if res.Intent != intent.Emergency {
		in.Hint = s.Classifier.Classify(ctx, req.Message, history)
		res = s.Resolver.Resolve(in)
	}
	span.SetAttributes(attribute.String("clinic.intent", string(res.Intent)))
	s.Metrics.ObserveIntent(string(res.Intent))

	t := &turn{
		req:   req,
		state: state,
		res:   res,
		resp:  Response{SessionID: req.SessionID, Intent: res.Intent},
		patch: Patch{LastIntent: ptr(res.Intent), ExtractedInfo: extracted(res)},
	}
	switch res.Intent {
	case intent.Emergency:
		t.resp.Reply = intent.EmergencyReply
		t.resp.Emergency = true
	case intent.ConfirmBooking:
		s.confirmBooking(ctx, t)
	case intent.CheckAvailability:
		s.checkAvailability(ctx, t)
	case intent.FindDoctor:
		s.findDoctor(ctx, t)
	case intent.ViewProfile:
		s.viewProfile(ctx, t)
	default:
		t.resp.Reply = helpReply
	}

	if err := s.persist(ctx, t, start); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.Metrics.ObserveTurn(string(res.Intent), s.now().Sub(start).Seconds())
	return &t.resp, nil
}

func (s *Service) persist(ctx context.Context, t *turn, at time.Time) error {
	meta := map[string]any{"rule": t.res.Rule}
	reply := Message{Role: ChatRoleAssistant, Text: t.resp.Reply, Timestamp: s.now().UTC(), Intent: t.res.Intent}
	if t.resp.Action != "" {
		reply.Metadata = map[string]any{"action": string(t.resp.Action)}
	}
	err := s.Store.AppendMessages(ctx, t.req.AccountID, t.req.SessionID,
		Message{Role: ChatRoleUser, Text: t.req.Message, Timestamp: at.UTC(), Intent: t.res.Intent, Metadata: meta},
		reply,
	)
	if err != nil {
		return fmt.Errorf("conversation: append messages: %w", err)
	}
	if _, err := s.Store.Upsert(ctx, t.req.AccountID, t.req.SessionID, t.patch); err != nil {
		return fmt.Errorf("conversation: update context: %w", err)
	}
	return nil
}

// targetDoctor is the doctor named in the message, else the one already
// selected in this session.
func targetDoctor(t *turn) (intent.DoctorRef, bool) {
	if ref := t.res.Entities.Doctor; ref != nil {
		return *ref, true
	}
	if t.state.SelectedDoctorID != "" {
		return intent.DoctorRef{ID: t.state.SelectedDoctorID, Name: t.state.SelectedDoctorName}, true
	}
	return intent.DoctorRef{}, false
}

func (s *Service) findDoctor(ctx context.Context, t *turn) {
	specialty := t.res.Specialty
	found, err := s.Directory.Search(ctx, doctors.Query{Specialty: specialty})
	if err != nil {
		s.Logger.Error("doctor search failed", "specialty", specialty, "error", err)
		t.resp.Reply = retryReply
		return
	}
	if len(found) == 0 {
		t.resp.Reply = fmt.Sprintf("I couldn't find any %s doctors right now. Please try another specialty or city.", specialty)
		return
	}

	refs := make([]intent.DoctorRef, 0, len(found))
	for _, d := range found {
		t.resp.Doctors = append(t.resp.Doctors, DoctorCard{Summary: d})
		refs = append(refs, intent.DoctorRef{Key: strings.ToLower(d.Name), ID: d.ID, Name: d.Name})
	}
	t.resp.Action = ActionShowDoctorCards
	t.resp.Reply = fmt.Sprintf("For these symptoms a %s can help. Here are %d doctors you can book with. Tell me a name or say \"first doctor\".", specialty, len(found))
	t.patch.LastDoctors = &refs
	t.patch.PendingBooking = ptr(false)
}

func (s *Service) checkAvailability(ctx context.Context, t *turn) {
	ref, ok := targetDoctor(t)
	if !ok {
		t.resp.Reply = "Which doctor would you like to check? Search by symptom or specialty first, then pick a doctor."
		return
	}
	days, err := s.Availability.FreeSlots(ctx, ref.ID, availabilityHorizon)
	if err != nil {
		s.replyForLookupError(t, ref, err)
		return
	}
	t.resp.Action = ActionShowAvailability
	t.resp.Availability = filterDate(days, t.res.Entities.Date)
	if len(t.resp.Availability) == 0 {
		t.resp.Reply = fmt.Sprintf("%s has no free slots in the next %d days.", ref.Name, availabilityHorizon)
		t.selectDoctor(ref.ID, ref.Name, false)
		return
	}
	t.resp.Reply = fmt.Sprintf("Here are the free slots for %s. Reply with a time to book.", ref.Name)
	t.selectDoctor(ref.ID, ref.Name, true)
}

func (s *Service) confirmBooking(ctx context.Context, t *turn) {
	ref, ok := targetDoctor(t)
	if !ok {
		t.resp.Reply = "Which doctor should I book? Tell me your symptoms and I'll suggest one."
		return
	}
	date, at := t.res.Entities.Date, t.res.Entities.Time
	if at == "" {
		s.offerSlots(ctx, t, ref, fmt.Sprintf("What time works for you with %s? Pick one of these slots.", ref.Name))
		return
	}
	if date == "" {
		earliest, err := s.Availability.EarliestDateFor(ctx, ref.ID, at, availabilityHorizon)
		if err != nil {
			s.replyForLookupError(t, ref, err)
			return
		}
		if earliest == "" {
			s.offerSlots(ctx, t, ref, fmt.Sprintf("%s has no free %s slot soon. Here is what is open.", ref.Name, at))
			return
		}
		date = earliest
	}

	patientID := t.req.AccountID
	result, err := s.Booking.Book(ctx, booking.Request{
		DoctorID:    ref.ID,
		PatientID:   patientID,
		PatientName: t.req.PatientName,
		Date:        date,
		Time:        at,
		Symptoms:    t.state.ExtractedInfo["specialty"],
	})
	if err != nil {
		s.replyForBookingError(ctx, t, ref, date, at, err)
		return
	}

	appt := result.Appointment
	t.resp.Appointment = &AppointmentInfo{
		ID:          appt.ID,
		DoctorID:    appt.DoctorID,
		DoctorName:  appt.DoctorName,
		Date:        appt.Date,
		Time:        appt.Time,
		Fee:         appt.Fee,
		Status:      string(appt.Status),
		TokenNumber: result.TokenNumber,
	}
	t.resp.Reply = fmt.Sprintf("Your appointment with %s is confirmed for %s at %s. Your token number is %d. Consultation fee: Rs %d.",
		appt.DoctorName, appt.Date, appt.Time, result.TokenNumber, appt.Fee)
	t.selectDoctor(ref.ID, appt.DoctorName, false)
}

func (s *Service) replyForBookingError(ctx context.Context, t *turn, ref intent.DoctorRef, date, at string, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		t.resp.Reply = "I couldn't find that doctor any more. Please search again."
		t.selectDoctor("", "", false)
	case errors.Is(err, booking.ErrDuplicateBooking):
		t.resp.Reply = fmt.Sprintf("You already have an upcoming appointment with %s.", ref.Name)
		t.patch.PendingBooking = ptr(false)
	case errors.Is(err, booking.ErrDateUnavailable):
		s.offerSlots(ctx, t, ref, fmt.Sprintf("%s is not available on %s. Here are the open dates.", ref.Name, date))
	case errors.Is(err, booking.ErrSlotNotFound), errors.Is(err, booking.ErrSlotUnavailable):
		s.offerSlots(ctx, t, ref, fmt.Sprintf("The %s slot on %s is not available. Please pick another time.", at, date))
	default:
		s.Logger.Error("booking failed", "doctor_id", ref.ID, "date", date, "time", at, "error", err)
		t.resp.Reply = retryReply
	}
}

// offerSlots shows the doctor's free slots and leaves the booking pending so
// a bare time in the next message completes it.
func (s *Service) offerSlots(ctx context.Context, t *turn, ref intent.DoctorRef, reply string) {
	days, err := s.Availability.FreeSlots(ctx, ref.ID, availabilityHorizon)
	if err != nil {
		s.replyForLookupError(t, ref, err)
		return
	}
	if len(days) == 0 {
		t.resp.Reply = fmt.Sprintf("%s has no free slots in the next %d days.", ref.Name, availabilityHorizon)
		t.selectDoctor(ref.ID, ref.Name, false)
		return
	}
	t.resp.Reply = reply
	t.resp.Action = ActionShowSlotsForBooking
	t.resp.Availability = days
	t.selectDoctor(ref.ID, ref.Name, true)
}

func (s *Service) viewProfile(ctx context.Context, t *turn) {
	var refs []intent.DoctorRef
	if ref, ok := targetDoctor(t); ok {
		refs = []intent.DoctorRef{ref}
	} else {
		refs = t.state.LastDoctors
	}
	for _, ref := range refs {
		d, err := s.Doctors.Get(ctx, ref.ID)
		if err != nil {
			s.Logger.Warn("profile lookup failed", "doctor_id", ref.ID, "error", err)
			continue
		}
		t.resp.Doctors = append(t.resp.Doctors, DoctorCard{Summary: d.Summary(), Bio: d.Profile.Bio, Timings: d.Timings})
	}
	if len(t.resp.Doctors) == 0 {
		t.resp.Reply = "I don't have those doctor details. Please search for a doctor first."
		return
	}
	t.resp.Action = ActionShowProfiles
	t.resp.Reply = "Here are the doctor details."
}

func (s *Service) replyForLookupError(t *turn, ref intent.DoctorRef, err error) {
	if errors.Is(err, doctors.ErrDoctorNotFound) {
		t.resp.Reply = "I couldn't find that doctor. Please search again."
		t.selectDoctor("", "", false)
		return
	}
	s.Logger.Error("availability lookup failed", "doctor_id", ref.ID, "error", err)
	t.resp.Reply = retryReply
}

func filterDate(days []availability.DaySlots, date string) []availability.DaySlots {
	if date == "" {
		return days
	}
	for _, d := range days {
		if d.Date == date {
			return []availability.DaySlots{d}
		}
	}
	return nil
}

func extracted(res intent.Resolution) map[string]string {
	info := map[string]string{}
	if res.Specialty != "" {
		info["specialty"] = res.Specialty
	}
	if res.Entities.Date != "" {
		info["date"] = res.Entities.Date
	}
	if res.Entities.Time != "" {
		info["time"] = res.Entities.Time
	}
	return info
}

func fromHistory(entries []HistoryEntry) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, Message{Role: e.Role, Text: e.Text})
	}
	return out
}

const (
	helpReply = "I can help you find a doctor, check availability and book an appointment. " +
		"Tell me your symptoms, for example \"mujhe migraine hai\", or name a doctor."
	retryReply = "Sorry, something went wrong on our side. Please try again in a moment."
)
