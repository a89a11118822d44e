package conversation

import (
	"errors"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/intent"
)

// DefaultLanguage is the preferred reply language for new sessions.
const DefaultLanguage = "hi"

// AnonymousAccount scopes sessions started without an account.
const AnonymousAccount = "anonymous"

var (
	ErrConversationNotFound = errors.New("conversation: not found")
	// ErrPendingWithoutDoctor rejects a patch that would leave a booking
	// pending with no doctor selected.
	ErrPendingWithoutDoctor = errors.New("conversation: pending booking requires a selected doctor")
	ErrConcurrentUpdate     = errors.New("conversation: too many concurrent updates")
)

// Message is one entry of the append-only transcript.
type Message struct {
	Role      string         `json:"role"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Intent    intent.Intent  `json:"intent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// State is the mutable per-session context carried between turns.
type State struct {
	LastIntent         intent.Intent      `json:"lastIntent,omitempty"`
	LastDoctors        []intent.DoctorRef `json:"lastDoctors,omitempty"`
	SelectedDoctorID   string             `json:"selectedDoctorId,omitempty"`
	SelectedDoctorName string             `json:"selectedDoctorName,omitempty"`
	PendingBooking     bool               `json:"pendingBooking"`
	PreferredLanguage  string             `json:"preferredLanguage,omitempty"`
	ExtractedInfo      map[string]string  `json:"extractedInfo,omitempty"`
}

// DoctorByKey looks up a remembered doctor by lower-cased name.
func (s State) DoctorByKey(key string) (intent.DoctorRef, bool) {
	for _, ref := range s.LastDoctors {
		if ref.Key == key {
			return ref, true
		}
	}
	return intent.DoctorRef{}, false
}

// IntentContext is the view the intent rules read.
func (s State) IntentContext() intent.Context {
	return intent.Context{
		LastIntent:         s.LastIntent,
		LastDoctors:        s.LastDoctors,
		SelectedDoctorID:   s.SelectedDoctorID,
		SelectedDoctorName: s.SelectedDoctorName,
		PendingBooking:     s.PendingBooking,
	}
}

// Conversation is the stored row for one (account, session) pair.
type Conversation struct {
	AccountID string    `json:"accountId"`
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	Context   State     `json:"context"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newConversation(accountID, sessionID string, now time.Time) *Conversation {
	return &Conversation{
		AccountID: accountID,
		SessionID: sessionID,
		Messages:  []Message{},
		Context:   State{PreferredLanguage: DefaultLanguage},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Recent returns up to n trailing messages.
func (c *Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Patch is a partial update of State. Nil fields are left untouched, so
// setting only PendingBooking never clears the selected doctor.
type Patch struct {
	LastIntent         *intent.Intent
	LastDoctors        *[]intent.DoctorRef
	SelectedDoctorID   *string
	SelectedDoctorName *string
	PendingBooking     *bool
	PreferredLanguage  *string
	// ExtractedInfo keys are merged; an empty value deletes the key.
	ExtractedInfo map[string]string
}

// Apply merges p into a copy of s and checks the pending-booking invariant.
func (s State) Apply(p Patch) (State, error) {
	out := s
	if p.LastIntent != nil {
		out.LastIntent = *p.LastIntent
	}
	if p.LastDoctors != nil {
		out.LastDoctors = append([]intent.DoctorRef(nil), (*p.LastDoctors)...)
	}
	if p.SelectedDoctorID != nil {
		out.SelectedDoctorID = *p.SelectedDoctorID
	}
	if p.SelectedDoctorName != nil {
		out.SelectedDoctorName = *p.SelectedDoctorName
	}
	if p.PendingBooking != nil {
		out.PendingBooking = *p.PendingBooking
	}
	if p.PreferredLanguage != nil && *p.PreferredLanguage != "" {
		out.PreferredLanguage = *p.PreferredLanguage
	}
	if len(p.ExtractedInfo) > 0 {
		merged := make(map[string]string, len(s.ExtractedInfo)+len(p.ExtractedInfo))
		for k, v := range s.ExtractedInfo {
			merged[k] = v
		}
		for k, v := range p.ExtractedInfo {
			if v == "" {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		out.ExtractedInfo = merged
	}
	if out.PendingBooking && out.SelectedDoctorID == "" {
		return s, ErrPendingWithoutDoctor
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }
