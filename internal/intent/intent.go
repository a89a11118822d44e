// Package intent turns one patient message, the conversation context and an
// optional model hint into a routed intent. Rules are pure functions tried in
// a fixed priority order; the model hint only feeds the rules that ask for it.
package intent

import (
	"strings"
	"time"
	"unicode"
)

// Intent is a routed conversational action.
type Intent string

const (
	Emergency         Intent = "emergency"
	ConfirmBooking    Intent = "confirm_booking"
	CheckAvailability Intent = "check_availability"
	FindDoctor        Intent = "find_doctor"
	ViewProfile       Intent = "view_profile"
	Unknown           Intent = "unknown"
)

// Context is the slice of conversation state the rules read.
type Context struct {
	LastIntent         Intent
	LastDoctors        []DoctorRef
	SelectedDoctorID   string
	SelectedDoctorName string
	PendingBooking     bool
}

// Input is everything a rule may look at.
type Input struct {
	Message string
	Context Context
	// Hint is the external classifier's label; empty when it was unavailable.
	Hint string
	Now  time.Time
}

// Resolution is the routed intent with the entities extracted on the way.
type Resolution struct {
	Intent    Intent   `json:"intent"`
	Rule      string   `json:"rule"`
	Entities  Entities `json:"entities"`
	Specialty string   `json:"specialty,omitempty"`
}

// SpecialtyLookup maps symptom text to a specialty.
type SpecialtyLookup interface {
	Lookup(text string) (string, bool)
}

// Analysis is the message pre-processed once and shared by every rule.
type Analysis struct {
	Input
	Words     string
	Entities  Entities
	Specialty string
}

func (a *Analysis) has(phrases ...string) bool {
	return containsAny(a.Words, phrases...)
}

// Rule is one named matcher.
type Rule struct {
	Name   string
	Intent Intent
	Match  func(a *Analysis) bool
}

// DefaultRules is the routing order. Emergency always wins; an explicit
// booking beats the hint-driven routes.
var DefaultRules = []Rule{
	{Name: "emergency_keywords", Intent: Emergency, Match: matchEmergency},
	{Name: "booking_heuristic", Intent: ConfirmBooking, Match: matchBooking},
	{Name: "availability_keywords", Intent: CheckAvailability, Match: matchAvailability},
	{Name: "specialty_search", Intent: FindDoctor, Match: matchFindDoctor},
	{Name: "profile_request", Intent: ViewProfile, Match: matchProfile},
}

type Resolver struct {
	rules     []Rule
	specialty SpecialtyLookup
}

func NewResolver(lookup SpecialtyLookup, rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Resolver{rules: rules, specialty: lookup}
}

// Resolve runs the rules in order and returns the first match, or Unknown.
func (r *Resolver) Resolve(in Input) Resolution {
	a := r.analyze(in)
	for _, rule := range r.rules {
		if rule.Match(a) {
			return Resolution{Intent: rule.Intent, Rule: rule.Name, Entities: a.Entities, Specialty: a.Specialty}
		}
	}
	return Resolution{Intent: Unknown, Rule: "fallback", Entities: a.Entities, Specialty: a.Specialty}
}

func (r *Resolver) analyze(in Input) *Analysis {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	a := &Analysis{
		Input: in,
		Words: " " + normalize(in.Message) + " ",
		Entities: Entities{
			Date:   ExtractDate(in.Message, in.Now),
			Time:   ExtractTime(in.Message),
			Doctor: ResolveDoctor(in.Message, in.Context.LastDoctors),
		},
	}
	if r.specialty != nil {
		a.Specialty, _ = r.specialty.Lookup(in.Message)
	}
	return a
}

// normalize lower-cases and turns every run of non-word runes into a single
// space.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
