package doctors

import "time"

// Status is the doctor's self-reported presence.
type Status string

const (
	StatusAvailable    Status = "Available"
	StatusNotAvailable Status = "Not Available"
)

// DefaultSpecialty is assigned when a doctor record omits one.
const DefaultSpecialty = "General Physician"

// Slot is a single bookable time on one date.
type Slot struct {
	Time     string `json:"time"`
	IsBooked bool   `json:"isBooked"`
	BookedBy string `json:"bookedBy,omitempty"`
}

// Day groups the slots published for one calendar date (YYYY-MM-DD).
type Day struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// QueueEntry is a patient's position in the doctor's queue.
type QueueEntry struct {
	PatientID   string     `json:"patientId"`
	PatientName string     `json:"patientName"`
	TokenNumber int        `json:"tokenNumber"`
	JoinedAt    time.Time  `json:"joinedAt"`
	ServedAt    *time.Time `json:"servedAt,omitempty"`
}

// Active reports whether the entry is still waiting to be served.
func (e QueueEntry) Active() bool {
	return e.ServedAt == nil
}

// HistoryEntry records a patient the doctor has served.
type HistoryEntry struct {
	PatientID   string    `json:"patientId"`
	PatientName string    `json:"patientName"`
	TokenNumber int       `json:"tokenNumber"`
	ServedAt    time.Time `json:"servedAt"`
}

// Profile holds the public profile details shown on doctor cards.
type Profile struct {
	Experience      int    `json:"experience"`
	ConsultationFee int    `json:"consultationFee"`
	Bio             string `json:"bio,omitempty"`
}

// Doctor is the scheduling aggregate: calendar, queue and token counters are
// mutated together and persisted with a single save.
type Doctor struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Specialty         string         `json:"specialty"`
	City              string         `json:"city,omitempty"`
	ClinicName        string         `json:"clinicName,omitempty"`
	Profile           Profile        `json:"profileDetails"`
	Status            Status         `json:"currentStatus"`
	Timings           string         `json:"timings,omitempty"`
	Availability      []Day          `json:"availability"`
	Queue             []QueueEntry   `json:"queue"`
	CurrentQueueToken int            `json:"currentQueueToken"`
	LastTokenIssued   int            `json:"lastTokenIssued"`
	PatientHistory    []HistoryEntry `json:"patientHistory"`
	Version           int64          `json:"version"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Summary is the card shown in search results.
type Summary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Specialty       string `json:"specialty"`
	City            string `json:"city,omitempty"`
	ClinicName      string `json:"clinicName,omitempty"`
	Experience      int    `json:"experience"`
	ConsultationFee int    `json:"consultationFee"`
	Status          Status `json:"currentStatus"`
}

func (d *Doctor) Summary() Summary {
	return Summary{
		ID:              d.ID,
		Name:            d.Name,
		Specialty:       d.Specialty,
		City:            d.City,
		ClinicName:      d.ClinicName,
		Experience:      d.Profile.Experience,
		ConsultationFee: d.Profile.ConsultationFee,
		Status:          d.Status,
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (d *Doctor) Clone() *Doctor {
	if d == nil {
		return nil
	}
	out := *d
	out.Availability = make([]Day, len(d.Availability))
	for i, day := range d.Availability {
		out.Availability[i] = Day{Date: day.Date, Slots: append([]Slot(nil), day.Slots...)}
	}
	out.Queue = make([]QueueEntry, len(d.Queue))
	for i, e := range d.Queue {
		if e.ServedAt != nil {
			served := *e.ServedAt
			e.ServedAt = &served
		}
		out.Queue[i] = e
	}
	out.PatientHistory = append([]HistoryEntry(nil), d.PatientHistory...)
	return &out
}

// applyDefaults fills the fields a freshly created record may omit.
func (d *Doctor) applyDefaults() {
	if d.Specialty == "" {
		d.Specialty = DefaultSpecialty
	}
	if d.Status == "" {
		d.Status = StatusAvailable
	}
	if d.Availability == nil {
		d.Availability = []Day{}
	}
	if d.Queue == nil {
		d.Queue = []QueueEntry{}
	}
	if d.PatientHistory == nil {
		d.PatientHistory = []HistoryEntry{}
	}
}
