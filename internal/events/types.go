package events

import "time"

const (
	TypeAppointmentCreated   = "appointment.created"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeQueueCalled          = "queue.called"
	TypeQueueJoined          = "queue.joined"
	TypeAvailabilityChanged  = "availability.changed"
)

// DoctorAggregate names the aggregate a scheduling event belongs to.
func DoctorAggregate(doctorID string) string {
	return "doctor:" + doctorID
}

type AppointmentCreatedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name,omitempty"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Fee           int       `json:"fee"`
	TokenNumber   int       `json:"token_number"`
	Symptoms      string    `json:"symptoms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (AppointmentCreatedV1) EventType() string { return TypeAppointmentCreated }

type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id,omitempty"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	PatientID     string    `json:"patient_id"`
	Date          string    `json:"date,omitempty"`
	Time          string    `json:"time,omitempty"`
	Reason        string    `json:"reason"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func (AppointmentCancelledV1) EventType() string { return TypeAppointmentCancelled }

type QueueCalledV1 struct {
	DoctorID    string    `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name,omitempty"`
	TokenNumber int       `json:"token_number"`
	CalledAt    time.Time `json:"called_at"`
}

func (QueueCalledV1) EventType() string { return TypeQueueCalled }

type QueueJoinedV1 struct {
	DoctorID    string    `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name,omitempty"`
	TokenNumber int       `json:"token_number"`
	JoinedAt    time.Time `json:"joined_at"`
}

func (QueueJoinedV1) EventType() string { return TypeQueueJoined }

type AvailabilityChangedV1 struct {
	DoctorID        string    `json:"doctor_id"`
	DoctorName      string    `json:"doctor_name"`
	HasAvailability bool      `json:"has_availability"`
	Status          string    `json:"status"`
	ChangedAt       time.Time `json:"changed_at"`
}

func (AvailabilityChangedV1) EventType() string { return TypeAvailabilityChanged }
