package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExec struct {
	args []any
}

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func (s *stubExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.args = args
	return pgconn.CommandTag{}, nil
}

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(0, 123456000).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope(DoctorAggregate("doc-1"), "corr-1", QueueCalledV1{
		DoctorID:    "doc-1",
		DoctorName:  "Dr. Priya Sharma",
		PatientID:   "pat-1",
		TokenNumber: 4,
		CalledAt:    fixedNow,
	}, WithEventID(id))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if !env.OccurredAt().Equal(fixedNow) {
		t.Fatalf("unexpected timestamp: %d", env.TimestampMicros)
	}
	if env.EventType != "queue.called" {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Aggregate != "doctor:doc-1" {
		t.Fatalf("unexpected aggregate: %s", env.Aggregate)
	}

	var decoded QueueCalledV1
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TokenNumber != 4 || decoded.PatientID != "pat-1" {
		t.Fatalf("unexpected payload: %#v", decoded)
	}
}

func TestAppendEnvelope(t *testing.T) {
	exec := &stubExec{}
	env, err := NewEnvelope(DoctorAggregate("doc-1"), "", AppointmentCreatedV1{
		AppointmentID: "appt-1",
		DoctorID:      "doc-1",
		PatientID:     "pat-1",
		Date:          "2026-03-04",
		Time:          "10:00 AM",
		Fee:           500,
		TokenNumber:   1,
		CreatedAt:     time.Unix(100, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("new envelope failed: %v", err)
	}
	if err := appendEnvelope(context.Background(), exec, env); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if env.EventID == uuid.Nil {
		t.Fatal("expected generated event id")
	}
	if len(exec.args) != 4 {
		t.Fatalf("expected exec args, got %#v", exec.args)
	}
	if exec.args[0] != env.EventID {
		t.Fatalf("id mismatch")
	}
	if exec.args[2] != TypeAppointmentCreated {
		t.Fatalf("unexpected event type arg: %v", exec.args[2])
	}
	var stored Envelope
	if err := json.Unmarshal(exec.args[3].([]byte), &stored); err != nil {
		t.Fatalf("stored payload not an envelope: %v", err)
	}
	if stored.EventID != env.EventID {
		t.Fatalf("stored envelope id mismatch")
	}
}

func TestNewEnvelopeValidation(t *testing.T) {
	if _, err := NewEnvelope("", "", QueueJoinedV1{}); err == nil {
		t.Fatal("expected aggregate error")
	}
	if _, err := NewEnvelope("doctor:1", "", nil); err == nil {
		t.Fatal("expected nil event error")
	}
	if _, err := NewEnvelope("doctor:1", "", badEvent{}); err == nil {
		t.Fatal("expected missing type error")
	}
}
