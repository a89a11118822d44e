package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/booking"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/internal/locker"
)

var clock = func() time.Time { return time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) }

type fixture struct {
	mgr     *Manager
	booking *booking.Service
	store   *doctors.MemoryStore
	repo    *appointments.MemoryRepository
	pub     *events.RecordingPublisher
}

func newFixture(t *testing.T, status doctors.Status) *fixture {
	t.Helper()
	store := doctors.NewMemoryStore(&doctors.Doctor{
		ID:      "doc-1",
		Name:    "Dr. Priya Sharma",
		Status:  status,
		Profile: doctors.Profile{ConsultationFee: 500},
		Availability: []doctors.Day{
			{Date: "2026-03-05", Slots: []doctors.Slot{{Time: "10:00 AM"}, {Time: "11:00 AM"}, {Time: "12:00 PM"}}},
		},
	})
	repo := appointments.NewMemoryRepository()
	pub := &events.RecordingPublisher{}
	agg := doctors.NewAggregates(store, locker.NewLocalLocker(), nil)
	return &fixture{
		mgr:     NewManager(agg, repo, pub, nil).WithClock(clock),
		booking: booking.NewService(agg, repo, pub, nil).WithClock(clock, time.UTC),
		store:   store,
		repo:    repo,
		pub:     pub,
	}
}

func (f *fixture) book(t *testing.T, patient, slot string) *booking.Result {
	t.Helper()
	res, err := f.booking.Book(context.Background(), booking.Request{
		DoctorID: "doc-1", PatientID: patient, PatientName: patient, Date: "2026-03-05", Time: slot,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) doctor(t *testing.T) *doctors.Doctor {
	t.Helper()
	d, err := f.store.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	return d
}

func TestJoin(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	ctx := context.Background()

	entry, err := f.mgr.Join(ctx, "doc-1", "p1", "Asha")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.TokenNumber)
	require.Len(t, f.pub.OfType(events.TypeQueueJoined), 1)

	_, err = f.mgr.Join(ctx, "doc-1", "p1", "Asha")
	assert.ErrorIs(t, err, doctors.ErrAlreadyQueued)
	assert.Equal(t, 1, f.doctor(t).LastTokenIssued, "rejected join issues no token")
}

func TestJoinRequiresAvailableDoctor(t *testing.T) {
	f := newFixture(t, doctors.StatusNotAvailable)
	_, err := f.mgr.Join(context.Background(), "doc-1", "p1", "Asha")
	assert.ErrorIs(t, err, doctors.ErrDoctorUnavailable)

	_, err = f.mgr.Join(context.Background(), "missing", "p1", "Asha")
	assert.ErrorIs(t, err, doctors.ErrDoctorNotFound)
}

func TestJoinAfterBookingSharesAdmissionRule(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	f.book(t, "p1", "10:00 AM")

	_, err := f.mgr.Join(context.Background(), "doc-1", "p1", "p1")
	assert.ErrorIs(t, err, doctors.ErrAlreadyQueued)
	assert.Len(t, f.doctor(t).Queue, 1)
}

func TestConcurrentJoinsAreMonotonic(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	const n = 30

	var wg sync.WaitGroup
	tokens := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := f.mgr.Join(context.Background(), "doc-1", fmt.Sprintf("p%d", i), "")
			assert.NoError(t, err)
			tokens[i] = entry.TokenNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, tok := range tokens {
		assert.False(t, seen[tok], "duplicate token %d", tok)
		assert.True(t, tok >= 1 && tok <= n)
		seen[tok] = true
	}
}

func TestCallNextReleasesSlotAndAppointment(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	ctx := context.Background()
	f.book(t, "p1", "10:00 AM")
	f.book(t, "p2", "11:00 AM")

	served, err := f.mgr.CallNext(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", served.Entry.PatientID)
	require.NotNil(t, served.Released)

	d := f.doctor(t)
	slot, err := d.FindSlot("2026-03-05", "10:00 AM")
	require.NoError(t, err)
	assert.False(t, slot.IsBooked)
	assert.Equal(t, 1, d.CurrentQueueToken)
	require.Len(t, d.PatientHistory, 1)

	_, err = f.repo.FindActive(ctx, "doc-1", "p1", "2026-03-04")
	assert.ErrorIs(t, err, appointments.ErrNotFound)
	_, err = f.repo.FindActive(ctx, "doc-1", "p2", "2026-03-04")
	assert.NoError(t, err)

	called := f.pub.OfType(events.TypeQueueCalled)
	require.Len(t, called, 1)
	var evt events.QueueCalledV1
	require.NoError(t, called[0].Decode(&evt))
	assert.Equal(t, 1, evt.TokenNumber)

	pos, err := f.mgr.Status(ctx, "doc-1", "p2")
	require.NoError(t, err)
	assert.Equal(t, doctors.Position{YourToken: 2, CurrentServingToken: 1, PatientsAhead: 0}, pos)
}

func TestCallNextOnEmptyQueue(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	_, err := f.mgr.CallNext(context.Background(), "doc-1")
	assert.ErrorIs(t, err, doctors.ErrQueueEmpty)
	assert.Empty(t, f.pub.Envelopes())
}

func TestResetCascades(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	ctx := context.Background()
	f.book(t, "p1", "10:00 AM")
	f.book(t, "p2", "11:00 AM")
	f.book(t, "p3", "12:00 PM")

	res, err := f.mgr.Reset(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ReleasedSlots)
	assert.Equal(t, 3, res.ClearedEntries)
	assert.Equal(t, int64(3), res.DeletedAppointments)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, res.NotifiedPatients)

	d := f.doctor(t)
	assert.Empty(t, d.BookedSlots())
	assert.Empty(t, d.Queue)
	assert.Zero(t, d.CurrentQueueToken)
	assert.Zero(t, d.LastTokenIssued)

	left, err := f.repo.ListByDoctor(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Len(t, f.pub.OfType(events.TypeAppointmentCancelled), 3)
}

// racingRepo fires onCreate once, just before the appointment insert.
type racingRepo struct {
	*appointments.MemoryRepository
	once     sync.Once
	onCreate func()
}

func (r *racingRepo) Create(ctx context.Context, a *appointments.Appointment) error {
	r.once.Do(r.onCreate)
	return r.MemoryRepository.Create(ctx, a)
}

func TestResetDuringBookingLeavesNoOrphanAppointment(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	ctx := context.Background()
	agg := doctors.NewAggregates(f.store, locker.NewLocalLocker(), nil)
	mgr := NewManager(agg, f.repo, f.pub, nil).WithClock(clock)

	type resetOutcome struct {
		res ResetResult
		err error
	}
	done := make(chan resetOutcome, 1)
	repo := &racingRepo{MemoryRepository: f.repo}
	repo.onCreate = func() {
		go func() {
			res, err := mgr.Reset(ctx, "doc-1")
			done <- resetOutcome{res, err}
		}()
		// give the reset every chance to run before the insert
		time.Sleep(50 * time.Millisecond)
	}
	svc := booking.NewService(agg, repo, f.pub, nil).WithClock(clock, time.UTC)

	_, err := svc.Book(ctx, booking.Request{DoctorID: "doc-1", PatientID: "p1", Date: "2026-03-05", Time: "10:00 AM"})
	require.NoError(t, err)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, 1, out.res.ReleasedSlots)
	assert.Equal(t, int64(1), out.res.DeletedAppointments)

	d := f.doctor(t)
	assert.Empty(t, d.BookedSlots())
	assert.Empty(t, d.Queue)
	left, err := f.repo.ListByDoctor(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = svc.Book(ctx, booking.Request{DoctorID: "doc-1", PatientID: "p1", Date: "2026-03-05", Time: "10:00 AM"})
	assert.NoError(t, err, "patient can book again after the reset")
}

func TestApply(t *testing.T) {
	f := newFixture(t, doctors.StatusAvailable)
	_, err := f.mgr.Apply(context.Background(), "doc-1", Action("skip"))
	assert.ErrorIs(t, err, ErrUnknownAction)

	out, err := f.mgr.Apply(context.Background(), "doc-1", ActionReset)
	require.NoError(t, err)
	assert.IsType(t, ResetResult{}, out)
}
