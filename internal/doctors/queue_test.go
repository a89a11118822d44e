package doctors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func TestAdmitIssuesIncreasingTokens(t *testing.T) {
	d := sampleDoctor()
	a, ok := d.Admit("p1", "Asha", t0)
	require.True(t, ok)
	b, ok := d.Admit("p2", "Ravi", t0)
	require.True(t, ok)
	assert.Equal(t, 1, a.TokenNumber)
	assert.Equal(t, 2, b.TokenNumber)
	assert.Equal(t, 2, d.LastTokenIssued)
}

func TestAdmitReturnsExistingActiveEntry(t *testing.T) {
	d := sampleDoctor()
	first, _ := d.Admit("p1", "Asha", t0)
	again, admitted := d.Admit("p1", "Asha", t0.Add(time.Minute))
	assert.False(t, admitted)
	assert.Equal(t, first.TokenNumber, again.TokenNumber)
	assert.Len(t, d.Queue, 1)
	assert.Equal(t, 1, d.LastTokenIssued)
}

func TestCallNextServesLowestTokenAndReleasesSlot(t *testing.T) {
	d := sampleDoctor()
	_, err := d.BookSlot("2026-03-05", "10:00 AM", "p2")
	require.NoError(t, err)
	d.Admit("p1", "Asha", t0)
	d.Admit("p2", "Ravi", t0)
	// entries out of token order must still be served by token
	d.Queue[0], d.Queue[1] = d.Queue[1], d.Queue[0]

	served, err := d.CallNext(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "p1", served.Entry.PatientID)
	assert.Nil(t, served.Released, "p1 had no booked slot")
	assert.Equal(t, 1, d.CurrentQueueToken)

	served, err = d.CallNext(t0.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "p2", served.Entry.PatientID)
	require.NotNil(t, served.Released)
	assert.Equal(t, "2026-03-05", served.Released.Date)
	assert.Empty(t, d.BookedSlots())
	assert.Empty(t, d.Queue)
	require.Len(t, d.PatientHistory, 2)
	assert.Equal(t, 2, d.PatientHistory[1].TokenNumber)
	assert.NotNil(t, served.Entry.ServedAt)

	_, err = d.CallNext(t0)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestResetQueueClearsEverything(t *testing.T) {
	d := sampleDoctor()
	for i, p := range []string{"p1", "p2", "p3"} {
		day := d.Availability[i/2]
		_, err := d.BookSlot(day.Date, day.Slots[i%len(day.Slots)].Time, p)
		require.NoError(t, err)
		d.Admit(p, p, t0)
	}
	d.Admit("walk-in", "Walk In", t0)
	d.CurrentQueueToken = 1

	out := d.ResetQueue()
	assert.Len(t, out.ReleasedSlots, 3)
	assert.Len(t, out.ClearedEntries, 4)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, out.AffectedPatients())
	assert.Empty(t, d.Queue)
	assert.Empty(t, d.BookedSlots())
	assert.Zero(t, d.CurrentQueueToken)
	assert.Zero(t, d.LastTokenIssued)
}

func TestPositionOf(t *testing.T) {
	d := sampleDoctor()
	d.Admit("p1", "Asha", t0)
	d.Admit("p2", "Ravi", t0)
	d.Admit("p3", "Meera", t0)
	_, err := d.CallNext(t0)
	require.NoError(t, err)

	pos, err := d.PositionOf("p3")
	require.NoError(t, err)
	assert.Equal(t, Position{YourToken: 3, CurrentServingToken: 1, PatientsAhead: 1}, pos)

	_, err = d.PositionOf("p1")
	assert.ErrorIs(t, err, ErrNotQueued)
}

func TestRemoveActiveEntry(t *testing.T) {
	d := sampleDoctor()
	d.Admit("p1", "Asha", t0)
	_, ok := d.RemoveActiveEntry("p1")
	assert.True(t, ok)
	_, ok = d.RemoveActiveEntry("p1")
	assert.False(t, ok)
	next, _ := d.Admit("p1", "Asha", t0)
	assert.Equal(t, 2, next.TokenNumber, "tokens are not reused")
}
