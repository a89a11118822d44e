package doctors

import (
	"sort"
	"time"
)

// ActiveEntry returns the patient's unserved queue entry, if any.
func (d *Doctor) ActiveEntry(patientID string) (QueueEntry, bool) {
	for _, e := range d.Queue {
		if e.PatientID == patientID && e.Active() {
			return e, true
		}
	}
	return QueueEntry{}, false
}

// Admit applies the single admission rule shared by booking and standalone
// joins: a patient holds at most one active token per doctor. When the
// patient is already waiting the existing entry is returned with admitted=false.
func (d *Doctor) Admit(patientID, patientName string, now time.Time) (entry QueueEntry, admitted bool) {
	if existing, ok := d.ActiveEntry(patientID); ok {
		return existing, false
	}
	d.LastTokenIssued++
	entry = QueueEntry{
		PatientID:   patientID,
		PatientName: patientName,
		TokenNumber: d.LastTokenIssued,
		JoinedAt:    now.UTC(),
	}
	d.Queue = append(d.Queue, entry)
	return entry, true
}

// RemoveActiveEntry drops the patient's unserved entry without serving it.
func (d *Doctor) RemoveActiveEntry(patientID string) (QueueEntry, bool) {
	for i, e := range d.Queue {
		if e.PatientID == patientID && e.Active() {
			d.Queue = append(d.Queue[:i], d.Queue[i+1:]...)
			return e, true
		}
	}
	return QueueEntry{}, false
}

// Served is the outcome of CallNext.
type Served struct {
	Entry    QueueEntry `json:"entry"`
	Released *SlotRef   `json:"released,omitempty"`
}

// CallNext serves the lowest waiting token: the entry leaves the queue, is
// recorded in patient history, and the patient's booked slot is freed.
func (d *Doctor) CallNext(now time.Time) (Served, error) {
	pos := -1
	for i, e := range d.Queue {
		if !e.Active() {
			continue
		}
		if pos == -1 || e.TokenNumber < d.Queue[pos].TokenNumber {
			pos = i
		}
	}
	if pos == -1 {
		return Served{}, ErrQueueEmpty
	}

	entry := d.Queue[pos]
	servedAt := now.UTC()
	entry.ServedAt = &servedAt
	d.Queue = append(d.Queue[:pos], d.Queue[pos+1:]...)
	d.CurrentQueueToken = entry.TokenNumber
	d.PatientHistory = append(d.PatientHistory, HistoryEntry{
		PatientID:   entry.PatientID,
		PatientName: entry.PatientName,
		TokenNumber: entry.TokenNumber,
		ServedAt:    servedAt,
	})

	out := Served{Entry: entry}
	if ref, ok := d.ReleaseSlotFor(entry.PatientID); ok {
		out.Released = &ref
	}
	return out, nil
}

// ResetOutcome lists what a queue reset cleared.
type ResetOutcome struct {
	ReleasedSlots  []SlotRef    `json:"releasedSlots"`
	ClearedEntries []QueueEntry `json:"clearedEntries"`
}

// AffectedPatients returns distinct patients whose slot was released, in
// release order.
func (r ResetOutcome) AffectedPatients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ref := range r.ReleasedSlots {
		if ref.PatientID == "" || seen[ref.PatientID] {
			continue
		}
		seen[ref.PatientID] = true
		out = append(out, ref.PatientID)
	}
	return out
}

// ResetQueue clears the queue, zeroes both counters and frees every booked slot.
func (d *Doctor) ResetQueue() ResetOutcome {
	out := ResetOutcome{
		ReleasedSlots:  d.ReleaseAll(),
		ClearedEntries: append([]QueueEntry(nil), d.Queue...),
	}
	d.Queue = []QueueEntry{}
	d.CurrentQueueToken = 0
	d.LastTokenIssued = 0
	return out
}

// Position describes where a patient stands in the queue.
type Position struct {
	YourToken           int `json:"yourToken"`
	CurrentServingToken int `json:"currentServingToken"`
	PatientsAhead       int `json:"patientsAhead"`
}

// PositionOf reports the patient's token and how many waiting tokens precede it.
func (d *Doctor) PositionOf(patientID string) (Position, error) {
	entry, ok := d.ActiveEntry(patientID)
	if !ok {
		return Position{}, ErrNotQueued
	}
	waiting := make([]int, 0, len(d.Queue))
	for _, e := range d.Queue {
		if e.Active() {
			waiting = append(waiting, e.TokenNumber)
		}
	}
	sort.Ints(waiting)
	ahead := sort.SearchInts(waiting, entry.TokenNumber)
	return Position{
		YourToken:           entry.TokenNumber,
		CurrentServingToken: d.CurrentQueueToken,
		PatientsAhead:       ahead,
	}, nil
}
