// Package availability answers read-only questions about a doctor's calendar:
// which slots are free over the booking horizon and whether a requested
// date/time can still be booked.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/slottime"
)

// DefaultHorizonDays is how far ahead free slots are listed.
const DefaultHorizonDays = 14

// Normalize canonicalizes a time label for comparison.
func Normalize(label string) string {
	return slottime.Normalize(label)
}

// DaySlots is one date with its free time labels, earliest first.
type DaySlots struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type doctorReader interface {
	Get(ctx context.Context, id string) (*doctors.Doctor, error)
}

// Index reads doctor calendars. It never writes.
type Index struct {
	doctors doctorReader
	now     func() time.Time
	loc     *time.Location
}

func NewIndex(reader doctorReader, loc *time.Location) *Index {
	if loc == nil {
		loc = time.UTC
	}
	return &Index{doctors: reader, now: time.Now, loc: loc}
}

// WithClock overrides the clock used to decide "today".
func (i *Index) WithClock(now func() time.Time) *Index {
	if now != nil {
		i.now = now
	}
	return i
}

// Today returns the clinic-local date at midnight.
func (i *Index) Today() time.Time {
	return slottime.Day(i.now().In(i.loc))
}

// FreeSlots lists dates in [today, today+horizonDays) that have at least one
// unbooked slot that has not started yet.
func (i *Index) FreeSlots(ctx context.Context, doctorID string, horizonDays int) ([]DaySlots, error) {
	d, err := i.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return i.FreeSlotsOf(d, horizonDays), nil
}

// FreeSlotsOf is FreeSlots over an already loaded doctor.
func (i *Index) FreeSlotsOf(d *doctors.Doctor, horizonDays int) []DaySlots {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	now := i.now().In(i.loc)
	start := slottime.Day(now)
	end := start.AddDate(0, 0, horizonDays)

	out := []DaySlots{}
	for _, day := range d.Availability {
		date, err := slottime.ParseDate(day.Date, i.loc)
		if err != nil || date.Before(start) || !date.Before(end) {
			continue
		}
		var free []string
		for _, s := range day.Slots {
			if !s.IsBooked && !slottime.Passed(day.Date, s.Time, now) {
				free = append(free, s.Time)
			}
		}
		if len(free) == 0 {
			continue
		}
		sort.SliceStable(free, func(a, b int) bool { return slottime.Minutes(free[a]) < slottime.Minutes(free[b]) })
		out = append(out, DaySlots{Date: day.Date, Slots: free})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out
}

// FindFreeSlot returns the stored label of the free slot matching date and
// time. The errors mirror the booking preconditions so callers can report
// them the same way.
func (i *Index) FindFreeSlot(ctx context.Context, doctorID, date, label string) (string, error) {
	d, err := i.doctors.Get(ctx, doctorID)
	if err != nil {
		return "", err
	}
	slot, err := d.FindSlot(date, label)
	if err != nil {
		return "", err
	}
	if slot.IsBooked {
		return "", doctors.ErrSlotBooked
	}
	if slottime.Passed(date, slot.Time, i.now().In(i.loc)) {
		return "", fmt.Errorf("%w: %s %s has already passed", doctors.ErrSlotNotFound, date, slot.Time)
	}
	return slot.Time, nil
}

// EarliestDateFor returns the first date within the horizon on which the
// given time is free, or "" when none is.
func (i *Index) EarliestDateFor(ctx context.Context, doctorID, label string, horizonDays int) (string, error) {
	d, err := i.doctors.Get(ctx, doctorID)
	if err != nil {
		return "", err
	}
	for _, day := range i.FreeSlotsOf(d, horizonDays) {
		for _, s := range day.Slots {
			if slottime.Equal(s, label) {
				return day.Date, nil
			}
		}
	}
	return "", nil
}
