package doctors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/slottime"
)

// SlotRef identifies one slot on the calendar and who held it.
type SlotRef struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	PatientID string `json:"patientId,omitempty"`
}

func (d *Doctor) day(date string) *Day {
	date = strings.TrimSpace(date)
	for i := range d.Availability {
		if d.Availability[i].Date == date {
			return &d.Availability[i]
		}
	}
	return nil
}

// FindSlot looks a slot up by date and normalized time label.
func (d *Doctor) FindSlot(date, label string) (*Slot, error) {
	day := d.day(date)
	if day == nil {
		return nil, ErrDateNotFound
	}
	for i := range day.Slots {
		if slottime.Equal(day.Slots[i].Time, label) {
			return &day.Slots[i], nil
		}
	}
	return nil, ErrSlotNotFound
}

// BookSlot marks the slot taken by patientID.
func (d *Doctor) BookSlot(date, label, patientID string) (SlotRef, error) {
	slot, err := d.FindSlot(date, label)
	if err != nil {
		return SlotRef{}, err
	}
	if slot.IsBooked {
		return SlotRef{}, ErrSlotBooked
	}
	slot.IsBooked = true
	slot.BookedBy = patientID
	return SlotRef{Date: strings.TrimSpace(date), Time: slot.Time, PatientID: patientID}, nil
}

// ReleaseSlot frees a specific slot if patientID holds it.
func (d *Doctor) ReleaseSlot(date, label, patientID string) bool {
	slot, err := d.FindSlot(date, label)
	if err != nil || !slot.IsBooked || slot.BookedBy != patientID {
		return false
	}
	slot.IsBooked = false
	slot.BookedBy = ""
	return true
}

// ReleaseSlotFor frees the earliest slot booked by patientID.
func (d *Doctor) ReleaseSlotFor(patientID string) (SlotRef, bool) {
	for _, i := range d.dayOrder() {
		day := &d.Availability[i]
		for j := range day.Slots {
			slot := &day.Slots[j]
			if slot.IsBooked && slot.BookedBy == patientID {
				slot.IsBooked = false
				slot.BookedBy = ""
				return SlotRef{Date: day.Date, Time: slot.Time, PatientID: patientID}, true
			}
		}
	}
	return SlotRef{}, false
}

// ReleaseAll frees every booked slot and returns what was released.
func (d *Doctor) ReleaseAll() []SlotRef {
	var released []SlotRef
	for _, i := range d.dayOrder() {
		day := &d.Availability[i]
		for j := range day.Slots {
			slot := &day.Slots[j]
			if !slot.IsBooked {
				continue
			}
			released = append(released, SlotRef{Date: day.Date, Time: slot.Time, PatientID: slot.BookedBy})
			slot.IsBooked = false
			slot.BookedBy = ""
		}
	}
	return released
}

// BookedSlots lists the currently booked slots in calendar order.
func (d *Doctor) BookedSlots() []SlotRef {
	var out []SlotRef
	for _, i := range d.dayOrder() {
		for _, slot := range d.Availability[i].Slots {
			if slot.IsBooked {
				out = append(out, SlotRef{Date: d.Availability[i].Date, Time: slot.Time, PatientID: slot.BookedBy})
			}
		}
	}
	return out
}

// HasFreeSlot reports whether any unbooked slot falls in [from, from+days).
func (d *Doctor) HasFreeSlot(from time.Time, days int) bool {
	start := slottime.Day(from)
	end := start.AddDate(0, 0, days)
	for _, day := range d.Availability {
		date, err := slottime.ParseDate(day.Date, from.Location())
		if err != nil || date.Before(start) || !date.Before(end) {
			continue
		}
		for _, slot := range day.Slots {
			if !slot.IsBooked {
				return true
			}
		}
	}
	return false
}

// ReplaceAvailability swaps the whole calendar. Booked slots keep their holder
// and must still be present in the new calendar.
func (d *Doctor) ReplaceAvailability(days []Day) error {
	next := make([]Day, 0, len(days))
	seenDates := make(map[string]bool, len(days))
	for _, in := range days {
		date := strings.TrimSpace(in.Date)
		if _, err := time.Parse(slottime.DateLayout, date); err != nil {
			return fmt.Errorf("%w: date %q", ErrInvalidCalendar, in.Date)
		}
		if seenDates[date] {
			return fmt.Errorf("%w: duplicate date %s", ErrInvalidCalendar, date)
		}
		seenDates[date] = true

		seenTimes := make(map[string]bool, len(in.Slots))
		out := Day{Date: date, Slots: make([]Slot, 0, len(in.Slots))}
		for _, s := range in.Slots {
			label := strings.TrimSpace(s.Time)
			if _, _, ok := slottime.Parse(label); !ok {
				return fmt.Errorf("%w: time %q on %s", ErrInvalidCalendar, s.Time, date)
			}
			key := slottime.Normalize(label)
			if seenTimes[key] {
				return fmt.Errorf("%w: duplicate time %s on %s", ErrInvalidCalendar, label, date)
			}
			seenTimes[key] = true
			out.Slots = append(out.Slots, Slot{Time: label})
		}
		next = append(next, out)
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Date < next[j].Date })

	replacement := &Doctor{Availability: next}
	for _, booked := range d.BookedSlots() {
		slot, err := replacement.FindSlot(booked.Date, booked.Time)
		if err != nil {
			return fmt.Errorf("%w: %s %s", ErrBookedSlotRemoved, booked.Date, booked.Time)
		}
		slot.IsBooked = true
		slot.BookedBy = booked.PatientID
	}
	d.Availability = next
	return nil
}

// dayOrder returns indexes of Availability sorted by date then original order.
func (d *Doctor) dayOrder() []int {
	idx := make([]int, len(d.Availability))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return d.Availability[idx[a]].Date < d.Availability[idx[b]].Date
	})
	return idx
}
