// Package slottime normalizes the free-text time labels stored on doctor
// calendars ("09:00 AM", "9:00am", "11:00 AM") and formats parsed times back
// into the canonical label.
package slottime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the calendar date format used across the scheduling packages.
const DateLayout = "2006-01-02"

// Normalize strips whitespace, upper-cases, and drops a leading zero on the
// hour so "09:00 am" and "9:00AM" compare equal.
func Normalize(label string) string {
	var b strings.Builder
	for _, r := range label {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	out := b.String()
	if len(out) > 1 && out[0] == '0' && out[1] != ':' {
		out = out[1:]
	}
	return out
}

// Equal reports whether two labels denote the same slot.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Format renders a 24h hour/minute pair as the canonical "HH:MM AM" label.
func Format(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h, minute, suffix)
}

// Parse reads a label such as "10:30 AM" into 24h hour and minute.
func Parse(label string) (hour, minute int, ok bool) {
	n := Normalize(label)
	suffix := ""
	switch {
	case strings.HasSuffix(n, "AM"):
		suffix, n = "AM", strings.TrimSuffix(n, "AM")
	case strings.HasSuffix(n, "PM"):
		suffix, n = "PM", strings.TrimSuffix(n, "PM")
	}
	hh, mm, found := strings.Cut(n, ":")
	if !found {
		mm = "0"
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	switch suffix {
	case "AM":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h == 12 {
			h = 0
		}
	case "PM":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h != 12 {
			h += 12
		}
	default:
		if h < 0 || h > 23 {
			return 0, 0, false
		}
	}
	return h, m, true
}

// Minutes returns minutes since midnight for ordering labels; unparseable
// labels sort last.
func Minutes(label string) int {
	h, m, ok := Parse(label)
	if !ok {
		return 24 * 60
	}
	return h*60 + m
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate parses a calendar date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
}

// Passed reports whether the slot at date and label has already started at
// now, which must be in the clinic's location. Unparseable labels never pass.
func Passed(date, label string, now time.Time) bool {
	today := now.Format(DateLayout)
	date = strings.TrimSpace(date)
	switch {
	case date < today:
		return true
	case date > today:
		return false
	}
	h, m, ok := Parse(label)
	if !ok {
		return false
	}
	return h*60+m <= now.Hour()*60+now.Minute()
}
