package slottime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIsIdempotentAcrossSpacingAndCase(t *testing.T) {
	want := Normalize("11:00 AM")
	for _, label := range []string{"11:00AM", "11:00 am", " 11 : 00 Am ", "11:00\tam"} {
		assert.Equal(t, want, Normalize(label), label)
	}
	assert.Equal(t, Normalize(want), want)
}

func TestNormalizeLeadingZero(t *testing.T) {
	assert.True(t, Equal("09:00 AM", "9:00am"))
	assert.False(t, Equal("10:00 AM", "10:00 PM"))
	assert.Equal(t, "0:30", Normalize("0:30"))
}

func TestParseAndFormat(t *testing.T) {
	tests := []struct {
		label      string
		hour, mins int
		ok         bool
		canonical  string
	}{
		{"10 AM", 10, 0, true, "10:00 AM"},
		{"10:30pm", 22, 30, true, "10:30 PM"},
		{"12:00 PM", 12, 0, true, "12:00 PM"},
		{"12:15 am", 0, 15, true, "12:15 AM"},
		{"17:45", 17, 45, true, "05:45 PM"},
		{"13 PM", 0, 0, false, ""},
		{"noon", 0, 0, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			h, m, ok := Parse(tt.label)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.mins, m)
			assert.Equal(t, tt.canonical, Format(h, m))
		})
	}
}

func TestMinutesOrdersLabels(t *testing.T) {
	assert.Less(t, Minutes("09:00 AM"), Minutes("11:00AM"))
	assert.Less(t, Minutes("11:30 AM"), Minutes("02:00 PM"))
	assert.Equal(t, 24*60, Minutes("whenever"))
}

func TestParseDateAndDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	d, err := ParseDate("2026-03-04", loc)
	assert.NoError(t, err)
	assert.Equal(t, loc, d.Location())
	assert.Equal(t, d, Day(d.Add(13*time.Hour)))

	_, err = ParseDate("04/03/2026", loc)
	assert.Error(t, err)
}

func TestPassed(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 3, 4, 11, 0, 0, 0, loc)

	assert.True(t, Passed("2026-03-03", "10:00 PM", now), "earlier date")
	assert.True(t, Passed("2026-03-04", "10:30 AM", now))
	assert.True(t, Passed("2026-03-04", "11:00AM", now), "a slot starting now is gone")
	assert.False(t, Passed("2026-03-04", "11:30 am", now))
	assert.False(t, Passed("2026-03-04", "whenever", now))
	assert.False(t, Passed("2026-03-05", "09:00 AM", now), "later date")
}
