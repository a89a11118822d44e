package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/slottime"
)

// DoctorRef is a doctor remembered from an earlier search turn. Key is the
// lower-cased name.
type DoctorRef struct {
	Key  string `json:"key"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entities are the slots pulled out of one message.
type Entities struct {
	Date   string     `json:"date,omitempty"`
	Time   string     `json:"time,omitempty"`
	Doctor *DoctorRef `json:"doctor,omitempty"`
}

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	dmyDateRe   = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})(?:[/.-](\d{2,4}))?\b`)
	clockTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)(?:\s|$|[^a-z])`)
	colonTimeRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	bajeTimeRe  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:baje|bje|o'?clock)\b`)
)

var relativeDays = []struct {
	phrase string
	offset int
}{
	{"day after tomorrow", 2},
	{"parso", 2},
	{"parson", 2},
	{"परसों", 2},
	{"tomorrow", 1},
	{"kal", 1},
	{"कल", 1},
	{"today", 0},
	{"aaj", 0},
	{"आज", 0},
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "ravivar": time.Sunday, "itvaar": time.Sunday,
	"monday": time.Monday, "somvar": time.Monday,
	"tuesday": time.Tuesday, "mangalvar": time.Tuesday,
	"wednesday": time.Wednesday, "budhvar": time.Wednesday,
	"thursday": time.Thursday, "guruvar": time.Thursday,
	"friday": time.Friday, "shukravar": time.Friday,
	"saturday": time.Saturday, "shanivar": time.Saturday,
}

// ExtractDate resolves an explicit or relative date against now. It returns
// "" when the message carries no date.
func ExtractDate(message string, now time.Time) string {
	today := slottime.Day(now)
	if m := isoDateRe.FindStringSubmatch(message); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3], now.Location()); ok {
			return d
		}
	}
	if m := dmyDateRe.FindStringSubmatch(message); m != nil {
		year := m[3]
		switch len(year) {
		case 0:
			year = strconv.Itoa(today.Year())
		case 2:
			year = "20" + year
		}
		if d, ok := buildDate(year, m[2], m[1], now.Location()); ok {
			return d
		}
	}

	words := " " + normalize(message) + " "
	for _, rel := range relativeDays {
		if strings.Contains(words, " "+rel.phrase+" ") {
			return today.AddDate(0, 0, rel.offset).Format(slottime.DateLayout)
		}
	}
	for _, w := range strings.Fields(words) {
		if wd, ok := weekdays[w]; ok {
			ahead := (int(wd) - int(today.Weekday()) + 7) % 7
			return today.AddDate(0, 0, ahead).Format(slottime.DateLayout)
		}
	}
	return ""
}

func buildDate(y, m, d string, loc *time.Location) (string, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day {
		return "", false
	}
	return t.Format(slottime.DateLayout), true
}

// ExtractTime finds a time of day and returns it as the canonical slot label
// ("10:00 AM"). A bare hour without AM/PM is read as clinic hours: 8-11 are
// morning, 12 and 1-7 afternoon or evening, unless a part-of-day word says
// otherwise.
func ExtractTime(message string) string {
	if m := clockTimeRe.FindStringSubmatch(message); m != nil {
		label := m[1] + ":" + defaultMinutes(m[2]) + strings.ReplaceAll(strings.ToUpper(m[3]), ".", "")
		if h, min, ok := slottime.Parse(label); ok {
			return slottime.Format(h, min)
		}
	}
	if m := colonTimeRe.FindStringSubmatch(message); m != nil {
		return fromBareHour(m[1], m[2], message)
	}
	if m := bajeTimeRe.FindStringSubmatch(message); m != nil {
		return fromBareHour(m[1], "00", message)
	}
	return ""
}

func defaultMinutes(mm string) string {
	if mm == "" {
		return "00"
	}
	return mm
}

func fromBareHour(hh, mm, message string) string {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return ""
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return ""
	}
	if h > 12 && h < 24 {
		return slottime.Format(h, m)
	}
	if h < 1 || h > 12 {
		return ""
	}
	words := " " + normalize(message) + " "
	switch {
	case containsAny(words, "subah", "morning", "सुबह"):
		if h == 12 {
			h = 0
		}
	case containsAny(words, "shaam", "sham", "evening", "dopahar", "afternoon", "raat", "night", "शाम", "दोपहर"):
		if h != 12 {
			h += 12
		}
	case h >= 8 && h <= 11:
	case h == 12:
	default:
		h += 12
	}
	return slottime.Format(h, m)
}

var ordinals = []struct {
	words []string
	index int
}{
	{[]string{"pehla", "pehle", "pahla", "pahle", "first", "1st", "पहला", "पहले"}, 0},
	{[]string{"dusra", "doosra", "dusre", "doosre", "second", "2nd", "दूसरा", "दूसरे"}, 1},
	{[]string{"teesra", "tisra", "teesre", "third", "3rd", "तीसरा"}, 2},
	{[]string{"chautha", "chauthe", "fourth", "4th", "चौथा"}, 3},
	{[]string{"paanchva", "panchva", "panchwa", "fifth", "5th", "पांचवा"}, 4},
}

var nameStopwords = map[string]bool{"dr": true, "doctor": true, "the": true}

// ResolveDoctor matches a name or ordinal reference in message against the
// doctors remembered from the last search.
func ResolveDoctor(message string, last []DoctorRef) *DoctorRef {
	if len(last) == 0 {
		return nil
	}
	words := " " + normalize(message) + " "

	for _, ref := range last {
		if ref.Key != "" && strings.Contains(words, " "+normalize(ref.Key)+" ") {
			r := ref
			return &r
		}
	}
	for _, ref := range last {
		for _, tok := range strings.Fields(normalize(ref.Name)) {
			if len([]rune(tok)) < 3 || nameStopwords[tok] {
				continue
			}
			if strings.Contains(words, " "+tok+" ") {
				r := ref
				return &r
			}
		}
	}
	for _, o := range ordinals {
		if o.index < len(last) && containsAny(words, o.words...) {
			r := last[o.index]
			return &r
		}
	}
	return nil
}

func containsAny(padded string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
