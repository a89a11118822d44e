package intent

import "strings"

// EmergencyReply is sent verbatim whenever the emergency rule fires.
const EmergencyReply = "This sounds like a medical emergency. Please call 112 (or 108 for an ambulance) " +
	"right now, or go to the nearest emergency room. / Yeh emergency lag rahi hai. Turant 112 ya 108 par " +
	"call karein ya nazdeeki hospital jaayein."

var emergencyPhrases = []string{
	"chest pain", "heart attack", "unconscious", "not breathing", "can t breathe", "cannot breathe",
	"difficulty breathing", "breathing problem", "severe bleeding", "heavy bleeding", "bleeding heavily",
	"stroke", "seizure now", "suicide", "kill myself", "overdose", "poisoning", "accident",
	"behosh", "saans nahi", "saans lene mein", "seene mein dard", "chhati mein dard", "sine mein dard",
	"khoon beh", "zeher", "सीने में दर्द", "बेहोश", "सांस नहीं",
}

var bookingPhrases = []string{
	"book", "booking", "confirm", "reserve", "fix", "appointment lena", "appointment chahiye",
	"ke sath", "ke saath", "se milna", "milna hai", "dikhana hai", "बुक",
}

var availabilityPhrases = []string{
	"availability", "available", "slot", "slots", "schedule", "free", "timing", "timings",
	"khali", "khaali", "kab milenge", "kab available", "samay", "उपलब्ध",
}

var findHintWords = []string{"find", "appointment", "doctor", "search"}

var profilePhrases = []string{
	"profile", "profiles", "details", "detail", "about", "experience", "fee", "fees",
	"bare mein", "baare mein", "jankari", "jaankari", "बारे में", "जानकारी",
}

func matchEmergency(a *Analysis) bool {
	return a.has(emergencyPhrases...)
}

// matchBooking fires on a booking verb with a date, time or doctor, or on a
// bare time while a booking is pending. A doctor and a time without a booking
// verb is a question, not a booking.
func matchBooking(a *Analysis) bool {
	e := a.Entities
	hasWhen := e.Date != "" || e.Time != ""
	switch {
	case a.has(bookingPhrases...) && (hasWhen || e.Doctor != nil):
		return true
	case a.Context.PendingBooking && a.Context.SelectedDoctorID != "" && e.Time != "":
		return true
	}
	return false
}

func matchAvailability(a *Analysis) bool {
	return a.has(availabilityPhrases...)
}

// matchFindDoctor needs a specialty keyword. When the classifier answered, its
// label must point at a search; when it did not, the keyword alone is enough.
func matchFindDoctor(a *Analysis) bool {
	if a.Specialty == "" {
		return false
	}
	hint := strings.ToLower(strings.TrimSpace(a.Hint))
	if hint == "" || hint == string(Unknown) {
		return true
	}
	for _, w := range findHintWords {
		if strings.Contains(hint, w) {
			return true
		}
	}
	return false
}

func matchProfile(a *Analysis) bool {
	return len(a.Context.LastDoctors) > 0 && a.has(profilePhrases...)
}
