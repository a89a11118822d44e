package directory

import (
	"strings"
	"unicode"
)

// SpecialtyRule maps free-text triggers to a specialty.
type SpecialtyRule struct {
	Specialty string
	Keywords  []string
}

// DefaultRules is evaluated top to bottom; the first rule with a matching
// keyword wins. More specific specialties come before General Physician so
// "chest pain with fever" routes to Cardiology.
var DefaultRules = []SpecialtyRule{
	{Specialty: "Neurology", Keywords: []string{
		"neurologist", "neurology", "neuro", "migraine", "seizure", "epilepsy", "paralysis",
		"numbness", "stroke", "sir dard", "sar dard", "sirdard", "chakkar", "dizziness",
		"माइग्रेन", "सिर दर्द", "चक्कर",
	}},
	{Specialty: "Cardiology", Keywords: []string{
		"cardiologist", "cardiology", "heart", "dil", "palpitation", "palpitations",
		"blood pressure", "bp", "hypertension", "dil ki dhadkan", "दिल",
	}},
	{Specialty: "Dermatology", Keywords: []string{
		"dermatologist", "dermatology", "skin", "rash", "acne", "pimples", "eczema",
		"itching", "khujli", "twacha", "त्वचा", "खुजली",
	}},
	{Specialty: "Dentist", Keywords: []string{
		"dentist", "dental", "teeth", "tooth", "toothache", "daant", "dant", "gums", "दांत",
	}},
	{Specialty: "Orthopedics", Keywords: []string{
		"orthopedic", "orthopaedic", "orthopedics", "bone", "fracture", "joint pain",
		"back pain", "knee", "kamar dard", "ghutna", "haddi", "हड्डी", "कमर दर्द",
	}},
	{Specialty: "Pediatrics", Keywords: []string{
		"pediatrician", "paediatrician", "pediatrics", "child", "baby", "infant", "bachcha", "bacche", "बच्चा",
	}},
	{Specialty: "Gynecology", Keywords: []string{
		"gynecologist", "gynaecologist", "gynecology", "pregnancy", "pregnant", "periods", "menstrual",
	}},
	{Specialty: "ENT", Keywords: []string{
		"ent", "ear", "nose", "throat", "sinus", "tonsils", "kaan", "gala", "naak", "कान", "गला",
	}},
	{Specialty: "Ophthalmology", Keywords: []string{
		"ophthalmologist", "eye", "eyes", "vision", "aankh", "aankhen", "आंख",
	}},
	{Specialty: "Psychiatry", Keywords: []string{
		"psychiatrist", "psychiatry", "depression", "anxiety", "stress", "insomnia", "tanav",
	}},
	{Specialty: "Gastroenterology", Keywords: []string{
		"gastroenterologist", "stomach", "acidity", "gas", "constipation", "diarrhea",
		"pet dard", "pet", "पेट दर्द",
	}},
	{Specialty: "General Physician", Keywords: []string{
		"general physician", "physician", "fever", "bukhar", "cold", "cough", "khansi",
		"zukam", "flu", "headache", "weakness", "kamzori", "बुखार", "खांसी",
	}},
}

// SymptomMapper resolves a message to a specialty by keyword.
type SymptomMapper struct {
	rules []SpecialtyRule
}

func NewSymptomMapper(rules []SpecialtyRule) *SymptomMapper {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]SpecialtyRule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = normalizeText(kw); kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized = append(normalized, SpecialtyRule{Specialty: r.Specialty, Keywords: kws})
	}
	return &SymptomMapper{rules: normalized}
}

// Lookup returns the specialty of the first rule with a keyword present in
// text as a whole word or phrase.
func (m *SymptomMapper) Lookup(text string) (string, bool) {
	padded := " " + normalizeText(text) + " "
	if strings.TrimSpace(padded) == "" {
		return "", false
	}
	for _, r := range m.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return r.Specialty, true
			}
		}
	}
	return "", false
}

// normalizeText lower-cases and collapses everything that is not part of a
// word into single spaces.
func normalizeText(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
