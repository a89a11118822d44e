package directory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
)

func TestSymptomMapperLookup(t *testing.T) {
	m := NewSymptomMapper(nil)
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"migraine", "Neurology", true},
		{"Mujhe bahut sir dard ho raha hai", "Neurology", true},
		{"I need a heart specialist", "Cardiology", true},
		{"skin pe rash hai", "Dermatology", true},
		{"daant mein dard", "Dentist", true},
		{"mujhe bukhar hai", "General Physician", true},
		{"fever and palpitations", "Cardiology", true},
		{"मुझे बुखार है", "General Physician", true},
		{"book an appointment", "", false},
		{"petrol pump", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := m.Lookup(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSymptomMapperFirstRuleWins(t *testing.T) {
	m := NewSymptomMapper([]SpecialtyRule{
		{Specialty: "A", Keywords: []string{"pain"}},
		{Specialty: "B", Keywords: []string{"Back Pain"}},
	})
	got, ok := m.Lookup("back pain since monday")
	require.True(t, ok)
	assert.Equal(t, "A", got)
}

func seededDirectory() *Directory {
	var seed []*doctors.Doctor
	for i := 1; i <= 7; i++ {
		seed = append(seed, &doctors.Doctor{
			ID:        fmt.Sprintf("neuro-%d", i),
			Name:      fmt.Sprintf("Dr. Neuro %d", i),
			Specialty: "Neurology",
			City:      "Delhi",
			Profile:   doctors.Profile{ConsultationFee: 500 + i},
		})
	}
	seed = append(seed, &doctors.Doctor{ID: "derm-1", Name: "Dr. Priya Sharma", Specialty: "Dermatology", City: "Pune"})
	return New(doctors.NewMemoryStore(seed...), nil, nil)
}

func TestSearchCapsPageSize(t *testing.T) {
	dir := seededDirectory()
	got, err := dir.Search(context.Background(), doctors.Query{Specialty: "Neurology", Limit: 50})
	require.NoError(t, err)
	require.Len(t, got, DefaultPageSize)
	assert.Equal(t, "neuro-1", got[0].ID)
	assert.Equal(t, "neuro-5", got[4].ID)
	assert.Equal(t, 501, got[0].ConsultationFee)
}

func TestSearchByName(t *testing.T) {
	got, err := seededDirectory().Search(context.Background(), doctors.Query{Name: " priya "})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dermatology", got[0].Specialty)
}

func TestSearchBySymptoms(t *testing.T) {
	dir := seededDirectory().WithPageSize(3)

	specialty, results, ok, err := dir.SearchBySymptoms(context.Background(), "migraine")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Neurology", specialty)
	assert.Len(t, results, 3)

	_, _, ok, err = dir.SearchBySymptoms(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, ok)
}
