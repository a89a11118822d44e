package doctors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var doctorColumnNames = []string{
	"id", "name", "specialty", "city", "clinic_name", "profile", "status", "timings",
	"availability", "queue", "current_queue_token", "last_token_issued", "patient_history", "version", "updated_at",
}

func strPtr(s string) *string { return &s }

func doctorRow(t *testing.T, d *Doctor) []any {
	t.Helper()
	doc, err := encodeDoctor(d)
	require.NoError(t, err)
	return []any{
		d.ID, d.Name, d.Specialty, strPtr(d.City), (*string)(nil), doc.profile, string(d.Status), (*string)(nil),
		doc.availability, doc.queue, d.CurrentQueueToken, d.LastTokenIssued, doc.history, d.Version, d.UpdatedAt,
	}
}

func TestPostgresStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleDoctor()
	want.Version = 4
	want.UpdatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	want.Admit("p1", "Asha", t0)

	mock.ExpectQuery("SELECT id, name, specialty").
		WithArgs("doc-1").
		WillReturnRows(pgxmock.NewRows(doctorColumnNames).AddRow(doctorRow(t, want)...))

	store := NewPostgresStore(mock)
	got, err := store.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Delhi", got.City)
	assert.Empty(t, got.ClinicName)
	assert.Equal(t, int64(4), got.Version)
	assert.Equal(t, 700, got.Profile.ConsultationFee)
	require.Len(t, got.Queue, 1)
	assert.Equal(t, 1, got.Queue[0].TokenNumber)
	assert.Len(t, got.Availability, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, specialty").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(doctorColumnNames))

	_, err = NewPostgresStore(mock).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestPostgresStoreSaveChecksVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d := sampleDoctor()
	d.Version = 2
	store := NewPostgresStore(mock)

	availability, _ := json.Marshal(d.Availability)
	mock.ExpectExec("UPDATE doctors").
		WithArgs("doc-1", int64(2), d.Name, d.Specialty, d.City, d.ClinicName, pgxmock.AnyArg(), "Available",
			d.Timings, availability, pgxmock.AnyArg(), 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Save(context.Background(), d))
	assert.Equal(t, int64(3), d.Version)

	mock.ExpectExec("UPDATE doctors").
		WithArgs("doc-1", int64(3), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.Save(context.Background(), d), ErrVersionConflict)
	assert.Equal(t, int64(3), d.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSearchBuildsFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d := sampleDoctor()
	mock.ExpectQuery(`WHERE lower\(specialty\) = lower\(\$1\) AND lower\(city\) = lower\(\$2\) ORDER BY created_at, id LIMIT \$3`).
		WithArgs("Neurology", "Delhi", 5).
		WillReturnRows(pgxmock.NewRows(doctorColumnNames).AddRow(doctorRow(t, d)...))

	got, err := NewPostgresStore(mock).Search(context.Background(), Query{Specialty: "Neurology", City: "Delhi", Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc-1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
