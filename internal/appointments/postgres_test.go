package appointments

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentColumns = []string{
	"id", "doctor_id", "doctor_name", "patient_id", "patient_name", "to_char", "appointment_time",
	"fee", "status", "symptoms", "token_number", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(sqlmock.AnyArg(), "d1", "Dr. Priya", "p1", sql.NullString{String: "Asha", Valid: true},
			"2026-03-05", "10:00 AM", 700, "Scheduled", sql.NullString{}, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := &Appointment{DoctorID: "d1", DoctorName: "Dr. Priya", PatientID: "p1", PatientName: "Asha",
		Date: "2026-03-05", Time: "10:00 AM", Fee: 700, TokenNumber: 3}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusScheduled, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE doctor_id = \$1 AND patient_id = \$2 AND status = \$3 AND appointment_date >= \$4`).
		WithArgs("d1", "p1", "Scheduled", "2026-03-04").
		WillReturnRows(sqlmock.NewRows(appointmentColumns).
			AddRow("a1", "d1", "Dr. Priya", "p1", nil, "2026-03-05", "10:00 AM", 700, "Scheduled", "migraine", 1, now, now))

	a, err := repo.FindActive(context.Background(), "d1", "p1", "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Empty(t, a.PatientName)
	assert.Equal(t, "migraine", a.Symptoms)

	mock.ExpectQuery("FROM appointments").
		WithArgs("d1", "p2", "Scheduled", "2026-03-04").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindActive(context.Background(), "d1", "p2", "2026-03-04")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByDoctorWithStatuses(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE doctor_id = \$1 AND status = ANY\(\$2\) ORDER BY appointment_date, created_at`).
		WithArgs("d1", pq.Array([]string{"Scheduled", "Completed"})).
		WillReturnRows(sqlmock.NewRows(appointmentColumns).
			AddRow("a1", "d1", "Dr. Priya", "p1", "Asha", "2026-03-05", "10:00 AM", 700, "Scheduled", nil, 1, now, now).
			AddRow("a2", "d1", "Dr. Priya", "p2", "Ravi", "2026-03-06", "11:00 AM", 700, "Completed", nil, 2, now, now))

	list, err := repo.ListByDoctor(context.Background(), "d1", StatusScheduled, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, StatusCompleted, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("a1", "Scheduled", "Cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "a1", StatusScheduled, StatusCancelled))

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("a1", "Scheduled", "Cancelled").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("WHERE id = ").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(appointmentColumns).
			AddRow("a1", "d1", "Dr. Priya", "p1", "Asha", "2026-03-05", "10:00 AM", 700, "Cancelled", nil, 1, now, now))
	err := repo.UpdateStatus(context.Background(), "a1", StatusScheduled, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeletes(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs("d1", "p1", "2026-03-05", "10:00 AM", "Scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	id, err := repo.DeleteForSlot(ctx, "d1", "p1", "2026-03-05", "10:00 AM")
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs("d1", "p9", "2026-03-05", "10:00 AM", "Scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	id, err = repo.DeleteForSlot(ctx, "d1", "p9", "2026-03-05", "10:00 AM")
	require.NoError(t, err)
	assert.Empty(t, id)

	mock.ExpectExec("DELETE FROM appointments WHERE doctor_id").
		WithArgs("d1", "Scheduled").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.DeleteByDoctor(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("Completed", "Scheduled", "2026-03-04").
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = repo.MarkCompletedBefore(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
