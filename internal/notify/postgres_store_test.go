package notify

import (
	"context"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreAddAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	created := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("n1", "pat-1", "doc-1", "called", "your turn", "", false, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Add(context.Background(), &Notification{
		ID: "n1", RecipientID: "pat-1", DoctorID: "doc-1", Type: TypeCalled, Message: "your turn", CreatedAt: created,
	}))

	rows := pgxmock.NewRows([]string{"id", "recipient_id", "doctor_id", "type", "message", "event_id", "read", "created_at"}).
		AddRow("n1", "pat-1", "doc-1", "called", "your turn", "", false, created).
		AddRow("n0", "", "doc-1", "availability", "Dr. P is available", "evt-1", false, created.Add(-time.Hour))
	mock.ExpectQuery("SELECT id, COALESCE\\(recipient_id").WithArgs("pat-1", defaultListLimit).WillReturnRows(rows)

	feed, err := store.List(context.Background(), "pat-1", 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, TypeCalled, feed[0].Type)
	assert.True(t, feed[1].Broadcast())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMarkRead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock)

	mock.ExpectExec("UPDATE notifications SET read").WithArgs("n1", "pat-1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE notifications SET read").WithArgs("n2", "pat-1").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.MarkRead(context.Background(), "pat-1", "n1"))
	assert.ErrorIs(t, store.MarkRead(context.Background(), "pat-1", "n2"), ErrNotificationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContactBook(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	book := NewPostgresContactBook(mock)

	mock.ExpectQuery("SELECT name").WithArgs("pat-1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "phone", "email"}).AddRow("Asha", " +919800000001 ", ""))
	mock.ExpectQuery("SELECT name").WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	c, ok, err := book.Lookup(context.Background(), "pat-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "+919800000001", c.Phone)

	_, ok, err = book.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
