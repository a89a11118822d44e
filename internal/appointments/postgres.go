package appointments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository stores appointments through database/sql.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	if db == nil {
		panic("appointments: sql db required")
	}
	return &PostgresRepository{db: db}
}

const selectAppointment = `
	SELECT id, doctor_id, doctor_name, patient_id, patient_name,
		to_char(appointment_date, 'YYYY-MM-DD'), appointment_time, fee, status, symptoms,
		token_number, created_at, updated_at
	FROM appointments
`

func (r *PostgresRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO appointments (
			id, doctor_id, doctor_name, patient_id, patient_name, appointment_date,
			appointment_time, fee, status, symptoms, token_number, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.DoctorID,
		a.DoctorName,
		a.PatientID,
		nullString(a.PatientName),
		a.Date,
		a.Time,
		a.Fee,
		string(a.Status),
		nullString(a.Symptoms),
		a.TokenNumber,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, selectAppointment+` WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) FindActive(ctx context.Context, doctorID, patientID, today string) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, selectAppointment+`
		WHERE doctor_id = $1 AND patient_id = $2 AND status = $3 AND appointment_date >= $4
		ORDER BY appointment_date
		LIMIT 1`, doctorID, patientID, string(StatusScheduled), today)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: find active: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string, statuses ...Status) ([]*Appointment, error) {
	return r.list(ctx, `WHERE patient_id = $1`, patientID, statuses)
}

func (r *PostgresRepository) ListByDoctor(ctx context.Context, doctorID string, statuses ...Status) ([]*Appointment, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, doctorID, statuses)
}

func (r *PostgresRepository) list(ctx context.Context, where, arg string, statuses []Status) ([]*Appointment, error) {
	args := []any{arg}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		where += ` AND status = ANY($2)`
		args = append(args, pq.Array(names))
	}
	rows, err := r.db.QueryContext(ctx, selectAppointment+where+` ORDER BY appointment_date, created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) DeleteForSlot(ctx context.Context, doctorID, patientID, date, slot string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM appointments
		WHERE id = (
			SELECT id FROM appointments
			WHERE doctor_id = $1 AND patient_id = $2 AND appointment_date = $3
				AND appointment_time = $4 AND status = $5
			LIMIT 1
		)
		RETURNING id`, doctorID, patientID, date, slot, string(StatusScheduled)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("appointments: delete for slot: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) DeleteByDoctor(ctx context.Context, doctorID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE doctor_id = $1 AND status = $2`, doctorID, string(StatusScheduled))
	if err != nil {
		return 0, fmt.Errorf("appointments: delete by doctor: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) MarkCompletedBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments SET status = $1, updated_at = now()
		WHERE status = $2 AND appointment_date < $3`,
		string(StatusCompleted), string(StatusScheduled), date)
	if err != nil {
		return 0, fmt.Errorf("appointments: mark completed: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		a                     Appointment
		status                string
		patientName, symptoms sql.NullString
	)
	if err := row.Scan(&a.ID, &a.DoctorID, &a.DoctorName, &a.PatientID, &patientName, &a.Date, &a.Time,
		&a.Fee, &status, &symptoms, &a.TokenNumber, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.PatientName = patientName.String
	a.Symptoms = symptoms.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
