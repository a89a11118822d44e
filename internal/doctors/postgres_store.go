package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps each aggregate in one row; calendar, queue and history
// are JSONB so a single UPDATE persists the whole aggregate.
type PostgresStore struct {
	db pgxQuerier
}

func NewPostgresStore(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresStore{db: db}
}

const doctorColumns = `id, name, specialty, city, clinic_name, profile, status, timings,
	availability, queue, current_queue_token, last_token_issued, patient_history, version, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Doctor, error) {
	row := s.db.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	d, err := scanDoctor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: get %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) Create(ctx context.Context, d *Doctor) error {
	d.applyDefaults()
	doc, err := encodeDoctor(d)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO doctors (id, name, specialty, city, clinic_name, profile, status, timings,
			availability, queue, current_queue_token, last_token_issued, patient_history, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, d.ID, d.Name, d.Specialty, d.City, d.ClinicName, doc.profile,
		string(d.Status), d.Timings, doc.availability, doc.queue, d.CurrentQueueToken, d.LastTokenIssued,
		doc.history); err != nil {
		return fmt.Errorf("doctors: insert %s: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, d *Doctor) error {
	doc, err := encodeDoctor(d)
	if err != nil {
		return err
	}
	query := `
		UPDATE doctors
		SET name = $3, specialty = $4, city = $5, clinic_name = $6, profile = $7, status = $8,
			timings = $9, availability = $10, queue = $11, current_queue_token = $12,
			last_token_issued = $13, patient_history = $14, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`
	tag, err := s.db.Exec(ctx, query, d.ID, d.Version, d.Name, d.Specialty, d.City, d.ClinicName,
		doc.profile, string(d.Status), d.Timings, doc.availability, doc.queue, d.CurrentQueueToken,
		d.LastTokenIssued, doc.history)
	if err != nil {
		return fmt.Errorf("doctors: save %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, q Query) ([]*Doctor, error) {
	var (
		clauses []string
		args    []any
	)
	if q.Specialty != "" {
		args = append(args, q.Specialty)
		clauses = append(clauses, fmt.Sprintf("lower(specialty) = lower($%d)", len(args)))
	}
	if q.Name != "" {
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
		clauses = append(clauses, fmt.Sprintf("lower(name) LIKE $%d", len(args)))
	}
	if q.City != "" {
		args = append(args, q.City)
		clauses = append(clauses, fmt.Sprintf("lower(city) = lower($%d)", len(args)))
	}
	query := `SELECT ` + doctorColumns + ` FROM doctors`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("doctors: search: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type encodedDoctor struct {
	profile      []byte
	availability []byte
	queue        []byte
	history      []byte
}

func encodeDoctor(d *Doctor) (encodedDoctor, error) {
	var (
		out encodedDoctor
		err error
	)
	if out.profile, err = json.Marshal(d.Profile); err != nil {
		return out, fmt.Errorf("doctors: marshal profile: %w", err)
	}
	if out.availability, err = json.Marshal(d.Availability); err != nil {
		return out, fmt.Errorf("doctors: marshal availability: %w", err)
	}
	if out.queue, err = json.Marshal(d.Queue); err != nil {
		return out, fmt.Errorf("doctors: marshal queue: %w", err)
	}
	if out.history, err = json.Marshal(d.PatientHistory); err != nil {
		return out, fmt.Errorf("doctors: marshal history: %w", err)
	}
	return out, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d                                     Doctor
		status                                string
		profile, availability, queue, history []byte
		city, clinicName, timings             *string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Specialty, &city, &clinicName, &profile, &status, &timings,
		&availability, &queue, &d.CurrentQueueToken, &d.LastTokenIssued, &history, &d.Version, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = Status(status)
	if city != nil {
		d.City = *city
	}
	if clinicName != nil {
		d.ClinicName = *clinicName
	}
	if timings != nil {
		d.Timings = *timings
	}
	if err := unmarshalJSONB(profile, &d.Profile); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := unmarshalJSONB(availability, &d.Availability); err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}
	if err := unmarshalJSONB(queue, &d.Queue); err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	if err := unmarshalJSONB(history, &d.PatientHistory); err != nil {
		return nil, fmt.Errorf("patient history: %w", err)
	}
	d.applyDefaults()
	return &d, nil
}

func unmarshalJSONB(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
