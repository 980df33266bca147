// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/domain/program"
	"github.com/stone-edge/queue_layer/internal/app/storage"
)

// Store implements the storage interfaces on a database handle.
type Store struct {
	db *sql.DB
}

var _ storage.ObservationStore = (*Store)(nil)
var _ storage.ProgramStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema creates the tables the store expects. Intended for tests and fresh
// deployments; production migrations live alongside the deployment tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS queue_programs (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS queue_observations (
	id             TEXT PRIMARY KEY,
	owner          TEXT NOT NULL,
	program_id     TEXT NOT NULL,
	target         TEXT NOT NULL,
	exposure_time  DOUBLE PRECISION NOT NULL,
	exposure_count INTEGER NOT NULL,
	binning        INTEGER NOT NULL,
	filters        JSONB NOT NULL,
	options        JSONB NOT NULL,
	completed      BOOLEAN NOT NULL DEFAULT FALSE,
	submit_date    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS queue_observations_owner_idx ON queue_observations (owner);
`

// --- ObservationStore -------------------------------------------------------

func (s *Store) CreateObservation(ctx context.Context, req observation.Request) (observation.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmitDate.IsZero() {
		req.SubmitDate = time.Now().UTC()
	}

	filtersJSON, err := json.Marshal(req.Filters)
	if err != nil {
		return observation.Request{}, err
	}
	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return observation.Request{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queue_observations (id, owner, program_id, target, exposure_time, exposure_count, binning, filters, options, completed, submit_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.Owner, req.ProgramID, req.Target, req.ExposureTime, req.ExposureCount, req.Binning, filtersJSON, optionsJSON, req.Completed, req.SubmitDate)
	if err != nil {
		return observation.Request{}, storage.Transient("create observation", err)
	}
	return req, nil
}

func (s *Store) GetObservation(ctx context.Context, id string) (observation.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, program_id, target, exposure_time, exposure_count, binning, filters, options, completed, submit_date
		FROM queue_observations
		WHERE id = $1
	`, id)

	req, err := scanObservation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return observation.Request{}, storage.ErrNotFound
	}
	if err != nil {
		return observation.Request{}, storage.Transient("get observation", err)
	}
	return req, nil
}

func (s *Store) ListObservations(ctx context.Context, owner string) ([]observation.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, program_id, target, exposure_time, exposure_count, binning, filters, options, completed, submit_date
		FROM queue_observations
		WHERE $1 = '' OR owner = $1
		ORDER BY submit_date
	`, owner)
	if err != nil {
		return nil, storage.Transient("list observations", err)
	}
	defer rows.Close()

	return collectObservations(rows)
}

func (s *Store) ListPendingObservations(ctx context.Context) ([]observation.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, program_id, target, exposure_time, exposure_count, binning, filters, options, completed, submit_date
		FROM queue_observations
		WHERE NOT completed
		ORDER BY submit_date
	`)
	if err != nil {
		return nil, storage.Transient("list pending observations", err)
	}
	defer rows.Close()

	return collectObservations(rows)
}

func (s *Store) SetObservationCompleted(ctx context.Context, id string, completed bool) (observation.Request, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_observations
		SET completed = $2
		WHERE id = $1
	`, id, completed)
	if err != nil {
		return observation.Request{}, storage.Transient("set observation completed", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return observation.Request{}, storage.ErrNotFound
	}
	return s.GetObservation(ctx, id)
}

func (s *Store) DeleteObservation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM queue_observations WHERE id = $1
	`, id)
	if err != nil {
		return storage.Transient("delete observation", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- ProgramStore -----------------------------------------------------------

func (s *Store) CreateProgram(ctx context.Context, p program.Program) (program.Program, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_programs (id, owner, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Owner, p.Name, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return program.Program{}, storage.Transient("create program", err)
	}
	return p, nil
}

func (s *Store) GetProgram(ctx context.Context, id string) (program.Program, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, name, created_at, updated_at
		FROM queue_programs
		WHERE id = $1
	`, id)

	var p program.Program
	if err := row.Scan(&p.ID, &p.Owner, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return program.Program{}, storage.ErrNotFound
		}
		return program.Program{}, storage.Transient("get program", err)
	}
	return p, nil
}

func (s *Store) ListPrograms(ctx context.Context, owner string) ([]program.Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, name, created_at, updated_at
		FROM queue_programs
		WHERE $1 = '' OR owner = $1
		ORDER BY created_at
	`, owner)
	if err != nil {
		return nil, storage.Transient("list programs", err)
	}
	defer rows.Close()

	result := make([]program.Program, 0)
	for rows.Next() {
		var p program.Program
		if err := rows.Scan(&p.ID, &p.Owner, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, storage.Transient("list programs", err)
		}
		result = append(result, p)
	}
	return result, storage.Transient("list programs", rows.Err())
}

func (s *Store) RenameProgram(ctx context.Context, id, name string) (program.Program, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_programs
		SET name = $2, updated_at = $3
		WHERE id = $1
	`, id, name, time.Now().UTC())
	if err != nil {
		return program.Program{}, storage.Transient("rename program", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return program.Program{}, storage.ErrNotFound
	}
	return s.GetProgram(ctx, id)
}

// --- helpers ----------------------------------------------------------------

func scanObservation(scan func(dest ...any) error) (observation.Request, error) {
	var (
		req        observation.Request
		filtersRaw []byte
		optionsRaw []byte
	)
	if err := scan(&req.ID, &req.Owner, &req.ProgramID, &req.Target, &req.ExposureTime, &req.ExposureCount, &req.Binning, &filtersRaw, &optionsRaw, &req.Completed, &req.SubmitDate); err != nil {
		return observation.Request{}, err
	}
	if len(filtersRaw) > 0 {
		_ = json.Unmarshal(filtersRaw, &req.Filters)
	}
	if len(optionsRaw) > 0 {
		_ = json.Unmarshal(optionsRaw, &req.Options)
	}
	req.SubmitDate = req.SubmitDate.UTC()
	return req, nil
}

func collectObservations(rows *sql.Rows) ([]observation.Request, error) {
	result := make([]observation.Request, 0)
	for rows.Next() {
		req, err := scanObservation(rows.Scan)
		if err != nil {
			return nil, storage.Transient("scan observation", err)
		}
		result = append(result, req)
	}
	return result, storage.Transient("list observations", rows.Err())
}
