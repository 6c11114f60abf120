package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning    = "running"
	StatusComplete   = "complete"
	StatusUnresolved = "unresolved"
	StatusFailed     = "failed"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// Run records the parameters and outcome of one classification run.
type Run struct {
	RunID           string          `json:"run_id"`
	CreatedAt       int64           `json:"created_at"`
	FinishedAt      int64           `json:"finished_at,omitempty"`
	Region          string          `json:"region"`
	UnitSystem      string          `json:"unit_system"`
	FuelModel       string          `json:"fuel_model"`
	ModelVersion    string          `json:"model_version"`
	Status          string          `json:"status"`
	ObjectCount     int             `json:"object_count"`
	UnresolvedCount int             `json:"unresolved_count"`
	ParamsJSON      json.RawMessage `json:"params_json,omitempty"`
}

// RunStore provides persistence for run records.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO runs (
				run_id, created_at, region, unit_system, fuel_model, model_version,
				status, object_count, unresolved_count, params_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.Region, run.UnitSystem, run.FuelModel, run.ModelVersion,
			run.Status, run.ObjectCount, run.UnresolvedCount, params,
		)
		return err
	})
}

// Finish records a run's outcome.
func (s *RunStore) Finish(runID, status string, objectCount, unresolvedCount int, finishedAt time.Time) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE runs SET status = ?, object_count = ?, unresolved_count = ?, finished_at = ?
			WHERE run_id = ?`,
			status, objectCount, unresolvedCount, finishedAt.UnixNano(), runID)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

const runColumns = `run_id, created_at, finished_at, region, unit_system, fuel_model,
	model_version, status, object_count, unresolved_count, params_json`

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// Latest returns the most recently created run.
func (s *RunStore) Latest() (*Run, error) {
	row := s.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// List returns runs, newest first.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finished sql.NullInt64
	var params sql.NullString
	err := row.Scan(&r.RunID, &r.CreatedAt, &finished, &r.Region, &r.UnitSystem, &r.FuelModel,
		&r.ModelVersion, &r.Status, &r.ObjectCount, &r.UnresolvedCount, &params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = finished.Int64
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}
