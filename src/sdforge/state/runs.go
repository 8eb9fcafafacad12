package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sdforge/sdforge/src/common/errors"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one invocation of the build pipeline against a device
type Run struct {
	ID           string
	Device       string
	Board        string
	Defconfig    string
	Status       string
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  sql.NullTime
}

// StageRecord is the outcome of one stage within a run
type StageRecord struct {
	RunID        string
	Stage        string
	Status       string
	Duration     time.Duration
	ErrorMessage string
}

// RunRepository handles run ledger database operations
type RunRepository struct {
	db *Database
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *Database) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run and returns its generated ID.
func (r *RunRepository) CreateRun(device, board, defconfig string) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO runs (id, device, board, defconfig, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.DB().Exec(query, id, device, board, defconfig, RunStatusRunning, time.Now())
	if err != nil {
		return "", errors.ErrLedger.WithMessage("failed to record run start").WithCause(err)
	}
	return id, nil
}

// CompleteRun marks a run as finished successfully.
func (r *RunRepository) CompleteRun(id string) error {
	query := `UPDATE runs SET status = ?, completed_at = ? WHERE id = ?`
	if _, err := r.db.DB().Exec(query, RunStatusCompleted, time.Now(), id); err != nil {
		return errors.ErrLedger.WithMessage("failed to record run completion").WithCause(err)
	}
	return nil
}

// FailRun marks a run as failed with the given error.
func (r *RunRepository) FailRun(id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	query := `UPDATE runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`
	if _, err := r.db.DB().Exec(query, RunStatusFailed, msg, time.Now(), id); err != nil {
		return errors.ErrLedger.WithMessage("failed to record run failure").WithCause(err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(limit int) ([]Run, error) {
	query := `
		SELECT id, device, board, defconfig, status, error_message, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := r.db.DB().Query(query, limit)
	if err != nil {
		return nil, errors.ErrLedger.WithMessage("failed to list runs").WithCause(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Device, &run.Board, &run.Defconfig,
			&run.Status, &errMsg, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, errors.ErrLedger.WithMessage("failed to scan run").WithCause(err)
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stages returns the stage records for a run in execution order.
func (r *RunRepository) Stages(runID string) ([]StageRecord, error) {
	query := `
		SELECT run_id, stage, status, duration_ms, error_message
		FROM run_stages WHERE run_id = ? ORDER BY id ASC
	`
	rows, err := r.db.DB().Query(query, runID)
	if err != nil {
		return nil, errors.ErrLedger.WithMessage("failed to list run stages").WithCause(err)
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		var rec StageRecord
		var durationMs int64
		var errMsg sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Stage, &rec.Status, &durationMs, &errMsg); err != nil {
			return nil, errors.ErrLedger.WithMessage("failed to scan run stage").WithCause(err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.ErrorMessage = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StageStarted records a stage beginning execution.
func (r *RunRepository) StageStarted(runID string, stage string) error {
	return r.insertStage(StageRecord{RunID: runID, Stage: stage, Status: "started"})
}

// StageCompleted records a stage finishing successfully.
func (r *RunRepository) StageCompleted(runID string, stage string, duration time.Duration) error {
	return r.insertStage(StageRecord{RunID: runID, Stage: stage, Status: "completed", Duration: duration})
}

// StageFailed records a stage failure.
func (r *RunRepository) StageFailed(runID string, stage string, duration time.Duration, stageErr error) error {
	msg := ""
	if stageErr != nil {
		msg = stageErr.Error()
	}
	return r.insertStage(StageRecord{
		RunID:        runID,
		Stage:        stage,
		Status:       "failed",
		Duration:     duration,
		ErrorMessage: msg,
	})
}

func (r *RunRepository) insertStage(rec StageRecord) error {
	query := `
		INSERT INTO run_stages (run_id, stage, status, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.DB().Exec(query, rec.RunID, rec.Stage, rec.Status,
		rec.Duration.Milliseconds(), rec.ErrorMessage)
	if err != nil {
		return errors.ErrLedger.WithMessage(fmt.Sprintf("failed to record stage %s", rec.Stage)).WithCause(err)
	}
	return nil
}
