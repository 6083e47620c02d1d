// Package runlog keeps a durable ledger of extraction runs so operators can
// audit partial failures after the output directories themselves have been
// swept.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"matextract-backend/services/extraction"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open database, the schema must be applied by the
// caller. Used by tests and by callers that manage the connection themselves.
func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

// Open connects to (or creates) the ledger database at path and applies the
// schema.
func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return Store{}, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return Store{}, err
	}
	return Store{db: db}, nil
}

func (s Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun records the beginning of an extraction run and returns its id.
func (s Store) StartRun(ctx context.Context, outputDir string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (output_dir, started_at) VALUES (?, ?)`,
		outputDir,
		startedAt.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordOutcome appends one material's outcome to a run.
func (s Store) RecordOutcome(ctx context.Context, runId int64, outcome extraction.MaterialOutcome) error {
	var errText sql.NullString
	if outcome.Err != nil {
		errText = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_materials (run_id, batch, material_number, has_qa, images, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runId,
		outcome.Batch,
		outcome.MaterialNumber,
		outcome.HasQA,
		outcome.Images,
		errText,
	)
	return err
}

// FinishRun stamps a run with its completion time and final counts.
func (s Store) FinishRun(ctx context.Context, runId int64, finishedAt time.Time, processed, failed int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, failed = ? WHERE id = ?`,
		finishedAt.Unix(),
		processed,
		failed,
		runId,
	)
	return err
}

type Run struct {
	Id         int64
	OutputDir  string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Failed     int
}

func (s Store) GetRun(ctx context.Context, runId int64) (Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, output_dir, started_at, finished_at, processed, failed
		 FROM runs WHERE id = ?`,
		runId,
	)

	var run Run
	var started int64
	var finished sql.NullInt64
	err := row.Scan(&run.Id, &run.OutputDir, &started, &finished, &run.Processed, &run.Failed)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		run.FinishedAt = time.Unix(finished.Int64, 0)
	}
	return run, nil
}

type Outcome struct {
	Batch          string
	MaterialNumber string
	HasQA          bool
	Images         int
	Error          string
}

func (s Store) ListOutcomes(ctx context.Context, runId int64) ([]Outcome, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT batch, material_number, has_qa, images, error
		 FROM run_materials WHERE run_id = ? ORDER BY id`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var outcome Outcome
		var errText sql.NullString
		err := rows.Scan(
			&outcome.Batch,
			&outcome.MaterialNumber,
			&outcome.HasQA,
			&outcome.Images,
			&errText,
		)
		if err != nil {
			return nil, err
		}
		outcome.Error = errText.String
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}
