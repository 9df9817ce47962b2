package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var _ Store = (*SQLiteStore)(nil)

// CreateRun creates a new generation run.
func (s *SQLiteStore) CreateRun(ctx context.Context, info RunInfo) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Template:  info.Template,
		DataFile:  info.DataFile,
		OutputDir: info.OutputDir,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("template", info.Template))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, template, data_file, output_dir, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Template, run.DataFile, run.OutputDir, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordRows stores row results of a run in one transaction.
func (s *SQLiteStore) RecordRows(ctx context.Context, runID string, rows []RowResult) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO row_results
				(run_id, row_index, base_name, output_path, status, failed_at, error, warnings, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Row, r.BaseName, r.OutputPath, r.Status,
			nullString(r.FailedAt), nullString(r.Error), r.Warnings, r.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to record row %d: %w", r.Row, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit row results: %w", err)
	}
	s.logger.Debug("recorded rows", slog.String("run_id", runID), slog.Int("count", len(rows)))
	return nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, counts Counts, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total = ?, done = ?, failed = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), counts.Total, counts.Done, counts.Failed, time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, template, data_file, output_dir, status, total, done, failed, started_at, completed_at, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRowResults returns the row results of a run in row order.
func (s *SQLiteStore) GetRowResults(ctx context.Context, runID string) ([]RowResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_index, base_name, output_path, status, failed_at, error, warnings, duration_ms
		FROM row_results WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get row results: %w", err)
	}
	defer rows.Close()

	var results []RowResult
	for rows.Next() {
		r := RowResult{RunID: runID}
		var failedAt, errMsg sql.NullString
		var durationMS int64
		if err := rows.Scan(&r.Row, &r.BaseName, &r.OutputPath, &r.Status, &failedAt, &errMsg, &r.Warnings, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan row result: %w", err)
		}
		r.FailedAt = failedAt.String
		r.Error = errMsg.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.Template, &run.DataFile, &run.OutputDir, &status,
		&run.Total, &run.Done, &run.Failed, &run.StartedAt, &completedAt, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
