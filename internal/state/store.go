// Package state records generation runs and their per-row results in SQLite.
package state

import (
	"context"
	"time"
)

// RunStatus is the outcome of a generation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one invocation of the generator.
type Run struct {
	ID          string
	Template    string
	DataFile    string
	OutputDir   string
	Status      RunStatus
	Total       int
	Done        int
	Failed      int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// RunInfo describes a run being started.
type RunInfo struct {
	Template  string
	DataFile  string
	OutputDir string
}

// RowResult is the stored outcome of one row.
type RowResult struct {
	RunID      string
	Row        int
	BaseName   string
	OutputPath string
	Status     string
	FailedAt   string
	Error      string
	Warnings   int
	Duration   time.Duration
}

// Counts summarizes a finished run.
type Counts struct {
	Total  int
	Done   int
	Failed int
}

// Store persists run history.
type Store interface {
	CreateRun(ctx context.Context, info RunInfo) (*Run, error)
	RecordRows(ctx context.Context, runID string, rows []RowResult) error
	CompleteRun(ctx context.Context, id string, status RunStatus, counts Counts, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRowResults(ctx context.Context, runID string) ([]RowResult, error)
	Close() error
}
