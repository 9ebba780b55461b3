// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tachymeter-service/internal/model"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("measurement run not found")

// MeasurementRepository defines measurement run data access operations
type MeasurementRepository interface {
	// CreateRun stores the run header when the sequencer starts
	CreateRun(ctx context.Context, run *model.MeasurementRun) error
	// CompleteRun stores the final status together with measurements and failures
	CompleteRun(ctx context.Context, run *model.MeasurementRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*model.MeasurementRun, error)

	// ListRuns returns run headers without measurements, newest first
	ListRuns(ctx context.Context, filter *RunFilter) ([]*model.MeasurementRun, int, error)
	GetRunStats(ctx context.Context, instrument string) (*RunStats, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// RunFilter represents run listing filters
type RunFilter struct {
	Instrument *string          `json:"instrument,omitempty"`
	Status     *model.RunStatus `json:"status,omitempty"`
	StartDate  *time.Time       `json:"start_date,omitempty"`
	EndDate    *time.Time       `json:"end_date,omitempty"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
}

// Normalize clamps pagination to sane bounds
func (f *RunFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
}

// matches reports whether run passes the filter, for in-memory listing
func (f *RunFilter) matches(run *model.MeasurementRun) bool {
	if f.Instrument != nil && run.Instrument != *f.Instrument {
		return false
	}
	if f.Status != nil && run.Status != *f.Status {
		return false
	}
	if f.StartDate != nil && run.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && run.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

// RunStats represents measurement run statistics
type RunStats struct {
	TotalRuns         int                     `json:"total_runs"`
	TotalMeasurements int                     `json:"total_measurements"`
	ByStatus          map[model.RunStatus]int `json:"by_status"`
	AvgDurationMs     float64                 `json:"average_duration_ms"`
	LastRun           *time.Time              `json:"last_run,omitempty"`
}
