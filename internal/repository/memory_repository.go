// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// memoryRepository keeps runs in process memory. It backs the service when
// the database is disabled.
type memoryRepository struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*model.MeasurementRun
	logger *zap.Logger
}

// NewMemoryRepository creates an in-memory measurement repository
func NewMemoryRepository(logger *zap.Logger) MeasurementRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &memoryRepository{
		runs:   make(map[uuid.UUID]*model.MeasurementRun),
		logger: logger,
	}
}

func (r *memoryRepository) CreateRun(ctx context.Context, run *model.MeasurementRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("measurement run already exists: %s", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	r.runs[run.ID] = cloneRun(run, true)
	return nil
}

func (r *memoryRepository) CompleteRun(ctx context.Context, run *model.MeasurementRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.runs[run.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}

	updated := cloneRun(run, true)
	updated.CreatedAt = stored.CreatedAt
	for i := range updated.Measurements {
		updated.Measurements[i].RunID = run.ID
	}
	r.runs[run.ID] = updated
	return nil
}

func (r *memoryRepository) GetRun(ctx context.Context, id uuid.UUID) (*model.MeasurementRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return cloneRun(run, true), nil
}

func (r *memoryRepository) ListRuns(ctx context.Context, filter *RunFilter) ([]*model.MeasurementRun, int, error) {
	filter.Normalize()

	r.mu.RLock()
	matched := make([]*model.MeasurementRun, 0, len(r.runs))
	for _, run := range r.runs {
		if filter.matches(run) {
			matched = append(matched, cloneRun(run, false))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return []*model.MeasurementRun{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryRepository) GetRunStats(ctx context.Context, instrument string) (*RunStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &RunStats{ByStatus: make(map[model.RunStatus]int)}
	var durationSum, durationCount int
	for _, run := range r.runs {
		if instrument != "" && run.Instrument != instrument {
			continue
		}
		stats.TotalRuns++
		stats.TotalMeasurements += len(run.Measurements)
		stats.ByStatus[run.Status]++
		if run.DurationMs != nil {
			durationSum += *run.DurationMs
			durationCount++
		}
		if stats.LastRun == nil || run.CreatedAt.After(*stats.LastRun) {
			t := run.CreatedAt
			stats.LastRun = &t
		}
	}
	if durationCount > 0 {
		stats.AvgDurationMs = float64(durationSum) / float64(durationCount)
	}
	return stats, nil
}

func (r *memoryRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, run := range r.runs {
		if run.CreatedAt.Before(olderThan) {
			delete(r.runs, id)
			deleted++
		}
	}

	r.logger.Info("Deleted old measurement runs",
		zap.Int64("rows_deleted", deleted),
		zap.Time("older_than", olderThan),
	)
	return deleted, nil
}

// cloneRun copies a run so callers never share slices with the store
func cloneRun(run *model.MeasurementRun, withDetail bool) *model.MeasurementRun {
	c := *run
	c.Measurements = nil
	c.Failures = nil
	if withDetail {
		c.Measurements = append([]model.Measurement(nil), run.Measurements...)
		c.Failures = append([]model.StepFailure(nil), run.Failures...)
	}
	if run.Config != nil {
		c.Config = make(model.JSONObject, len(run.Config))
		for k, v := range run.Config {
			c.Config[k] = v
		}
	}
	return &c
}
