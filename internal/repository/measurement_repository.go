// internal/repository/measurement_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tachymeter-service/internal/database"
	"tachymeter-service/internal/model"
)

const runColumns = `
	id, instrument, config, math_convention, status, expected,
	started_at, completed_at, duration_ms, error_message, created_at`

// measurementRepository implements MeasurementRepository on PostgreSQL
type measurementRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewMeasurementRepository creates a new PostgreSQL measurement repository
func NewMeasurementRepository(db *database.DB, logger *zap.Logger) MeasurementRepository {
	return &measurementRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRun creates a new run header
func (r *measurementRepository) CreateRun(ctx context.Context, run *model.MeasurementRun) error {
	query := `
		INSERT INTO measurement_runs (
			id, instrument, config, math_convention, status, expected, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		run.ID, run.Instrument, run.Config, run.MathConvention,
		run.Status, run.Expected, run.StartedAt,
	).Scan(&run.CreatedAt)

	if err != nil {
		r.logger.Error("Failed to create measurement run", zap.Error(err))
		return fmt.Errorf("failed to create measurement run: %w", err)
	}

	return nil
}

// CompleteRun writes the final state of a run in one transaction
func (r *measurementRepository) CompleteRun(ctx context.Context, run *model.MeasurementRun) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE measurement_runs SET
				status = $2, completed_at = $3, duration_ms = $4, error_message = $5
			WHERE id = $1
		`, run.ID, run.Status, run.CompletedAt, run.DurationMs, run.ErrorMessage)
		if err != nil {
			return fmt.Errorf("failed to update measurement run: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
		}

		for _, m := range run.Measurements {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO measurements (
					run_id, sequence, iteration, face, azimuth, zenith, slope_distance, distance_valid
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, run.ID, m.Sequence, m.Iteration, m.Face, m.Azimuth, m.Zenith, m.SlopeDistance, m.DistanceValid)
			if err != nil {
				return fmt.Errorf("failed to insert measurement %d: %w", m.Sequence, err)
			}
		}

		for i, f := range run.Failures {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_failures (run_id, position, iteration, face, step, error)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, run.ID, i, f.Iteration, f.Face, f.Step, f.Error)
			if err != nil {
				return fmt.Errorf("failed to insert run failure: %w", err)
			}
		}

		return nil
	})
}

// GetRun retrieves a run with its measurements and failures
func (r *measurementRepository) GetRun(ctx context.Context, id uuid.UUID) (*model.MeasurementRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM measurement_runs WHERE id = $1`, runColumns)

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get measurement run: %w", err)
	}

	if run.Measurements, err = r.loadMeasurements(ctx, id); err != nil {
		return nil, err
	}
	if run.Failures, err = r.loadFailures(ctx, id); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *measurementRepository) loadMeasurements(ctx context.Context, runID uuid.UUID) ([]model.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, sequence, iteration, face, azimuth, zenith, slope_distance, distance_valid
		FROM measurements
		WHERE run_id = $1
		ORDER BY sequence ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load measurements: %w", err)
	}
	defer rows.Close()

	measurements := []model.Measurement{}
	for rows.Next() {
		var m model.Measurement
		if err := rows.Scan(
			&m.RunID, &m.Sequence, &m.Iteration, &m.Face,
			&m.Azimuth, &m.Zenith, &m.SlopeDistance, &m.DistanceValid,
		); err != nil {
			return nil, fmt.Errorf("failed to scan measurement row: %w", err)
		}
		measurements = append(measurements, m)
	}

	return measurements, rows.Err()
}

func (r *measurementRepository) loadFailures(ctx context.Context, runID uuid.UUID) ([]model.StepFailure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT iteration, face, step, error
		FROM run_failures
		WHERE run_id = $1
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run failures: %w", err)
	}
	defer rows.Close()

	var failures []model.StepFailure
	for rows.Next() {
		var f model.StepFailure
		if err := rows.Scan(&f.Iteration, &f.Face, &f.Step, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run failure row: %w", err)
		}
		failures = append(failures, f)
	}

	return failures, rows.Err()
}

// ListRuns retrieves run headers with filtering and pagination
func (r *measurementRepository) ListRuns(ctx context.Context, filter *RunFilter) ([]*model.MeasurementRun, int, error) {
	filter.Normalize()

	// Build WHERE clause
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Instrument != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("instrument = $%d", argIndex))
		args = append(args, *filter.Instrument)
		argIndex++
	}

	if filter.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.StartDate != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}

	if filter.EndDate != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	// Count total records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM measurement_runs %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count measurement runs: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`
		SELECT %s
		FROM measurement_runs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.PerPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list measurement runs: %w", err)
	}
	defer rows.Close()

	runs := []*model.MeasurementRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			r.logger.Error("Failed to scan measurement run row", zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}

	return runs, total, nil
}

// GetRunStats aggregates run statistics, optionally for one instrument
func (r *measurementRepository) GetRunStats(ctx context.Context, instrument string) (*RunStats, error) {
	stats := &RunStats{ByStatus: make(map[model.RunStatus]int)}

	whereClause := ""
	args := []interface{}{}
	if instrument != "" {
		whereClause = "WHERE instrument = $1"
		args = append(args, instrument)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT status, COUNT(*), COALESCE(AVG(duration_ms), 0), MAX(created_at)
		FROM measurement_runs %s
		GROUP BY status
	`, whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}
	defer rows.Close()

	var weightedDuration float64
	for rows.Next() {
		var (
			status  model.RunStatus
			count   int
			avg     float64
			lastRun sql.NullTime
		)
		if err := rows.Scan(&status, &count, &avg, &lastRun); err != nil {
			return nil, fmt.Errorf("failed to scan run stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalRuns += count
		weightedDuration += avg * float64(count)
		if lastRun.Valid && (stats.LastRun == nil || lastRun.Time.After(*stats.LastRun)) {
			t := lastRun.Time
			stats.LastRun = &t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run stats: %w", err)
	}
	if stats.TotalRuns > 0 {
		stats.AvgDurationMs = weightedDuration / float64(stats.TotalRuns)
	}

	countQuery := `SELECT COUNT(*) FROM measurements m JOIN measurement_runs r ON r.id = m.run_id`
	if instrument != "" {
		countQuery += ` WHERE r.instrument = $1`
	}
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&stats.TotalMeasurements); err != nil {
		return nil, fmt.Errorf("failed to count measurements: %w", err)
	}

	return stats, nil
}

// DeleteOlderThan removes old runs; measurements and failures cascade
func (r *measurementRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM measurement_runs WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old measurement runs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Deleted old measurement runs",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Time("older_than", olderThan),
	)

	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.MeasurementRun, error) {
	run := &model.MeasurementRun{}
	err := row.Scan(
		&run.ID, &run.Instrument, &run.Config, &run.MathConvention,
		&run.Status, &run.Expected, &run.StartedAt, &run.CompletedAt,
		&run.DurationMs, &run.ErrorMessage, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
