// internal/service/measurement_service.go
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/utils"
)

// MeasurementService runs the measurement sequencer and records its runs
type MeasurementService struct {
	instruments *InstrumentService
	runRepo     repository.MeasurementRepository
	publisher   EventPublisher
	config      *config.Config
	logger      *utils.ServiceLogger
}

// NewMeasurementService creates a new measurement service instance
func NewMeasurementService(
	instruments *InstrumentService,
	runRepo repository.MeasurementRepository,
	publisher EventPublisher,
	config *config.Config,
	logger *zap.Logger,
) *MeasurementService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &MeasurementService{
		instruments: instruments,
		runRepo:     runRepo,
		publisher:   publisher,
		config:      config,
		logger:      utils.NewServiceLogger(logger, "measurement-service"),
	}
}

// Measure ensures the measurement program and runs the measurement loop.
// The returned run is stored even when err is non-nil; it then holds the
// measurements acquired before the failure.
func (ms *MeasurementService) Measure(ctx context.Context, req *MeasureRequest) (*model.MeasurementRun, error) {
	if req == nil {
		req = &MeasureRequest{}
	}

	cfg := ms.config.Measurement
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	useMath := ms.config.Instrument.UseMath
	if req.UseMath != nil {
		useMath = *req.UseMath
	}

	d, err := ms.instruments.Driver()
	if err != nil {
		return nil, err
	}
	instrument := ms.instruments.Instrument()

	run := &model.MeasurementRun{
		ID:             uuid.New(),
		Instrument:     instrument.Name,
		Config:         configObject(cfg),
		MathConvention: useMath,
		Status:         model.RunStatusRunning,
		Expected:       cfg.Iterations * cfg.FaceCount(),
		StartedAt:      time.Now(),
	}
	if err := ms.runRepo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	runID := run.ID
	publish(ms.publisher, model.EventRunStarted, instrument.Name, &runID, model.JSONObject{
		"expected": run.Expected,
		"config":   run.Config,
	})

	opLogger := utils.NewOperationLogger(ms.logger.Logger, "measure", run.ID.String())
	opLogger.Start(
		zap.String("instrument", instrument.Name),
		zap.Int("iterations", cfg.Iterations),
		zap.Bool("two_face", cfg.TwoFace),
		zap.Bool("reflectorless", cfg.Reflectorless),
	)

	execCtx := ctx
	if ms.config.Monitoring.OperationTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, ms.config.Monitoring.OperationTimeout)
		defer cancel()
	}

	var result *geocom.MeasureResult
	if !req.SkipModeCheck {
		err = d.EnsureMode(execCtx, cfg)
	}
	if err == nil {
		result, err = d.Measure(execCtx, useMath, cfg)
	}

	ms.finish(ctx, run, result, err, instrument)
	if err != nil {
		opLogger.Error(err, zap.String("status", string(run.Status)))
	} else {
		opLogger.Success(
			zap.String("status", string(run.Status)),
			zap.Int("measurements", len(run.Measurements)),
		)
	}
	return run, err
}

// finish stores the outcome of a run and publishes its events
func (ms *MeasurementService) finish(ctx context.Context, run *model.MeasurementRun, result *geocom.MeasureResult, err error, instrument model.Instrument) {
	if result != nil {
		run.Measurements, run.Failures = convertResult(result)
	}
	run.Complete(runStatus(run, result, err), err)

	if storeErr := ms.runRepo.CompleteRun(context.WithoutCancel(ctx), run); storeErr != nil {
		ms.logger.Error("Failed to store measurement run",
			zap.String("run_id", run.ID.String()),
			zap.Error(storeErr),
		)
	}

	runID := run.ID
	for _, m := range run.Measurements {
		publish(ms.publisher, model.EventMeasurementAcquired, instrument.Name, &runID, model.JSONObject{
			"sequence":       m.Sequence,
			"iteration":      m.Iteration,
			"face":           m.Face,
			"azimuth":        m.Azimuth.String(),
			"zenith":         m.Zenith.String(),
			"slope_distance": m.SlopeDistance.String(),
			"distance_valid": m.DistanceValid,
		})
	}

	data := model.JSONObject{
		"status":   string(run.Status),
		"acquired": len(run.Measurements),
		"expected": run.Expected,
		"failures": len(run.Failures),
	}
	if run.ErrorMessage != nil {
		data["error"] = *run.ErrorMessage
	}
	publish(ms.publisher, model.EventRunCompleted, instrument.Name, &runID, data)

	instrumentLogger := utils.NewInstrumentLogger(ms.logger.Logger, instrument.Name, string(instrument.Brand), instrument.Model)
	instrumentLogger.LogMeasurement(run.ID.String(), len(run.Measurements), run.Expected, string(run.Status), err)
}

// GetRun retrieves a stored run with its measurements
func (ms *MeasurementService) GetRun(ctx context.Context, id uuid.UUID) (*model.MeasurementRun, error) {
	return ms.runRepo.GetRun(ctx, id)
}

// ListRuns retrieves run headers with pagination
func (ms *MeasurementService) ListRuns(ctx context.Context, filter *repository.RunFilter) ([]*model.MeasurementRun, *PaginationResult, error) {
	if filter == nil {
		filter = &repository.RunFilter{}
	}
	filter.Normalize()

	runs, total, err := ms.runRepo.ListRuns(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	pagination := &PaginationResult{
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: (total + filter.PerPage - 1) / filter.PerPage,
	}
	return runs, pagination, nil
}

// GetRunStats returns run statistics of the configured instrument
func (ms *MeasurementService) GetRunStats(ctx context.Context) (*repository.RunStats, error) {
	return ms.runRepo.GetRunStats(ctx, ms.instruments.Instrument().Name)
}

// CleanupOldRuns deletes runs older than the retention period
func (ms *MeasurementService) CleanupOldRuns(ctx context.Context) (int64, error) {
	retention := ms.config.Database.RetentionPeriod
	if retention <= 0 {
		return 0, nil
	}

	deleted, err := ms.runRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		ms.logger.Error("Run cleanup failed", zap.Error(err))
		return 0, err
	}
	if deleted > 0 {
		ms.logger.Info("Old measurement runs deleted",
			zap.Int64("deleted", deleted),
			zap.Duration("retention", retention),
		)
	}
	return deleted, nil
}

// StartCleanup runs CleanupOldRuns every interval until ctx ends
func (ms *MeasurementService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = ms.CleanupOldRuns(ctx)
			}
		}
	}()
}

// Helper methods

// runStatus classifies a finished run
func runStatus(run *model.MeasurementRun, result *geocom.MeasureResult, err error) model.RunStatus {
	acquired := len(run.Measurements)
	switch {
	case errors.Is(err, context.Canceled):
		return model.RunStatusCancelled
	case err != nil && acquired > 0:
		return model.RunStatusPartial
	case err != nil:
		return model.RunStatusFailed
	case result != nil && result.Complete() && acquired == run.Expected:
		return model.RunStatusSuccess
	case acquired > 0:
		return model.RunStatusPartial
	default:
		return model.RunStatusFailed
	}
}

// convertResult maps acquired attempts to stored measurements. Faces are
// stored 1-based.
func convertResult(result *geocom.MeasureResult) ([]model.Measurement, []model.StepFailure) {
	var measurements []model.Measurement
	var failures []model.StepFailure

	for _, attempt := range result.Attempts {
		if attempt.Acquired && len(measurements) < len(result.Measurements) {
			seq := len(measurements)
			m := result.Measurements[seq]
			measurements = append(measurements, model.NewMeasurement(
				seq, attempt.Iteration, attempt.Face+1,
				m.Azimuth, m.Zenith, m.SlopeDistance,
				attempt.DistanceValid,
			))
		}
		for _, step := range attempt.Failed() {
			failures = append(failures, model.StepFailure{
				Iteration: attempt.Iteration,
				Face:      attempt.Face + 1,
				Step:      string(step.Step),
				Error:     step.Err.Error(),
			})
		}
	}
	return measurements, failures
}

func configObject(cfg geocom.MeasurementConfig) model.JSONObject {
	policy := cfg.Policy
	if policy == "" {
		policy = geocom.CollectAll
	}
	return model.JSONObject{
		"reflectorless": cfg.Reflectorless,
		"mode":          string(cfg.Mode),
		"iterations":    cfg.Iterations,
		"two_face":      cfg.TwoFace,
		"with_distance": cfg.WithDistance,
		"policy":        string(policy),
	}
}

// Data Transfer Objects

// MeasureRequest represents a measurement request. Nil fields fall back to
// the configured defaults.
type MeasureRequest struct {
	Config        *geocom.MeasurementConfig `json:"config,omitempty"`
	UseMath       *bool                     `json:"use_math,omitempty"`
	SkipModeCheck bool                      `json:"skip_mode_check"`
}

// PaginationResult represents pagination information
type PaginationResult struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}
