// internal/handler/run_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/utils"
)

// RunHandler handles measurement run history requests
type RunHandler struct {
	measurementService *service.MeasurementService
	logger             *utils.ServiceLogger
}

// NewRunHandler creates a new run handler
func NewRunHandler(measurementService *service.MeasurementService, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		measurementService: measurementService,
		logger:             utils.NewServiceLogger(logger, "run-handler"),
	}
}

// RegisterRoutes registers run routes
func (h *RunHandler) RegisterRoutes(router *gin.RouterGroup) {
	runs := router.Group("/runs")
	{
		runs.GET("", h.ListRuns)
		runs.GET("/stats", h.GetRunStats)
		runs.GET("/:run_id", h.GetRun)
	}
}

// ListRuns lists run headers with filtering and pagination
// @Summary List measurement runs
// @Description Get run headers, newest first, without their measurements
// @Tags Runs
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status" Enums(RUNNING, SUCCESS, PARTIAL, FAILED, CANCELLED)
// @Param instrument query string false "Filter by instrument name"
// @Param start_date query string false "Runs created at or after (RFC3339)"
// @Param end_date query string false "Runs created at or before (RFC3339)"
// @Success 200 {object} utils.APIResponse{data=object{runs=[]model.MeasurementRun,pagination=service.PaginationResult}} "Runs retrieved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Router /runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	filter := &repository.RunFilter{
		Page:    1,
		PerPage: 20,
	}

	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if perPage := c.Query("per_page"); perPage != "" {
		if pp, err := strconv.Atoi(perPage); err == nil && pp > 0 && pp <= 100 {
			filter.PerPage = pp
		}
	}

	if status := c.Query("status"); status != "" {
		s := model.RunStatus(status)
		filter.Status = &s
	}
	if instrument := c.Query("instrument"); instrument != "" {
		filter.Instrument = &instrument
	}

	validationErrors := make(map[string]string)
	if startDate := c.Query("start_date"); startDate != "" {
		if t, err := time.Parse(time.RFC3339, startDate); err == nil {
			filter.StartDate = &t
		} else {
			validationErrors["start_date"] = "must be an RFC3339 timestamp"
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if t, err := time.Parse(time.RFC3339, endDate); err == nil {
			filter.EndDate = &t
		} else {
			validationErrors["end_date"] = "must be an RFC3339 timestamp"
		}
	}
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	runs, pagination, err := h.measurementService.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Runs retrieved successfully", gin.H{
		"runs":       runs,
		"pagination": pagination,
	})
}

// GetRun retrieves a run with its measurements
// @Summary Get measurement run
// @Description Get a run with its measurements and failed steps
// @Tags Runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} utils.APIResponse{data=model.MeasurementRun} "Run retrieved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid run ID"
// @Failure 404 {object} utils.APIResponse "Run not found"
// @Router /runs/{run_id} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid run ID", err)
		return
	}

	run, err := h.measurementService.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Run not found", err)
			return
		}
		h.logger.Error("Failed to get run", zap.Error(err), zap.String("run_id", id.String()))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get run", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Run retrieved successfully", run)
}

// GetRunStats returns run statistics
// @Summary Run statistics
// @Description Get run counts per status and average duration for the configured instrument
// @Tags Runs
// @Produce json
// @Success 200 {object} utils.APIResponse{data=repository.RunStats} "Run statistics retrieved"
// @Router /runs/stats [get]
func (h *RunHandler) GetRunStats(c *gin.Context) {
	stats, err := h.measurementService.GetRunStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get run statistics", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get run statistics", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Run statistics retrieved", stats)
}

// respondError maps service and instrument errors to a response
func respondError(c *gin.Context, message string, err error) {
	respondErrorWithData(c, message, err, nil)
}

func respondErrorWithData(c *gin.Context, message string, err error, data interface{}) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.Is(err, repository.ErrRunNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	default:
		utils.InstrumentErrorResponseWithData(c, message, err, data)
	}
}
