// internal/handler/instrument_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/utils"
	"tachymeter-service/pkg/driver"
)

// InstrumentHandler handles instrument HTTP requests
type InstrumentHandler struct {
	instrumentService  *service.InstrumentService
	measurementService *service.MeasurementService
	logger             *utils.ServiceLogger
}

// NewInstrumentHandler creates a new instrument handler
func NewInstrumentHandler(
	instrumentService *service.InstrumentService,
	measurementService *service.MeasurementService,
	logger *zap.Logger,
) *InstrumentHandler {
	return &InstrumentHandler{
		instrumentService:  instrumentService,
		measurementService: measurementService,
		logger:             utils.NewServiceLogger(logger, "instrument-handler"),
	}
}

// RegisterRoutes registers instrument routes
func (h *InstrumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	instrument := router.Group("/instrument")
	{
		instrument.GET("", h.GetStatus)
		instrument.POST("/connect", h.Connect)
		instrument.POST("/disconnect", h.Disconnect)
		instrument.GET("/health", h.CheckHealth)
		instrument.GET("/live", h.LiveData)
		instrument.POST("/mode", h.EnsureMode)
		instrument.POST("/point", h.Point)
		instrument.POST("/face", h.ToggleFace)
		instrument.POST("/measure", h.Measure)
	}
}

// GetStatus returns the instrument state
// @Summary Get instrument status
// @Description Get the configured instrument, its connection state and health metrics
// @Tags Instrument
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.InstrumentState} "Instrument status retrieved"
// @Router /instrument [get]
func (h *InstrumentHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Instrument status retrieved", h.instrumentService.Status())
}

// Connect opens the line to the instrument
// @Summary Connect instrument
// @Description Open the serial, TCP or simulator line. An empty body uses the configured connection.
// @Tags Instrument
// @Accept json
// @Produce json
// @Param request body service.ConnectRequest false "Connection override"
// @Success 200 {object} utils.APIResponse{data=service.InstrumentState} "Instrument connected"
// @Failure 400 {object} utils.APIResponse "Invalid connection settings"
// @Failure 503 {object} utils.APIResponse "Transport error"
// @Router /instrument/connect [post]
func (h *InstrumentHandler) Connect(c *gin.Context) {
	var req service.ConnectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, err := h.instrumentService.Connect(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		h.logger.Error("Failed to connect instrument", zap.Error(err))
		respondError(c, "Failed to connect instrument", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Instrument connected", state)
}

// Disconnect closes the line to the instrument
// @Summary Disconnect instrument
// @Description Close the line; commands in flight fail with a transport error
// @Tags Instrument
// @Produce json
// @Success 200 {object} utils.APIResponse "Instrument disconnected"
// @Router /instrument/disconnect [post]
func (h *InstrumentHandler) Disconnect(c *gin.Context) {
	if err := h.instrumentService.Disconnect(c.Request.Context(), c.ClientIP()); err != nil {
		h.logger.Error("Failed to disconnect instrument", zap.Error(err))
		respondError(c, "Failed to disconnect instrument", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Instrument disconnected", nil)
}

// CheckHealth pings the instrument
// @Summary Instrument health
// @Description Ping the instrument and return its health metrics
// @Tags Instrument
// @Produce json
// @Success 200 {object} utils.APIResponse{data=driver.HealthMetrics} "Instrument health retrieved"
// @Failure 409 {object} utils.APIResponse "Instrument not connected"
// @Router /instrument/health [get]
func (h *InstrumentHandler) CheckHealth(c *gin.Context) {
	metrics, err := h.instrumentService.CheckHealth(c.Request.Context())
	if err != nil {
		respondErrorWithData(c, "Instrument health check failed", err, metrics)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Instrument health retrieved", metrics)
}

// LiveData returns the instrument watch window data
// @Summary Live data
// @Description Get streaming watch window data; GeoCOM instruments currently provide none
// @Tags Instrument
// @Produce json
// @Success 200 {object} utils.APIResponse "Live data retrieved"
// @Router /instrument/live [get]
func (h *InstrumentHandler) LiveData(c *gin.Context) {
	data, err := h.instrumentService.LiveData(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get live data", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Live data retrieved", data)
}

// EnsureMode sets the measurement program
// @Summary Ensure measurement mode
// @Description Query the active measurement program and switch it when it differs. An empty body uses the configured measurement settings.
// @Tags Instrument
// @Accept json
// @Produce json
// @Param request body geocom.MeasurementConfig false "Measurement configuration"
// @Success 200 {object} utils.APIResponse "Measurement mode ensured"
// @Failure 502 {object} utils.APIResponse "Mode negotiation failed"
// @Router /instrument/mode [post]
func (h *InstrumentHandler) EnsureMode(c *gin.Context) {
	var cfg geocom.MeasurementConfig
	present, ok := bindOptionalJSONPresent(c, &cfg)
	if !ok {
		return
	}

	var cfgPtr *geocom.MeasurementConfig
	if present {
		cfgPtr = &cfg
	}

	if err := h.instrumentService.EnsureMode(c.Request.Context(), cfgPtr); err != nil {
		h.logger.Error("Failed to ensure measurement mode", zap.Error(err))
		respondError(c, "Failed to ensure measurement mode", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Measurement mode ensured", nil)
}

// Point aims the instrument
// @Summary Point instrument
// @Description Aim the telescope at an azimuth and zenith in radians
// @Tags Instrument
// @Accept json
// @Produce json
// @Param request body driver.PointRequest true "Pointing request"
// @Success 200 {object} utils.APIResponse "Instrument pointed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Router /instrument/point [post]
func (h *InstrumentHandler) Point(c *gin.Context) {
	var req driver.PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.instrumentService.Point(c.Request.Context(), &req); err != nil {
		h.logger.Error("Failed to point instrument", zap.Error(err))
		respondError(c, "Failed to point instrument", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Instrument pointed", req)
}

// ToggleFace turns the telescope to the other face
// @Summary Toggle face
// @Description Turn the telescope to the opposite face
// @Tags Instrument
// @Produce json
// @Success 200 {object} utils.APIResponse "Face toggled"
// @Router /instrument/face [post]
func (h *InstrumentHandler) ToggleFace(c *gin.Context) {
	if err := h.instrumentService.ToggleFace(c.Request.Context()); err != nil {
		h.logger.Error("Failed to toggle face", zap.Error(err))
		respondError(c, "Failed to toggle face", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Face toggled", nil)
}

// Measure runs the measurement loop
// @Summary Measure
// @Description Ensure the measurement program and acquire iterations x faces polar measurements. A failed run still returns the measurements acquired before the failure.
// @Tags Instrument
// @Accept json
// @Produce json
// @Param request body service.MeasureRequest false "Measurement request"
// @Success 200 {object} utils.APIResponse{data=model.MeasurementRun} "Measurement completed"
// @Failure 400 {object} utils.APIResponse "Invalid configuration"
// @Failure 502 {object} utils.APIResponse{data=model.MeasurementRun} "Instrument failure"
// @Failure 504 {object} utils.APIResponse{data=model.MeasurementRun} "Instrument timeout"
// @Router /instrument/measure [post]
func (h *InstrumentHandler) Measure(c *gin.Context) {
	var req service.MeasureRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	run, err := h.measurementService.Measure(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Measurement failed", zap.Error(err))
		if run != nil {
			respondErrorWithData(c, "Measurement failed", err, run)
			return
		}
		respondError(c, "Measurement failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Measurement completed", run)
}

// bindOptionalJSON binds a JSON body when one was sent
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	_, ok := bindOptionalJSONPresent(c, obj)
	return ok
}

// bindOptionalJSONPresent binds a JSON body when one was sent and reports
// whether it was present
func bindOptionalJSONPresent(c *gin.Context, obj interface{}) (present bool, ok bool) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return false, true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return false, true
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return false, false
	}
	return true, true
}
