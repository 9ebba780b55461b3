// internal/handler/discovery_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tachymeter-service/internal/service"
	"tachymeter-service/internal/utils"
)

// DiscoveryHandler handles instrument discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	discovery := router.Group("/discovery")
	{
		discovery.GET("/scan", h.ScanInstruments)
		discovery.GET("/scanners", h.GetScanners)
		discovery.GET("/supported", h.GetSupportedInstruments)
	}
}

// ScanInstruments scans for lines a GeoCOM instrument may be attached to
// @Summary Scan for instruments
// @Description List serial ports and configured TCP bridges and ask each for a GeoCOM instrument name
// @Tags Discovery
// @Produce json
// @Param type query string false "Scan type" Enums(all, serial, tcp) default(all)
// @Param responding_only query bool false "Only return lines where an instrument answered" default(false)
// @Success 200 {object} utils.APIResponse{data=object{instruments_found=int,instruments=[]discovery.DiscoveredInstrument}} "Instrument scan completed"
// @Failure 400 {object} utils.APIResponse "Unsupported scan type"
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanInstruments(c *gin.Context) {
	respondingOnly, _ := strconv.ParseBool(c.DefaultQuery("responding_only", "false"))
	req := &service.ScanRequest{
		ScanType:       c.DefaultQuery("type", "all"),
		RespondingOnly: respondingOnly,
	}

	instruments, err := h.discoveryService.ScanInstruments(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to scan instruments", zap.Error(err))
		respondError(c, "Failed to scan instruments", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Instrument scan completed", gin.H{
		"instruments_found": len(instruments),
		"instruments":       instruments,
	})
}

// GetScanners returns the scanner types available on this host
// @Summary Available scanners
// @Description Get the discovery scanners that can run on this host
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{scanners=[]string}} "Scanners retrieved"
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", gin.H{
		"scanners": h.discoveryService.GetAvailableScanners(),
	})
}

// GetSupportedInstruments returns supported instrument models
// @Summary Get supported instruments
// @Description Get the brands and models a driver is registered for
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.SupportedInstrumentsResponse} "Supported instruments retrieved"
// @Router /discovery/supported [get]
func (h *DiscoveryHandler) GetSupportedInstruments(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Supported instruments retrieved", h.discoveryService.GetSupportedInstruments())
}
