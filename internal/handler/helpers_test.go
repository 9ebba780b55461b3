package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	internalDriver "tachymeter-service/internal/driver"
	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/simulator"
	"tachymeter-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	sim          *simulator.Instrument
	bus          *EventBus
	instruments  *service.InstrumentService
	measurements *service.MeasurementService
	engine       *gin.Engine
}

func newAPIFixture(t *testing.T, opts ...simulator.Option) *apiFixture {
	t.Helper()
	logger := zap.NewNop()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Instrument.Name = "test-station"
	cfg.Connection.Type = model.ConnectionTypeSimulator
	cfg.GeoCOM = geocom.Timeouts{
		Write:      200 * time.Millisecond,
		Reply:      300 * time.Millisecond,
		Quiescence: 30 * time.Millisecond,
		Receive:    2 * time.Second,
	}

	f := &apiFixture{
		sim: simulator.New(opts...),
		bus: NewEventBus(logger),
	}
	go f.bus.Start()

	registry := internalDriver.NewRegistry(logger)
	internalDriver.RegisterDefaultDrivers(registry, logger)
	transports := service.NewTransportFactory(f.sim, logger)

	f.instruments = service.NewInstrumentService(registry, transports, f.bus, cfg, logger)
	f.measurements = service.NewMeasurementService(f.instruments, repository.NewMemoryRepository(logger), f.bus, cfg, logger)
	discovery := service.NewDiscoveryService(registry, transports, cfg, logger)

	f.engine = gin.New()
	NewHealthHandler(nil, f.instruments, cfg, logger).RegisterRoutes(&f.engine.RouterGroup)
	api := f.engine.Group("/api/v1")
	NewInstrumentHandler(f.instruments, f.measurements, logger).RegisterRoutes(api)
	NewRunHandler(f.measurements, logger).RegisterRoutes(api)
	NewDiscoveryHandler(discovery, logger).RegisterRoutes(api)
	NewWebSocketHandler(f.instruments, f.bus, nil, logger).RegisterRoutes(f.engine.Group("/ws"))

	t.Cleanup(func() {
		f.instruments.Close()
		f.bus.Close()
	})
	return f
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.APIError `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (int, *apiResponse) {
	t.Helper()

	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, &resp
}

func decodeData(t *testing.T, resp *apiResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
