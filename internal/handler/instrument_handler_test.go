package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/simulator"
)

func TestInstrumentHandler_MeasureFlow(t *testing.T) {
	f := newAPIFixture(t, simulator.WithAngles(0.5, 1.2), simulator.WithDistance(42.25))

	code, resp := f.do(t, http.MethodGet, "/api/v1/instrument", nil)
	require.Equal(t, http.StatusOK, code)
	var state service.InstrumentState
	decodeData(t, resp, &state)
	assert.False(t, state.Connected)
	assert.Equal(t, "test-station", state.Instrument.Name)

	code, resp = f.do(t, http.MethodPost, "/api/v1/instrument/measure", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INSTRUMENT_NOT_CONNECTED", resp.Error.Code)

	code, resp = f.do(t, http.MethodPost, "/api/v1/instrument/connect", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	decodeData(t, resp, &state)
	assert.True(t, state.Connected)

	code, resp = f.do(t, http.MethodPost, "/api/v1/instrument/measure", map[string]interface{}{
		"config": map[string]interface{}{
			"mode":          "precise",
			"iterations":    1,
			"two_face":      true,
			"with_distance": true,
		},
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	var run model.MeasurementRun
	decodeData(t, resp, &run)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, run.Expected)
	require.Len(t, run.Measurements, 2)
	assert.Equal(t, 1, run.Measurements[0].Face)
	assert.Equal(t, 2, run.Measurements[1].Face)
	assert.Equal(t, "42.25", run.Measurements[0].SlopeDistance.String())

	code, resp = f.do(t, http.MethodGet, "/api/v1/runs/"+run.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var stored model.MeasurementRun
	decodeData(t, resp, &stored)
	assert.Equal(t, run.ID, stored.ID)
	assert.Len(t, stored.Measurements, 2)

	code, resp = f.do(t, http.MethodPost, "/api/v1/instrument/disconnect", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestInstrumentHandler_MeasureEDMFailureReturnsRun(t *testing.T) {
	f := newAPIFixture(t, simulator.WithEDMFailure())

	code, _ := f.do(t, http.MethodPost, "/api/v1/instrument/connect", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := f.do(t, http.MethodPost, "/api/v1/instrument/measure", map[string]interface{}{
		"config": map[string]interface{}{
			"mode":          "fast",
			"iterations":    1,
			"with_distance": true,
			"policy":        "abort_on_failure",
		},
	})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "EDM_FAILED", resp.Error.Code)

	var run model.MeasurementRun
	decodeData(t, resp, &run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Empty(t, run.Measurements)
}

func TestInstrumentHandler_InvalidRequests(t *testing.T) {
	f := newAPIFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/instrument/connect", nil)
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"zero iterations", "/api/v1/instrument/measure", map[string]interface{}{
			"config": map[string]interface{}{"mode": "precise", "iterations": 0},
		}},
		{"unknown mode", "/api/v1/instrument/mode", map[string]interface{}{
			"mode": "turbo", "iterations": 1,
		}},
		{"malformed point", "/api/v1/instrument/point", "north"},
		{"unknown connection type", "/api/v1/instrument/connect", map[string]interface{}{
			"connection": map[string]interface{}{"type": "carrier-pigeon"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code, resp.Message)
			assert.False(t, resp.Success)
		})
	}
}

func TestInstrumentHandler_ModePointAndFace(t *testing.T) {
	f := newAPIFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/instrument/connect", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := f.do(t, http.MethodPost, "/api/v1/instrument/mode", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, 11, f.sim.State().Program)

	code, resp = f.do(t, http.MethodPost, "/api/v1/instrument/point", map[string]float64{
		"azimuth": 1.25,
		"zenith":  1.5,
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, 1, f.sim.Count("9027"))

	code, resp = f.do(t, http.MethodPost, "/api/v1/instrument/face", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, 1, f.sim.Count("9028"))

	code, resp = f.do(t, http.MethodGet, "/api/v1/instrument/health", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, _ = f.do(t, http.MethodGet, "/api/v1/instrument/live", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRunHandler_Errors(t *testing.T) {
	f := newAPIFixture(t)

	code, resp := f.do(t, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)

	code, resp = f.do(t, http.MethodGet, "/api/v1/runs/6f1c2a8e-3b7d-4e0a-9c55-1d2e3f4a5b6c", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/runs?start_date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRunHandler_ListAndStats(t *testing.T) {
	f := newAPIFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/instrument/connect", nil)
	require.Equal(t, http.StatusOK, code)
	for i := 0; i < 3; i++ {
		code, resp := f.do(t, http.MethodPost, "/api/v1/instrument/measure", nil)
		require.Equal(t, http.StatusOK, code, resp.Message)
	}

	code, resp := f.do(t, http.MethodGet, "/api/v1/runs?page=1&per_page=2&status=SUCCESS", nil)
	require.Equal(t, http.StatusOK, code)

	var page struct {
		Runs       []model.MeasurementRun   `json:"runs"`
		Pagination service.PaginationResult `json:"pagination"`
	}
	decodeData(t, resp, &page)
	assert.Len(t, page.Runs, 2)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	code, resp = f.do(t, http.MethodGet, "/api/v1/runs/stats", nil)
	require.Equal(t, http.StatusOK, code)

	var stats repository.RunStats
	decodeData(t, resp, &stats)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 3, stats.ByStatus[model.RunStatusSuccess])
}
