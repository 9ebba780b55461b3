package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachymeter-service/internal/driver/geocom"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSuccessResponse(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	SuccessResponse(c, http.StatusOK, "ok", gin.H{"n": 1})

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Nil(t, body.Error)
}

func TestInstrumentErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", geocom.ErrInvalidConfig), http.StatusBadRequest, "INVALID_CONFIG"},
		{&geocom.CommandError{Opcode: "9027", Err: geocom.ErrNotImplemented}, http.StatusNotImplemented, "NOT_IMPLEMENTED"},
		{geocom.ErrTransportNotOpen, http.StatusConflict, "INSTRUMENT_NOT_CONNECTED"},
		{&geocom.CommandError{Opcode: "2108", Err: geocom.ErrReplyTimeout}, http.StatusGatewayTimeout, "INSTRUMENT_TIMEOUT"},
		{geocom.ErrModeSwitchFailed, http.StatusBadGateway, "MODE_NEGOTIATION_FAILED"},
		{geocom.ErrEDMFailed, http.StatusBadGateway, "EDM_FAILED"},
		{&geocom.InstrumentError{Opcode: "9027", ReturnCode: 8710}, http.StatusBadGateway, "INSTRUMENT_REJECTED"},
		{geocom.ErrTransport, http.StatusServiceUnavailable, "TRANSPORT_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			InstrumentErrorResponse(c, "failed", tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.err.Error(), body.Error.Details)
		})
	}
}
