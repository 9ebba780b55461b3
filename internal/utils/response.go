// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tachymeter-service/internal/driver/geocom"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	response := APIResponse{
		Success:   false,
		Message:   "Validation failed",
		Error:     apiError,
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(http.StatusBadRequest, response)
}

// InstrumentErrorResponse sends an error response whose status and code
// follow the instrument error taxonomy
func InstrumentErrorResponse(c *gin.Context, message string, err error) {
	InstrumentErrorResponseWithData(c, message, err, nil)
}

// InstrumentErrorResponseWithData is InstrumentErrorResponse carrying the
// partial result of the failed operation
func InstrumentErrorResponseWithData(c *gin.Context, message string, err error, data interface{}) {
	statusCode, code := classifyInstrumentError(err)

	apiError := &APIError{
		Code:    code,
		Message: message,
	}
	if err != nil {
		apiError.Details = err.Error()
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Message:   message,
		Data:      data,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	})
}

// classifyInstrumentError maps engine errors to an HTTP status and error code
func classifyInstrumentError(err error) (int, string) {
	var instrumentErr *geocom.InstrumentError

	switch {
	case errors.Is(err, geocom.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, geocom.ErrNotImplemented):
		return http.StatusNotImplemented, "NOT_IMPLEMENTED"
	case errors.Is(err, geocom.ErrTransportNotOpen):
		return http.StatusConflict, "INSTRUMENT_NOT_CONNECTED"
	case errors.Is(err, geocom.ErrWriteTimeout), errors.Is(err, geocom.ErrReplyTimeout):
		return http.StatusGatewayTimeout, "INSTRUMENT_TIMEOUT"
	case errors.Is(err, geocom.ErrModeQueryFailed), errors.Is(err, geocom.ErrModeSwitchFailed):
		return http.StatusBadGateway, "MODE_NEGOTIATION_FAILED"
	case errors.Is(err, geocom.ErrEDMFailed):
		return http.StatusBadGateway, "EDM_FAILED"
	case errors.Is(err, geocom.ErrMalformedReply), errors.As(err, &instrumentErr):
		return http.StatusBadGateway, "INSTRUMENT_REJECTED"
	case errors.Is(err, geocom.ErrTransport):
		return http.StatusServiceUnavailable, "TRANSPORT_ERROR"
	default:
		return http.StatusInternalServerError, getErrorCode(http.StatusInternalServerError)
	}
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "GATEWAY_TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}
