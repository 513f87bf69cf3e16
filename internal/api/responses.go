package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/resilience"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents an API error with optional details
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func requestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// AcceptedResponse sends a 202 Accepted response for operations that were
// kicked off but whose outcome is reported asynchronously
func AcceptedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// ErrorResponseFromError sends an error response based on the error type.
// Circuit rejections and exhausted retries surface as gateway-class errors so
// callers can distinguish "the upstream is broken" from "your request is bad".
func ErrorResponseFromError(c *gin.Context, err error) {
	var statusCode int
	var apiError *APIError

	switch {
	case resilience.IsCircuitOpen(err):
		statusCode = http.StatusServiceUnavailable
		apiError = &APIError{
			Code:    "CIRCUIT_OPEN",
			Message: "upstream temporarily unavailable, try again later",
		}
	case resilience.IsRetryExhausted(err):
		statusCode = http.StatusBadGateway
		apiError = &APIError{
			Code:    "UPSTREAM_UNAVAILABLE",
			Message: "upstream did not recover within the retry budget",
		}
	default:
		if appErr, ok := err.(*errors.AppError); ok {
			switch appErr.Type {
			case errors.ErrorTypeValidation:
				statusCode = http.StatusBadRequest
			case errors.ErrorTypeNotFound:
				statusCode = http.StatusNotFound
			case errors.ErrorTypeConflict:
				statusCode = http.StatusConflict
			case errors.ErrorTypeTimeout:
				statusCode = http.StatusGatewayTimeout
			case errors.ErrorTypeExternal, errors.ErrorTypeTransient:
				statusCode = http.StatusBadGateway
			default:
				statusCode = http.StatusInternalServerError
			}
			apiError = &APIError{
				Code:    appErr.Code,
				Message: appErr.Message,
			}
			if len(appErr.Details) > 0 {
				apiError.Details = make(map[string]string, len(appErr.Details))
				for k, v := range appErr.Details {
					apiError.Details[k] = v
				}
			}
		} else {
			statusCode = http.StatusInternalServerError
			apiError = &APIError{
				Code:    "INTERNAL_ERROR",
				Message: "an unexpected error occurred",
			}
		}
	}

	c.JSON(statusCode, APIResponse{
		Success:   false,
		Error:     apiError,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    "BAD_REQUEST",
			Message: message,
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    "NOT_FOUND",
			Message: message,
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// InternalErrorResponse sends a 500 Internal Server Error response
func InternalErrorResponse(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    "INTERNAL_ERROR",
			Message: message,
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}
