package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewTransientError("connection reset")
	assert.Contains(t, err.Error(), "TRANSIENT_ERROR")
	assert.Contains(t, err.Error(), "connection reset")

	wrapped := NewExternalError("docs-api", "lookup failed").WithCause(assert.AnError)
	assert.Contains(t, wrapped.Error(), "caused by")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := assert.AnError
	err := NewTimeoutError("cache-get").WithCause(cause)

	require.ErrorIs(t, err, cause)
}

func TestIsType_WrappedErrors(t *testing.T) {
	appErr := NewTransientError("flaky network")

	// Wrapped with %w, IsType still detects the underlying type
	wrapped := fmt.Errorf("operation failed: %w", appErr)

	assert.True(t, IsType(wrapped, ErrorTypeTransient))
	assert.False(t, IsType(wrapped, ErrorTypeTimeout))
	assert.False(t, IsType(assert.AnError, ErrorTypeTransient))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"transient", NewTransientError("blip"), true},
		{"timeout", NewTimeoutError("slow op"), true},
		{"external", NewExternalError("docs-api", "503"), true},
		{"validation", NewValidationError("bad topic"), false},
		{"not found", NewNotFoundError("lesson"), false},
		{"internal", NewInternalError("bug"), false},
		{"plain error", assert.AnError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestProbeAndBackupErrors(t *testing.T) {
	probeErr := NewProbeError("redis-cache", assert.AnError)
	assert.Equal(t, ErrorTypeProbe, GetType(probeErr))
	assert.Equal(t, "redis-cache", probeErr.Details["service"])
	require.ErrorIs(t, probeErr, assert.AnError)

	backupErr := NewBackupError("lessons-export", assert.AnError)
	assert.Equal(t, ErrorTypeBackup, GetType(backupErr))
	assert.Equal(t, "lessons-export", backupErr.Details["source_config_id"])
}

func TestGetCodeAndType(t *testing.T) {
	assert.Equal(t, "TIMEOUT", GetCode(NewTimeoutError("op")))
	assert.Equal(t, "UNKNOWN_ERROR", GetCode(assert.AnError))
	assert.Equal(t, ErrorTypeInternal, GetType(assert.AnError))
}
