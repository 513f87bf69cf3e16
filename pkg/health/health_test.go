package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfoundry/docfoundry/pkg/resilience"
)

func TestService_CheckHealthAggregation(t *testing.T) {
	service := NewService(nil, nil)

	service.RegisterChecker("good", NewCustomChecker("good", func(context.Context) (Status, string, error) {
		return StatusHealthy, "fine", nil
	}))
	service.RegisterChecker("wobbly", NewCustomChecker("wobbly", func(context.Context) (Status, string, error) {
		return StatusDegraded, "slow", nil
	}))

	response := service.CheckHealth(context.Background())

	assert.Equal(t, StatusDegraded, response.Status)
	require.Len(t, response.Checks, 2)
	assert.Equal(t, StatusHealthy, response.Checks["good"].Status)
	assert.Equal(t, StatusDegraded, response.Checks["wobbly"].Status)
}

func TestService_UnhealthyDominates(t *testing.T) {
	service := NewService(nil, nil)

	service.RegisterChecker("bad", NewCustomChecker("bad", func(context.Context) (Status, string, error) {
		return StatusUnhealthy, "", assert.AnError
	}))
	service.RegisterChecker("wobbly", NewCustomChecker("wobbly", func(context.Context) (Status, string, error) {
		return StatusDegraded, "slow", nil
	}))

	response := service.CheckHealth(context.Background())

	assert.Equal(t, StatusUnhealthy, response.Status)
}

func TestService_UnregisterChecker(t *testing.T) {
	service := NewService(nil, nil)

	service.RegisterChecker("good", NewCustomChecker("good", func(context.Context) (Status, string, error) {
		return StatusHealthy, "", nil
	}))
	service.UnregisterChecker("good")

	response := service.CheckHealth(context.Background())

	assert.Equal(t, StatusHealthy, response.Status)
	assert.Empty(t, response.Checks)
}

func TestCustomChecker_ErrorForcesUnhealthy(t *testing.T) {
	checker := NewCustomChecker("custom", func(context.Context) (Status, string, error) {
		return StatusHealthy, "claims healthy", assert.AnError
	})

	check := checker.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.NotEmpty(t, check.Error)
}

func TestHTTPChecker_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   Status
	}{
		{name: "ok", statusCode: http.StatusOK, expected: StatusHealthy},
		{name: "server error", statusCode: http.StatusInternalServerError, expected: StatusUnhealthy},
		{name: "client error", statusCode: http.StatusTooManyRequests, expected: StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			checker := NewHTTPChecker(server.URL, "upstream", time.Second)
			check := checker.Check(context.Background())

			assert.Equal(t, tt.expected, check.Status)
			assert.Equal(t, "upstream", check.Name)
		})
	}
}

func TestHTTPChecker_UnreachableEndpoint(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1", "upstream", 200*time.Millisecond)

	check := checker.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.NotEmpty(t, check.Error)
}

func TestCoordinatorChecker(t *testing.T) {
	cfg := resilience.DefaultConfig()
	cfg.HealthCheckEnabled = false
	cfg.BackupEnabled = false
	coordinator := resilience.NewCoordinator(cfg, nil)

	coordinator.RegisterService("redis", func(context.Context) error { return nil })
	coordinator.RegisterService("docs-api", func(context.Context) error { return assert.AnError })
	coordinator.CheckHealth(context.Background())

	checker := NewCoordinatorChecker(coordinator, "dependencies")
	check := checker.Check(context.Background())

	assert.Equal(t, StatusDegraded, check.Status)
	assert.Equal(t, "healthy", check.Metadata["redis"])
	assert.Equal(t, "degraded", check.Metadata["docs-api"])
}

func TestCoordinatorChecker_NilCoordinator(t *testing.T) {
	check := NewCoordinatorChecker(nil, "dependencies").Check(context.Background())

	assert.Equal(t, StatusUnknown, check.Status)
}

func TestBackupDirChecker(t *testing.T) {
	t.Run("writable directory", func(t *testing.T) {
		check := NewBackupDirChecker(t.TempDir(), "backup-dir").Check(context.Background())
		assert.Equal(t, StatusHealthy, check.Status)
	})

	t.Run("missing directory", func(t *testing.T) {
		check := NewBackupDirChecker("/nonexistent/backups", "backup-dir").Check(context.Background())
		assert.Equal(t, StatusUnhealthy, check.Status)
	})
}
