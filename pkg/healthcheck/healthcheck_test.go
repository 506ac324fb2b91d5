package healthcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// stubChecker reports a fixed status.
type stubChecker struct {
	status  Status
	message string
	delay   time.Duration
}

func (c stubChecker) Check(ctx context.Context) Check {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
		}
	}
	return Check{
		Status:      c.status,
		Message:     c.message,
		LastChecked: time.Now(),
	}
}

type HealthCheckTestSuite struct {
	suite.Suite
}

func (s *HealthCheckTestSuite) TestCheck() {
	s.Run("NoCheckers_ShouldReportHealthy", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())

		// Act
		response := hc.Check(context.Background())

		// Assert
		assert.Equal(s.T(), StatusHealthy, response.Status)
		assert.Equal(s.T(), "1.2.3", response.Version)
		assert.Empty(s.T(), response.Checks)
	})

	s.Run("AllHealthy_ShouldAggregateHealthy", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.SetCacheTTL(0)
		hc.Register("database", stubChecker{status: StatusHealthy})
		hc.Register("redis", stubChecker{status: StatusHealthy})

		// Act
		response := hc.Check(context.Background())

		// Assert
		assert.Equal(s.T(), StatusHealthy, response.Status)
		assert.Len(s.T(), response.Checks, 2)

		names := make(map[string]Status)
		for _, check := range response.Checks {
			names[check.Name] = check.Status
		}
		assert.Equal(s.T(), StatusHealthy, names["database"])
		assert.Equal(s.T(), StatusHealthy, names["redis"])
	})

	s.Run("OneDegraded_ShouldAggregateDegraded", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.SetCacheTTL(0)
		hc.Register("database", stubChecker{status: StatusHealthy})
		hc.Register("redis", stubChecker{status: StatusDegraded, message: "slow"})

		// Act
		response := hc.Check(context.Background())

		// Assert
		assert.Equal(s.T(), StatusDegraded, response.Status)
	})

	s.Run("OneUnhealthy_ShouldOutweighDegraded", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.SetCacheTTL(0)
		hc.Register("database", stubChecker{status: StatusUnhealthy, message: "down"})
		hc.Register("redis", stubChecker{status: StatusDegraded})

		// Act
		response := hc.Check(context.Background())

		// Assert
		assert.Equal(s.T(), StatusUnhealthy, response.Status)
	})

	s.Run("WithinTTL_ShouldServeCachedResponse", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.SetCacheTTL(time.Hour)
		hc.Register("database", stubChecker{status: StatusHealthy})

		// Act
		first := hc.Check(context.Background())
		second := hc.Check(context.Background())

		// Assert
		assert.Equal(s.T(), first.Timestamp, second.Timestamp,
			"a repeat check inside the TTL should not recompute")
	})

	s.Run("Checkers_ShouldRunConcurrently", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.SetCacheTTL(0)
		for _, name := range []string{"a", "b", "c", "d"} {
			hc.Register(name, stubChecker{status: StatusHealthy, delay: 50 * time.Millisecond})
		}

		// Act
		start := time.Now()
		response := hc.Check(context.Background())
		elapsed := time.Since(start)

		// Assert
		assert.Len(s.T(), response.Checks, 4)
		assert.Less(s.T(), elapsed, 150*time.Millisecond,
			"four 50ms checkers should fan out, not run serially")
	})
}

func (s *HealthCheckTestSuite) TestHandlers() {
	s.Run("Handler_ShouldReturn200WhenHealthy", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.Register("database", stubChecker{status: StatusHealthy})
		rec := httptest.NewRecorder()

		// Act
		hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		// Assert
		assert.Equal(s.T(), http.StatusOK, rec.Code)
		assert.Equal(s.T(), "application/json", rec.Header().Get("Content-Type"))

		var response Response
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(s.T(), StatusHealthy, response.Status)
		assert.Equal(s.T(), "1.2.3", response.Version)
	})

	s.Run("Handler_ShouldReturn503WhenUnhealthy", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.Register("database", stubChecker{status: StatusUnhealthy, message: "connection refused"})
		rec := httptest.NewRecorder()

		// Act
		hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		// Assert
		assert.Equal(s.T(), http.StatusServiceUnavailable, rec.Code)
	})

	s.Run("Handler_ShouldReturn200WhenDegraded", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.Register("redis", stubChecker{status: StatusDegraded, message: "slow"})
		rec := httptest.NewRecorder()

		// Act
		hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		// Assert
		assert.Equal(s.T(), http.StatusOK, rec.Code)

		var response Response
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(s.T(), StatusDegraded, response.Status)
	})

	s.Run("LivenessHandler_ShouldAlwaysReturnAlive", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.Register("database", stubChecker{status: StatusUnhealthy})
		rec := httptest.NewRecorder()

		// Act
		hc.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

		// Assert
		assert.Equal(s.T(), http.StatusOK, rec.Code)

		var payload map[string]interface{}
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(s.T(), "alive", payload["status"])
	})

	s.Run("ReadinessHandler_ShouldReturnReadyWhenHealthy", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.Register("database", stubChecker{status: StatusHealthy})
		rec := httptest.NewRecorder()

		// Act
		hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		// Assert
		assert.Equal(s.T(), http.StatusOK, rec.Code)

		var payload map[string]interface{}
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(s.T(), "ready", payload["status"])
	})

	s.Run("ReadinessHandler_ShouldRejectDegraded", func() {
		// Arrange
		hc := New("1.2.3", zap.NewNop())
		hc.Register("redis", stubChecker{status: StatusDegraded, message: "slow"})
		rec := httptest.NewRecorder()

		// Act
		hc.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		// Assert
		assert.Equal(s.T(), http.StatusServiceUnavailable, rec.Code)

		var payload map[string]interface{}
		require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(s.T(), "not_ready", payload["status"])
		assert.NotEmpty(s.T(), payload["checks"], "not_ready must explain which checks failed")
	})
}

func TestHealthCheckTestSuite(t *testing.T) {
	suite.Run(t, new(HealthCheckTestSuite))
}
