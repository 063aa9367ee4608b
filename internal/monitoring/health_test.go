package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h *HealthChecker) (HealthStatus, int) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return status, rec.Code
}

func TestHealthCheckerStartsDegraded(t *testing.T) {
	h := NewHealthChecker()
	status, code := getHealth(t, h)

	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, status.Connected)
}

func TestHealthCheckerHealthyWithFreshBars(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordBar(time.Now())
	h.RecordAction("BUY")

	status, code := getHealth(t, h)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BUY", status.LastAction)
}

func TestHealthCheckerStaleBarsDegrade(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordBar(time.Now().Add(-time.Hour))

	status, code := getHealth(t, h)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealthCheckerErrorUnhealthyUntilNextBar(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordBar(time.Now())
	h.RecordError(errors.New("evaluation failed"))

	status, code := getHealth(t, h)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "evaluation failed", status.LastError)

	// A successful bar clears the error.
	h.RecordBar(time.Now())
	status, _ = getHealth(t, h)
	assert.Equal(t, "healthy", status.Status)
}
