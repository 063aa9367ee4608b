package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// staleAfter marks the session degraded when no bar arrived for this long.
const staleAfter = 10 * time.Minute

// HealthChecker tracks liveness of the market data stream and the last
// decision, and serves the result as JSON.
type HealthChecker struct {
	mu         sync.RWMutex
	started    time.Time
	lastBar    time.Time
	lastAction string
	connected  bool
	lastError  string
}

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     string    `json:"uptime"`
	Connected  bool      `json:"connected"`
	LastBar    time.Time `json:"last_bar"`
	LastAction string    `json:"last_action,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewHealthChecker creates a checker; the stream starts disconnected.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

// SetConnected records stream connectivity changes.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = connected
}

// RecordBar notes that a bar made it through the pipeline.
func (h *HealthChecker) RecordBar(ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBar = ts
	h.lastError = ""
}

// RecordAction notes the latest emitted decision.
func (h *HealthChecker) RecordAction(action string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastAction = action
}

// RecordError stores the most recent pipeline error.
func (h *HealthChecker) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastError = err.Error()
	}
}

func (h *HealthChecker) status() (HealthStatus, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.connected || (!h.lastBar.IsZero() && time.Since(h.lastBar) > staleAfter) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if h.lastError != "" {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.started).String(),
		Connected:  h.connected,
		LastBar:    h.lastBar,
		LastAction: h.lastAction,
		LastError:  h.lastError,
	}, code
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, code := h.status()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
