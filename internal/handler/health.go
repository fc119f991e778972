package handler

import (
	"net/http"
	"time"
)

// ReadinessChecker reports whether a downstream dependency is usable.
type ReadinessChecker func() bool

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]ReadinessChecker
}

func NewHealthHandler(checks map[string]ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now(),
		checks:    checks,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// Ready handles GET /ready. Returns 503 when any registered dependency
// check fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check() {
			deps[name] = "ok"
		} else {
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{"status": "ready"}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	writeJSON(w, status, body)
}
