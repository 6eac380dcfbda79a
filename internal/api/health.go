package api

import (
	"net/http"
	"time"

	respond "github.com/mycelian/contacts-service/internal/api/respond"
	"github.com/mycelian/contacts-service/internal/synccache"
)

// HealthHandler reports whether the remote store is reachable and how old the
// cached snapshot is.
type HealthHandler struct {
	healthy func() bool
	down    func() []string
	cache   *synccache.Cache
}

// NewHealthHandler wraps cached health state such as ServiceHealthChecker's
// IsHealthy and Down. down and cache may be nil.
func NewHealthHandler(healthy func() bool, down func() []string, cache *synccache.Cache) *HealthHandler {
	return &HealthHandler{healthy: healthy, down: down, cache: cache}
}

// CheckHealth handles GET /api/health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ok := h.healthy != nil && h.healthy()
	status, code := "unhealthy", http.StatusServiceUnavailable
	if ok {
		status, code = "healthy", http.StatusOK
	}
	body := map[string]any{
		"status":           status,
		"remote_connected": ok,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}
	if !ok && h.down != nil {
		body["down"] = h.down()
	}
	if h.cache != nil {
		body["cache_state"] = h.cache.State().String()
		body["cache_records"] = h.cache.Len()
		if at := h.cache.FetchedAt(); !at.IsZero() {
			body["cache_fetched_at"] = at.UTC().Format(time.RFC3339Nano)
		}
	}
	respond.WriteJSON(w, code, body)
}
