package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayo6706/twinvest-bridge/internal/api/problem"
	"github.com/ayo6706/twinvest-bridge/internal/config"
)

// HealthHandler exposes liveness and readiness endpoints.
type HealthHandler struct {
	transport func() config.Transport
	redis     redis.Cmdable
}

// NewHealthHandler checks transport configuration on readiness, and redis
// when the session store uses it.
func NewHealthHandler(transport func() config.Transport, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{transport: transport, redis: redis}
}

// Live always reports OK.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports whether logins can succeed as configured.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ep, err := config.ResolveTransport(h.transport())
	if err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, problem.ConfigMissing, err.Error())
		return
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "redis/unavailable", "redis unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"host":     ep.Host,
		"canister": ep.Canister.String(),
	})
}
