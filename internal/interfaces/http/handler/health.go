package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Pinger checks a backing dependency
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// PingContext calls f(ctx)
func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a HealthHandler. checks are probed by /ready, keyed by name.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Live answers as long as the process serves requests
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Ready probes every dependency and answers 503 if one fails
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}
	for name, check := range h.checks {
		if err := check.PingContext(ctx); err != nil {
			logger.L(ctx).Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			body[name] = "error"
			body["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	c.JSON(status, body)
}
