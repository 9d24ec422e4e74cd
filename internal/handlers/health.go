package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	DB       Pinger
	Env      map[string]bool
	Missing  []string
	Payments map[string]bool
	Logger   *zap.Logger
}

// NewHealthHandler takes the env presence map and the names of required
// keys that are missing; both are fixed at startup.
func NewHealthHandler(db Pinger, env map[string]bool, missing []string, providers map[string]bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{DB: db, Env: env, Missing: missing, Payments: providers, Logger: logger}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	database := "ok"
	if err := h.DB.PingContext(ctx); err != nil {
		h.Logger.Warn("Health check: database unreachable", zap.Error(err))
		database = "unreachable"
	}

	status, code := "ok", http.StatusOK
	if database != "ok" || len(h.Missing) > 0 {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": database,
		"env":      h.Env,
		"payments": h.Payments,
		"time":     time.Now().UTC(),
	})
}
