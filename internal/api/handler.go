package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"habit-session-backend/config"
	"habit-session-backend/internal/batch"
	"habit-session-backend/internal/budget"
	"habit-session-backend/internal/jobs"
	"habit-session-backend/internal/model"
	"habit-session-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store store.Store
	cfg   *config.Config
	pool  *jobs.ReassignPool
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, cfg *config.Config, pool *jobs.ReassignPool) *Handler {
	return &Handler{store: s, cfg: cfg, pool: pool}
}

func (h *Handler) budgetConfig() budget.Config {
	return budget.Config{
		DailyLimit:  time.Duration(h.cfg.Budget.DailyLimitSeconds) * time.Second,
		ResetHour:   h.cfg.Budget.ResetHour,
		ResetMinute: h.cfg.Budget.ResetMinute,
		Location:    h.cfg.Budget.Location,
	}
}

func (h *Handler) policyFor(ev *model.Event) batch.Policy {
	return batch.Policy{
		Capacity:          ev.CapacityPerBatch,
		OverflowThreshold: h.cfg.Batch.OverflowThreshold,
	}
}

// requireUser reads the caller identity set by the auth layer in front of
// this service. An empty value aborts the request.
func requireUser(c *gin.Context) (string, bool) {
	user := c.GetHeader("X-User-ID")
	if user == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return "", false
	}
	return user, true
}

// requireDevice reads the device identity used for budget accounting.
func requireDevice(c *gin.Context) (string, bool) {
	device := c.GetHeader("X-Device-ID")
	if device == "" {
		device = c.Query("device_id")
	}
	if device == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Device-ID header or device_id query is required"})
		return "", false
	}
	return device, true
}
