package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"habit-session-backend/internal/budget"
)

type budgetResponse struct {
	DeviceID          string `json:"device_id"`
	DayKey            string `json:"day_key"`
	RemainingSeconds  int    `json:"remaining_seconds"`
	DailyLimitSeconds int    `json:"daily_limit_seconds"`
	Exhausted         bool   `json:"exhausted"`
	ExhaustedNow      bool   `json:"exhausted_now,omitempty"`
}

type tickPayload struct {
	ElapsedSeconds int  `json:"elapsed_seconds"`
	Exempt         bool `json:"exempt"`
}

// remainingFor loads the device's balance under the current session-day key,
// falling back to a full day when no entry exists yet.
func (h *Handler) remainingFor(c *gin.Context, deviceID string) (string, int, bool) {
	cfg := h.budgetConfig()
	key := budget.DayKey(cfg, time.Now())

	seconds, found, err := h.store.LoadBudget(c.Request.Context(), deviceID, key)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", 0, false
	}
	if !found {
		seconds = h.cfg.Budget.DailyLimitSeconds
	}
	return key, seconds, true
}

// GetBudget handles GET /api/budget.
func (h *Handler) GetBudget(c *gin.Context) {
	device, ok := requireDevice(c)
	if !ok {
		return
	}
	key, remaining, ok := h.remainingFor(c, device)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, budgetResponse{
		DeviceID:          device,
		DayKey:            key,
		RemainingSeconds:  remaining,
		DailyLimitSeconds: h.cfg.Budget.DailyLimitSeconds,
		Exhausted:         remaining == 0,
	})
}

// TickBudget handles POST /api/budget/tick. The server applies the same
// clamped subtraction the on-device clock uses, so a stale tab can never
// push the balance below zero or above the daily limit. Exempt ticks report
// the balance without draining it.
func (h *Handler) TickBudget(c *gin.Context) {
	device, ok := requireDevice(c)
	if !ok {
		return
	}

	var payload tickPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.ElapsedSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "elapsed_seconds must not be negative"})
		return
	}

	key, prev, ok := h.remainingFor(c, device)
	if !ok {
		return
	}

	remaining := prev
	if !payload.Exempt {
		limit := time.Duration(h.cfg.Budget.DailyLimitSeconds) * time.Second
		elapsed := time.Duration(payload.ElapsedSeconds) * time.Second
		remaining = int(budget.Consume(time.Duration(prev)*time.Second, elapsed, limit) / time.Second)

		if err := h.store.SaveBudget(c.Request.Context(), device, key, remaining); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, budgetResponse{
		DeviceID:          device,
		DayKey:            key,
		RemainingSeconds:  remaining,
		DailyLimitSeconds: h.cfg.Budget.DailyLimitSeconds,
		Exhausted:         remaining == 0,
		ExhaustedNow:      prev > 0 && remaining == 0,
	})
}

// ResetBudget handles POST /api/budget/reset, restoring a full day.
func (h *Handler) ResetBudget(c *gin.Context) {
	device, ok := requireDevice(c)
	if !ok {
		return
	}

	cfg := h.budgetConfig()
	key := budget.DayKey(cfg, time.Now())
	limit := h.cfg.Budget.DailyLimitSeconds

	if err := h.store.SaveBudget(c.Request.Context(), device, key, limit); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, budgetResponse{
		DeviceID:          device,
		DayKey:            key,
		RemainingSeconds:  limit,
		DailyLimitSeconds: limit,
	})
}
