package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"habit-session-backend/internal/schedule"
)

type statusResponse struct {
	EventID         int64      `json:"event_id"`
	SessionOver     bool       `json:"session_over"`
	Phase           string     `json:"phase,omitempty"`
	ElapsedSeconds  float64    `json:"elapsed_seconds"`
	ChatEnabled     bool       `json:"chat_enabled"`
	Live            bool       `json:"live"`
	OverflowActive  bool       `json:"overflow_active"`
	OccurrenceStart *time.Time `json:"occurrence_start,omitempty"`
	OccurrenceEnd   *time.Time `json:"occurrence_end,omitempty"`
}

// GetEventStatus handles GET /api/events/:event_id/status. Clients poll this
// to drive their phase UI. A `tracking` parameter carries the occurrence
// start the client last saw; when the engine has moved on to a different
// occurrence the response reports the tracked session as over exactly once,
// alongside the occurrence that replaced it.
func (h *Handler) GetEventStatus(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	def := ev.Definition()

	now := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be RFC 3339"})
			return
		}
		now = t.UTC()
	}

	resp := statusResponse{EventID: ev.ID, OverflowActive: ev.OverflowActive}

	occ, found := schedule.NextOccurrence(def, now)
	if !found {
		// Rule exhausted or the one-shot occurrence has ended.
		resp.SessionOver = true
		c.JSON(http.StatusOK, resp)
		return
	}

	if raw := c.Query("tracking"); raw != "" {
		tracked, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tracking must be RFC 3339"})
			return
		}
		resp.SessionOver = !tracked.Equal(occ.Start)
	}

	info := schedule.PhaseAt(def, occ.Start, now)
	resp.Phase = string(info.Phase)
	resp.ElapsedSeconds = info.Elapsed.Seconds()
	resp.ChatEnabled = schedule.ChatEnabled(info.Phase)
	resp.Live = schedule.IsLive(def, now)
	resp.OccurrenceStart = &occ.Start
	resp.OccurrenceEnd = &occ.End
	c.JSON(http.StatusOK, resp)
}
