package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"habit-session-backend/internal/model"
	"habit-session-backend/internal/schedule"
	"habit-session-backend/internal/store"
)

type recurrencePayload struct {
	Kind       string `json:"kind"`
	Interval   int    `json:"interval"`
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
	DayOfMonth int    `json:"day_of_month,omitempty"`
	Ordinal    int    `json:"ordinal,omitempty"`
	Weekday    int    `json:"weekday,omitempty"`
}

type eventPayload struct {
	Title            string            `json:"title" binding:"required"`
	StartAt          time.Time         `json:"start_at" binding:"required"`
	ArrivalSeconds   int               `json:"arrival_seconds"`
	PracticeSeconds  int               `json:"practice_seconds"`
	CloseSeconds     int               `json:"close_seconds"`
	CapacityPerBatch int               `json:"capacity_per_batch"`
	Recurrence       recurrencePayload `json:"recurrence"`
}

type eventResponse struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	CreatedBy        string            `json:"created_by"`
	StartAt          time.Time         `json:"start_at"`
	ArrivalSeconds   int               `json:"arrival_seconds"`
	PracticeSeconds  int               `json:"practice_seconds"`
	CloseSeconds     int               `json:"close_seconds"`
	CapacityPerBatch int               `json:"capacity_per_batch"`
	OverflowActive   bool              `json:"overflow_active"`
	Recurrence       recurrencePayload `json:"recurrence"`
	NextStart        *time.Time        `json:"next_start,omitempty"`
	NextEnd          *time.Time        `json:"next_end,omitempty"`
	Live             bool              `json:"live"`
}

func toEventResponse(ev *model.Event, now time.Time) eventResponse {
	rule := ev.Rule()
	resp := eventResponse{
		ID:               ev.ID,
		Title:            ev.Title,
		CreatedBy:        ev.CreatedBy,
		StartAt:          ev.StartAt,
		ArrivalSeconds:   ev.ArrivalSeconds,
		PracticeSeconds:  ev.PracticeSeconds,
		CloseSeconds:     ev.CloseSeconds,
		CapacityPerBatch: ev.CapacityPerBatch,
		OverflowActive:   ev.OverflowActive,
		Recurrence: recurrencePayload{
			Kind:       ev.RecurrenceKind,
			Interval:   ev.RecurrenceInterval,
			DaysOfWeek: rule.Days(),
			DayOfMonth: ev.DayOfMonth,
			Ordinal:    ev.Ordinal,
			Weekday:    ev.Weekday,
		},
	}

	def := ev.Definition()
	if occ, ok := schedule.NextOccurrence(def, now); ok {
		resp.NextStart = &occ.Start
		resp.NextEnd = &occ.End
		resp.Live = !occ.Start.After(now)
	}
	return resp
}

// applyPayload copies the request body onto the event row, validating
// durations and the recurrence rule.
func (h *Handler) applyPayload(ev *model.Event, p *eventPayload) error {
	if p.ArrivalSeconds < 0 || p.PracticeSeconds < 0 || p.CloseSeconds < 0 {
		return errors.New("phase durations must not be negative")
	}
	if p.ArrivalSeconds+p.PracticeSeconds+p.CloseSeconds == 0 {
		return errors.New("at least one phase duration must be positive")
	}

	kind := p.Recurrence.Kind
	if kind == "" {
		kind = string(schedule.KindNone)
	}
	mask, err := schedule.MaskFromDays(p.Recurrence.DaysOfWeek)
	if err != nil {
		return err
	}
	rule := schedule.Rule{
		Kind:       schedule.Kind(kind),
		Interval:   p.Recurrence.Interval,
		DaysOfWeek: mask,
		DayOfMonth: p.Recurrence.DayOfMonth,
		Ordinal:    p.Recurrence.Ordinal,
		Weekday:    time.Weekday(p.Recurrence.Weekday),
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	capacity := p.CapacityPerBatch
	if capacity <= 0 {
		capacity = h.cfg.Batch.DefaultCapacity
	}

	ev.Title = p.Title
	ev.StartAt = p.StartAt.UTC()
	ev.ArrivalSeconds = p.ArrivalSeconds
	ev.PracticeSeconds = p.PracticeSeconds
	ev.CloseSeconds = p.CloseSeconds
	ev.RecurrenceKind = kind
	ev.RecurrenceInterval = rule.Interval
	ev.DaysOfWeekMask = rule.DaysOfWeek
	ev.DayOfMonth = rule.DayOfMonth
	ev.Ordinal = rule.Ordinal
	ev.Weekday = int(rule.Weekday)
	ev.CapacityPerBatch = capacity
	return nil
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) loadEvent(c *gin.Context) (*model.Event, bool) {
	id, ok := eventID(c)
	if !ok {
		return nil, false
	}
	ev, err := h.store.GetEvent(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return ev, true
}

// CreateEvent handles POST /api/events.
func (h *Handler) CreateEvent(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := &model.Event{CreatedBy: user}
	if err := h.applyPayload(ev, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.CreateEvent(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(ev, time.Now().UTC()))
}

// ListEvents handles GET /api/events.
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	resp := make([]eventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toEventResponse(&events[i], now))
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvent handles GET /api/events/:event_id.
func (h *Handler) GetEvent(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toEventResponse(ev, time.Now().UTC()))
}

// UpdateEvent handles PUT /api/events/:event_id. Only the organizer may edit,
// and never while an occurrence is live; participants mid-session keep the
// schedule they joined.
func (h *Handler) UpdateEvent(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	if ev.CreatedBy != user {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the organizer may edit the event"})
		return
	}
	if schedule.IsLive(ev.Definition(), time.Now().UTC()) {
		c.JSON(http.StatusConflict, gin.H{"error": "event has a live occurrence; try again after it ends"})
		return
	}

	var payload eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.applyPayload(ev, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SaveEvent(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toEventResponse(ev, time.Now().UTC()))
}

// DeleteEvent handles DELETE /api/events/:event_id. Batches and memberships
// go with the event.
func (h *Handler) DeleteEvent(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	if ev.CreatedBy != user {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the organizer may delete the event"})
		return
	}

	if err := h.store.DeleteEvent(c.Request.Context(), ev.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
