package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"habit-session-backend/internal/batch"
	"habit-session-backend/internal/store"
)

const maxJoinAttempts = 3

type joinResponse struct {
	BatchNumber   int  `json:"batch_number"`
	AlreadyMember bool `json:"already_member"`
	CreatedNew    bool `json:"created_new"`
	Overflow      bool `json:"overflow"`
}

type batchResponse struct {
	Number  int      `json:"number"`
	Members []string `json:"members"`
}

// JoinEvent handles POST /api/events/:event_id/join. Assignment is
// snapshot-decide-persist: the store re-checks the batch size inside its
// transaction, so a concurrent join that steals the last seat surfaces as a
// retryable conflict and we simply decide again on a fresh snapshot.
func (h *Handler) JoinEvent(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	policy := h.policyFor(ev)

	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		snaps, err := h.store.BatchSnapshots(ctx, ev.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		dec := batch.ChooseBatchForJoin(snaps, user, policy)
		if dec.AlreadyMember {
			c.JSON(http.StatusOK, joinResponse{BatchNumber: dec.BatchNumber, AlreadyMember: true})
			return
		}

		limit := policy.Capacity
		if dec.Overflow {
			limit = policy.Capacity + policy.OverflowThreshold
		}

		number, err := h.store.JoinBatch(ctx, ev.ID, dec.BatchNumber, user, limit)
		if errors.Is(err, store.ErrBatchFull) {
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.pool.Dispatch(ev.ID)
		c.JSON(http.StatusCreated, joinResponse{
			BatchNumber: number,
			CreatedNew:  dec.CreateNew,
			Overflow:    dec.Overflow,
		})
		return
	}

	c.JSON(http.StatusConflict, gin.H{"error": "batch assignment contended; please retry"})
}

// GetEventBatches handles GET /api/events/:event_id/batches.
func (h *Handler) GetEventBatches(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	snaps, err := h.store.BatchSnapshots(c.Request.Context(), ev.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]batchResponse, 0, len(snaps))
	for _, s := range snaps {
		resp = append(resp, batchResponse{Number: s.Number, Members: s.Members})
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id":        ev.ID,
		"overflow_active": ev.OverflowActive,
		"batches":         resp,
	})
}
