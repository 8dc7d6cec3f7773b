package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"habit-session-backend/config"
	"habit-session-backend/internal/db"
	"habit-session-backend/internal/jobs"
	"habit-session-backend/internal/model"
	"habit-session-backend/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSec: 1000,
			RateLimitBurst:  1000,
			CacheTTLSeconds: 1,
		},
		Budget: config.BudgetConfig{
			DailyLimitSeconds: 21 * 60,
			ResetHour:         4,
			Location:          time.UTC,
		},
		Batch: config.BatchConfig{
			OverflowThreshold: 2,
			DefaultCapacity:   21,
		},
		WorkerPool: config.WorkerPoolConfig{Size: 1},
	}
}

func newTestServer(t *testing.T) (*gin.Engine, store.Store, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	s := store.NewGormStore(gormDB)

	cfg := testConfig()
	pool := jobs.NewReassignPool(cfg.WorkerPool.Size, s, cfg.Batch.OverflowThreshold)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)

	return NewRouter(s, cfg, pool), s, cfg
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func organizer() map[string]string { return map[string]string{"X-User-ID": "organizer-1"} }

func validEventPayload() map[string]any {
	return map[string]any{
		"title":            "Morning stretch",
		"start_at":         time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC),
		"arrival_seconds":  300,
		"practice_seconds": 1200,
		"close_seconds":    300,
		"recurrence":       map[string]any{"kind": "daily", "interval": 1},
	}
}

func TestCreateEventRequiresUser(t *testing.T) {
	r, _, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodPost, "/api/events", validEventPayload(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateEventValidation(t *testing.T) {
	r, _, _ := newTestServer(t)

	payload := validEventPayload()
	payload["recurrence"] = map[string]any{"kind": "monthly_date", "interval": 1, "day_of_month": 32}
	w := doJSON(t, r, http.MethodPost, "/api/events", payload, organizer())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	payload = validEventPayload()
	payload["arrival_seconds"] = -1
	w = doJSON(t, r, http.MethodPost, "/api/events", payload, organizer())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndGetEvent(t *testing.T) {
	r, _, cfg := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/events", validEventPayload(), organizer())
	require.Equal(t, http.StatusCreated, w.Code)

	var created eventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "organizer-1", created.CreatedBy)
	assert.Equal(t, cfg.Batch.DefaultCapacity, created.CapacityPerBatch, "capacity falls back to the configured default")
	require.NotNil(t, created.NextStart, "a daily rule always has an upcoming occurrence")

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/events/%d", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got eventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "daily", got.Recurrence.Kind)
}

func TestGetEventNotFound(t *testing.T) {
	r, _, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/api/events/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEventOrganizerOnly(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/events", validEventPayload(), organizer())
	require.Equal(t, http.StatusCreated, w.Code)
	var created eventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	payload := validEventPayload()
	payload["title"] = "Hijacked"
	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/events/%d", created.ID), payload,
		map[string]string{"X-User-ID": "someone-else"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateEventBlockedWhileLive(t *testing.T) {
	r, s, _ := newTestServer(t)

	// A non-recurring event whose occurrence spans right now.
	ev := &model.Event{
		Title:            "Live session",
		CreatedBy:        "organizer-1",
		StartAt:          time.Now().UTC().Add(-time.Minute),
		PracticeSeconds:  3600,
		RecurrenceKind:   "none",
		CapacityPerBatch: 5,
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev))

	payload := validEventPayload()
	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/events/%d", ev.ID), payload, organizer())
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteEvent(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/events", validEventPayload(), organizer())
	require.Equal(t, http.StatusCreated, w.Code)
	var created eventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/events/%d", created.ID), nil, organizer())
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/events/%d", created.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventStatusPhases(t *testing.T) {
	r, s, _ := newTestServer(t)

	start := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
	ev := &model.Event{
		Title:            "Phases",
		CreatedBy:        "organizer-1",
		StartAt:          start,
		ArrivalSeconds:   300,
		PracticeSeconds:  1200,
		CloseSeconds:     300,
		RecurrenceKind:   "none",
		CapacityPerBatch: 5,
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev))

	cases := []struct {
		offset time.Duration
		phase  string
		chat   bool
	}{
		{-time.Minute, "arrival", true},
		{299 * time.Second, "arrival", true},
		{300 * time.Second, "practice", false},
		{1500 * time.Second, "close", true},
	}
	for _, tc := range cases {
		asOf := start.Add(tc.offset).Format(time.RFC3339)
		w := doJSON(t, r, http.MethodGet,
			fmt.Sprintf("/api/events/%d/status?as_of=%s", ev.ID, asOf), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got statusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equalf(t, tc.phase, got.Phase, "offset %s", tc.offset)
		assert.Equalf(t, tc.chat, got.ChatEnabled, "offset %s", tc.offset)
		assert.False(t, got.SessionOver)
	}

	// Past the end of a one-shot event there is nothing left to show.
	asOf := start.Add(2 * time.Hour).Format(time.RFC3339)
	w := doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/events/%d/status?as_of=%s", ev.ID, asOf), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.SessionOver)
	assert.Empty(t, got.Phase)
}

func TestEventStatusTracking(t *testing.T) {
	r, s, _ := newTestServer(t)

	start := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
	ev := &model.Event{
		Title:              "Daily",
		CreatedBy:          "organizer-1",
		StartAt:            start,
		PracticeSeconds:    1800,
		RecurrenceKind:     "daily",
		RecurrenceInterval: 1,
		CapacityPerBatch:   5,
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev))

	// The client still tracks June 2 but the engine has rolled to June 3.
	asOf := start.Add(24*time.Hour + 10*time.Minute)
	url := fmt.Sprintf("/api/events/%d/status?as_of=%s&tracking=%s",
		ev.ID, asOf.Format(time.RFC3339), start.Format(time.RFC3339))
	w := doJSON(t, r, http.MethodGet, url, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.SessionOver, "tracked occurrence has been replaced")
	require.NotNil(t, got.OccurrenceStart)
	assert.True(t, got.OccurrenceStart.Equal(start.AddDate(0, 0, 1)))

	// Tracking the current occurrence is not a session-over.
	url = fmt.Sprintf("/api/events/%d/status?as_of=%s&tracking=%s",
		ev.ID, asOf.Format(time.RFC3339), start.AddDate(0, 0, 1).Format(time.RFC3339))
	w = doJSON(t, r, http.MethodGet, url, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.SessionOver)
}

func TestJoinEvent(t *testing.T) {
	r, s, _ := newTestServer(t)

	ev := &model.Event{
		Title:            "Tiny batches",
		CreatedBy:        "organizer-1",
		StartAt:          time.Now().UTC(),
		PracticeSeconds:  600,
		RecurrenceKind:   "none",
		CapacityPerBatch: 2,
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev))
	path := fmt.Sprintf("/api/events/%d/join", ev.ID)

	join := func(user string) (*httptest.ResponseRecorder, joinResponse) {
		w := doJSON(t, r, http.MethodPost, path, nil, map[string]string{"X-User-ID": user})
		var resp joinResponse
		if w.Code < 300 {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		}
		return w, resp
	}

	w, resp := join("alice")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, resp.BatchNumber)
	assert.True(t, resp.CreatedNew)

	w, resp = join("bob")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, resp.BatchNumber)
	assert.False(t, resp.CreatedNew)

	// Batch 1 is full; the threshold (2) lets carol overflow into it.
	w, resp = join("carol")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, resp.BatchNumber)
	assert.True(t, resp.Overflow)

	// Re-join is idempotent.
	w, resp = join("alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.BatchNumber)
	assert.True(t, resp.AlreadyMember)

	// dave fills batch 1 to capacity+threshold; frank must open batch 2.
	_, _ = join("dave")
	w, resp = join("frank")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, resp.BatchNumber)
	assert.True(t, resp.CreatedNew)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/events/%d/batches", ev.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Batches []batchResponse `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Batches, 2)
	assert.Len(t, listing.Batches[0].Members, 4)
	assert.Len(t, listing.Batches[1].Members, 1)
}

func TestBudgetEndpoints(t *testing.T) {
	r, _, cfg := newTestServer(t)
	device := map[string]string{"X-Device-ID": "device-1"}

	w := doJSON(t, r, http.MethodGet, "/api/budget", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	var got budgetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, cfg.Budget.DailyLimitSeconds, got.RemainingSeconds, "fresh device starts with a full day")

	w = doJSON(t, r, http.MethodPost, "/api/budget/tick",
		map[string]any{"elapsed_seconds": 60}, device)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, cfg.Budget.DailyLimitSeconds-60, got.RemainingSeconds)
	assert.False(t, got.Exhausted)

	// Exempt ticks report without draining.
	w = doJSON(t, r, http.MethodPost, "/api/budget/tick",
		map[string]any{"elapsed_seconds": 600, "exempt": true}, device)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, cfg.Budget.DailyLimitSeconds-60, got.RemainingSeconds)

	// A huge delta clamps at zero and reports the exhaustion transition.
	w = doJSON(t, r, http.MethodPost, "/api/budget/tick",
		map[string]any{"elapsed_seconds": 100000}, device)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 0, got.RemainingSeconds)
	assert.True(t, got.Exhausted)
	assert.True(t, got.ExhaustedNow)

	// Ticking again at zero is not a new transition.
	w = doJSON(t, r, http.MethodPost, "/api/budget/tick",
		map[string]any{"elapsed_seconds": 10}, device)
	require.Equal(t, http.StatusOK, w.Code)
	got = budgetResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Exhausted)
	assert.False(t, got.ExhaustedNow)

	w = doJSON(t, r, http.MethodPost, "/api/budget/reset", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, cfg.Budget.DailyLimitSeconds, got.RemainingSeconds)

	w = doJSON(t, r, http.MethodGet, "/api/budget", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "device identity is required")
}
