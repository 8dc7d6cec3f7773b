package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"habit-session-backend/config"
	"habit-session-backend/internal/jobs"
	"habit-session-backend/internal/mw"
	"habit-session-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config, pool *jobs.ReassignPool) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, cfg, pool)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// The listing is cacheable; status is polled every second and is not.
		api.GET("/events", caching, handler.ListEvents)
		api.POST("/events", handler.CreateEvent)
		api.GET("/events/:event_id", handler.GetEvent)
		api.PUT("/events/:event_id", handler.UpdateEvent)
		api.DELETE("/events/:event_id", handler.DeleteEvent)

		api.GET("/events/:event_id/status", handler.GetEventStatus)
		api.GET("/events/:event_id/batches", handler.GetEventBatches)
		api.POST("/events/:event_id/join", handler.JoinEvent)

		api.GET("/budget", handler.GetBudget)
		api.POST("/budget/tick", handler.TickBudget)
		api.POST("/budget/reset", handler.ResetBudget)
	}

	return r
}
