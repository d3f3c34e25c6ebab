package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"equipment-pm-backend/config"
	"equipment-pm-backend/internal/mw"
)

// NewRouter creates and configures the Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/schedules/status", caching, h.GetScheduleStatus)
		api.POST("/maintenance/check", h.TriggerCheck)

		api.POST("/equipment/:id/usage", h.IngestUsage)

		api.GET("/records", h.ListRecords)
		api.GET("/records/export", h.ExportRecords)
		api.GET("/records/:id", h.GetRecord)
		api.POST("/records", h.CreateRecord)
		api.PATCH("/records/:id/status", h.TransitionRecord)

		api.GET("/notifications", h.ListNotifications)
		api.PATCH("/notifications/:id/read", h.MarkNotificationRead)

		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
