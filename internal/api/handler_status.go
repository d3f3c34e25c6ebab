package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetScheduleStatus handles GET /api/schedules/status. It is a read-only
// projection running the same estimator and severity rules as the alerting
// pass, so the dashboard can never disagree with what was alerted.
func (h *Handler) GetScheduleStatus(c *gin.Context) {
	statuses, err := h.engine.Snapshot(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to evaluate schedules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": statuses, "count": len(statuses)})
}

// TriggerCheck handles POST /api/maintenance/check: it synchronously runs
// one alerting pass and returns its summary. If a pass is already running
// the request is a no-op and reports skipped.
func (h *Handler) TriggerCheck(c *gin.Context) {
	summary, skipped, err := h.sched.TriggerNow(c.Request.Context())
	if skipped {
		c.JSON(http.StatusOK, gin.H{"skipped": true, "reason": "a maintenance check is already running"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
