package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type ingestUsageRequest struct {
	Delta      float64    `json:"delta" binding:"required"`
	Source     string     `json:"source"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// IngestUsage handles POST /api/equipment/:id/usage. It appends a raw
// usage reading and advances the equipment's cumulative counter; the
// counter is monotonic, so negative deltas are rejected.
func (h *Handler) IngestUsage(c *gin.Context) {
	equipmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid equipment ID"})
		return
	}

	var req ingestUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Delta < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "delta must not be negative"})
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}

	equip, err := h.store.IngestUsage(c.Request.Context(), equipmentID, req.Delta, req.Source, recordedAt)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, equip)
}
