package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"equipment-pm-backend/internal/model"
	"equipment-pm-backend/internal/ticket"
	"equipment-pm-backend/internal/workorder"
)

// ListRecords handles GET /api/records with optional status and
// work-order-code filters.
func (h *Handler) ListRecords(c *gin.Context) {
	q := h.store.DB().WithContext(c.Request.Context()).Model(&model.MaintenanceRecord{})

	if status := c.Query("status"); status != "" {
		if !model.RecordStatus(status).Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status " + status})
			return
		}
		q = q.Where("status = ?", status)
	}
	if code := c.Query("code"); code != "" {
		if _, err := workorder.Parse(code); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		q = q.Where("work_order_code = ?", code)
	}
	if equipID := c.Query("equipment_id"); equipID != "" {
		id, err := strconv.ParseInt(equipID, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid equipment_id"})
			return
		}
		q = q.Where("equipment_id = ?", id)
	}

	var records []model.MaintenanceRecord
	if err := q.Order("created_at DESC").Limit(200).Find(&records).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// GetRecord handles GET /api/records/:id, returning the record together
// with its full timeline, oldest entry first.
func (h *Handler) GetRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid record ID"})
		return
	}

	var record model.MaintenanceRecord
	err = h.store.DB().WithContext(c.Request.Context()).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("timeline_entries.id") }).
		First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load record"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// CreateRecord handles POST /api/records for manually opened work orders.
func (h *Handler) CreateRecord(c *gin.Context) {
	var req ticket.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.tickets.Create(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

type transitionRequest struct {
	Status  string                  `json:"status" binding:"required"`
	ActorID *int64                  `json:"actor_id"`
	Fields  ticket.TransitionFields `json:"fields"`
}

// TransitionRecord handles PATCH /api/records/:id/status.
func (h *Handler) TransitionRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid record ID"})
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.tickets.Transition(c.Request.Context(), id, model.RecordStatus(req.Status), req.ActorID, req.Fields)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
