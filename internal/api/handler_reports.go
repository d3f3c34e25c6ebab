package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"equipment-pm-backend/internal/model"
)

var exportHeaders = []string{
	"Work Order", "Equipment", "Type", "Priority", "Status",
	"Description", "Root Cause", "Action Taken",
	"Started At", "Completed At", "Downtime (min)", "Created At",
}

// ExportRecords handles GET /api/records/export, streaming the maintenance
// history as an XLSX workbook.
func (h *Handler) ExportRecords(c *gin.Context) {
	var records []model.MaintenanceRecord
	q := h.store.DB().WithContext(c.Request.Context()).Preload("Equipment").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&records).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load records"})
		return
	}

	const sheet = "Maintenance"
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to create sheet"})
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		for i, header := range exportHeaders {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, header)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
	}

	for rowIdx, r := range records {
		row := []any{
			r.WorkOrderCode,
			fmt.Sprintf("%s (%s)", r.Equipment.Name, r.Equipment.Code),
			r.MaintenanceType,
			r.Priority,
			string(r.Status),
			r.Description,
			r.RootCause,
			r.ActionTaken,
			formatTime(r.StartedAt),
			formatTime(r.CompletedAt),
			downtime(r.DowntimeMinutes),
			r.CreatedAt.Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		f.SetSheetRow(sheet, cell, &row)
	}

	c.Header("Content-Disposition", `attachment; filename=maintenance_records.xlsx`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("failed to stream records export")
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func downtime(minutes *int) any {
	if minutes == nil {
		return ""
	}
	return *minutes
}
