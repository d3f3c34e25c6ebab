package model

import "time"

// MaintenanceSchedule is one recurring preventive-maintenance requirement
// for one equipment: a service is due every IntervalValue usage units past
// LastCompletedAtUsage.
//
// CurrentTicketID is the single-outstanding-ticket lock: it is set while an
// open work order exists for this schedule and cleared when that work order
// reaches a terminal status. Ticket creation must check-and-set it in the
// same transaction as the insert.
type MaintenanceSchedule struct {
	ID                   int64   `gorm:"primaryKey" json:"id"`
	EquipmentID          int64   `gorm:"index;not null" json:"equipment_id"`
	IntervalValue        float64 `gorm:"not null" json:"interval_value"`
	LastCompletedAtUsage float64 `gorm:"not null;default:0" json:"last_completed_at_usage"`
	CurrentTicketID      *int64  `gorm:"index" json:"current_ticket_id"`
	Description          string  `gorm:"size:512" json:"description"`
	IsActive             bool    `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Equipment Equipment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
