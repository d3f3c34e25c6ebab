package model

import "time"

// RecordStatus is the status vocabulary of a maintenance work order.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusInProgress RecordStatus = "in_progress"
	StatusCompleted  RecordStatus = "completed"
	StatusCancelled  RecordStatus = "cancelled"
	StatusOnHold     RecordStatus = "on_hold"
	StatusReopened   RecordStatus = "reopened"
)

// Valid reports whether s is part of the fixed status vocabulary.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusOnHold, StatusReopened:
		return true
	}
	return false
}

// Terminal reports whether s closes the work order.
func (s RecordStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// MaintenanceRecord is one maintenance job instance (a work order). Once
// created it is mutated only through status transitions.
type MaintenanceRecord struct {
	ID              int64        `gorm:"primaryKey" json:"id"`
	WorkOrderCode   string       `gorm:"uniqueIndex;size:32;not null" json:"work_order_code"`
	EquipmentID     int64        `gorm:"index;not null" json:"equipment_id"`
	ScheduleID      *int64       `gorm:"index" json:"schedule_id"`
	CreatedByID     *int64       `json:"created_by_id"`
	AssignedToID    *int64       `json:"assigned_to_id"`
	MaintenanceType string       `gorm:"size:64;not null;default:preventive" json:"maintenance_type"`
	Priority        string       `gorm:"size:32;not null;default:medium" json:"priority"`
	Status          RecordStatus `gorm:"size:32;not null;default:pending" json:"status"`
	Description     string       `gorm:"size:1024" json:"description"`
	RootCause       string       `gorm:"size:1024" json:"root_cause"`
	ActionTaken     string       `gorm:"size:1024" json:"action_taken"`
	CancelledReason string       `gorm:"size:512" json:"cancelled_reason"`
	OnHoldReason    string       `gorm:"size:512" json:"on_hold_reason"`
	ScheduledDate   *time.Time   `json:"scheduled_date"`
	StartedAt       *time.Time   `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at"`
	DowntimeMinutes *int         `json:"downtime_minutes"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// Associations
	Equipment Equipment       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Timeline  []TimelineEntry `gorm:"foreignKey:RecordID" json:"timeline,omitempty"`
}

// TimelineEntry is one immutable step in a work order's status history.
// Rows are append-only: they are never updated or deleted.
type TimelineEntry struct {
	ID        int64        `gorm:"autoIncrement;primaryKey" json:"id"`
	RecordID  int64        `gorm:"index;not null" json:"record_id"`
	Status    RecordStatus `gorm:"size:32;not null" json:"status"`
	ActorID   *int64       `json:"actor_id"`
	Notes     string       `gorm:"size:512" json:"notes"`
	CreatedAt time.Time    `json:"created_at"`
}
