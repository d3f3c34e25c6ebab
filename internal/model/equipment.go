package model

import "time"

// Equipment represents a tracked physical machine.
type Equipment struct {
	ID           int64   `gorm:"primaryKey" json:"id"`
	Code         string  `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Name         string  `gorm:"size:256;not null" json:"name"`
	Location     string  `gorm:"size:256" json:"location"`
	UsageUnit    string  `gorm:"size:32;not null;default:hours" json:"usage_unit"`
	CurrentUsage float64 `gorm:"not null;default:0" json:"current_usage"`
	IsActive     bool    `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Schedules []MaintenanceSchedule `gorm:"foreignKey:EquipmentID" json:"-"`
}

// SensorReading is one raw usage increment reported for an equipment.
// Readings are only read in aggregate by the daily rollup job.
type SensorReading struct {
	ID          int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	EquipmentID int64     `gorm:"index:idx_readings_equipment_time;not null" json:"equipment_id"`
	Delta       float64   `gorm:"not null" json:"delta"`
	Source      string    `gorm:"size:64" json:"source"`
	RecordedAt  time.Time `gorm:"index:idx_readings_equipment_time;not null" json:"recorded_at"`

	Equipment Equipment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
