package model

import "time"

// UsageLog holds one equipment's aggregated usage for one calendar day.
// There is at most one row per (equipment, log_date); re-ingesting a day
// replaces the previous value (last write wins).
type UsageLog struct {
	ID          int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	EquipmentID int64     `gorm:"uniqueIndex:uniq_usage_equipment_date;not null" json:"equipment_id"`
	LogDate     time.Time `gorm:"uniqueIndex:uniq_usage_equipment_date;type:date;not null" json:"log_date"`
	UsageValue  float64   `gorm:"not null" json:"usage_value"`
	Condition   string    `gorm:"size:64" json:"condition"`
	Notes       string    `gorm:"size:512" json:"notes"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Equipment Equipment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
