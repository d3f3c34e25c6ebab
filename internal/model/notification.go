package model

import "time"

// Reference types for notifications.
const (
	RefSchedule = "schedule"
	RefRecord   = "record"
)

// Notification is one delivered (or attempted) alert for one recipient.
// Besides feeding the in-app notification list, rows referencing a schedule
// are what the alert engine consults to suppress duplicate alerts within
// the suppression window.
type Notification struct {
	ID            int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Title         string    `gorm:"size:256;not null" json:"title"`
	Message       string    `gorm:"size:1024;not null" json:"message"`
	Type          string    `gorm:"size:32;not null" json:"type"`
	ReferenceType string    `gorm:"size:32;index:idx_notifications_reference" json:"reference_type"`
	ReferenceID   int64     `gorm:"index:idx_notifications_reference" json:"reference_id"`
	Read          bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// PushSubscription holds one browser push subscription for a user.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `gorm:"not null"`
}
