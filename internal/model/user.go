package model

import "time"

// Role classifies a user's operational responsibility.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// OperationalRoles are the roles that receive maintenance alerts.
var OperationalRoles = []Role{RoleAdmin, RoleSupervisor, RoleTechnician}

// User is an operator account. Authentication is handled upstream; the
// backend only needs identity and role for alert fan-out.
type User struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Role      Role   `gorm:"size:32;not null;default:viewer" json:"role"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Subscriptions []PushSubscription `gorm:"foreignKey:UserID" json:"-"`
}
