package store

import "equipment-pm-backend/internal/model"

// ScheduleContext is one active schedule joined with its equipment, the
// unit the estimator and alert engine operate on.
type ScheduleContext struct {
	Schedule  model.MaintenanceSchedule
	Equipment model.Equipment
}
