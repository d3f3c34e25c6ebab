// Package ticket owns maintenance work orders: creation, the status state
// machine, and the append-only timeline. All writes to a record and its
// timeline go through here so every change is transactional and audited.
package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"equipment-pm-backend/internal/model"
	"equipment-pm-backend/internal/workorder"
)

// Manager mediates all work-order mutations.
type Manager struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewManager creates a work-order manager.
func NewManager(db *gorm.DB, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{db: db, logger: logger}
}

// TransitionFields carries the optional and per-status-required inputs of
// a status transition.
type TransitionFields struct {
	RootCause       string `json:"root_cause"`
	ActionTaken     string `json:"action_taken"`
	CancelledReason string `json:"cancelled_reason"`
	OnHoldReason    string `json:"on_hold_reason"`
	Notes           string `json:"notes"`
	AssignedToID    *int64 `json:"assigned_to_id"`
}

// CreateRequest describes a manually created work order.
type CreateRequest struct {
	EquipmentID     int64      `json:"equipment_id" binding:"required"`
	ScheduleID      *int64     `json:"schedule_id"`
	CreatedByID     *int64     `json:"created_by_id"`
	AssignedToID    *int64     `json:"assigned_to_id"`
	MaintenanceType string     `json:"maintenance_type"`
	Priority        string     `json:"priority"`
	Description     string     `json:"description"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
}

// generateWorkOrderCode builds the next PM-<year>-<seq> code inside tx.
// The sequence is the count of records created in the current calendar
// year plus one; the unique index on work_order_code backstops a collision,
// failing that single creation attempt without a retry.
func generateWorkOrderCode(tx *gorm.DB, now time.Time) (string, error) {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	var count int64
	if err := tx.Model(&model.MaintenanceRecord{}).
		Where("created_at >= ?", yearStart).
		Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to count work orders for %d: %w", now.Year(), err)
	}
	return workorder.Format(now.Year(), int(count)+1), nil
}

// Create inserts a manually requested work order together with its first
// timeline entry. When the request references a schedule, the schedule's
// current_ticket_id lock is check-and-set in the same transaction.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*model.MaintenanceRecord, error) {
	now := time.Now().UTC()
	record := &model.MaintenanceRecord{
		EquipmentID:     req.EquipmentID,
		ScheduleID:      req.ScheduleID,
		CreatedByID:     req.CreatedByID,
		AssignedToID:    req.AssignedToID,
		MaintenanceType: orDefault(req.MaintenanceType, "preventive"),
		Priority:        orDefault(req.Priority, "medium"),
		Status:          model.StatusPending,
		Description:     req.Description,
		ScheduledDate:   req.ScheduledDate,
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return m.insertRecord(tx, record, now, "work order created")
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CreateForSchedule inserts an automatically generated work order for an
// overdue schedule. The insert and the compare-and-swap on the schedule's
// current_ticket_id happen in one transaction, so two concurrent overdue
// evaluations cannot both create a ticket: the loser gets ErrScheduleLocked.
func (m *Manager) CreateForSchedule(ctx context.Context, scheduleID int64, description string) (*model.MaintenanceRecord, error) {
	now := time.Now().UTC()
	var record *model.MaintenanceRecord

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sched model.MaintenanceSchedule
		if err := tx.First(&sched, scheduleID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrScheduleNotFound
			}
			return fmt.Errorf("failed to load schedule %d: %w", scheduleID, err)
		}
		if sched.CurrentTicketID != nil {
			return ErrScheduleLocked
		}

		record = &model.MaintenanceRecord{
			EquipmentID:     sched.EquipmentID,
			ScheduleID:      &sched.ID,
			MaintenanceType: "preventive",
			Priority:        "high",
			Status:          model.StatusPending,
			Description:     description,
		}
		if err := m.insertRecord(tx, record, now, "work order auto-created by maintenance check"); err != nil {
			return err
		}

		// Check-and-set: only wins if the lock is still clear.
		res := tx.Model(&model.MaintenanceSchedule{}).
			Where("id = ? AND current_ticket_id IS NULL", sched.ID).
			Update("current_ticket_id", record.ID)
		if res.Error != nil {
			return fmt.Errorf("failed to lock schedule %d: %w", sched.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrScheduleLocked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *Manager) insertRecord(tx *gorm.DB, record *model.MaintenanceRecord, now time.Time, note string) error {
	code, err := generateWorkOrderCode(tx, now)
	if err != nil {
		return err
	}
	record.WorkOrderCode = code

	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create work order %s: %w", code, err)
	}

	entry := model.TimelineEntry{
		RecordID: record.ID,
		Status:   record.Status,
		ActorID:  record.CreatedByID,
		Notes:    note,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append timeline entry for %s: %w", code, err)
	}
	return nil
}

// Transition moves a work order to newStatus, applying the per-status
// validation and side effects, and appends exactly one timeline entry.
// The record update and the timeline append are atomic.
func (m *Manager) Transition(ctx context.Context, recordID int64, newStatus model.RecordStatus, actorID *int64, fields TransitionFields) (*model.MaintenanceRecord, error) {
	if !newStatus.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}

	now := time.Now().UTC()
	var record model.MaintenanceRecord

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, recordID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrRecordNotFound
			}
			return fmt.Errorf("failed to load record %d: %w", recordID, err)
		}

		if record.Status.Terminal() && newStatus != model.StatusReopened {
			return &ValidationError{Field: "status", Reason: fmt.Sprintf("record is %s; only reopened is allowed", record.Status)}
		}

		if err := applyTransition(&record, newStatus, now, fields); err != nil {
			return err
		}
		if fields.AssignedToID != nil {
			record.AssignedToID = fields.AssignedToID
		}

		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to update record %d: %w", recordID, err)
		}

		notes := fields.Notes
		if notes == "" {
			notes = defaultNote(newStatus)
		}
		entry := model.TimelineEntry{
			RecordID: record.ID,
			Status:   newStatus,
			ActorID:  actorID,
			Notes:    notes,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append timeline entry for record %d: %w", recordID, err)
		}

		if newStatus.Terminal() && record.ScheduleID != nil {
			if err := m.releaseSchedule(tx, &record, newStatus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"record":     record.ID,
		"work_order": record.WorkOrderCode,
		"status":     newStatus,
	}).Info("work order transitioned")
	return &record, nil
}

// applyTransition mutates the record in memory according to the target
// status. Validation failures leave it untouched because the surrounding
// transaction never commits.
func applyTransition(record *model.MaintenanceRecord, newStatus model.RecordStatus, now time.Time, fields TransitionFields) error {
	switch newStatus {
	case model.StatusInProgress:
		// Re-entry (e.g. resuming from on_hold) must not reset the clock.
		if record.StartedAt == nil {
			record.StartedAt = &now
		}

	case model.StatusCompleted:
		if fields.RootCause == "" {
			return &ValidationError{Field: "root_cause", Reason: "required to complete a work order"}
		}
		if fields.ActionTaken == "" {
			return &ValidationError{Field: "action_taken", Reason: "required to complete a work order"}
		}
		record.RootCause = fields.RootCause
		record.ActionTaken = fields.ActionTaken
		record.CompletedAt = &now
		if record.StartedAt != nil {
			minutes := int(now.Sub(*record.StartedAt).Minutes())
			record.DowntimeMinutes = &minutes
		}

	case model.StatusCancelled:
		if fields.CancelledReason == "" {
			return &ValidationError{Field: "cancelled_reason", Reason: "required to cancel a work order"}
		}
		record.CancelledReason = fields.CancelledReason

	case model.StatusOnHold:
		if fields.OnHoldReason == "" {
			return &ValidationError{Field: "on_hold_reason", Reason: "required to put a work order on hold"}
		}
		record.OnHoldReason = fields.OnHoldReason

	case model.StatusReopened, model.StatusPending:
		// No extra fields; reopened returns a closed order to the active set.
	}

	record.Status = newStatus
	return nil
}

// releaseSchedule clears the schedule lock when its linked work order
// closes, and on completion resets the usage baseline to the equipment's
// current counter so the next interval starts from now.
func (m *Manager) releaseSchedule(tx *gorm.DB, record *model.MaintenanceRecord, newStatus model.RecordStatus) error {
	updates := map[string]any{"current_ticket_id": nil}

	if newStatus == model.StatusCompleted {
		var equip model.Equipment
		if err := tx.First(&equip, record.EquipmentID).Error; err != nil {
			return fmt.Errorf("failed to load equipment %d: %w", record.EquipmentID, err)
		}
		updates["last_completed_at_usage"] = equip.CurrentUsage
	}

	res := tx.Model(&model.MaintenanceSchedule{}).
		Where("id = ? AND current_ticket_id = ?", *record.ScheduleID, record.ID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to release schedule %d: %w", *record.ScheduleID, res.Error)
	}
	if res.RowsAffected == 0 {
		// The lock points at a different ticket (or was already cleared);
		// nothing to release for this record.
		m.logger.WithFields(logrus.Fields{
			"schedule": *record.ScheduleID,
			"record":   record.ID,
		}).Warn("schedule lock did not reference closing work order")
	}
	return nil
}

func defaultNote(status model.RecordStatus) string {
	switch status {
	case model.StatusPending:
		return "work order pending"
	case model.StatusInProgress:
		return "work started"
	case model.StatusCompleted:
		return "work completed"
	case model.StatusCancelled:
		return "work order cancelled"
	case model.StatusOnHold:
		return "work order placed on hold"
	case model.StatusReopened:
		return "work order reopened"
	}
	return string(status)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
