// Package store is the data-access layer shared by the alert engine, the
// scheduler, and the HTTP handlers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"equipment-pm-backend/internal/model"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the database operations the rest of the backend consumes.
type Store interface {
	DB() *gorm.DB

	// ListActiveSchedules returns every active schedule of active
	// equipment, joined with its equipment row.
	ListActiveSchedules(ctx context.Context) ([]ScheduleContext, error)

	// DailyUsageSum sums an equipment's daily usage logs on or after since.
	DailyUsageSum(ctx context.Context, equipmentID int64, since time.Time) (float64, error)

	// HasRecentScheduleAlert reports whether any notification referencing
	// the schedule was created at or after since.
	HasRecentScheduleAlert(ctx context.Context, scheduleID int64, since time.Time) (bool, error)

	// CreateNotification persists one notification row. The rows double
	// as the alert-suppression ledger, so callers must write them before
	// any asynchronous delivery.
	CreateNotification(ctx context.Context, n *model.Notification) error

	// ListAlertRecipients returns the active users holding an
	// operational role.
	ListAlertRecipients(ctx context.Context) ([]model.User, error)

	// IngestUsage appends a raw usage reading and bumps the equipment's
	// cumulative counter in one transaction.
	IngestUsage(ctx context.Context, equipmentID int64, delta float64, source string, at time.Time) (*model.Equipment, error)

	// RollupDailyUsage aggregates one calendar day's raw readings into
	// usage_logs rows (last write wins) and returns how many equipment
	// rows were written.
	RollupDailyUsage(ctx context.Context, dayStart, dayEnd time.Time) (int, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) ListActiveSchedules(ctx context.Context) ([]ScheduleContext, error) {
	var schedules []model.MaintenanceSchedule
	err := s.db.WithContext(ctx).
		Preload("Equipment").
		Joins("JOIN equipment ON equipment.id = maintenance_schedules.equipment_id AND equipment.is_active = ?", true).
		Where("maintenance_schedules.is_active = ?", true).
		Order("maintenance_schedules.id").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}

	out := make([]ScheduleContext, 0, len(schedules))
	for _, sched := range schedules {
		out = append(out, ScheduleContext{Schedule: sched, Equipment: sched.Equipment})
	}
	return out, nil
}

func (s *gormStore) DailyUsageSum(ctx context.Context, equipmentID int64, since time.Time) (float64, error) {
	var sum float64
	err := s.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("COALESCE(SUM(usage_value), 0)").
		Where("equipment_id = ? AND log_date >= ?", equipmentID, since).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage for equipment %d: %w", equipmentID, err)
	}
	return sum, nil
}

func (s *gormStore) HasRecentScheduleAlert(ctx context.Context, scheduleID int64, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("reference_type = ? AND reference_id = ? AND created_at >= ?", model.RefSchedule, scheduleID, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recent alerts for schedule %d: %w", scheduleID, err)
	}
	return count > 0, nil
}

func (s *gormStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification for user %d: %w", n.UserID, err)
	}
	return nil
}

func (s *gormStore) ListAlertRecipients(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND role IN ?", true, model.OperationalRoles).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alert recipients: %w", err)
	}
	return users, nil
}

func (s *gormStore) IngestUsage(ctx context.Context, equipmentID int64, delta float64, source string, at time.Time) (*model.Equipment, error) {
	var equip model.Equipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&equip, equipmentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load equipment %d: %w", equipmentID, err)
		}

		reading := model.SensorReading{
			EquipmentID: equipmentID,
			Delta:       delta,
			Source:      source,
			RecordedAt:  at,
		}
		if err := tx.Create(&reading).Error; err != nil {
			return fmt.Errorf("failed to append reading for equipment %d: %w", equipmentID, err)
		}

		equip.CurrentUsage += delta
		if err := tx.Model(&model.Equipment{}).
			Where("id = ?", equipmentID).
			Update("current_usage", gorm.Expr("current_usage + ?", delta)).Error; err != nil {
			return fmt.Errorf("failed to bump usage counter for equipment %d: %w", equipmentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &equip, nil
}

func (s *gormStore) RollupDailyUsage(ctx context.Context, dayStart, dayEnd time.Time) (int, error) {
	type sumRow struct {
		EquipmentID int64
		Total       float64
	}

	var sums []sumRow
	err := s.db.WithContext(ctx).
		Model(&model.SensorReading{}).
		Select("equipment_id, COALESCE(SUM(delta), 0) AS total").
		Where("recorded_at >= ? AND recorded_at < ?", dayStart, dayEnd).
		Group("equipment_id").
		Scan(&sums).Error
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate readings for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	if len(sums) == 0 {
		return 0, nil
	}

	logs := make([]model.UsageLog, 0, len(sums))
	for _, row := range sums {
		logs = append(logs, model.UsageLog{
			EquipmentID: row.EquipmentID,
			LogDate:     dayStart,
			UsageValue:  row.Total,
		})
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "equipment_id"}, {Name: "log_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"usage_value", "updated_at"}),
	}).Create(&logs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert usage logs for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	return len(logs), nil
}
