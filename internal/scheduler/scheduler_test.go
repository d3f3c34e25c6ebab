package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"equipment-pm-backend/config"
	"equipment-pm-backend/internal/alert"
	"equipment-pm-backend/internal/db"
	"equipment-pm-backend/internal/model"
	"equipment-pm-backend/internal/notification"
	"equipment-pm-backend/internal/store"
)

// blockingStore parks ListActiveSchedules until released, to hold a pass
// in flight during the reentrancy test.
type blockingStore struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingStore) DB() *gorm.DB { return nil }

func (b *blockingStore) ListActiveSchedules(ctx context.Context) ([]store.ScheduleContext, error) {
	close(b.started)
	<-b.release
	return nil, nil
}

func (b *blockingStore) DailyUsageSum(ctx context.Context, equipmentID int64, since time.Time) (float64, error) {
	return 0, nil
}

func (b *blockingStore) HasRecentScheduleAlert(ctx context.Context, scheduleID int64, since time.Time) (bool, error) {
	return false, nil
}

func (b *blockingStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	return nil
}

func (b *blockingStore) ListAlertRecipients(ctx context.Context) ([]model.User, error) {
	return nil, nil
}

func (b *blockingStore) IngestUsage(ctx context.Context, equipmentID int64, delta float64, source string, at time.Time) (*model.Equipment, error) {
	return nil, nil
}

func (b *blockingStore) RollupDailyUsage(ctx context.Context, dayStart, dayEnd time.Time) (int, error) {
	return 0, nil
}

type noopTickets struct{}

func (noopTickets) CreateForSchedule(ctx context.Context, scheduleID int64, description string) (*model.MaintenanceRecord, error) {
	return &model.MaintenanceRecord{ID: 1}, nil
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(job notification.Job) {}

func testSchedulerConfig() *config.SchedulerConfig {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Scheduler.Enabled = true
	return &cfg.Scheduler
}

func TestTriggerNow_SecondCallIsNoOpWhilePassRuns(t *testing.T) {
	bs := &blockingStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := alert.NewEngine(bs, noopTickets{}, noopNotifier{}, alert.Thresholds{}, 24*time.Hour, time.UTC, nil)
	svc := NewService(testSchedulerConfig(), engine, bs, nil)

	type result struct {
		summary *alert.PassSummary
		skipped bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, skipped, err := svc.TriggerNow(context.Background())
		done <- result{s, skipped, err}
	}()

	// Wait until the first pass is inside the engine.
	select {
	case <-bs.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never started")
	}
	assert.True(t, svc.InFlight())

	// Overlapping trigger degrades to a no-op.
	summary, skipped, err := svc.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Nil(t, summary)

	close(bs.release)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.False(t, r.skipped)
		require.NotNil(t, r.summary)
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never finished")
	}
	assert.False(t, svc.InFlight())

	// The guard resets: a later trigger runs normally.
	bs.started = make(chan struct{})
	bs.release = make(chan struct{})
	close(bs.release)
	_, skipped, err = svc.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.False(t, skipped)
}

func TestNextRollupTime(t *testing.T) {
	loc := time.UTC

	t.Run("before today's slot fires today", func(t *testing.T) {
		now := time.Date(2026, 8, 29, 0, 1, 0, 0, loc)
		next := NextRollupTime(now, 0, 5)
		assert.Equal(t, time.Date(2026, 8, 29, 0, 5, 0, 0, loc), next)
	})

	t.Run("after today's slot fires tomorrow", func(t *testing.T) {
		now := time.Date(2026, 8, 29, 0, 5, 0, 0, loc)
		next := NextRollupTime(now, 0, 5)
		assert.Equal(t, time.Date(2026, 8, 30, 0, 5, 0, 0, loc), next)
	})

	t.Run("drift free across month boundary", func(t *testing.T) {
		now := time.Date(2026, 8, 31, 12, 0, 0, 0, loc)
		next := NextRollupTime(now, 0, 5)
		assert.Equal(t, time.Date(2026, 9, 1, 0, 5, 0, 0, loc), next)
	})
}

func TestRollupPreviousDay(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	equip := model.Equipment{Code: "EQ-A", Name: "Pump A", IsActive: true}
	require.NoError(t, gdb.Create(&equip).Error)

	now := time.Now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := todayStart.AddDate(0, 0, -1)

	readings := []model.SensorReading{
		{EquipmentID: equip.ID, Delta: 2, RecordedAt: yesterday.Add(time.Hour)},
		{EquipmentID: equip.ID, Delta: 3, RecordedAt: yesterday.Add(10 * time.Hour)},
	}
	require.NoError(t, gdb.Create(&readings).Error)

	appStore := store.NewGormStore(gdb)
	svc := NewService(testSchedulerConfig(), nil, appStore, nil)

	require.NoError(t, svc.RollupPreviousDay(context.Background(), time.UTC))

	var logs []model.UsageLog
	require.NoError(t, gdb.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, 5.0, logs[0].UsageValue)
}
