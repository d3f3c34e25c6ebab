package ticket

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

	"equipment-pm-backend/internal/db"
	"equipment-pm-backend/internal/model"
	"equipment-pm-backend/internal/workorder"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedSchedule(t *testing.T, gdb *gorm.DB, currentUsage, interval float64) (model.Equipment, model.MaintenanceSchedule) {
	t.Helper()
	equip := model.Equipment{Code: "CMP-01", Name: "Compressor", UsageUnit: "hours", CurrentUsage: currentUsage, IsActive: true}
	require.NoError(t, gdb.Create(&equip).Error)

	sched := model.MaintenanceSchedule{EquipmentID: equip.ID, IntervalValue: interval, IsActive: true}
	require.NoError(t, gdb.Create(&sched).Error)
	return equip, sched
}

func timelineCount(t *testing.T, gdb *gorm.DB, recordID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.TimelineEntry{}).Where("record_id = ?", recordID).Count(&n).Error)
	return n
}

func TestCreateForSchedule(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	_, sched := seedSchedule(t, gdb, 1005, 1000)

	record, err := mgr.CreateForSchedule(context.Background(), sched.ID, "overdue")
	require.NoError(t, err)

	wantCode := workorder.Format(time.Now().UTC().Year(), 1)
	assert.Equal(t, wantCode, record.WorkOrderCode)
	assert.Equal(t, model.StatusPending, record.Status)
	require.NotNil(t, record.ScheduleID)
	assert.Equal(t, sched.ID, *record.ScheduleID)

	// The schedule is now locked to this ticket.
	var reloaded model.MaintenanceSchedule
	require.NoError(t, gdb.First(&reloaded, sched.ID).Error)
	require.NotNil(t, reloaded.CurrentTicketID)
	assert.Equal(t, record.ID, *reloaded.CurrentTicketID)

	assert.EqualValues(t, 1, timelineCount(t, gdb, record.ID))
}

func TestCreateForSchedule_LockedIsConflict(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	_, sched := seedSchedule(t, gdb, 1005, 1000)

	_, err := mgr.CreateForSchedule(context.Background(), sched.ID, "overdue")
	require.NoError(t, err)

	_, err = mgr.CreateForSchedule(context.Background(), sched.ID, "overdue again")
	assert.ErrorIs(t, err, ErrScheduleLocked)

	var count int64
	require.NoError(t, gdb.Model(&model.MaintenanceRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateForSchedule_UnknownSchedule(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)

	_, err := mgr.CreateForSchedule(context.Background(), 9999, "overdue")
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestWorkOrderCodeSequence(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)

	year := time.Now().UTC().Year()
	for seq := 1; seq <= 3; seq++ {
		record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
		require.NoError(t, err)
		assert.Equal(t, workorder.Format(year, seq), record.WorkOrderCode)
	}
}

func TestTransition_UnknownStatusRejected(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)
	record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
	require.NoError(t, err)

	_, err = mgr.Transition(context.Background(), record.ID, "exploded", nil, TransitionFields{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestTransition_CompleteRequiresRootCauseAndAction(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)
	record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
	require.NoError(t, err)

	cases := []TransitionFields{
		{},
		{RootCause: "bearing wear"},
		{ActionTaken: "replaced bearing"},
	}
	for _, fields := range cases {
		_, err := mgr.Transition(context.Background(), record.ID, model.StatusCompleted, nil, fields)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	}

	// The record is untouched: still pending, timeline is only creation.
	var reloaded model.MaintenanceRecord
	require.NoError(t, gdb.First(&reloaded, record.ID).Error)
	assert.Equal(t, model.StatusPending, reloaded.Status)
	assert.Nil(t, reloaded.CompletedAt)
	assert.EqualValues(t, 1, timelineCount(t, gdb, record.ID))
}

func TestTransition_RequiredReasons(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)

	for _, tc := range []struct {
		status model.RecordStatus
		field  string
	}{
		{model.StatusCancelled, "cancelled_reason"},
		{model.StatusOnHold, "on_hold_reason"},
	} {
		record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
		require.NoError(t, err)

		_, err = mgr.Transition(context.Background(), record.ID, tc.status, nil, TransitionFields{})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tc.field, verr.Field)
	}
}

func TestTransition_InProgressSetsStartedAtOnce(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)
	record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
	require.NoError(t, err)

	started, err := mgr.Transition(context.Background(), record.ID, model.StatusInProgress, nil, TransitionFields{})
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)
	firstStart := *started.StartedAt

	// Hold and resume: the clock must not reset.
	_, err = mgr.Transition(context.Background(), record.ID, model.StatusOnHold, nil, TransitionFields{OnHoldReason: "waiting for parts"})
	require.NoError(t, err)

	resumed, err := mgr.Transition(context.Background(), record.ID, model.StatusInProgress, nil, TransitionFields{})
	require.NoError(t, err)
	require.NotNil(t, resumed.StartedAt)
	assert.True(t, resumed.StartedAt.Equal(firstStart))

	assert.EqualValues(t, 4, timelineCount(t, gdb, record.ID))
}

func TestTransition_CompleteClosesAndRearmsSchedule(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, sched := seedSchedule(t, gdb, 1005, 1000)

	record, err := mgr.CreateForSchedule(context.Background(), sched.ID, "overdue")
	require.NoError(t, err)

	_, err = mgr.Transition(context.Background(), record.ID, model.StatusInProgress, nil, TransitionFields{})
	require.NoError(t, err)

	actor := int64(42)
	completed, err := mgr.Transition(context.Background(), record.ID, model.StatusCompleted, &actor, TransitionFields{
		RootCause:   "interval elapsed",
		ActionTaken: "serviced per checklist",
	})
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.DowntimeMinutes)
	assert.GreaterOrEqual(t, *completed.DowntimeMinutes, 0)

	// Lock released and the baseline re-armed to the equipment's counter.
	var reloaded model.MaintenanceSchedule
	require.NoError(t, gdb.First(&reloaded, sched.ID).Error)
	assert.Nil(t, reloaded.CurrentTicketID)
	assert.Equal(t, equip.CurrentUsage, reloaded.LastCompletedAtUsage)
}

func TestTransition_CancelReleasesLockWithoutBaselineReset(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	_, sched := seedSchedule(t, gdb, 1005, 1000)

	record, err := mgr.CreateForSchedule(context.Background(), sched.ID, "overdue")
	require.NoError(t, err)

	_, err = mgr.Transition(context.Background(), record.ID, model.StatusCancelled, nil, TransitionFields{CancelledReason: "duplicate"})
	require.NoError(t, err)

	var reloaded model.MaintenanceSchedule
	require.NoError(t, gdb.First(&reloaded, sched.ID).Error)
	assert.Nil(t, reloaded.CurrentTicketID)
	assert.Zero(t, reloaded.LastCompletedAtUsage)
}

func TestTransition_TerminalOnlyAllowsReopen(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)
	record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
	require.NoError(t, err)

	_, err = mgr.Transition(context.Background(), record.ID, model.StatusCancelled, nil, TransitionFields{CancelledReason: "not needed"})
	require.NoError(t, err)

	_, err = mgr.Transition(context.Background(), record.ID, model.StatusInProgress, nil, TransitionFields{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	reopened, err := mgr.Transition(context.Background(), record.ID, model.StatusReopened, nil, TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReopened, reopened.Status)
}

func TestTransition_DefaultTimelineNotes(t *testing.T) {
	gdb := newTestDB(t)
	mgr := NewManager(gdb, nil)
	equip, _ := seedSchedule(t, gdb, 0, 1000)
	record, err := mgr.Create(context.Background(), CreateRequest{EquipmentID: equip.ID})
	require.NoError(t, err)

	_, err = mgr.Transition(context.Background(), record.ID, model.StatusInProgress, nil, TransitionFields{})
	require.NoError(t, err)
	_, err = mgr.Transition(context.Background(), record.ID, model.StatusOnHold, nil, TransitionFields{OnHoldReason: "parts", Notes: "waiting on vendor"})
	require.NoError(t, err)

	var entries []model.TimelineEntry
	require.NoError(t, gdb.Where("record_id = ?", record.ID).Order("id").Find(&entries).Error)
	require.Len(t, entries, 3)
	assert.Equal(t, "work started", entries[1].Notes)
	assert.Equal(t, "waiting on vendor", entries[2].Notes)
}
