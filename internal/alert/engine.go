// Package alert decides, for every active maintenance schedule, whether an
// alert must go out and whether an overdue schedule needs a work order.
package alert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"equipment-pm-backend/internal/estimate"
	"equipment-pm-backend/internal/model"
	"equipment-pm-backend/internal/notification"
	"equipment-pm-backend/internal/store"
	"equipment-pm-backend/internal/ticket"
)

// TicketCreator is the slice of the work-order manager the engine needs.
type TicketCreator interface {
	CreateForSchedule(ctx context.Context, scheduleID int64, description string) (*model.MaintenanceRecord, error)
}

// Notifier queues push delivery for a notification the engine has already
// persisted. Delivery is best-effort and may happen asynchronously.
type Notifier interface {
	Dispatch(job notification.Job)
}

// Engine evaluates schedules and emits alerts and work orders.
type Engine struct {
	store       store.Store
	tickets     TicketCreator
	notifier    Notifier
	thresholds  Thresholds
	suppression time.Duration
	loc         *time.Location
	logger      *logrus.Logger
}

// NewEngine wires an alert engine. loc is the timezone the daily usage
// rollup buckets in; a nil loc means the process-local one.
func NewEngine(s store.Store, tickets TicketCreator, notifier Notifier, th Thresholds, suppression time.Duration, loc *time.Location, logger *logrus.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		store:       s,
		tickets:     tickets,
		notifier:    notifier,
		thresholds:  th,
		suppression: suppression,
		loc:         loc,
		logger:      logger,
	}
}

// ScheduleStatus is the computed state of one schedule, shared by the
// alerting pass and the read-only dashboard projection so the two can
// never drift.
type ScheduleStatus struct {
	ScheduleID      int64             `json:"schedule_id"`
	EquipmentID     int64             `json:"equipment_id"`
	EquipmentCode   string            `json:"equipment_code"`
	EquipmentName   string            `json:"equipment_name"`
	UsageUnit       string            `json:"usage_unit"`
	CurrentUsage    float64           `json:"current_usage"`
	IntervalValue   float64           `json:"interval_value"`
	Estimate        estimate.Estimate `json:"estimate"`
	Severity        Severity          `json:"severity"`
	Rule            string            `json:"rule,omitempty"`
	CurrentTicketID *int64            `json:"current_ticket_id,omitempty"`
}

// PassItem records what happened to one schedule during an alerting pass.
type PassItem struct {
	ScheduleID      int64    `json:"schedule_id"`
	EquipmentCode   string   `json:"equipment_code"`
	Severity        Severity `json:"severity,omitempty"`
	Suppressed      bool     `json:"suppressed,omitempty"`
	AlreadyTicketed bool     `json:"already_ticketed,omitempty"`
	TicketID        *int64   `json:"ticket_id,omitempty"`
	WorkOrderCode   string   `json:"work_order_code,omitempty"`
	Notified        int      `json:"notified,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// PassSummary is the structured result of one complete alerting pass.
type PassSummary struct {
	RunID          string     `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	DurationMillis int64      `json:"duration_millis"`
	Evaluated      int        `json:"evaluated"`
	AlertsSent     int        `json:"alerts_sent"`
	TicketsCreated int        `json:"tickets_created"`
	Suppressed     int        `json:"suppressed"`
	Failed         int        `json:"failed"`
	RecipientError string     `json:"recipient_error,omitempty"`
	Items          []PassItem `json:"items"`
}

// Snapshot computes the current status of every active schedule without
// side effects. It runs the same estimator and severity rules as RunPass.
func (e *Engine) Snapshot(ctx context.Context) ([]ScheduleStatus, error) {
	contexts, err := e.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]ScheduleStatus, 0, len(contexts))
	for _, sc := range contexts {
		status, err := e.evaluate(ctx, sc, now)
		if err != nil {
			e.logger.WithError(err).WithField("schedule", sc.Schedule.ID).Warn("failed to evaluate schedule for snapshot")
			continue
		}
		out = append(out, status)
	}
	return out, nil
}

// RunPass executes one complete alerting pass over all active schedules.
// Only the schedule-list query can fail the pass; every per-schedule and
// per-recipient failure is isolated, recorded in the summary, and logged.
func (e *Engine) RunPass(ctx context.Context) (*PassSummary, error) {
	started := time.Now().UTC()
	summary := &PassSummary{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	log := e.logger.WithField("run_id", summary.RunID)

	contexts, err := e.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert pass aborted: %w", err)
	}

	// Recipient resolution happens once per pass, decoupled from dispatch.
	// A failed lookup does not abort: overdue work orders must still be
	// created, and the alerts are retried on the next pass because no
	// suppression rows get written without recipients.
	recipients, err := e.store.ListAlertRecipients(ctx)
	if err != nil {
		log.WithError(err).Error("failed to resolve alert recipients, pass continues without fan-out")
		summary.RecipientError = err.Error()
		recipients = nil
	}

	for _, sc := range contexts {
		item := e.processSchedule(ctx, sc, recipients, started)
		summary.Evaluated++
		switch {
		case item.Error != "":
			summary.Failed++
		case item.Suppressed:
			summary.Suppressed++
		}
		if item.TicketID != nil {
			summary.TicketsCreated++
		}
		if item.Notified > 0 {
			summary.AlertsSent++
		}
		summary.Items = append(summary.Items, item)
	}

	summary.DurationMillis = time.Since(started).Milliseconds()
	log.WithFields(logrus.Fields{
		"evaluated": summary.Evaluated,
		"alerts":    summary.AlertsSent,
		"tickets":   summary.TicketsCreated,
		"failed":    summary.Failed,
	}).Info("alert pass finished")
	return summary, nil
}

// processSchedule evaluates one schedule and applies its side effects.
// Never returns an error; failures end up in the item.
func (e *Engine) processSchedule(ctx context.Context, sc store.ScheduleContext, recipients []model.User, now time.Time) PassItem {
	item := PassItem{
		ScheduleID:    sc.Schedule.ID,
		EquipmentCode: sc.Equipment.Code,
	}

	// The lock means a work order is already outstanding; nothing to do
	// but report it.
	if sc.Schedule.CurrentTicketID != nil {
		item.AlreadyTicketed = true
		return item
	}

	status, err := e.evaluate(ctx, sc, now)
	if err != nil {
		item.Error = err.Error()
		e.logger.WithError(err).WithField("schedule", sc.Schedule.ID).Error("failed to evaluate schedule")
		return item
	}
	item.Severity = status.Severity

	switch status.Severity {
	case SeverityOK:
		return item

	case SeverityOverdue:
		record, err := e.tickets.CreateForSchedule(ctx, sc.Schedule.ID, overdueDescription(status))
		if errors.Is(err, ticket.ErrScheduleLocked) {
			// Lost the race to another pass; by design this is a skip,
			// not a failure.
			item.AlreadyTicketed = true
			return item
		}
		if err != nil {
			item.Error = err.Error()
			e.logger.WithError(err).WithField("schedule", sc.Schedule.ID).Error("failed to create work order")
			return item
		}
		item.TicketID = &record.ID
		item.WorkOrderCode = record.WorkOrderCode
		item.Notified = e.fanOut(ctx, recipients, overdueJob(status, record))
		return item

	default: // approaching, warning
		since := now.Add(-e.suppression)
		alerted, err := e.store.HasRecentScheduleAlert(ctx, sc.Schedule.ID, since)
		if err != nil {
			item.Error = err.Error()
			e.logger.WithError(err).WithField("schedule", sc.Schedule.ID).Error("failed suppression lookup")
			return item
		}
		if alerted {
			item.Suppressed = true
			return item
		}
		item.Notified = e.fanOut(ctx, recipients, scheduleJob(status))
		return item
	}
}

// evaluate joins the schedule with its 7-day usage window and classifies it.
// The window starts at midnight in the rollup timezone so the comparison
// against log_date lines up with how the rollup buckets days.
func (e *Engine) evaluate(ctx context.Context, sc store.ScheduleContext, now time.Time) (ScheduleStatus, error) {
	local := now.In(e.loc)
	windowStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc).AddDate(0, 0, -7)
	sevenDaySum, err := e.store.DailyUsageSum(ctx, sc.Equipment.ID, windowStart)
	if err != nil {
		return ScheduleStatus{}, err
	}

	est := estimate.Compute(sc.Schedule.IntervalValue, sc.Schedule.LastCompletedAtUsage, sc.Equipment.CurrentUsage, sevenDaySum)
	decision := Classify(est, e.thresholds)

	return ScheduleStatus{
		ScheduleID:      sc.Schedule.ID,
		EquipmentID:     sc.Equipment.ID,
		EquipmentCode:   sc.Equipment.Code,
		EquipmentName:   sc.Equipment.Name,
		UsageUnit:       sc.Equipment.UsageUnit,
		CurrentUsage:    sc.Equipment.CurrentUsage,
		IntervalValue:   sc.Schedule.IntervalValue,
		Estimate:        est,
		Severity:        decision.Severity,
		Rule:            decision.Rule,
		CurrentTicketID: sc.Schedule.CurrentTicketID,
	}, nil
}

// fanOut persists one notification row per recipient, then queues the
// best-effort push. The rows are the suppression ledger, so they must be
// committed here, before the pass moves on; the worker pool only ever
// sees already-persisted notifications. Returns how many recipients got
// a row.
func (e *Engine) fanOut(ctx context.Context, recipients []model.User, job notification.Job) int {
	notified := 0
	for _, user := range recipients {
		row := &model.Notification{
			UserID:        user.ID,
			Title:         job.Title,
			Message:       job.Message,
			Type:          job.Type,
			ReferenceType: job.ReferenceType,
			ReferenceID:   job.ReferenceID,
		}
		if err := e.store.CreateNotification(ctx, row); err != nil {
			e.logger.WithError(err).WithField("user", user.ID).Error("failed to persist notification")
			continue
		}
		notified++

		j := job
		j.UserID = user.ID
		e.notifier.Dispatch(j)
	}
	return notified
}

func overdueDescription(status ScheduleStatus) string {
	return fmt.Sprintf("Preventive maintenance overdue for %s (%s): %.1f %s past due.",
		status.EquipmentName, status.EquipmentCode, -status.Estimate.Remaining, status.UsageUnit)
}

func overdueJob(status ScheduleStatus, record *model.MaintenanceRecord) notification.Job {
	return notification.Job{
		Title: fmt.Sprintf("Maintenance overdue: %s", status.EquipmentName),
		Message: fmt.Sprintf("%s (%s) is %.1f %s past its maintenance interval. Work order %s has been created.",
			status.EquipmentName, status.EquipmentCode, -status.Estimate.Remaining, status.UsageUnit, record.WorkOrderCode),
		Type:          string(SeverityOverdue),
		ReferenceType: model.RefRecord,
		ReferenceID:   record.ID,
	}
}

func scheduleJob(status ScheduleStatus) notification.Job {
	var msg string
	if status.Estimate.HasDaysEstimate && !math.IsInf(status.Estimate.EstimatedDaysToDue, 1) {
		msg = fmt.Sprintf("%s (%s) has %.1f %s left before maintenance, roughly %.1f days at the current usage rate.",
			status.EquipmentName, status.EquipmentCode, status.Estimate.Remaining, status.UsageUnit, status.Estimate.EstimatedDaysToDue)
	} else {
		msg = fmt.Sprintf("%s (%s) has %.1f %s left before maintenance is due.",
			status.EquipmentName, status.EquipmentCode, status.Estimate.Remaining, status.UsageUnit)
	}

	title := fmt.Sprintf("Maintenance approaching: %s", status.EquipmentName)
	if status.Severity == SeverityWarning {
		title = fmt.Sprintf("Maintenance upcoming: %s", status.EquipmentName)
	}

	return notification.Job{
		Title:         title,
		Message:       msg,
		Type:          string(status.Severity),
		ReferenceType: model.RefSchedule,
		ReferenceID:   status.ScheduleID,
	}
}
