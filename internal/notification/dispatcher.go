// Package notification pushes alerts to operators' browsers. The in-app
// notification row is persisted by the caller before a job is queued here;
// the worker pool only does best-effort web push, so a slow or backlogged
// pool never delays or loses the persisted record.
package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"equipment-pm-backend/internal/model"
)

// Job is one fully-formed, already-persisted notification for one
// recipient.
type Job struct {
	UserID        int64  `json:"-"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Type          string `json:"type"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   int64  `json:"reference_id"`
}

// Sender abstracts web push delivery so tests can intercept it.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// webPushSender delivers through the webpush library.
type webPushSender struct{}

func (webPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Dispatcher runs a pool of workers draining a notification job queue.
type Dispatcher struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
	logger  *logrus.Logger
}

// NewDispatcher creates a dispatcher with the given worker count.
func NewDispatcher(size int, db *gorm.DB, webpushOptions *webpush.Options, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		size:    size,
		jobs:    make(chan Job, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  webPushSender{},
		logger:  logger,
	}
}

// SetSender replaces the delivery mechanism; intended for tests.
func (d *Dispatcher) SetSender(s Sender) {
	d.sender = s
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		go d.worker(ctx, i)
	}
}

// Dispatch queues one notification job.
func (d *Dispatcher) Dispatch(job Job) {
	d.jobs <- job
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	d.logger.WithField("worker", id).Debug("notification worker started")
	for {
		select {
		case job := <-d.jobs:
			d.deliver(ctx, job)
		case <-ctx.Done():
			d.logger.WithField("worker", id).Debug("notification worker shutting down")
			return
		}
	}
}

// deliver pushes the job to the recipient's subscriptions. Any failure is
// logged and swallowed; one bad recipient never affects the rest of the
// batch.
func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	var subs []model.PushSubscription
	if err := d.db.WithContext(ctx).Where("user_id = ?", job.UserID).Find(&subs).Error; err != nil {
		d.logger.WithError(err).WithField("user", job.UserID).Error("failed to fetch push subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		d.logger.WithError(err).Error("failed to marshal push payload")
		return
	}

	for _, sub := range subs {
		d.push(ctx, sub, payload)
	}
}

func (d *Dispatcher) push(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := d.sender.Send(payload, wpSub, d.webpush)
	if err != nil {
		d.logger.WithError(err).WithField("endpoint", sub.Endpoint).Warn("push delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		d.logger.WithField("endpoint", sub.Endpoint).Info("push subscription expired, deleting")
		if err := d.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			d.logger.WithError(err).WithField("endpoint", sub.Endpoint).Warn("failed to delete expired subscription")
		}
	}
}
