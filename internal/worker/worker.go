package worker

import (
	"context"
	"time"

	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// Retrier runs one queued notification attempt.
// *service.NotificationDispatcher implements it.
type Retrier interface {
	Retry(ctx context.Context, msg models.OutboundMessage, attempt int) error
}

// NotificationWorker consumes the notification retry topic
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	retrier      Retrier
	now          func() time.Time
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, retrier Retrier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		retrier:  retrier,
		now:      time.Now,
		logger:   util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnNotificationRetry(w.handleRetry)
	w.eventHandler.OnBookingEvent(w.logBookingEvent)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// handleRetry holds the message until its NotBefore time, then makes the
// next attempt.
func (w *NotificationWorker) handleRetry(ctx context.Context, event *models.NotificationRetryEvent) error {
	if wait := event.NotBefore.Sub(w.now()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	w.logger.Info("Retrying notification",
		zap.String("booking_id", event.Message.BookingID),
		zap.String("recipient", event.Message.Recipient),
		zap.Int("attempt", event.Attempt+1),
		zap.String("last_error", event.LastError))

	return w.retrier.Retry(ctx, event.Message, event.Attempt)
}

func (w *NotificationWorker) logBookingEvent(_ context.Context, event *models.BookingEvent) error {
	w.logger.Debug("Ignoring booking event on retry topic",
		zap.String("type", event.EventType),
		zap.String("booking_id", event.BookingID))
	return nil
}

// Sweeper runs one pending-payment sweep.
// *service.MonitoringService implements it.
type Sweeper interface {
	CheckPendingPayments(ctx context.Context) (*service.SweepResult, error)
}

// MonitorWorker runs the pending-payment sweep on a fixed interval
type MonitorWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewMonitorWorker creates a new monitor worker
func NewMonitorWorker(sweeper Sweeper, interval time.Duration) *MonitorWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MonitorWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (mw *MonitorWorker) Start(ctx context.Context) error {
	mw.logger.Info("Starting monitor worker", zap.Duration("interval", mw.interval))

	ticker := time.NewTicker(mw.interval)
	defer ticker.Stop()

	mw.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			mw.logger.Info("Stopping monitor worker")
			return ctx.Err()
		case <-ticker.C:
			mw.sweep(ctx)
		}
	}
}

func (mw *MonitorWorker) sweep(ctx context.Context) {
	res, err := mw.sweeper.CheckPendingPayments(ctx)
	if err != nil {
		mw.logger.Error("Pending payment sweep failed", zap.Error(err))
		return
	}
	if res.Alerted > 0 {
		mw.logger.Info("Pending payment sweep finished",
			zap.Int("found", res.Found),
			zap.Int("alerted", res.Alerted))
	}
}
