package service

import (
	"context"
	"errors"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

var errNoPhone = errors.New("recipient has no phone number")

// Delivery is the outcome of dispatching one message.
type Delivery struct {
	Delivered bool
	// Queued is true when the message failed inline and a background retry
	// was scheduled.
	Queued   bool
	Attempts int
	Err      error
}

// NotificationDispatcher delivers outbound messages with a bounded number of
// attempts. The first attempt runs inline; later attempts go to the retry
// queue when one is configured, otherwise they run inline after a delay.
// Every attempt is recorded in the notification log.
type NotificationDispatcher struct {
	messenger   Messenger
	store       NotificationRepository
	retries     RetryScheduler
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewNotificationDispatcher creates a dispatcher. retries may be nil.
func NewNotificationDispatcher(
	messenger Messenger,
	store NotificationRepository,
	retries RetryScheduler,
	maxAttempts int,
	retryDelay time.Duration,
) *NotificationDispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &NotificationDispatcher{
		messenger:   messenger,
		store:       store,
		retries:     retries,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      util.GetLogger(),
	}
}

// DispatchAll delivers one message per recipient of a booking event and
// then writes the three notified flags in one update. Flags only move
// from false to true.
func (d *NotificationDispatcher) DispatchAll(ctx context.Context, bookingID string, msgs ...models.OutboundMessage) map[string]Delivery {
	ctx, span := util.StartSpan(ctx, "NotificationDispatcher.DispatchAll", util.BookingAttr(bookingID))
	defer span.End()

	results := make(map[string]Delivery, len(msgs))
	for _, msg := range msgs {
		msg.BookingID = bookingID
		msg.Tracked = true
		results[msg.Recipient] = d.Notify(ctx, msg)
	}

	err := d.store.UpdateNotificationFlags(ctx, bookingID,
		results[models.RecipientCustomer].Delivered,
		results[models.RecipientOwner].Delivered,
		results[models.RecipientAdmin].Delivered)
	if err != nil {
		d.logger.Error("Failed to update notification flags",
			zap.String("booking_id", bookingID),
			zap.Error(err))
	}
	return results
}

// Notify delivers a single message. It never returns an error; the
// outcome is in the Delivery.
func (d *NotificationDispatcher) Notify(ctx context.Context, msg models.OutboundMessage) Delivery {
	if msg.Phone == "" {
		d.record(ctx, msg, 1, errNoPhone)
		return Delivery{Attempts: 1, Err: errNoPhone}
	}

	err := d.attempt(ctx, msg, 1)
	if err == nil {
		return Delivery{Delivered: true, Attempts: 1}
	}
	if d.maxAttempts == 1 {
		return Delivery{Attempts: 1, Err: err}
	}

	if d.retries != nil {
		schedErr := d.retries.ScheduleNotificationRetry(ctx, msg, 1, d.retryDelay, err)
		if schedErr == nil {
			util.NotificationRetriesScheduled.Inc()
			d.logger.Info("Notification retry scheduled",
				zap.String("booking_id", msg.BookingID),
				zap.String("recipient", msg.Recipient))
			return Delivery{Queued: true, Attempts: 1, Err: err}
		}
		d.logger.Warn("Retry queue unavailable, retrying inline",
			zap.String("booking_id", msg.BookingID),
			zap.Error(schedErr))
	}

	return d.retryInline(ctx, msg, 1, err)
}

// Retry runs one queued attempt. attempt is the number of attempts already
// made. A failure is re-queued until the attempt budget is spent; when the
// queue rejects it the rest of the budget runs inline.
func (d *NotificationDispatcher) Retry(ctx context.Context, msg models.OutboundMessage, attempt int) error {
	ctx, span := util.StartSpan(ctx, "NotificationDispatcher.Retry", util.BookingAttr(msg.BookingID))
	defer span.End()

	next := attempt + 1
	err := d.attempt(ctx, msg, next)
	if err == nil {
		d.markDelivered(ctx, msg)
		return nil
	}

	if next >= d.maxAttempts {
		d.logger.Error("Notification failed after all attempts",
			zap.String("booking_id", msg.BookingID),
			zap.String("recipient", msg.Recipient),
			zap.Int("attempts", next),
			zap.Error(err))
		return nil
	}

	if d.retries != nil {
		schedErr := d.retries.ScheduleNotificationRetry(ctx, msg, next, d.retryDelay, err)
		if schedErr == nil {
			util.NotificationRetriesScheduled.Inc()
			return nil
		}
		d.logger.Warn("Retry queue unavailable, retrying inline",
			zap.String("booking_id", msg.BookingID),
			zap.String("recipient", msg.Recipient),
			zap.Error(schedErr))
	}

	if delivery := d.retryInline(ctx, msg, next, err); delivery.Delivered {
		d.markDelivered(ctx, msg)
	}
	return ctx.Err()
}

// markDelivered sets the recipient flag for a tracked message delivered
// after its booking event was dispatched. A failed write is logged, never
// returned, so the message is not sent again.
func (d *NotificationDispatcher) markDelivered(ctx context.Context, msg models.OutboundMessage) {
	if !msg.Tracked {
		return
	}
	if err := d.store.MarkRecipientNotified(ctx, msg.BookingID, msg.Recipient); err != nil {
		d.logger.Error("Delivered notification could not be marked",
			zap.String("booking_id", msg.BookingID),
			zap.String("recipient", msg.Recipient),
			zap.Error(err))
	}
}

func (d *NotificationDispatcher) retryInline(ctx context.Context, msg models.OutboundMessage, done int, lastErr error) Delivery {
	for n := done + 1; n <= d.maxAttempts; n++ {
		select {
		case <-ctx.Done():
			return Delivery{Attempts: n - 1, Err: ctx.Err()}
		case <-time.After(d.retryDelay):
		}

		if lastErr = d.attempt(ctx, msg, n); lastErr == nil {
			return Delivery{Delivered: true, Attempts: n}
		}
	}

	d.logger.Error("Notification failed after all attempts",
		zap.String("booking_id", msg.BookingID),
		zap.String("recipient", msg.Recipient),
		zap.Int("attempts", d.maxAttempts),
		zap.Error(lastErr))
	return Delivery{Attempts: d.maxAttempts, Err: lastErr}
}

// attempt sends once and logs the result as attempt number n.
func (d *NotificationDispatcher) attempt(ctx context.Context, msg models.OutboundMessage, n int) error {
	err := d.messenger.Send(ctx, msg)
	d.record(ctx, msg, n, err)

	if err != nil {
		util.NotificationsSentTotal.WithLabelValues(msg.Recipient, "failed").Inc()
		d.logger.Warn("Notification attempt failed",
			zap.String("booking_id", msg.BookingID),
			zap.String("recipient", msg.Recipient),
			zap.Int("attempt", n),
			zap.Error(err))
		return err
	}

	util.NotificationsSentTotal.WithLabelValues(msg.Recipient, "success").Inc()
	d.logger.Info("Notification sent",
		zap.String("booking_id", msg.BookingID),
		zap.String("recipient", msg.Recipient),
		zap.Int("attempt", n))
	return nil
}

func (d *NotificationDispatcher) record(ctx context.Context, msg models.OutboundMessage, n int, sendErr error) {
	entry := &models.NotificationLog{
		BookingID:     msg.BookingID,
		RecipientType: msg.Recipient,
		PhoneNumber:   msg.Phone,
		Success:       sendErr == nil,
		Attempts:      n,
	}
	if sendErr != nil {
		errMsg := sendErr.Error()
		entry.ErrorMessage = &errMsg
	}
	if err := d.store.AppendNotificationLog(ctx, entry); err != nil {
		d.logger.Error("Failed to log notification attempt",
			zap.String("booking_id", msg.BookingID),
			zap.Error(err))
	}
}
