package service

import (
	"context"
	"time"

	"booking-service/config"
	"booking-service/internal/messages"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

const (
	sweepLockKey          = "monitor:pending-payments"
	sweepLockTTL          = 5 * time.Minute
	failedNotificationCap = 50
	// ownerHandoffGrace is how long a paid booking may sit in
	// PAYMENT_SUCCESS before it is reported as stuck.
	ownerHandoffGrace = 5 * time.Minute
)

// SweepResult summarises one pending-payment sweep.
type SweepResult struct {
	Found   int  `json:"found"`
	Alerted int  `json:"alerted"`
	Skipped bool `json:"skipped"`
}

// MonitoringService looks for bookings stuck waiting on payment and for
// notifications that never got through.
type MonitoringService struct {
	store      MonitoringRepository
	dispatcher *NotificationDispatcher
	locker     Locker
	business   config.BusinessConfig
	now        func() time.Time
	logger     *zap.Logger
}

// NewMonitoringService creates a new monitoring service. locker may be nil.
func NewMonitoringService(
	store MonitoringRepository,
	dispatcher *NotificationDispatcher,
	locker Locker,
	business config.BusinessConfig,
) *MonitoringService {
	return &MonitoringService{
		store:      store,
		dispatcher: dispatcher,
		locker:     locker,
		business:   business,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// CheckPendingPayments alerts the admin once about every booking whose
// payment has been pending longer than the payment timeout.
func (ms *MonitoringService) CheckPendingPayments(ctx context.Context) (*SweepResult, error) {
	ctx, span := util.StartSpan(ctx, "MonitoringService.CheckPendingPayments")
	defer span.End()

	start := time.Now()
	defer func() {
		util.MonitorSweepDuration.Observe(time.Since(start).Seconds())
	}()

	if ms.locker != nil {
		acquired, err := ms.locker.AcquireLock(ctx, sweepLockKey, sweepLockTTL)
		if err != nil {
			ms.logger.Warn("Sweep lock unavailable, running unlocked", zap.Error(err))
		} else if !acquired {
			ms.logger.Debug("Pending-payment sweep already running elsewhere")
			return &SweepResult{Skipped: true}, nil
		} else {
			defer func() {
				if err := ms.locker.ReleaseLock(ctx, sweepLockKey); err != nil {
					ms.logger.Warn("Failed to release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	now := ms.now()
	bookings, err := ms.store.ListPendingPaymentAlerts(ctx, now.Add(-ms.business.PaymentTimeout))
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Found: len(bookings)}
	timeoutMinutes := int(ms.business.PaymentTimeout.Minutes())

	for i := range bookings {
		b := &bookings[i]
		minutes := int(now.Sub(b.CreatedAt).Minutes())

		delivery := ms.dispatcher.Notify(ctx, models.OutboundMessage{
			BookingID: b.BookingID,
			Recipient: models.RecipientAdmin,
			Phone:     adminPhone(b, ms.business),
			Body:      messages.PendingPaymentAlert(messages.NewView(b), minutes, timeoutMinutes),
		})
		if !delivery.Delivered && !delivery.Queued {
			ms.logger.Error("Failed to send pending payment alert",
				zap.String("booking_id", b.BookingID),
				zap.Error(delivery.Err))
			continue
		}

		marked, err := ms.store.MarkAdminAlerted(ctx, b.BookingID)
		if err != nil {
			ms.logger.Error("Failed to mark admin alerted",
				zap.String("booking_id", b.BookingID),
				zap.Error(err))
			continue
		}
		if marked {
			result.Alerted++
			util.PendingPaymentAlertsTotal.Inc()
			ms.logger.Info("Admin alerted for pending payment",
				zap.String("booking_id", b.BookingID),
				zap.Int("minutes_pending", minutes))
		}
	}

	return result, nil
}

// StuckBookings lists every booking still waiting on payment, plus paid
// bookings whose owner request was never recorded.
func (ms *MonitoringService) StuckBookings(ctx context.Context) ([]models.Booking, error) {
	return ms.store.ListStuckBookings(ctx, ms.now().Add(-ownerHandoffGrace))
}

// FailedNotifications lists the latest paid bookings that have a recipient
// who was never reached.
func (ms *MonitoringService) FailedNotifications(ctx context.Context) ([]models.Booking, error) {
	return ms.store.ListFailedNotifications(ctx, failedNotificationCap)
}
