package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/store"
)

// BookingRepository is the booking aggregate as the workflows see it.
// *store.Store implements every repository interface in this file.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	GetBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	AssignOrderID(ctx context.Context, bookingID, orderID string) (bool, error)
	ApplyPaymentResult(ctx context.Context, orderID, paymentStatus, transactionID string) (*models.Booking, bool, error)
	TransitionStatus(ctx context.Context, bookingID, from, to string) (bool, error)
	MarkTicketGenerated(ctx context.Context, bookingID, qrPayload string) (*models.Booking, bool, error)
	ListBookingsByStatus(ctx context.Context, statuses []string, limit int) ([]models.Booking, error)
}

// DecisionRepository applies owner decisions transactionally.
type DecisionRepository interface {
	ConfirmByOwner(ctx context.Context, bookingID string) (*store.DecisionResult, error)
	CancelByOwner(ctx context.Context, bookingID string) (*store.DecisionResult, error)
}

// RefundRepository drives the refund sub-machine.
type RefundRepository interface {
	RequestRefund(ctx context.Context, bookingID, reason string) (*models.Booking, bool, error)
	StartRefund(ctx context.Context, bookingID, refundID, processedBy string) (*models.Booking, bool, error)
	CompleteRefund(ctx context.Context, bookingID string, force bool) (*models.Booking, bool, error)
}

// NotificationRepository records deliveries.
type NotificationRepository interface {
	AppendNotificationLog(ctx context.Context, entry *models.NotificationLog) error
	UpdateNotificationFlags(ctx context.Context, bookingID string, customer, owner, admin bool) error
	MarkRecipientNotified(ctx context.Context, bookingID, recipient string) error
}

// MonitoringRepository backs the sweep and its reports.
type MonitoringRepository interface {
	ListPendingPaymentAlerts(ctx context.Context, threshold time.Time) ([]models.Booking, error)
	MarkAdminAlerted(ctx context.Context, bookingID string) (bool, error)
	ListStuckBookings(ctx context.Context, handoffBefore time.Time) ([]models.Booking, error)
	ListFailedNotifications(ctx context.Context, limit int) ([]models.Booking, error)
}

// ReferralRepository resolves referral codes.
type ReferralRepository interface {
	GetReferralUserByCode(ctx context.Context, code string) (*models.ReferralUser, error)
}

// CommissionRepository serves the commission reports.
type CommissionRepository interface {
	GetCommissionSummary(ctx context.Context) (*store.CommissionSummary, error)
	ListBookingsByCommissionStatus(ctx context.Context, status string) ([]models.Booking, error)
	ListReferrerBookings(ctx context.Context, referralUserID int64) ([]models.Booking, *store.ReferrerSummary, error)
	ListPayableCommissions(ctx context.Context) ([]store.PayableCommission, error)
	GetCommissionReport(ctx context.Context, start, end *time.Time) ([]store.CommissionReportRow, error)
}

// Messenger delivers one outbound message. *whatsapp.Client implements it.
type Messenger interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// EventPublisher publishes lifecycle events. *broker.EventPublisher
// implements it together with RetryScheduler.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event *models.BookingEvent) error
}

// RetryScheduler hands a failed message to the background retry queue.
type RetryScheduler interface {
	ScheduleNotificationRetry(ctx context.Context, msg models.OutboundMessage, attempt int, delay time.Duration, lastErr error) error
}

// Locker serialises work across instances.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Deduplicator remembers delivery ids that were already handled.
type Deduplicator interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unclaim(ctx context.Context, key string) error
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// loadBooking maps the store's not-found to ErrBookingNotFound.
func loadBooking(ctx context.Context, repo BookingRepository, bookingID string) (*models.Booking, error) {
	b, err := repo.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return b, nil
}
