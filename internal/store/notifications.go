package store

import (
	"context"
	"fmt"
	"time"

	"booking-service/internal/models"
)

var notifiedColumn = map[string]string{
	models.RecipientCustomer: "notified_customer",
	models.RecipientOwner:    "notified_owner",
	models.RecipientAdmin:    "notified_admin",
}

// AppendNotificationLog records one delivery attempt.
func (s *Store) AppendNotificationLog(ctx context.Context, entry *models.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (booking_id, recipient_type, phone_number, success, attempts, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		entry.BookingID, entry.RecipientType, entry.PhoneNumber,
		entry.Success, entry.Attempts, entry.ErrorMessage,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListNotificationLogs returns the attempts recorded for a booking, oldest first.
func (s *Store) ListNotificationLogs(ctx context.Context, bookingID string) ([]models.NotificationLog, error) {
	logs := []models.NotificationLog{}
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, booking_id, recipient_type, phone_number, success, attempts, error_message, created_at
		FROM notification_logs WHERE booking_id = $1 ORDER BY created_at, id`, bookingID)
	return logs, err
}

// UpdateNotificationFlags writes the outcome for all three recipients in one
// statement. A flag that is already true stays true.
func (s *Store) UpdateNotificationFlags(ctx context.Context, bookingID string, customer, owner, admin bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET notified_customer = notified_customer OR $2,
		    notified_owner = notified_owner OR $3,
		    notified_admin = notified_admin OR $4,
		    updated_at = NOW()
		WHERE booking_id = $1`,
		bookingID, customer, owner, admin)
	if err != nil {
		return fmt.Errorf("failed to update notification flags: %w", err)
	}
	return nil
}

// MarkRecipientNotified sets a single recipient flag after a late retry
// succeeds.
func (s *Store) MarkRecipientNotified(ctx context.Context, bookingID, recipient string) error {
	column, ok := notifiedColumn[recipient]
	if !ok {
		return fmt.Errorf("unknown recipient type %q", recipient)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET "+column+" = TRUE, updated_at = NOW() WHERE booking_id = $1", bookingID)
	return err
}

// ListPendingPaymentAlerts returns bookings stuck in payment that were
// created before threshold and have not yet been reported to the admin.
func (s *Store) ListPendingPaymentAlerts(ctx context.Context, threshold time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.db.SelectContext(ctx, &bookings, "SELECT "+bookingColumns+` FROM bookings
		WHERE payment_status = $1
		  AND booking_status = $2
		  AND created_at < $3
		  AND alerted_admin IS NOT TRUE
		ORDER BY created_at`,
		models.PaymentStatusPending, models.BookingStatusPaymentPending, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return bookings, nil
}

// MarkAdminAlerted flips alerted_admin once. Returns false when another
// sweep got there first.
func (s *Store) MarkAdminAlerted(ctx context.Context, bookingID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET alerted_admin = TRUE, admin_alerted_at = NOW(), updated_at = NOW()
		WHERE booking_id = $1 AND alerted_admin IS NOT TRUE`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark admin alerted: %w", err)
	}
	return affected(res)
}

// ListStuckBookings is the unfiltered view of bookings waiting on payment,
// together with paid bookings left in PAYMENT_SUCCESS since before
// handoffBefore.
func (s *Store) ListStuckBookings(ctx context.Context, handoffBefore time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.db.SelectContext(ctx, &bookings, "SELECT "+bookingColumns+` FROM bookings
		WHERE (payment_status = $1 AND booking_status = $2)
		   OR (booking_status = $3 AND updated_at < $4)
		ORDER BY created_at DESC`,
		models.PaymentStatusPending, models.BookingStatusPaymentPending,
		models.BookingStatusPaymentSuccess, handoffBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck bookings: %w", err)
	}
	return bookings, nil
}

// ListFailedNotifications returns paid bookings with at least one recipient
// that was never reached, most recent first.
func (s *Store) ListFailedNotifications(ctx context.Context, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.db.SelectContext(ctx, &bookings, "SELECT "+bookingColumns+` FROM bookings
		WHERE payment_status = $1
		  AND (notified_customer IS NOT TRUE OR notified_owner IS NOT TRUE OR notified_admin IS NOT TRUE)
		ORDER BY created_at DESC
		LIMIT $2`,
		models.PaymentStatusSuccess, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed notifications: %w", err)
	}
	return bookings, nil
}
