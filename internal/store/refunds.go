package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"booking-service/internal/models"
)

// RequestRefund moves an owner-cancelled booking to REFUND_REQUIRED.
func (s *Store) RequestRefund(ctx context.Context, bookingID, reason string) (*models.Booking, bool, error) {
	return s.refundTransition(ctx, bookingID, `
		UPDATE bookings
		SET booking_status = $2, refund_reason = $3, refund_requested_at = NOW(), updated_at = NOW()
		WHERE booking_id = $1 AND booking_status = $4
		RETURNING `+bookingColumns,
		models.BookingStatusRefundRequired, reason, models.BookingStatusOwnerCancelled)
}

// StartRefund records the gateway refund reference and moves the booking to
// REFUND_INITIATED.
func (s *Store) StartRefund(ctx context.Context, bookingID, refundID, processedBy string) (*models.Booking, bool, error) {
	return s.refundTransition(ctx, bookingID, `
		UPDATE bookings
		SET booking_status = $2, refund_id = $3, refund_processed_by = $4,
		    refund_processed_at = NOW(), updated_at = NOW()
		WHERE booking_id = $1 AND booking_status = $5
		RETURNING `+bookingColumns,
		models.BookingStatusRefundInitiated, refundID, processedBy, models.BookingStatusRefundRequired)
}

// CompleteRefund closes a refund. Without force the booking must be in
// REFUND_INITIATED; force is the manual admin override and accepts any state
// except an already completed refund.
func (s *Store) CompleteRefund(ctx context.Context, bookingID string, force bool) (*models.Booking, bool, error) {
	return s.refundTransition(ctx, bookingID, `
		UPDATE bookings
		SET booking_status = $2, refund_completed_at = NOW(), updated_at = NOW()
		WHERE booking_id = $1
		  AND booking_status <> $2
		  AND ($3 OR booking_status = $4)
		RETURNING `+bookingColumns,
		models.BookingStatusRefundCompleted, force, models.BookingStatusRefundInitiated)
}

// refundTransition runs a guarded UPDATE ... RETURNING with bookingID as $1.
// When the guard does not match, the current row is returned with
// applied=false, or ErrNotFound when the booking does not exist.
func (s *Store) refundTransition(ctx context.Context, bookingID, query string, args ...interface{}) (*models.Booking, bool, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, query, append([]interface{}{bookingID}, args...)...)
	if err == nil {
		return &b, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("refund transition failed: %w", err)
	}

	current, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}
