package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"booking-service/internal/models"

	"github.com/lib/pq"
)

var bookingColumnNames = []string{
	"id", "booking_id",
	"property_id", "property_name", "guest_name", "guest_phone",
	"owner_name", "owner_phone", "admin_phone",
	"checkin_datetime", "checkout_datetime", "persons",
	"advance_amount", "total_amount", "admin_commission", "referrer_commission", "customer_discount",
	"referral_code", "referral_type", "referral_user_id", "commission_status",
	"order_id", "transaction_id", "payment_status", "booking_status",
	"refund_reason", "refund_id", "refund_processed_by",
	"refund_requested_at", "refund_processed_at", "refund_completed_at",
	"notified_customer", "notified_owner", "notified_admin", "alerted_admin", "admin_alerted_at",
	"qr_payload", "confirmed_at", "cancelled_at", "ticket_generated_at",
	"created_at", "updated_at",
}

var bookingColumns = strings.Join(bookingColumnNames, ", ")

// CreateBooking inserts a booking awaiting payment.
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			booking_id, property_id, property_name, guest_name, guest_phone,
			owner_name, owner_phone, admin_phone, checkin_datetime, checkout_datetime, persons,
			advance_amount, total_amount, admin_commission, referrer_commission, customer_discount,
			referral_code, referral_type, referral_user_id, commission_status,
			payment_status, booking_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		b.BookingID, b.PropertyID, b.PropertyName, b.GuestName, b.GuestPhone,
		b.OwnerName, b.OwnerPhone, b.AdminPhone, b.CheckIn, b.CheckOut, b.Persons,
		b.AdvanceAmount, b.TotalAmount, b.AdminCommission, b.ReferrerCommission, b.CustomerDiscount,
		b.ReferralCode, b.ReferralType, b.ReferralUserID, b.CommissionStatus,
		b.PaymentStatus, b.BookingStatus,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// GetBooking retrieves a booking by its external id
func (s *Store) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b,
		"SELECT "+bookingColumns+" FROM bookings WHERE booking_id = $1", bookingID)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// GetBookingByOrderID retrieves the booking a gateway order belongs to
func (s *Store) GetBookingByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b,
		"SELECT "+bookingColumns+" FROM bookings WHERE order_id = $1", orderID)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// AssignOrderID attaches a gateway order id to a booking that has not been
// paid yet. A collision with another booking's order id is reported as
// ErrDuplicateOrderID so the caller can regenerate.
func (s *Store) AssignOrderID(ctx context.Context, bookingID, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET order_id = $1, updated_at = NOW()
		WHERE booking_id = $2
		  AND booking_status = $3
		  AND payment_status <> $4`,
		orderID, bookingID, models.BookingStatusPaymentPending, models.PaymentStatusSuccess)
	if err != nil {
		if isUniqueViolation(err, "") {
			return false, ErrDuplicateOrderID
		}
		return false, fmt.Errorf("failed to assign order id: %w", err)
	}
	return affected(res)
}

// ApplyPaymentResult records a gateway result against the booking owning
// orderID. A SUCCESS result moves the booking to PAYMENT_SUCCESS only from
// PAYMENT_PENDING; no result ever overwrites a settled SUCCESS. The returned
// bool tells the caller whether this call changed the row. When it did not,
// the current row is returned instead.
func (s *Store) ApplyPaymentResult(ctx context.Context, orderID, paymentStatus, transactionID string) (*models.Booking, bool, error) {
	var (
		b   models.Booking
		err error
	)

	if paymentStatus == models.PaymentStatusSuccess {
		err = s.db.GetContext(ctx, &b, `
			UPDATE bookings
			SET payment_status = $2, booking_status = $3,
			    transaction_id = COALESCE(NULLIF($4, ''), transaction_id), updated_at = NOW()
			WHERE order_id = $1
			  AND payment_status <> $2
			  AND booking_status = $5
			RETURNING `+bookingColumns,
			orderID, models.PaymentStatusSuccess, models.BookingStatusPaymentSuccess,
			transactionID, models.BookingStatusPaymentPending)
	} else {
		err = s.db.GetContext(ctx, &b, `
			UPDATE bookings
			SET payment_status = $2,
			    transaction_id = COALESCE(NULLIF($3, ''), transaction_id), updated_at = NOW()
			WHERE order_id = $1
			  AND payment_status <> $4
			RETURNING `+bookingColumns,
			orderID, paymentStatus, transactionID, models.PaymentStatusSuccess)
	}

	if err == nil {
		return &b, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to apply payment result: %w", err)
	}

	current, err := s.GetBookingByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// TransitionStatus moves a booking from one status to another, doing nothing
// when it is no longer in the expected source state.
func (s *Store) TransitionStatus(ctx context.Context, bookingID, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET booking_status = $1, updated_at = NOW() WHERE booking_id = $2 AND booking_status = $3",
		to, bookingID, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition %s -> %s: %w", from, to, err)
	}
	return affected(res)
}

// MarkTicketGenerated stores the QR payload and moves a confirmed booking to
// TICKET_GENERATED.
func (s *Store) MarkTicketGenerated(ctx context.Context, bookingID, qrPayload string) (*models.Booking, bool, error) {
	var b models.Booking
	err := s.db.GetContext(ctx, &b, `
		UPDATE bookings
		SET booking_status = $2, qr_payload = $3, ticket_generated_at = NOW(), updated_at = NOW()
		WHERE booking_id = $1 AND booking_status = $4
		RETURNING `+bookingColumns,
		bookingID, models.BookingStatusTicketGenerated, qrPayload, models.BookingStatusOwnerConfirmed)
	if err == nil {
		return &b, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to mark ticket generated: %w", err)
	}
	return nil, false, nil
}

// ListBookingsByStatus returns bookings in any of statuses, newest refund
// request first. A non-positive limit means no limit.
func (s *Store) ListBookingsByStatus(ctx context.Context, statuses []string, limit int) ([]models.Booking, error) {
	query := "SELECT " + bookingColumns + ` FROM bookings
		WHERE booking_status = ANY($1)
		ORDER BY refund_requested_at DESC NULLS LAST, created_at DESC`
	args := []interface{}{pq.Array(statuses)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	bookings := []models.Booking{}
	if err := s.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
