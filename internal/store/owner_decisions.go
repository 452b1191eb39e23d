package store

import (
	"context"
	"fmt"

	"booking-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// DecisionResult is what an owner decision transaction did.
type DecisionResult struct {
	Booking *models.Booking
	// Applied is false when the booking had already left
	// BOOKING_REQUEST_SENT_TO_OWNER; Booking then holds the current row.
	Applied bool
	// LedgerWritten is true when a referral transaction row was appended.
	LedgerWritten bool
}

// ConfirmByOwner moves a booking to OWNER_CONFIRMED, settles a pending
// commission and credits the referrer, all in one transaction. A replay finds
// the booking already moved on and changes nothing, so the referrer can never
// be credited twice.
func (s *Store) ConfirmByOwner(ctx context.Context, bookingID string) (*DecisionResult, error) {
	return s.decide(ctx, bookingID, models.BookingStatusOwnerConfirmed, "confirmed_at",
		models.CommissionStatusConfirmed, models.TransactionStatusCompleted, true)
}

// CancelByOwner moves a booking to OWNER_CANCELLED and voids a pending
// commission. The referrer gets a failed ledger row and no balance change.
func (s *Store) CancelByOwner(ctx context.Context, bookingID string) (*DecisionResult, error) {
	return s.decide(ctx, bookingID, models.BookingStatusOwnerCancelled, "cancelled_at",
		models.CommissionStatusCancelled, models.TransactionStatusFailed, false)
}

func (s *Store) decide(
	ctx context.Context,
	bookingID, target, stampColumn, commissionTarget, txStatus string,
	credit bool,
) (*DecisionResult, error) {
	result := &DecisionResult{}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current models.Booking
		err := tx.GetContext(ctx, &current,
			"SELECT "+bookingColumns+" FROM bookings WHERE booking_id = $1 FOR UPDATE", bookingID)
		if err != nil {
			return notFound(err)
		}

		if current.BookingStatus != models.BookingStatusRequestSentToOwner {
			result.Booking = &current
			return nil
		}

		var updated models.Booking
		err = tx.GetContext(ctx, &updated, `
			UPDATE bookings
			SET booking_status = $2,
			    `+stampColumn+` = NOW(),
			    commission_status = CASE WHEN commission_status = $3 THEN $4 ELSE commission_status END,
			    updated_at = NOW()
			WHERE booking_id = $1 AND booking_status = $5
			RETURNING `+bookingColumns,
			bookingID, target, models.CommissionStatusPending, commissionTarget,
			models.BookingStatusRequestSentToOwner)
		if err != nil {
			return fmt.Errorf("failed to apply owner decision: %w", err)
		}
		result.Booking = &updated
		result.Applied = true

		if current.CommissionStatus != models.CommissionStatusPending || !current.HasReferrer() {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO referral_transactions (referral_user_id, booking_id, amount, type, status, commission_status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			*current.ReferralUserID, bookingID, current.ReferrerCommission,
			models.TransactionTypeEarning, txStatus, commissionTarget)
		if err != nil {
			return fmt.Errorf("failed to append referral transaction: %w", err)
		}
		result.LedgerWritten = true

		if !credit {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE referral_users SET balance = balance + $1 WHERE id = $2",
			current.ReferrerCommission, *current.ReferralUserID)
		if err != nil {
			return fmt.Errorf("failed to credit referrer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
