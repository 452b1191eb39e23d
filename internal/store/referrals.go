package store

import (
	"context"
	"fmt"
	"time"

	"booking-service/internal/models"
)

// GetReferralUserByCode looks a referral code up case-insensitively.
func (s *Store) GetReferralUserByCode(ctx context.Context, code string) (*models.ReferralUser, error) {
	var u models.ReferralUser
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, mobile_number, referral_code, referral_type, status, balance, created_at
		FROM referral_users WHERE LOWER(referral_code) = LOWER($1)`, code)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ListReferralTransactions returns the ledger rows for a booking.
func (s *Store) ListReferralTransactions(ctx context.Context, bookingID string) ([]models.ReferralTransaction, error) {
	txs := []models.ReferralTransaction{}
	err := s.db.SelectContext(ctx, &txs, `
		SELECT id, referral_user_id, booking_id, amount, type, status, commission_status, created_at
		FROM referral_transactions WHERE booking_id = $1 ORDER BY created_at, id`, bookingID)
	return txs, err
}

// CommissionSummary aggregates every referred booking.
type CommissionSummary struct {
	TotalBookings             int     `db:"total_bookings" json:"total_bookings"`
	PendingCount              int     `db:"pending_count" json:"pending_count"`
	ConfirmedCount            int     `db:"confirmed_count" json:"confirmed_count"`
	CancelledCount            int     `db:"cancelled_count" json:"cancelled_count"`
	TotalAdminCommission      float64 `db:"total_admin_commission" json:"total_admin_commission"`
	TotalReferrerCommission   float64 `db:"total_referrer_commission" json:"total_referrer_commission"`
	TotalCustomerDiscounts    float64 `db:"total_customer_discounts" json:"total_customer_discounts"`
	PendingAdminCommission    float64 `db:"pending_admin_commission" json:"pending_admin_commission"`
	PendingReferrerCommission float64 `db:"pending_referrer_commission" json:"pending_referrer_commission"`
}

// GetCommissionSummary returns counts and totals per commission status.
func (s *Store) GetCommissionSummary(ctx context.Context) (*CommissionSummary, error) {
	var summary CommissionSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT
			COUNT(*) AS total_bookings,
			COUNT(*) FILTER (WHERE commission_status = 'PENDING') AS pending_count,
			COUNT(*) FILTER (WHERE commission_status = 'CONFIRMED') AS confirmed_count,
			COUNT(*) FILTER (WHERE commission_status = 'CANCELLED') AS cancelled_count,
			COALESCE(SUM(admin_commission) FILTER (WHERE commission_status = 'CONFIRMED'), 0) AS total_admin_commission,
			COALESCE(SUM(referrer_commission) FILTER (WHERE commission_status = 'CONFIRMED'), 0) AS total_referrer_commission,
			COALESCE(SUM(customer_discount) FILTER (WHERE referral_type = 'STANDARD'), 0) AS total_customer_discounts,
			COALESCE(SUM(admin_commission) FILTER (WHERE commission_status = 'PENDING'), 0) AS pending_admin_commission,
			COALESCE(SUM(referrer_commission) FILTER (WHERE commission_status = 'PENDING'), 0) AS pending_referrer_commission
		FROM bookings
		WHERE referral_code IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to load commission summary: %w", err)
	}
	return &summary, nil
}

// ListBookingsByCommissionStatus returns referred bookings whose commission
// is in status.
func (s *Store) ListBookingsByCommissionStatus(ctx context.Context, status string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.db.SelectContext(ctx, &bookings, "SELECT "+bookingColumns+` FROM bookings
		WHERE commission_status = $1 AND referral_code IS NOT NULL
		ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	return bookings, nil
}

// ReferrerSummary aggregates one referrer's earnings.
type ReferrerSummary struct {
	TotalReferrals    int     `db:"total_referrals" json:"total_referrals"`
	TotalEarned       float64 `db:"total_earned" json:"total_earned"`
	PendingEarnings   float64 `db:"pending_earnings" json:"pending_earnings"`
	CancelledEarnings float64 `db:"cancelled_earnings" json:"cancelled_earnings"`
}

// ListReferrerBookings returns the bookings a referrer brought in, with a
// summary of their earnings.
func (s *Store) ListReferrerBookings(ctx context.Context, referralUserID int64) ([]models.Booking, *ReferrerSummary, error) {
	bookings := []models.Booking{}
	err := s.db.SelectContext(ctx, &bookings, "SELECT "+bookingColumns+` FROM bookings
		WHERE referral_user_id = $1 AND referral_code IS NOT NULL
		ORDER BY created_at DESC`, referralUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list referrer bookings: %w", err)
	}

	var summary ReferrerSummary
	err = s.db.GetContext(ctx, &summary, `
		SELECT
			COUNT(*) AS total_referrals,
			COALESCE(SUM(referrer_commission) FILTER (WHERE commission_status = 'CONFIRMED'), 0) AS total_earned,
			COALESCE(SUM(referrer_commission) FILTER (WHERE commission_status = 'PENDING'), 0) AS pending_earnings,
			COALESCE(SUM(referrer_commission) FILTER (WHERE commission_status = 'CANCELLED'), 0) AS cancelled_earnings
		FROM bookings
		WHERE referral_user_id = $1`, referralUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load referrer summary: %w", err)
	}
	return bookings, &summary, nil
}

// PayableCommission is one active referrer with confirmed earnings.
type PayableCommission struct {
	ReferralUserID    int64   `db:"referral_user_id" json:"referral_user_id"`
	Username          string  `db:"username" json:"username"`
	MobileNumber      string  `db:"mobile_number" json:"mobile_number"`
	ReferralCode      string  `db:"referral_code" json:"referral_code"`
	CurrentBalance    float64 `db:"current_balance" json:"current_balance"`
	ConfirmedBookings int     `db:"confirmed_bookings" json:"confirmed_bookings"`
	TotalPayable      float64 `db:"total_payable" json:"total_payable"`
}

// ListPayableCommissions returns active referrers with at least one
// confirmed booking, largest payout first.
func (s *Store) ListPayableCommissions(ctx context.Context) ([]PayableCommission, error) {
	rows := []PayableCommission{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT
			ru.id AS referral_user_id,
			ru.username,
			ru.mobile_number,
			ru.referral_code,
			ru.balance AS current_balance,
			COUNT(b.id) AS confirmed_bookings,
			COALESCE(SUM(b.referrer_commission), 0) AS total_payable
		FROM referral_users ru
		LEFT JOIN bookings b ON b.referral_user_id = ru.id AND b.commission_status = $1
		WHERE ru.status = $2
		GROUP BY ru.id, ru.username, ru.mobile_number, ru.referral_code, ru.balance
		HAVING COUNT(b.id) > 0
		ORDER BY total_payable DESC`,
		models.CommissionStatusConfirmed, models.ReferralUserActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list payable commissions: %w", err)
	}
	return rows, nil
}

// CommissionReportRow is one day of referred bookings.
type CommissionReportRow struct {
	Date               time.Time `db:"date" json:"date"`
	Bookings           int       `db:"bookings" json:"bookings"`
	Confirmed          int       `db:"confirmed" json:"confirmed"`
	AdminCommission    float64   `db:"admin_commission" json:"admin_commission"`
	ReferrerCommission float64   `db:"referrer_commission" json:"referrer_commission"`
	CustomerDiscount   float64   `db:"customer_discount" json:"customer_discount"`
}

// GetCommissionReport groups referred bookings by day. The range is applied
// only when both bounds are given.
func (s *Store) GetCommissionReport(ctx context.Context, start, end *time.Time) ([]CommissionReportRow, error) {
	query := `
		SELECT
			DATE(created_at) AS date,
			COUNT(*) AS bookings,
			COUNT(*) FILTER (WHERE commission_status = 'CONFIRMED') AS confirmed,
			COALESCE(SUM(admin_commission), 0) AS admin_commission,
			COALESCE(SUM(referrer_commission), 0) AS referrer_commission,
			COALESCE(SUM(customer_discount), 0) AS customer_discount
		FROM bookings
		WHERE referral_code IS NOT NULL`
	var args []interface{}
	if start != nil && end != nil {
		query += " AND created_at BETWEEN $1 AND $2"
		args = append(args, *start, *end)
	}
	query += " GROUP BY DATE(created_at) ORDER BY date DESC"

	rows := []CommissionReportRow{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to build commission report: %w", err)
	}
	return rows, nil
}
