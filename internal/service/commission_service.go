package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/store"
)

const reportDateLayout = "2006-01-02"

// CommissionService serves referral commission reports.
type CommissionService struct {
	store CommissionRepository
}

// NewCommissionService creates a new commission service
func NewCommissionService(store CommissionRepository) *CommissionService {
	return &CommissionService{store: store}
}

// Summary returns counts and totals over all referred bookings.
func (cs *CommissionService) Summary(ctx context.Context) (*store.CommissionSummary, error) {
	return cs.store.GetCommissionSummary(ctx)
}

// ByStatus lists referred bookings whose commission is in status.
func (cs *CommissionService) ByStatus(ctx context.Context, status string) ([]models.Booking, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case models.CommissionStatusPending, models.CommissionStatusConfirmed, models.CommissionStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: status must be PENDING, CONFIRMED or CANCELLED", ErrValidation)
	}
	return cs.store.ListBookingsByCommissionStatus(ctx, status)
}

// ForReferrer lists one referrer's bookings with an earnings summary.
func (cs *CommissionService) ForReferrer(ctx context.Context, referralUserID int64) ([]models.Booking, *store.ReferrerSummary, error) {
	if referralUserID <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid referral user id", ErrValidation)
	}
	return cs.store.ListReferrerBookings(ctx, referralUserID)
}

// Payable lists active referrers with confirmed earnings.
func (cs *CommissionService) Payable(ctx context.Context) ([]store.PayableCommission, error) {
	return cs.store.ListPayableCommissions(ctx)
}

// Report groups referred bookings by day. Dates are YYYY-MM-DD and the range
// applies only when both are given; the end date is inclusive.
func (cs *CommissionService) Report(ctx context.Context, startDate, endDate string) ([]store.CommissionReportRow, error) {
	if startDate == "" || endDate == "" {
		return cs.store.GetCommissionReport(ctx, nil, nil)
	}

	start, err := time.Parse(reportDateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrValidation)
	}
	end, err := time.Parse(reportDateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrValidation)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrValidation)
	}

	end = end.Add(24*time.Hour - time.Nanosecond)
	return cs.store.GetCommissionReport(ctx, &start, &end)
}
