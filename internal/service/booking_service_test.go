package service

import (
	"context"
	"testing"
	"time"

	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingRequest(code string) *CreateBookingRequest {
	checkIn := time.Date(2026, 11, 20, 14, 0, 0, 0, time.UTC)
	return &CreateBookingRequest{
		PropertyName:  "Sea Breeze Villa",
		GuestName:     "Asha",
		GuestPhone:    "+919800000001",
		OwnerPhone:    "+919800000002",
		CheckIn:       checkIn,
		CheckOut:      checkIn.Add(48 * time.Hour),
		Persons:       4,
		AdvanceAmount: 1000,
		TotalAmount:   5000,
		ReferralCode:  code,
	}
}

func TestCreateBookingWithStandardReferral(t *testing.T) {
	h := newHarness(t)
	h.addReferrer(7, "RAVI10", models.ReferralTypeStandard, models.ReferralUserActive, "919811111111")

	resp, err := h.bookings.Create(context.Background(), bookingRequest("ravi10"))
	require.NoError(t, err)

	b := resp.Booking
	assert.Regexp(t, `^BK-[0-9A-F]{10}$`, b.BookingID)
	assert.Equal(t, models.BookingStatusPaymentPending, b.BookingStatus)
	assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, models.ReferralTypeStandard, b.ReferralType)
	require.NotNil(t, b.ReferralUserID)
	assert.Equal(t, int64(7), *b.ReferralUserID)
	assert.Equal(t, "RAVI10", *b.ReferralCode)
	assert.Equal(t, 150.0, b.AdminCommission)
	assert.Equal(t, 100.0, b.ReferrerCommission)
	assert.Equal(t, 50.0, b.CustomerDiscount)
	assert.Equal(t, 950.0, resp.Amounts.FinalAdvance)
	assert.Equal(t, "919800000002", b.OwnerPhone)
	assert.Equal(t, "919800000009", b.AdminPhone)

	assert.NotNil(t, h.store.get(b.BookingID))
	assert.Equal(t, []string{models.EventTypeBookingCreated}, h.publisher.eventTypes())
}

func TestCreateBookingWithoutReferral(t *testing.T) {
	h := newHarness(t)

	resp, err := h.bookings.Create(context.Background(), bookingRequest(""))
	require.NoError(t, err)
	assert.Equal(t, models.ReferralTypeNone, resp.Booking.ReferralType)
	assert.Equal(t, 300.0, resp.Booking.AdminCommission)
	assert.Zero(t, resp.Booking.CustomerDiscount)
	assert.Nil(t, resp.Booking.ReferralUserID)
}

func TestCreateBookingRejections(t *testing.T) {
	h := newHarness(t)
	h.addReferrer(7, "BLOCKED", models.ReferralTypeStandard, models.ReferralUserBlocked, "919811111111")
	h.addReferrer(8, "SELF", models.ReferralTypeSpecial, models.ReferralUserActive, "919800000001")
	ctx := context.Background()

	for _, code := range []string{"BLOCKED", "SELF", "UNKNOWN"} {
		_, err := h.bookings.Create(ctx, bookingRequest(code))
		assert.ErrorIs(t, err, ErrValidation, code)
	}

	bad := bookingRequest("")
	bad.CheckOut = bad.CheckIn
	_, err := h.bookings.Create(ctx, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = bookingRequest("")
	bad.AdvanceAmount = 6000
	_, err = h.bookings.Create(ctx, bad)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, h.publisher.eventTypes())
}

func TestValidateReferral(t *testing.T) {
	h := newHarness(t)
	h.addReferrer(7, "RAVI10", models.ReferralTypeStandard, models.ReferralUserActive, "919811111111")
	h.addReferrer(8, "VIP", models.ReferralTypeSpecial, models.ReferralUserActive, "919822222222")
	ctx := context.Background()

	v, err := h.referrals.Validate(ctx, "ravi10", "919800000001")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "RAVI10", v.ReferralCode)
	assert.Equal(t, 5.0, v.DiscountPercentage)

	v, err = h.referrals.Validate(ctx, "VIP", "")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Zero(t, v.DiscountPercentage)

	v, err = h.referrals.Validate(ctx, "RAVI10", "+919811111111")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, "You cannot use your own referral code", v.Error)

	v, err = h.referrals.Validate(ctx, "  ", "")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestTicketRequiresOwnerConfirmation(t *testing.T) {
	h := newHarness(t)
	h.seedBooking("BK-1", models.BookingStatusRequestSentToOwner)
	h.seedBooking("BK-2", models.BookingStatusOwnerConfirmed)
	ctx := context.Background()

	_, err := h.tickets.Generate(ctx, "BK-1")
	assert.ErrorIs(t, err, ErrStateConflict)
	_, err = h.tickets.Get(ctx, "BK-1")
	assert.ErrorIs(t, err, ErrStateConflict)

	url, err := h.tickets.Generate(ctx, "BK-2")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/ticket?booking_id=BK-2", url)

	again, err := h.tickets.Generate(ctx, "BK-2")
	require.NoError(t, err)
	assert.Equal(t, url, again)

	ticket, err := h.tickets.Get(ctx, "BK-2")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusTicketGenerated, ticket.BookingStatus)
	assert.Equal(t, 950.0, ticket.AdvanceAmount)
	assert.Equal(t, 4050.0, ticket.DueAmount)
	assert.Equal(t, url, ticket.QRPayload)
}

func TestCommissionQueries(t *testing.T) {
	h := newHarness(t)
	cs := NewCommissionService(h.store)
	ctx := context.Background()

	_, err := cs.ByStatus(ctx, "paid")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = cs.ByStatus(ctx, "confirmed")
	assert.NoError(t, err)

	_, _, err = cs.ForReferrer(ctx, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = cs.Report(ctx, "2026-10-01", "2026-10-31")
	require.NoError(t, err)
	require.NotNil(t, h.store.reportEnd)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *h.store.reportStart)
	assert.Equal(t, 31, h.store.reportEnd.Day())
	assert.Equal(t, 23, h.store.reportEnd.Hour())

	_, err = cs.Report(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, h.store.reportStart)

	_, err = cs.Report(ctx, "01/10/2026", "2026-10-31")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = cs.Report(ctx, "2026-10-31", "2026-10-01")
	assert.ErrorIs(t, err, ErrValidation)
}
