package service

import (
	"context"
	"testing"

	"booking-service/internal/checksum"
	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayCallback builds a callback body for orderID signed with the
// merchant key.
func gatewayCallback(t *testing.T, orderID, status string) map[string]string {
	t.Helper()
	params := map[string]string{
		"ORDERID":   orderID,
		"TXNID":     "20240101111212800110168",
		"TXNAMOUNT": "950.00",
		"STATUS":    status,
		"RESPMSG":   "Txn Success",
		"MID":       "MID123",
	}
	sum, err := checksum.Generate(params, testMerchantKey)
	require.NoError(t, err)
	params[checksum.FieldName] = sum
	return params
}

func initiated(t *testing.T, h *harness, bookingID string) string {
	t.Helper()
	h.seedBooking(bookingID, models.BookingStatusPaymentPending)
	resp, err := h.payments.Initiate(context.Background(), &InitiatePaymentRequest{BookingID: bookingID}, "api.example.com")
	require.NoError(t, err)
	return resp.OrderID
}

func TestInitiateSignsGatewayParams(t *testing.T) {
	h := newHarness(t)
	h.seedBooking("BK-1", models.BookingStatusPaymentPending)

	resp, err := h.payments.Initiate(context.Background(), &InitiatePaymentRequest{BookingID: "BK-1"}, "api.example.com")
	require.NoError(t, err)

	assert.Regexp(t, `^PAYTM_\d+_\d+$`, resp.OrderID)
	assert.Equal(t, 950.0, resp.Amount)
	assert.Equal(t, "950.00", resp.PaytmParams["TXN_AMOUNT"])
	assert.Equal(t, "WEB", resp.PaytmParams["CHANNEL_ID"])
	assert.Equal(t, "https://api.example.com/api/payments/paytm/callback", resp.PaytmParams["CALLBACK_URL"])
	assert.True(t, checksum.Verify(resp.PaytmParams, testMerchantKey, resp.PaytmParams[checksum.FieldName]))

	stored := h.store.get("BK-1")
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, resp.OrderID, *stored.OrderID)
}

func TestInitiateRegeneratesCollidingOrderID(t *testing.T) {
	h := newHarness(t)
	h.seedBooking("BK-1", models.BookingStatusPaymentPending)
	h.store.duplicateOrderIDs = 2

	resp, err := h.payments.Initiate(context.Background(), &InitiatePaymentRequest{BookingID: "BK-1"}, "h")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OrderID)

	h.store.duplicateOrderIDs = 3
	_, err = h.payments.Initiate(context.Background(), &InitiatePaymentRequest{BookingID: "BK-1"}, "h")
	assert.Error(t, err)
}

func TestInitiateGuards(t *testing.T) {
	h := newHarness(t)
	h.seedBooking("BK-PAID", models.BookingStatusRequestSentToOwner)
	ctx := context.Background()

	_, err := h.payments.Initiate(ctx, &InitiatePaymentRequest{}, "h")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.payments.Initiate(ctx, &InitiatePaymentRequest{BookingID: "BK-MISSING"}, "h")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = h.payments.Initiate(ctx, &InitiatePaymentRequest{BookingID: "BK-PAID"}, "h")
	assert.ErrorIs(t, err, ErrPaymentAlreadyCompleted)

	h.paytm.MerchantKey = ""
	h.rebuild(nil)
	_, err = h.payments.Initiate(ctx, &InitiatePaymentRequest{BookingID: "BK-PAID"}, "h")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
}

func TestDuplicateSuccessCallbackNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	orderID := initiated(t, h, "BK-1")
	params := gatewayCallback(t, orderID, GatewayStatusSuccess)

	first, err := h.payments.HandleCallback(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.True(t, first.Success)
	assert.True(t, first.ChecksumValid)
	assert.Equal(t, "http://localhost:5000/ticket?booking_id=BK-1", first.RedirectURL)

	second, err := h.payments.HandleCallback(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, second.Applied)

	b := h.store.get("BK-1")
	assert.Equal(t, models.BookingStatusRequestSentToOwner, b.BookingStatus)
	assert.Equal(t, models.PaymentStatusSuccess, b.PaymentStatus)
	assert.True(t, b.NotifiedCustomer)
	assert.True(t, b.NotifiedOwner)
	assert.True(t, b.NotifiedAdmin)

	assert.Len(t, h.messenger.messages(), 3)
	owner := h.messenger.to("919800000002")
	require.Len(t, owner, 1)
	require.Len(t, owner[0].Buttons, 2)

	claims, err := h.issuer.Verify(owner[0].Buttons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "BK-1", claims.BookingID)
	assert.Equal(t, models.ActionConfirm, claims.Action)

	assert.Equal(t, []string{models.EventTypeBookingPaid}, h.publisher.eventTypes())
}

func TestLateFailedCallbackDoesNotRegressSuccess(t *testing.T) {
	h := newHarness(t)
	orderID := initiated(t, h, "BK-1")

	_, err := h.payments.HandleCallback(context.Background(), gatewayCallback(t, orderID, GatewayStatusSuccess))
	require.NoError(t, err)

	res, err := h.payments.HandleCallback(context.Background(), gatewayCallback(t, orderID, "TXN_FAILURE"))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.PaymentStatusSuccess, h.store.get("BK-1").PaymentStatus)
}

func TestFailedAndPendingCallbacks(t *testing.T) {
	h := newHarness(t)
	orderID := initiated(t, h, "BK-1")

	res, err := h.payments.HandleCallback(context.Background(), gatewayCallback(t, orderID, GatewayStatusPending))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "http://localhost:5000", res.RedirectURL)
	assert.Equal(t, models.BookingStatusPaymentPending, h.store.get("BK-1").BookingStatus)

	res, err = h.payments.HandleCallback(context.Background(), gatewayCallback(t, orderID, "TXN_FAILURE"))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	b := h.store.get("BK-1")
	assert.Equal(t, models.PaymentStatusFailed, b.PaymentStatus)
	assert.Equal(t, models.BookingStatusPaymentPending, b.BookingStatus)
	assert.Empty(t, h.messenger.messages())
	assert.Equal(t, []string{models.EventTypePaymentFailed}, h.publisher.eventTypes())

	// a retry after a failure can still settle the booking
	_, err = h.payments.HandleCallback(context.Background(), gatewayCallback(t, orderID, GatewayStatusSuccess))
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRequestSentToOwner, h.store.get("BK-1").BookingStatus)
}

func TestCallbackChecksumHandling(t *testing.T) {
	h := newHarness(t)
	orderID := initiated(t, h, "BK-1")
	ctx := context.Background()

	_, err := h.payments.HandleCallback(ctx, map[string]string{"ORDERID": orderID, "STATUS": GatewayStatusSuccess})
	assert.ErrorIs(t, err, ErrValidation)

	tampered := gatewayCallback(t, orderID, GatewayStatusPending)
	tampered["TXNAMOUNT"] = "1.00"

	h.paytm.StrictChecksum = true
	h.rebuild(nil)
	_, err = h.payments.HandleCallback(ctx, tampered)
	assert.ErrorIs(t, err, ErrInvalidChecksum)

	h.paytm.StrictChecksum = false
	h.rebuild(nil)
	res, err := h.payments.HandleCallback(ctx, tampered)
	require.NoError(t, err)
	assert.False(t, res.ChecksumValid)
}

func TestCallbackUnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.payments.HandleCallback(context.Background(), gatewayCallback(t, "PAYTM_1_1", GatewayStatusSuccess))
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCallbackFlagsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	orderID := initiated(t, h, "BK-1")
	ctx := context.Background()

	params := gatewayCallback(t, orderID, GatewayStatusSuccess)
	res, err := h.payments.HandleCallback(ctx, params)
	require.NoError(t, err)
	assert.False(t, res.AmountMismatch)

	h2 := newHarness(t)
	orderID = initiated(t, h2, "BK-2")
	params = map[string]string{
		"ORDERID":   orderID,
		"TXNID":     "20240101111212800110169",
		"TXNAMOUNT": "1000.00",
		"STATUS":    GatewayStatusSuccess,
		"MID":       "MID123",
	}
	sum, err := checksum.Generate(params, testMerchantKey)
	require.NoError(t, err)
	params[checksum.FieldName] = sum

	res, err = h2.payments.HandleCallback(ctx, params)
	require.NoError(t, err)
	assert.True(t, res.AmountMismatch)
	assert.True(t, res.Applied)
	assert.Equal(t, models.BookingStatusRequestSentToOwner, h2.store.get("BK-2").BookingStatus)
}
