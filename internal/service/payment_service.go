package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"booking-service/config"
	"booking-service/internal/actiontoken"
	"booking-service/internal/broker"
	"booking-service/internal/checksum"
	"booking-service/internal/messages"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// Gateway transaction statuses.
const (
	GatewayStatusSuccess = "TXN_SUCCESS"
	GatewayStatusPending = "PENDING"
)

const orderIDAttempts = 3

// PaymentService runs the Paytm side of the booking: order creation and the
// callback that settles payment and hands the booking to the owner.
type PaymentService struct {
	store      BookingRepository
	dispatcher *NotificationDispatcher
	tokens     *actiontoken.Issuer
	events     EventPublisher
	cfg        config.PaytmConfig
	business   config.BusinessConfig
	now        func() time.Time
	logger     *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store BookingRepository,
	dispatcher *NotificationDispatcher,
	tokens *actiontoken.Issuer,
	events EventPublisher,
	cfg config.PaytmConfig,
	business config.BusinessConfig,
) *PaymentService {
	return &PaymentService{
		store:      store,
		dispatcher: dispatcher,
		tokens:     tokens,
		events:     events,
		cfg:        cfg,
		business:   business,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// InitiatePaymentRequest starts a gateway payment for a booking.
type InitiatePaymentRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	ChannelID string `json:"channel_id"`
}

// InitiatePaymentResponse is the signed bundle the browser posts to the gateway.
type InitiatePaymentResponse struct {
	PaytmParams map[string]string `json:"paytm_params"`
	GatewayURL  string            `json:"gateway_url"`
	OrderID     string            `json:"order_id"`
	BookingID   string            `json:"booking_id"`
	Amount      float64           `json:"amount"`
}

// Initiate assigns a fresh order id to an unpaid booking and signs the
// gateway parameters. host is used for the callback URL when none is
// configured.
func (ps *PaymentService) Initiate(ctx context.Context, req *InitiatePaymentRequest, host string) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initiate", util.BookingAttr(req.BookingID))
	defer span.End()

	if req.BookingID == "" {
		return nil, fmt.Errorf("%w: booking_id is required", ErrValidation)
	}
	if ps.cfg.MID == "" || ps.cfg.MerchantKey == "" || ps.cfg.Website == "" || ps.cfg.IndustryType == "" {
		ps.logger.Error("Missing Paytm configuration")
		return nil, ErrGatewayNotConfigured
	}

	booking, err := loadBooking(ctx, ps.store, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus == models.PaymentStatusSuccess {
		return nil, ErrPaymentAlreadyCompleted
	}
	if booking.BookingStatus != models.BookingStatusPaymentPending {
		return nil, fmt.Errorf("%w: booking is %s", ErrStateConflict, booking.BookingStatus)
	}

	orderID, err := ps.assignOrderID(ctx, booking.BookingID)
	if err != nil {
		return nil, err
	}

	channelID := req.ChannelID
	if channelID == "" {
		channelID = ps.cfg.ChannelID
	}
	amount := booking.PayableAdvance()
	params := map[string]string{
		"MID":              ps.cfg.MID,
		"WEBSITE":          ps.cfg.Website,
		"INDUSTRY_TYPE_ID": ps.cfg.IndustryType,
		"CHANNEL_ID":       channelID,
		"ORDER_ID":         orderID,
		"CUST_ID":          fallback(booking.GuestPhone, "GUEST"),
		"MOBILE_NO":        fallback(booking.GuestPhone, "0000000000"),
		"EMAIL":            fallback(booking.GuestPhone, "guest") + "@guest.com",
		"TXN_AMOUNT":       fmt.Sprintf("%.2f", amount),
		"CALLBACK_URL":     ps.callbackURL(host),
	}

	sum, err := checksum.Generate(params, ps.cfg.MerchantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment params: %w", err)
	}
	params[checksum.FieldName] = sum

	util.PaymentsInitiatedTotal.Inc()
	ps.logger.Info("Payment initiated",
		zap.String("booking_id", booking.BookingID),
		zap.String("order_id", orderID),
		zap.Float64("amount", amount))

	return &InitiatePaymentResponse{
		PaytmParams: params,
		GatewayURL:  ps.cfg.GatewayURL,
		OrderID:     orderID,
		BookingID:   booking.BookingID,
		Amount:      amount,
	}, nil
}

func (ps *PaymentService) assignOrderID(ctx context.Context, bookingID string) (string, error) {
	for i := 0; i < orderIDAttempts; i++ {
		orderID := fmt.Sprintf("PAYTM_%d_%d", ps.now().UnixMilli(), rand.Intn(10000))

		applied, err := ps.store.AssignOrderID(ctx, bookingID, orderID)
		if errors.Is(err, store.ErrDuplicateOrderID) {
			ps.logger.Warn("Order id collision, regenerating", zap.String("order_id", orderID))
			continue
		}
		if err != nil {
			return "", err
		}
		if !applied {
			return "", fmt.Errorf("%w: booking was paid or moved on", ErrStateConflict)
		}
		return orderID, nil
	}
	return "", fmt.Errorf("could not allocate a unique order id after %d attempts", orderIDAttempts)
}

func (ps *PaymentService) callbackURL(host string) string {
	if ps.cfg.CallbackURL != "" {
		return ps.cfg.CallbackURL
	}
	return "https://" + host + "/api/payments/paytm/callback"
}

// CallbackResult is what the callback page renders.
type CallbackResult struct {
	Booking        *models.Booking
	OrderID        string
	TransactionID  string
	Amount         string
	Status         string
	Message        string
	Success        bool
	// Applied is false for duplicates and late callbacks.
	Applied        bool
	ChecksumValid  bool
	// AmountMismatch is set when the gateway reports a paid amount other
	// than the booking's payable advance.
	AmountMismatch bool
	RedirectURL    string
}

// HandleCallback settles a gateway callback. Only the first successful
// callback for an order notifies anyone; a replay returns the current state
// without side effects.
func (ps *PaymentService) HandleCallback(ctx context.Context, params map[string]string) (*CallbackResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleCallback")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentCallbackLatency.Observe(time.Since(start).Seconds())
	}()

	token := params[checksum.FieldName]
	if token == "" {
		return nil, fmt.Errorf("%w: checksum not found in response", ErrValidation)
	}
	orderID := params["ORDERID"]
	if orderID == "" {
		return nil, fmt.Errorf("%w: ORDERID is required", ErrValidation)
	}

	valid := checksum.Verify(params, ps.cfg.MerchantKey, token)
	if !valid {
		util.ChecksumFailuresTotal.Inc()
		ps.logger.Error("Invalid checksum received from Paytm",
			zap.String("order_id", orderID),
			zap.Bool("strict", ps.cfg.StrictChecksum))
		if ps.cfg.StrictChecksum {
			return nil, ErrInvalidChecksum
		}
	}

	status := params["STATUS"]
	paymentStatus := mapGatewayStatus(status)

	booking, applied, err := ps.store.ApplyPaymentResult(ctx, orderID, paymentStatus, params["TXNID"])
	if errors.Is(err, store.ErrNotFound) {
		ps.logger.Error("Booking not found for order id", zap.String("order_id", orderID))
		return nil, fmt.Errorf("%w: order %s", ErrBookingNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}

	util.PaymentCallbacksTotal.WithLabelValues(paymentStatus, fmt.Sprintf("%t", applied)).Inc()
	ps.logger.Info("Payment callback processed",
		zap.String("booking_id", booking.BookingID),
		zap.String("order_id", orderID),
		zap.String("payment_status", paymentStatus),
		zap.String("booking_status", booking.BookingStatus),
		zap.Bool("applied", applied))

	success := status == GatewayStatusSuccess
	mismatch := success && ps.amountMismatch(booking, params["TXNAMOUNT"])
	if applied {
		switch paymentStatus {
		case models.PaymentStatusSuccess:
			if err := ps.requestOwnerDecision(ctx, booking); err != nil {
				return nil, err
			}
		case models.PaymentStatusFailed:
			ps.publish(ctx, broker.NewBookingEvent(models.EventTypePaymentFailed, booking))
		}
	}

	result := &CallbackResult{
		Booking:       booking,
		OrderID:       orderID,
		TransactionID: params["TXNID"],
		Amount:        params["TXNAMOUNT"],
		Status:        status,
		Message:       params["RESPMSG"],
		Success:       success,
		Applied:       applied,
		ChecksumValid: valid,
		RedirectURL:   ps.business.FrontendURL,
	}
	result.AmountMismatch = mismatch
	if success {
		result.RedirectURL = TicketURL(ps.business.FrontendURL, booking.BookingID)
	}
	return result, nil
}

// amountMismatch reports whether the gateway amount differs from the
// payable advance. The payment is still settled.
func (ps *PaymentService) amountMismatch(b *models.Booking, txnAmount string) bool {
	expected := b.PayableAdvance()
	paid, err := strconv.ParseFloat(strings.TrimSpace(txnAmount), 64)
	if err == nil && math.Abs(paid-expected) < 0.005 {
		return false
	}
	ps.logger.Error("Gateway amount does not match payable advance",
		zap.String("booking_id", b.BookingID),
		zap.String("txn_amount", txnAmount),
		zap.Float64("expected", expected))
	return true
}

// requestOwnerDecision sends the receipt, the admin alert and the owner's
// confirm/cancel request, then marks the request as sent.
func (ps *PaymentService) requestOwnerDecision(ctx context.Context, b *models.Booking) error {
	confirmToken, err := ps.tokens.Issue(b.BookingID, models.ActionConfirm, b.OwnerPhone)
	if err != nil {
		return err
	}
	cancelToken, err := ps.tokens.Issue(b.BookingID, models.ActionCancel, b.OwnerPhone)
	if err != nil {
		return err
	}

	view := messages.NewView(b)
	ps.dispatcher.DispatchAll(ctx, b.BookingID,
		models.OutboundMessage{
			Recipient: models.RecipientCustomer,
			Phone:     b.GuestPhone,
			Body:      messages.PaymentReceipt(view),
		},
		models.OutboundMessage{
			Recipient: models.RecipientAdmin,
			Phone:     adminPhone(b, ps.business),
			Body:      messages.AdminNewBooking(view),
		},
		models.OutboundMessage{
			Recipient: models.RecipientOwner,
			Phone:     b.OwnerPhone,
			Body:      messages.OwnerRequest(view),
			Buttons:   messages.OwnerButtons(confirmToken, cancelToken),
		},
	)

	moved, err := ps.store.TransitionStatus(ctx, b.BookingID,
		models.BookingStatusPaymentSuccess, models.BookingStatusRequestSentToOwner)
	if err != nil {
		return err
	}
	if !moved {
		ps.logger.Warn("Booking left PAYMENT_SUCCESS before owner request was recorded",
			zap.String("booking_id", b.BookingID))
		return nil
	}

	b.BookingStatus = models.BookingStatusRequestSentToOwner
	ps.publish(ctx, broker.NewBookingEvent(models.EventTypeBookingPaid, b))
	return nil
}

func (ps *PaymentService) publish(ctx context.Context, event *models.BookingEvent) {
	if ps.events == nil {
		return
	}
	if err := ps.events.PublishBookingEvent(ctx, event); err != nil {
		ps.logger.Error("Failed to publish booking event",
			zap.String("type", event.EventType),
			zap.String("booking_id", event.BookingID),
			zap.Error(err))
	}
}

func mapGatewayStatus(status string) string {
	switch status {
	case GatewayStatusSuccess:
		return models.PaymentStatusSuccess
	case GatewayStatusPending:
		return models.PaymentStatusPending
	default:
		return models.PaymentStatusFailed
	}
}

// TicketURL is the guest-facing ticket page for a booking.
func TicketURL(frontendURL, bookingID string) string {
	return strings.TrimRight(frontendURL, "/") + "/ticket?booking_id=" + bookingID
}

func adminPhone(b *models.Booking, business config.BusinessConfig) string {
	if b.AdminPhone != "" {
		return b.AdminPhone
	}
	return business.AdminPhone
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
