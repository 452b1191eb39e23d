package service

import (
	"context"
	"fmt"
	"strings"

	"booking-service/config"
	"booking-service/internal/broker"
	"booking-service/internal/messages"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// DefaultRefundReason is recorded when a refund is requested without one.
const DefaultRefundReason = "Owner cancelled booking"

var (
	pendingRefundStatuses = []string{
		models.BookingStatusRefundRequired,
		models.BookingStatusRefundInitiated,
	}
	refundHistoryStatuses = []string{
		models.BookingStatusRefundRequired,
		models.BookingStatusRefundInitiated,
		models.BookingStatusRefundCompleted,
		models.BookingStatusOwnerCancelled,
	}
)

// RefundRepositoryReader combines the refund transitions with the reads the
// refund queue needs.
type RefundRepositoryReader interface {
	RefundRepository
	BookingRepository
}

// RefundService drives OWNER_CANCELLED -> REFUND_REQUIRED ->
// REFUND_INITIATED -> REFUND_COMPLETED.
type RefundService struct {
	store      RefundRepositoryReader
	dispatcher *NotificationDispatcher
	events     EventPublisher
	business   config.BusinessConfig
	logger     *zap.Logger
}

// NewRefundService creates a new refund service
func NewRefundService(
	store RefundRepositoryReader,
	dispatcher *NotificationDispatcher,
	events EventPublisher,
	business config.BusinessConfig,
) *RefundService {
	return &RefundService{
		store:      store,
		dispatcher: dispatcher,
		events:     events,
		business:   business,
		logger:     util.GetLogger(),
	}
}

// Initiate opens a refund request for an owner-cancelled booking.
func (rs *RefundService) Initiate(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Initiate", util.BookingAttr(bookingID))
	defer span.End()

	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking_id is required", ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRefundReason
	}

	b, applied, err := rs.store.RequestRefund(ctx, bookingID, reason)
	if err := rs.check(bookingID, err, applied, b, "refund can only be initiated for cancelled bookings"); err != nil {
		return nil, err
	}

	util.RefundTransitionsTotal.WithLabelValues(models.BookingStatusRefundRequired).Inc()
	rs.logger.Info("Refund requested",
		zap.String("booking_id", bookingID),
		zap.String("reason", reason))
	rs.publish(ctx, models.EventTypeRefundRequested, b)
	return b, nil
}

// ProcessRefundRequest records that the admin issued the refund at the gateway.
type ProcessRefundRequest struct {
	BookingID   string `json:"booking_id" binding:"required"`
	RefundID    string `json:"refund_id" binding:"required"`
	ProcessedBy string `json:"processed_by" binding:"required"`
}

// Process moves a REFUND_REQUIRED booking to REFUND_INITIATED and tells the
// guest and the admin.
func (rs *RefundService) Process(ctx context.Context, req *ProcessRefundRequest) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Process", util.BookingAttr(req.BookingID))
	defer span.End()

	if req.BookingID == "" || req.RefundID == "" || req.ProcessedBy == "" {
		return nil, fmt.Errorf("%w: booking_id, refund_id and processed_by are required", ErrValidation)
	}

	b, applied, err := rs.store.StartRefund(ctx, req.BookingID, req.RefundID, req.ProcessedBy)
	if err := rs.check(req.BookingID, err, applied, b, "booking is not in refund required state"); err != nil {
		return nil, err
	}

	util.RefundTransitionsTotal.WithLabelValues(models.BookingStatusRefundInitiated).Inc()
	rs.logger.Info("Refund processed",
		zap.String("booking_id", req.BookingID),
		zap.String("refund_id", req.RefundID),
		zap.String("processed_by", req.ProcessedBy))

	view := messages.NewView(b)
	rs.dispatcher.Notify(ctx, models.OutboundMessage{
		BookingID: b.BookingID,
		Recipient: models.RecipientCustomer,
		Phone:     b.GuestPhone,
		Body:      messages.RefundInitiatedCustomer(view, req.RefundID),
	})
	rs.dispatcher.Notify(ctx, models.OutboundMessage{
		BookingID: b.BookingID,
		Recipient: models.RecipientAdmin,
		Phone:     adminPhone(b, rs.business),
		Body:      messages.RefundInitiatedAdmin(view, req.RefundID, req.ProcessedBy),
	})

	rs.publish(ctx, models.EventTypeRefundInitiated, b)
	return b, nil
}

// Complete closes a refund. It requires REFUND_INITIATED unless force is
// set, which lets an admin close a refund settled outside the normal flow.
func (rs *RefundService) Complete(ctx context.Context, bookingID string, force bool) (*models.Booking, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Complete", util.BookingAttr(bookingID))
	defer span.End()

	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking_id is required", ErrValidation)
	}

	b, applied, err := rs.store.CompleteRefund(ctx, bookingID, force)
	if err := rs.check(bookingID, err, applied, b, "refund must be initiated before it can be completed"); err != nil {
		return nil, err
	}

	util.RefundTransitionsTotal.WithLabelValues(models.BookingStatusRefundCompleted).Inc()
	rs.logger.Info("Refund completed",
		zap.String("booking_id", bookingID),
		zap.Bool("forced", force))
	rs.publish(ctx, models.EventTypeRefundCompleted, b)
	return b, nil
}

// Pending lists bookings waiting on a refund.
func (rs *RefundService) Pending(ctx context.Context) ([]models.Booking, error) {
	return rs.store.ListBookingsByStatus(ctx, pendingRefundStatuses, 0)
}

// History lists refund-related bookings, newest request first. A
// non-positive limit uses the configured default.
func (rs *RefundService) History(ctx context.Context, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = rs.business.RefundHistoryLimit
	}
	return rs.store.ListBookingsByStatus(ctx, refundHistoryStatuses, limit)
}

func (rs *RefundService) check(bookingID string, err error, applied bool, current *models.Booking, conflict string) error {
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
		}
		return err
	}
	if !applied {
		return fmt.Errorf("%w: %s (current status %s)", ErrStateConflict, conflict, current.BookingStatus)
	}
	return nil
}

func (rs *RefundService) publish(ctx context.Context, eventType string, b *models.Booking) {
	if rs.events == nil {
		return
	}
	if err := rs.events.PublishBookingEvent(ctx, broker.NewBookingEvent(eventType, b)); err != nil {
		rs.logger.Error("Failed to publish refund event",
			zap.String("type", eventType),
			zap.String("booking_id", b.BookingID),
			zap.Error(err))
	}
}
