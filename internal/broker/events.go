package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes booking lifecycle events and schedules
// notification retries.
type EventPublisher struct {
	producer     *Producer
	bookingTopic string
	retryTopic   string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer, bookingTopic, retryTopic string) *EventPublisher {
	return &EventPublisher{
		producer:     producer,
		bookingTopic: bookingTopic,
		retryTopic:   retryTopic,
	}
}

// NewBookingEvent fills the envelope of a booking event of the given type.
func NewBookingEvent(eventType string, b *models.Booking) *models.BookingEvent {
	event := &models.BookingEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		BookingID:     b.BookingID,
		BookingStatus: b.BookingStatus,
		PaymentStatus: b.PaymentStatus,
		Amount:        b.AdvanceAmount,
	}
	if b.OrderID != nil {
		event.OrderID = *b.OrderID
	}
	if b.TransactionID != nil {
		event.TransactionID = *b.TransactionID
	}
	if b.RefundReason != nil {
		event.Reason = *b.RefundReason
	}
	return event
}

// PublishBookingEvent publishes a lifecycle event keyed by booking id
func (ep *EventPublisher) PublishBookingEvent(ctx context.Context, event *models.BookingEvent) error {
	return ep.producer.PublishEvent(ctx, ep.bookingTopic, event.BookingID, event)
}

// ScheduleNotificationRetry queues another attempt of msg after delay.
// attempt is the number of attempts already made.
func (ep *EventPublisher) ScheduleNotificationRetry(
	ctx context.Context,
	msg models.OutboundMessage,
	attempt int,
	delay time.Duration,
	lastErr error,
) error {
	now := time.Now()
	event := &models.NotificationRetryEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeNotificationRetry,
			Timestamp: now,
		},
		Message:   msg,
		Attempt:   attempt,
		NotBefore: now.Add(delay),
	}
	if lastErr != nil {
		event.LastError = lastErr.Error()
	}
	return ep.producer.PublishEvent(ctx, ep.retryTopic, msg.BookingID, event)
}

// EventHandler routes consumed events by type
type EventHandler struct {
	onNotificationRetry func(context.Context, *models.NotificationRetryEvent) error
	onBookingEvent      func(context.Context, *models.BookingEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnNotificationRetry registers a handler for retry events
func (eh *EventHandler) OnNotificationRetry(handler func(context.Context, *models.NotificationRetryEvent) error) {
	eh.onNotificationRetry = handler
}

// OnBookingEvent registers a handler for lifecycle events
func (eh *EventHandler) OnBookingEvent(handler func(context.Context, *models.BookingEvent) error) {
	eh.onBookingEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeNotificationRetry:
		if eh.onNotificationRetry != nil {
			var event models.NotificationRetryEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal NotificationRetry event: %w", err)
			}
			return eh.onNotificationRetry(ctx, &event)
		}

	case models.EventTypeBookingCreated, models.EventTypeBookingPaid, models.EventTypePaymentFailed,
		models.EventTypeBookingConfirmed, models.EventTypeBookingCancelled,
		models.EventTypeRefundRequested, models.EventTypeRefundInitiated, models.EventTypeRefundCompleted:
		if eh.onBookingEvent != nil {
			var event models.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal booking event: %w", err)
			}
			return eh.onBookingEvent(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
