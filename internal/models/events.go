package models

import "time"

// Event types
const (
	EventTypeBookingCreated    = "BOOKING_CREATED"
	EventTypeBookingPaid       = "BOOKING_PAID"
	EventTypePaymentFailed     = "PAYMENT_FAILED"
	EventTypeBookingConfirmed  = "BOOKING_CONFIRMED"
	EventTypeBookingCancelled  = "BOOKING_CANCELLED"
	EventTypeRefundRequested   = "REFUND_REQUESTED"
	EventTypeRefundInitiated   = "REFUND_INITIATED"
	EventTypeRefundCompleted   = "REFUND_COMPLETED"
	EventTypeNotificationRetry = "NOTIFICATION_RETRY"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingEvent is published on every lifecycle transition worth auditing.
type BookingEvent struct {
	BaseEvent
	BookingID     string  `json:"booking_id"`
	BookingStatus string  `json:"booking_status"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	OrderID       string  `json:"order_id,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// OutboundMessage is one message to one recipient. Buttons turn it into an
// interactive message. Tracked messages belong to a booking event and set
// the recipient's notified flag once delivered.
type OutboundMessage struct {
	BookingID string   `json:"booking_id"`
	Recipient string   `json:"recipient"`
	Phone     string   `json:"phone"`
	Body      string   `json:"body"`
	Buttons   []Button `json:"buttons,omitempty"`
	Tracked   bool     `json:"tracked,omitempty"`
}

// Button is an interactive reply button. ID is opaque to the messaging API.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NotificationRetryEvent schedules another delivery attempt of a message
// that has already failed Attempt times.
type NotificationRetryEvent struct {
	BaseEvent
	Message   OutboundMessage `json:"message"`
	Attempt   int             `json:"attempt"`
	NotBefore time.Time       `json:"not_before"`
	LastError string          `json:"last_error,omitempty"`
}
