package models

import "time"

// Booking is the central aggregate. booking_status has a single writer per
// transition and every transition is a guarded conditional update.
type Booking struct {
	ID        int64  `db:"id" json:"id"`
	BookingID string `db:"booking_id" json:"booking_id"`

	PropertyID   string    `db:"property_id" json:"property_id"`
	PropertyName string    `db:"property_name" json:"property_name"`
	GuestName    string    `db:"guest_name" json:"guest_name"`
	GuestPhone   string    `db:"guest_phone" json:"guest_phone"`
	OwnerName    string    `db:"owner_name" json:"owner_name"`
	OwnerPhone   string    `db:"owner_phone" json:"owner_phone"`
	AdminPhone   string    `db:"admin_phone" json:"admin_phone"`
	CheckIn      time.Time `db:"checkin_datetime" json:"checkin_datetime"`
	CheckOut     time.Time `db:"checkout_datetime" json:"checkout_datetime"`
	Persons      int       `db:"persons" json:"persons"`

	AdvanceAmount      float64 `db:"advance_amount" json:"advance_amount"`
	TotalAmount        float64 `db:"total_amount" json:"total_amount"`
	AdminCommission    float64 `db:"admin_commission" json:"admin_commission"`
	ReferrerCommission float64 `db:"referrer_commission" json:"referrer_commission"`
	CustomerDiscount   float64 `db:"customer_discount" json:"customer_discount"`

	ReferralCode     *string `db:"referral_code" json:"referral_code,omitempty"`
	ReferralType     string  `db:"referral_type" json:"referral_type"`
	ReferralUserID   *int64  `db:"referral_user_id" json:"referral_user_id,omitempty"`
	CommissionStatus string  `db:"commission_status" json:"commission_status"`

	OrderID       *string `db:"order_id" json:"order_id,omitempty"`
	TransactionID *string `db:"transaction_id" json:"transaction_id,omitempty"`
	PaymentStatus string  `db:"payment_status" json:"payment_status"`
	BookingStatus string  `db:"booking_status" json:"booking_status"`

	RefundReason      *string    `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundID          *string    `db:"refund_id" json:"refund_id,omitempty"`
	RefundProcessedBy *string    `db:"refund_processed_by" json:"refund_processed_by,omitempty"`
	RefundRequestedAt *time.Time `db:"refund_requested_at" json:"refund_requested_at,omitempty"`
	RefundProcessedAt *time.Time `db:"refund_processed_at" json:"refund_processed_at,omitempty"`
	RefundCompletedAt *time.Time `db:"refund_completed_at" json:"refund_completed_at,omitempty"`

	NotifiedCustomer bool       `db:"notified_customer" json:"notified_customer"`
	NotifiedOwner    bool       `db:"notified_owner" json:"notified_owner"`
	NotifiedAdmin    bool       `db:"notified_admin" json:"notified_admin"`
	AlertedAdmin     bool       `db:"alerted_admin" json:"alerted_admin"`
	AdminAlertedAt   *time.Time `db:"admin_alerted_at" json:"admin_alerted_at,omitempty"`

	QRPayload         *string    `db:"qr_payload" json:"qr_payload,omitempty"`
	ConfirmedAt       *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	TicketGeneratedAt *time.Time `db:"ticket_generated_at" json:"ticket_generated_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// HasReferrer reports whether a referrer payout is attached to the booking.
func (b *Booking) HasReferrer() bool {
	return b.ReferralUserID != nil && b.ReferrerCommission > 0
}

// DueAmount is what the guest still owes at the property.
func (b *Booking) DueAmount() float64 {
	return b.TotalAmount - (b.AdvanceAmount - b.CustomerDiscount)
}

// PayableAdvance is the amount charged through the gateway.
func (b *Booking) PayableAdvance() float64 {
	return b.AdvanceAmount - b.CustomerDiscount
}

// ReferralUser earns commission on bookings that carry their code.
type ReferralUser struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	MobileNumber string    `db:"mobile_number" json:"mobile_number"`
	ReferralCode string    `db:"referral_code" json:"referral_code"`
	ReferralType string    `db:"referral_type" json:"referral_type"`
	Status       string    `db:"status" json:"status"`
	Balance      float64   `db:"balance" json:"balance"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ReferralTransaction is an append-only ledger row.
type ReferralTransaction struct {
	ID               int64     `db:"id" json:"id"`
	ReferralUserID   int64     `db:"referral_user_id" json:"referral_user_id"`
	BookingID        string    `db:"booking_id" json:"booking_id"`
	Amount           float64   `db:"amount" json:"amount"`
	Type             string    `db:"type" json:"type"`
	Status           string    `db:"status" json:"status"`
	CommissionStatus string    `db:"commission_status" json:"commission_status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// NotificationLog records one delivery attempt.
type NotificationLog struct {
	ID            int64     `db:"id" json:"id"`
	BookingID     string    `db:"booking_id" json:"booking_id"`
	RecipientType string    `db:"recipient_type" json:"recipient_type"`
	PhoneNumber   string    `db:"phone_number" json:"phone_number"`
	Success       bool      `db:"success" json:"success"`
	Attempts      int       `db:"attempts" json:"attempts"`
	ErrorMessage  *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Booking statuses
const (
	BookingStatusPaymentPending     = "PAYMENT_PENDING"
	BookingStatusPaymentSuccess     = "PAYMENT_SUCCESS"
	BookingStatusRequestSentToOwner = "BOOKING_REQUEST_SENT_TO_OWNER"
	BookingStatusOwnerConfirmed     = "OWNER_CONFIRMED"
	BookingStatusTicketGenerated    = "TICKET_GENERATED"
	BookingStatusOwnerCancelled     = "OWNER_CANCELLED"
	BookingStatusRefundRequired     = "REFUND_REQUIRED"
	BookingStatusRefundInitiated    = "REFUND_INITIATED"
	BookingStatusRefundCompleted    = "REFUND_COMPLETED"
)

// Payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// Commission statuses
const (
	CommissionStatusPending   = "PENDING"
	CommissionStatusConfirmed = "CONFIRMED"
	CommissionStatusCancelled = "CANCELLED"
)

// Referral types
const (
	ReferralTypeNone     = "NONE"
	ReferralTypeStandard = "STANDARD"
	ReferralTypeSpecial  = "SPECIAL"
)

// Referral user statuses
const (
	ReferralUserActive  = "active"
	ReferralUserBlocked = "blocked"
)

// Referral transaction types and statuses
const (
	TransactionTypeEarning    = "earning"
	TransactionTypeWithdrawal = "withdrawal"

	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Notification recipients
const (
	RecipientCustomer = "customer"
	RecipientOwner    = "owner"
	RecipientAdmin    = "admin"
)

// Owner actions carried in action tokens
const (
	ActionConfirm = "CONFIRM"
	ActionCancel  = "CANCEL"
)
