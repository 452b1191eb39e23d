package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booking-service/config"
	"booking-service/internal/actiontoken"
	"booking-service/internal/broker"
	"booking-service/internal/commission"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService creates bookings and prices their referral split.
type BookingService struct {
	store     BookingRepository
	referrals *ReferralService
	events    EventPublisher
	business  config.BusinessConfig
	logger    *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	store BookingRepository,
	referrals *ReferralService,
	events EventPublisher,
	business config.BusinessConfig,
) *BookingService {
	return &BookingService{
		store:     store,
		referrals: referrals,
		events:    events,
		business:  business,
		logger:    util.GetLogger(),
	}
}

// CreateBookingRequest represents a request to create a booking
type CreateBookingRequest struct {
	PropertyID    string    `json:"property_id"`
	PropertyName  string    `json:"property_name" binding:"required"`
	GuestName     string    `json:"guest_name" binding:"required"`
	GuestPhone    string    `json:"guest_phone" binding:"required"`
	OwnerName     string    `json:"owner_name"`
	OwnerPhone    string    `json:"owner_phone" binding:"required"`
	AdminPhone    string    `json:"admin_phone"`
	CheckIn       time.Time `json:"checkin_datetime" binding:"required"`
	CheckOut      time.Time `json:"checkout_datetime" binding:"required"`
	Persons       int       `json:"persons" binding:"required,min=1"`
	AdvanceAmount float64   `json:"advance_amount" binding:"required,gt=0"`
	TotalAmount   float64   `json:"total_amount" binding:"required,gt=0"`
	ReferralCode  string    `json:"referral_code"`
}

// CreateBookingResponse is the stored booking and the amounts shown to the guest.
type CreateBookingResponse struct {
	Booking *models.Booking    `json:"booking"`
	Amounts commission.Amounts `json:"amounts"`
	Warning string             `json:"warning,omitempty"`
}

// Create validates the request and the referral code and stores a booking
// awaiting payment.
func (bs *BookingService) Create(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Create")
	defer span.End()

	if err := validateBookingRequest(req); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		BookingID:        newBookingID(),
		PropertyID:       req.PropertyID,
		PropertyName:     req.PropertyName,
		GuestName:        req.GuestName,
		GuestPhone:       actiontoken.NormalizePhone(req.GuestPhone),
		OwnerName:        req.OwnerName,
		OwnerPhone:       actiontoken.NormalizePhone(req.OwnerPhone),
		AdminPhone:       fallback(req.AdminPhone, bs.business.AdminPhone),
		CheckIn:          req.CheckIn,
		CheckOut:         req.CheckOut,
		Persons:          req.Persons,
		AdvanceAmount:    commission.Round(req.AdvanceAmount),
		TotalAmount:      commission.Round(req.TotalAmount),
		ReferralType:     commission.TypeNone,
		CommissionStatus: models.CommissionStatusPending,
		PaymentStatus:    models.PaymentStatusPending,
		BookingStatus:    models.BookingStatusPaymentPending,
	}

	if strings.TrimSpace(req.ReferralCode) != "" {
		v, err := bs.referrals.Validate(ctx, req.ReferralCode, req.GuestPhone)
		if err != nil {
			return nil, err
		}
		if !v.Valid {
			return nil, fmt.Errorf("%w: %s", ErrValidation, v.Error)
		}
		code, uid := v.ReferralCode, v.ReferralUserID
		booking.ReferralCode = &code
		booking.ReferralUserID = &uid
		booking.ReferralType = v.ReferralType
	}

	warning, err := commission.Validate(booking.AdvanceAmount, booking.ReferralType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if warning != "" {
		bs.logger.Warn("Commission validation warning",
			zap.String("booking_id", booking.BookingID),
			zap.String("warning", warning))
	}

	amounts := commission.Final(booking.TotalAmount, booking.AdvanceAmount, booking.ReferralType)
	booking.AdminCommission = amounts.AdminCommission
	booking.ReferrerCommission = amounts.ReferrerCommission
	booking.CustomerDiscount = amounts.CustomerDiscount

	if err := bs.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	util.BookingsCreatedTotal.WithLabelValues(booking.ReferralType).Inc()
	bs.logger.Info("Booking created",
		zap.String("booking_id", booking.BookingID),
		zap.String("referral_type", booking.ReferralType),
		zap.Float64("payable_advance", amounts.FinalAdvance))

	if bs.events != nil {
		if err := bs.events.PublishBookingEvent(ctx, broker.NewBookingEvent(models.EventTypeBookingCreated, booking)); err != nil {
			bs.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
		}
	}

	return &CreateBookingResponse{Booking: booking, Amounts: amounts, Warning: warning}, nil
}

// Get retrieves a booking by its external id
func (bs *BookingService) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	return loadBooking(ctx, bs.store, bookingID)
}

func validateBookingRequest(req *CreateBookingRequest) error {
	var problems []string
	if strings.TrimSpace(req.PropertyName) == "" {
		problems = append(problems, "property_name is required")
	}
	if strings.TrimSpace(req.GuestName) == "" {
		problems = append(problems, "guest_name is required")
	}
	if strings.TrimSpace(req.GuestPhone) == "" {
		problems = append(problems, "guest_phone is required")
	}
	if strings.TrimSpace(req.OwnerPhone) == "" {
		problems = append(problems, "owner_phone is required")
	}
	if !req.CheckOut.After(req.CheckIn) {
		problems = append(problems, "checkout_datetime must be after checkin_datetime")
	}
	if req.Persons < 1 {
		problems = append(problems, "persons must be at least 1")
	}
	if req.AdvanceAmount <= 0 {
		problems = append(problems, "advance_amount must be positive")
	}
	if req.TotalAmount < req.AdvanceAmount {
		problems = append(problems, "advance_amount cannot exceed total_amount")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func newBookingID() string {
	return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}
