package service

import (
	"context"
	"fmt"
	"time"

	"booking-service/config"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// TicketService issues e-tickets for owner-confirmed bookings.
type TicketService struct {
	store    BookingRepository
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(store BookingRepository, business config.BusinessConfig) *TicketService {
	return &TicketService{
		store:    store,
		business: business,
		logger:   util.GetLogger(),
	}
}

// Ticket is the guest-facing view of a confirmed booking.
type Ticket struct {
	BookingID         string     `json:"booking_id"`
	PropertyName      string     `json:"property_name"`
	GuestName         string     `json:"guest_name"`
	GuestPhone        string     `json:"guest_phone"`
	OwnerName         string     `json:"owner_name"`
	OwnerPhone        string     `json:"owner_phone"`
	CheckIn           time.Time  `json:"checkin_datetime"`
	CheckOut          time.Time  `json:"checkout_datetime"`
	Persons           int        `json:"persons"`
	AdvanceAmount     float64    `json:"advance_amount"`
	DueAmount         float64    `json:"due_amount"`
	TotalAmount       float64    `json:"total_amount"`
	BookingStatus     string     `json:"booking_status"`
	TicketURL         string     `json:"ticket_url"`
	QRPayload         string     `json:"qr_code,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	TicketGeneratedAt *time.Time `json:"ticket_generated_at,omitempty"`
}

// Generate moves an OWNER_CONFIRMED booking to TICKET_GENERATED and stores
// the ticket URL as the QR payload. It returns the ticket URL.
func (ts *TicketService) Generate(ctx context.Context, bookingID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "TicketService.Generate", util.BookingAttr(bookingID))
	defer span.End()

	ticketURL := TicketURL(ts.business.FrontendURL, bookingID)

	_, applied, err := ts.store.MarkTicketGenerated(ctx, bookingID, ticketURL)
	if err != nil {
		return "", err
	}
	if !applied {
		current, err := loadBooking(ctx, ts.store, bookingID)
		if err != nil {
			return "", err
		}
		if current.BookingStatus == models.BookingStatusTicketGenerated {
			return ticketURL, nil
		}
		return "", fmt.Errorf("%w: booking must be confirmed by owner before generating ticket, is %s",
			ErrStateConflict, current.BookingStatus)
	}

	ts.logger.Info("Ticket generated", zap.String("booking_id", bookingID))
	return ticketURL, nil
}

// Get returns the ticket of a confirmed booking.
func (ts *TicketService) Get(ctx context.Context, bookingID string) (*Ticket, error) {
	b, err := loadBooking(ctx, ts.store, bookingID)
	if err != nil {
		return nil, err
	}
	if b.BookingStatus != models.BookingStatusTicketGenerated && b.BookingStatus != models.BookingStatusOwnerConfirmed {
		return nil, fmt.Errorf("%w: ticket not available, booking is %s", ErrStateConflict, b.BookingStatus)
	}

	t := &Ticket{
		BookingID:         b.BookingID,
		PropertyName:      b.PropertyName,
		GuestName:         b.GuestName,
		GuestPhone:        b.GuestPhone,
		OwnerName:         b.OwnerName,
		OwnerPhone:        b.OwnerPhone,
		CheckIn:           b.CheckIn,
		CheckOut:          b.CheckOut,
		Persons:           b.Persons,
		AdvanceAmount:     b.PayableAdvance(),
		DueAmount:         b.DueAmount(),
		TotalAmount:       b.TotalAmount,
		BookingStatus:     b.BookingStatus,
		TicketURL:         TicketURL(ts.business.FrontendURL, b.BookingID),
		ConfirmedAt:       b.ConfirmedAt,
		TicketGeneratedAt: b.TicketGeneratedAt,
	}
	if b.QRPayload != nil {
		t.QRPayload = *b.QRPayload
	}
	return t, nil
}
