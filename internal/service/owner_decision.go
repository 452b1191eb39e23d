package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-service/config"
	"booking-service/internal/actiontoken"
	"booking-service/internal/broker"
	"booking-service/internal/messages"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"
	"booking-service/internal/whatsapp"

	"go.uber.org/zap"
)

// Decision results reported back to the webhook caller.
const (
	ResultIgnored          = "IGNORED"
	ResultExpired          = "EXPIRED"
	ResultInvalid          = "INVALID"
	ResultMalformed        = "MALFORMED"
	ResultUnauthorized     = "UNAUTHORIZED"
	ResultNotFound         = "NOT_FOUND"
	ResultAlreadyProcessed = "ALREADY_PROCESSED"
	ResultConfirmed        = "CONFIRMED"
	ResultCancelled        = "CANCELLED"
)

// CancelRefundReason is recorded on refunds opened by an owner cancel.
const CancelRefundReason = "Owner cancelled booking due to unavailability"

const webhookDedupTTL = 24 * time.Hour

// Outcome describes how a webhook delivery was handled. Every outcome is
// acknowledged to the messaging platform with a 200.
type Outcome struct {
	Result    string `json:"result"`
	BookingID string `json:"booking_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Success reports whether the decision changed the booking.
func (o *Outcome) Success() bool {
	return o.Result == ResultConfirmed || o.Result == ResultCancelled
}

// DecisionStore is what the owner workflow needs from persistence.
type DecisionStore interface {
	BookingRepository
	DecisionRepository
}

// OwnerDecisionService turns the owner's button taps into confirm or cancel
// transitions.
type OwnerDecisionService struct {
	store      DecisionStore
	tokens     *actiontoken.Issuer
	messenger  Messenger
	dispatcher *NotificationDispatcher
	tickets    *TicketService
	refunds    *RefundService
	events     EventPublisher
	dedup      Deduplicator
	business   config.BusinessConfig
	logger     *zap.Logger
}

// NewOwnerDecisionService creates the owner decision workflow. dedup may be nil.
func NewOwnerDecisionService(
	store DecisionStore,
	tokens *actiontoken.Issuer,
	messenger Messenger,
	dispatcher *NotificationDispatcher,
	tickets *TicketService,
	refunds *RefundService,
	events EventPublisher,
	dedup Deduplicator,
	business config.BusinessConfig,
) *OwnerDecisionService {
	return &OwnerDecisionService{
		store:      store,
		tokens:     tokens,
		messenger:  messenger,
		dispatcher: dispatcher,
		tickets:    tickets,
		refunds:    refunds,
		events:     events,
		dedup:      dedup,
		business:   business,
		logger:     util.GetLogger(),
	}
}

// HandleWebhook processes one webhook delivery. An error means an
// infrastructure failure; the caller should answer 5xx so the platform
// redelivers.
func (s *OwnerDecisionService) HandleWebhook(ctx context.Context, payload *whatsapp.WebhookPayload) (*Outcome, error) {
	ctx, span := util.StartSpan(ctx, "OwnerDecisionService.HandleWebhook")
	defer span.End()

	reply, ok := payload.ButtonReply()
	if !ok {
		return s.done(&Outcome{Result: ResultIgnored, Message: "No action required"}), nil
	}

	if s.dedup != nil && reply.MessageID != "" {
		fresh, err := s.dedup.Claim(ctx, "whatsapp:"+reply.MessageID, webhookDedupTTL)
		if err != nil {
			s.logger.Warn("Webhook de-dup unavailable", zap.Error(err))
		} else if !fresh {
			s.logger.Info("Duplicate webhook delivery", zap.String("message_id", reply.MessageID))
			return s.done(&Outcome{Result: ResultIgnored, Message: "Duplicate delivery"}), nil
		}
	}

	outcome, err := s.decide(ctx, reply)
	if err != nil {
		if s.dedup != nil && reply.MessageID != "" {
			if uerr := s.dedup.Unclaim(ctx, "whatsapp:"+reply.MessageID); uerr != nil {
				s.logger.Warn("Failed to release webhook claim", zap.Error(uerr))
			}
		}
		return nil, err
	}
	return s.done(outcome), nil
}

func (s *OwnerDecisionService) decide(ctx context.Context, reply *whatsapp.ButtonReply) (*Outcome, error) {
	claims, err := s.tokens.Verify(reply.ButtonID)
	if err != nil {
		reason := actiontoken.Reason(err)
		s.logger.Warn("Action token rejected",
			zap.String("from", reply.From),
			zap.String("reason", reason))
		s.reply(ctx, reply.From, messages.ActionFailed(reason))
		return &Outcome{Result: reason, Message: err.Error()}, nil
	}

	outcome := &Outcome{BookingID: claims.BookingID, Action: claims.Action}

	if err := actiontoken.Authorize(claims, reply.From); err != nil {
		s.logger.Error("Unauthorized action attempt",
			zap.String("from", reply.From),
			zap.String("booking_id", claims.BookingID))
		s.reply(ctx, reply.From, messages.Unauthorized())
		outcome.Result, outcome.Message = ResultUnauthorized, "Unauthorized"
		return outcome, nil
	}

	booking, err := s.store.GetBooking(ctx, claims.BookingID)
	if errors.Is(err, store.ErrNotFound) {
		s.reply(ctx, reply.From, messages.BookingNotFound(claims.BookingID))
		outcome.Result, outcome.Message = ResultNotFound, "Booking not found"
		return outcome, nil
	}
	if err != nil {
		return nil, err
	}

	if booking.BookingStatus != models.BookingStatusRequestSentToOwner {
		s.reply(ctx, reply.From, messages.AlreadyProcessed(booking.BookingStatus))
		outcome.Result, outcome.Message = ResultAlreadyProcessed, "Already processed"
		return outcome, nil
	}

	switch claims.Action {
	case models.ActionConfirm:
		return s.confirm(ctx, claims.BookingID, reply.From, outcome)
	case models.ActionCancel:
		return s.cancel(ctx, claims.BookingID, reply.From, outcome)
	default:
		outcome.Result, outcome.Message = ResultInvalid, "Invalid action"
		return outcome, nil
	}
}

// confirm commits the confirmation and referrer credit in one transaction,
// then issues the ticket and notifies outside it.
func (s *OwnerDecisionService) confirm(ctx context.Context, bookingID, from string, outcome *Outcome) (*Outcome, error) {
	res, err := s.store.ConfirmByOwner(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if !res.Applied {
		return s.lostRace(ctx, from, res.Booking, outcome), nil
	}

	b := res.Booking
	s.logger.Info("Booking confirmed by owner",
		zap.String("booking_id", bookingID),
		zap.Bool("referrer_credited", res.LedgerWritten))

	ticketURL, err := s.tickets.Generate(ctx, bookingID)
	if err != nil {
		s.logger.Error("Ticket generation failed",
			zap.String("booking_id", bookingID),
			zap.Error(err))
		ticketURL = TicketURL(s.business.FrontendURL, bookingID)
	} else {
		b.BookingStatus = models.BookingStatusTicketGenerated
	}

	view := messages.NewView(b)
	s.dispatcher.DispatchAll(ctx, bookingID,
		models.OutboundMessage{
			Recipient: models.RecipientOwner,
			Phone:     b.OwnerPhone,
			Body:      messages.OwnerConfirmed(view),
		},
		models.OutboundMessage{
			Recipient: models.RecipientCustomer,
			Phone:     b.GuestPhone,
			Body:      messages.CustomerTicket(view, ticketURL),
		},
		models.OutboundMessage{
			Recipient: models.RecipientAdmin,
			Phone:     adminPhone(b, s.business),
			Body:      messages.AdminConfirmed(view, ticketURL),
		},
	)

	s.publish(ctx, models.EventTypeBookingConfirmed, b)
	outcome.Result, outcome.Message = ResultConfirmed, "Booking confirmed"
	return outcome, nil
}

// cancel commits the cancellation and voids the commission, then opens the
// refund and notifies outside the transaction.
func (s *OwnerDecisionService) cancel(ctx context.Context, bookingID, from string, outcome *Outcome) (*Outcome, error) {
	res, err := s.store.CancelByOwner(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !res.Applied {
		return s.lostRace(ctx, from, res.Booking, outcome), nil
	}

	b := res.Booking
	s.logger.Info("Booking cancelled by owner",
		zap.String("booking_id", bookingID),
		zap.Bool("commission_voided", res.LedgerWritten))

	if refunded, err := s.refunds.Initiate(ctx, bookingID, CancelRefundReason); err != nil {
		s.logger.Error("Failed to open refund request",
			zap.String("booking_id", bookingID),
			zap.Error(err))
	} else {
		b = refunded
	}

	view := messages.NewView(b)
	s.dispatcher.DispatchAll(ctx, bookingID,
		models.OutboundMessage{
			Recipient: models.RecipientOwner,
			Phone:     b.OwnerPhone,
			Body:      messages.OwnerCancelled(view),
		},
		models.OutboundMessage{
			Recipient: models.RecipientCustomer,
			Phone:     b.GuestPhone,
			Body:      messages.CustomerCancelled(view),
		},
		models.OutboundMessage{
			Recipient: models.RecipientAdmin,
			Phone:     adminPhone(b, s.business),
			Body:      messages.AdminCancelled(view),
		},
	)

	s.publish(ctx, models.EventTypeBookingCancelled, b)
	outcome.Result, outcome.Message = ResultCancelled, "Booking cancelled"
	return outcome, nil
}

// lostRace handles a concurrent tap that moved the booking between the
// status check and the transaction.
func (s *OwnerDecisionService) lostRace(ctx context.Context, from string, current *models.Booking, outcome *Outcome) *Outcome {
	s.reply(ctx, from, messages.AlreadyProcessed(current.BookingStatus))
	outcome.Result, outcome.Message = ResultAlreadyProcessed, "Already processed"
	return outcome
}

// reply answers the sender directly. Replies are not part of the booking's
// notification record.
func (s *OwnerDecisionService) reply(ctx context.Context, to, body string) {
	if err := s.messenger.Send(ctx, models.OutboundMessage{Phone: to, Body: body}); err != nil {
		s.logger.Warn("Failed to reply to webhook sender",
			zap.String("to", to),
			zap.Error(err))
	}
}

func (s *OwnerDecisionService) publish(ctx context.Context, eventType string, b *models.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingEvent(ctx, broker.NewBookingEvent(eventType, b)); err != nil {
		s.logger.Error("Failed to publish decision event",
			zap.String("type", eventType),
			zap.String("booking_id", b.BookingID),
			zap.Error(err))
	}
}

func (s *OwnerDecisionService) done(o *Outcome) *Outcome {
	util.OwnerDecisionsTotal.WithLabelValues(o.Result).Inc()
	return o
}
