package api

import (
	"context"
	"net/http"
	"strconv"

	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/store"

	"github.com/gin-gonic/gin"
)

// CommissionAPI serves referral commission reports
type CommissionAPI interface {
	Summary(ctx context.Context) (*store.CommissionSummary, error)
	ByStatus(ctx context.Context, status string) ([]models.Booking, error)
	ForReferrer(ctx context.Context, referralUserID int64) ([]models.Booking, *store.ReferrerSummary, error)
	Payable(ctx context.Context) ([]store.PayableCommission, error)
	Report(ctx context.Context, startDate, endDate string) ([]store.CommissionReportRow, error)
}

// TicketAPI reads e-tickets
type TicketAPI interface {
	Get(ctx context.Context, bookingID string) (*service.Ticket, error)
}

// ReferralAPI validates referral codes
type ReferralAPI interface {
	Validate(ctx context.Context, code, guestPhone string) (*service.ReferralValidation, error)
}

type validateReferralRequest struct {
	ReferralCode string `json:"referral_code"`
	GuestPhone   string `json:"guest_phone"`
}

func (h *Handler) checkPendingPayments(c *gin.Context) {
	res, err := h.svc.Monitoring.CheckPendingPayments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"result": res})
}

func (h *Handler) stuckBookings(c *gin.Context) {
	bookings, err := h.svc.Monitoring.StuckBookings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(bookings), "bookings": bookings})
}

func (h *Handler) failedNotifications(c *gin.Context) {
	bookings, err := h.svc.Monitoring.FailedNotifications(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(bookings), "bookings": bookings})
}

func (h *Handler) commissionSummary(c *gin.Context) {
	summary, err := h.svc.Commissions.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"summary": summary})
}

func (h *Handler) commissionsByStatus(c *gin.Context) {
	bookings, err := h.svc.Commissions.ByStatus(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(bookings), "bookings": bookings})
}

func (h *Handler) referrerCommissions(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("referral_user_id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid referral user ID")
		return
	}

	bookings, summary, err := h.svc.Commissions.ForReferrer(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"summary": summary, "bookings": bookings})
}

func (h *Handler) payableCommissions(c *gin.Context) {
	rows, err := h.svc.Commissions.Payable(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(rows), "referrers": rows})
}

func (h *Handler) commissionReport(c *gin.Context) {
	rows, err := h.svc.Commissions.Report(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"report": rows})
}

func (h *Handler) getTicket(c *gin.Context) {
	ticket, err := h.svc.Tickets.Get(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"ticket": ticket})
}

func (h *Handler) validateReferral(c *gin.Context) {
	var req validateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	v, err := h.svc.Referrals.Validate(c.Request.Context(), req.ReferralCode, req.GuestPhone)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !v.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "valid": false, "error": v.Error})
		return
	}
	ok(c, http.StatusOK, gin.H{"valid": true, "referral": v})
}
