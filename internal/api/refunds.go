package api

import (
	"net/http"
	"strconv"

	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
)

type initiateRefundRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Reason    string `json:"reason"`
}

type completeRefundRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Force     bool   `json:"force"`
}

func (h *Handler) initiateRefund(c *gin.Context) {
	var req initiateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "booking_id is required")
		return
	}

	b, err := h.svc.Refunds.Initiate(c.Request.Context(), req.BookingID, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Refund request created", "booking": b})
}

func (h *Handler) processRefund(c *gin.Context) {
	var req service.ProcessRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "booking_id, refund_id and processed_by are required")
		return
	}

	b, err := h.svc.Refunds.Process(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Refund processed successfully", "booking": b})
}

func (h *Handler) completeRefund(c *gin.Context) {
	var req completeRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "booking_id is required")
		return
	}

	b, err := h.svc.Refunds.Complete(c.Request.Context(), req.BookingID, req.Force)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Refund marked as completed", "booking": b})
}

func (h *Handler) pendingRefunds(c *gin.Context) {
	bookings, err := h.svc.Refunds.Pending(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(bookings), "refunds": bookings})
}

func (h *Handler) refundHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	bookings, err := h.svc.Refunds.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(bookings), "refunds": bookings})
}
