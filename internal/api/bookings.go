package api

import (
	"net/http"

	"booking-service/internal/service"
	"booking-service/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.svc.Bookings.Create(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	payload := gin.H{
		"booking": resp.Booking,
		"amounts": resp.Amounts,
	}
	if resp.Warning != "" {
		payload["warning"] = resp.Warning
	}
	ok(c, http.StatusCreated, payload)
}

// getBooking handles get booking by id
func (h *Handler) getBooking(c *gin.Context) {
	b, err := h.svc.Bookings.Get(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"booking": b})
}

// verifyWebhook answers the subscription handshake
func (h *Handler) verifyWebhook(c *gin.Context) {
	challenge, verified := whatsapp.VerifyHandshake(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
		h.verifyToken,
	)
	if !verified {
		h.logger.Warn("WhatsApp webhook verification failed")
		c.String(http.StatusForbidden, "Forbidden")
		return
	}
	h.logger.Info("WhatsApp webhook verified")
	c.String(http.StatusOK, challenge)
}

// receiveWebhook handles button replies. Business outcomes are always
// acknowledged with 200; only infrastructure failures ask for redelivery.
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, err)
		return
	}

	payload, err := whatsapp.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("Unparseable webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false, "result": service.ResultIgnored, "error": "Invalid payload"})
		return
	}

	outcome, err := h.svc.Decisions.HandleWebhook(c.Request.Context(), payload)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{
		"success": outcome.Success(),
		"result":  outcome.Result,
		"message": outcome.Message,
	}
	if outcome.BookingID != "" {
		resp["booking_id"] = outcome.BookingID
	}
	if outcome.Action != "" {
		resp["action"] = outcome.Action
	}
	c.JSON(http.StatusOK, resp)
}
