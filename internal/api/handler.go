package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/util"
	"booking-service/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BookingAPI creates and reads bookings
type BookingAPI interface {
	Create(ctx context.Context, req *service.CreateBookingRequest) (*service.CreateBookingResponse, error)
	Get(ctx context.Context, bookingID string) (*models.Booking, error)
}

// PaymentAPI starts and settles gateway payments
type PaymentAPI interface {
	Initiate(ctx context.Context, req *service.InitiatePaymentRequest, host string) (*service.InitiatePaymentResponse, error)
	HandleCallback(ctx context.Context, params map[string]string) (*service.CallbackResult, error)
}

// DecisionAPI handles owner button taps
type DecisionAPI interface {
	HandleWebhook(ctx context.Context, payload *whatsapp.WebhookPayload) (*service.Outcome, error)
}

// RefundAPI drives the refund queue
type RefundAPI interface {
	Initiate(ctx context.Context, bookingID, reason string) (*models.Booking, error)
	Process(ctx context.Context, req *service.ProcessRefundRequest) (*models.Booking, error)
	Complete(ctx context.Context, bookingID string, force bool) (*models.Booking, error)
	Pending(ctx context.Context) ([]models.Booking, error)
	History(ctx context.Context, limit int) ([]models.Booking, error)
}

// MonitoringAPI exposes the payment sweep and its reports
type MonitoringAPI interface {
	CheckPendingPayments(ctx context.Context) (*service.SweepResult, error)
	StuckBookings(ctx context.Context) ([]models.Booking, error)
	FailedNotifications(ctx context.Context) ([]models.Booking, error)
}

// Services groups the workflows served over HTTP.
type Services struct {
	Bookings    BookingAPI
	Payments    PaymentAPI
	Decisions   DecisionAPI
	Refunds     RefundAPI
	Monitoring  MonitoringAPI
	Commissions CommissionAPI
	Tickets     TicketAPI
	Referrals   ReferralAPI
}

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc         Services
	verifyToken string
	checks      []ReadinessCheck
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler. verifyToken answers the WhatsApp
// webhook handshake.
func NewHandler(svc Services, verifyToken string, checks ...ReadinessCheck) *Handler {
	return &Handler{
		svc:         svc,
		verifyToken: verifyToken,
		checks:      checks,
		logger:      util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.SetHTMLTemplate(callbackTemplate)

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/bookings", h.createBooking)
		api.GET("/bookings/:booking_id", h.getBooking)

		api.POST("/payments/paytm/initiate", h.initiatePayment)
		api.POST("/payments/paytm/callback", h.paymentCallback)

		api.GET("/whatsapp/webhook", h.verifyWebhook)
		api.POST("/whatsapp/webhook", h.receiveWebhook)

		api.POST("/refunds/initiate", h.initiateRefund)
		api.POST("/refunds/process", h.processRefund)
		api.POST("/refunds/complete", h.completeRefund)
		api.GET("/refunds/pending", h.pendingRefunds)
		api.GET("/refunds/history", h.refundHistory)

		api.GET("/monitoring/pending-payments", h.checkPendingPayments)
		api.GET("/monitoring/stuck-bookings", h.stuckBookings)
		api.GET("/monitoring/failed-notifications", h.failedNotifications)

		api.GET("/commissions/summary", h.commissionSummary)
		api.GET("/commissions/by-status", h.commissionsByStatus)
		api.GET("/commissions/referrer/:referral_user_id", h.referrerCommissions)
		api.GET("/commissions/payable", h.payableCommissions)
		api.GET("/commissions/report", h.commissionReport)

		api.GET("/tickets/:booking_id", h.getTicket)
		api.POST("/referrals/validate", h.validateReferral)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results := make(gin.H, len(h.checks))
	ready := true
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("check", check.Name), zap.Error(err))
			results[check.Name] = err.Error()
			ready = false
			continue
		}
		results[check.Name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": results,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
		"time":   time.Now().Unix(),
	})
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrPaymentAlreadyCompleted),
		errors.Is(err, service.ErrInvalidChecksum):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStateConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Internal errors are logged and not echoed.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		message := "Internal server error"
		if errors.Is(err, service.ErrGatewayNotConfigured) {
			message = err.Error()
		}
		c.JSON(status, gin.H{"success": false, "error": message})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

// ok writes the success envelope around payload.
func ok(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
