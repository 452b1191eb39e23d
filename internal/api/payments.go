package api

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callbackPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{if .Success}}Payment Successful{{else}}Payment Failed{{end}}</title>
  <style>
    body { font-family: Arial, sans-serif; background: #f4f6f8; margin: 0; padding: 40px 16px; }
    .card { max-width: 480px; margin: 0 auto; background: #fff; border-radius: 8px; padding: 32px; text-align: center; }
    .ok { color: #2e7d32; } .bad { color: #c62828; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid #eee; }
    a.button { display: inline-block; margin-top: 24px; padding: 12px 24px; background: #1565c0; color: #fff; border-radius: 4px; text-decoration: none; }
  </style>
</head>
<body>
  <div class="card">
  {{if .Success}}
    <h1 class="ok">Payment Successful</h1>
    <p>Your booking request has been sent to the property owner for confirmation.</p>
  {{else}}
    <h1 class="bad">Payment Failed</h1>
    <p>{{if .Message}}{{.Message}}{{else}}Your payment could not be completed.{{end}}</p>
  {{end}}
  {{if .BookingID}}<div class="row"><span>Booking ID</span><span>{{.BookingID}}</span></div>{{end}}
  {{if .OrderID}}<div class="row"><span>Order ID</span><span>{{.OrderID}}</span></div>{{end}}
  {{if .TransactionID}}<div class="row"><span>Transaction ID</span><span>{{.TransactionID}}</span></div>{{end}}
  {{if .Amount}}<div class="row"><span>Amount</span><span>&#8377;{{.Amount}}</span></div>{{end}}
  {{if .RedirectURL}}<a class="button" href="{{.RedirectURL}}">{{if .Success}}View Ticket{{else}}Continue{{end}}</a>{{end}}
  </div>
</body>
</html>`

var callbackTemplate = template.Must(template.New("callback").Parse(callbackPage))

type callbackView struct {
	Success       bool
	Message       string
	BookingID     string
	OrderID       string
	TransactionID string
	Amount        string
	RedirectURL   string
}

// initiatePayment handles payment initiation
func (h *Handler) initiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "booking_id is required")
		return
	}

	resp, err := h.svc.Payments.Initiate(c.Request.Context(), &req, c.Request.Host)
	if err != nil {
		h.fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"paytm_params": resp.PaytmParams,
		"gateway_url":  resp.GatewayURL,
		"order_id":     resp.OrderID,
		"booking_id":   resp.BookingID,
		"amount":       resp.Amount,
	})
}

// paymentCallback handles the gateway redirect. The gateway posts a form;
// JSON bodies are accepted for server-to-server notifications.
func (h *Handler) paymentCallback(c *gin.Context) {
	params, err := callbackParams(c)
	if err != nil {
		h.logger.Warn("Unreadable payment callback", zap.Error(err))
		c.HTML(http.StatusBadRequest, "callback", callbackView{Message: "Invalid payment response"})
		return
	}

	res, err := h.svc.Payments.HandleCallback(c.Request.Context(), params)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Payment callback failed", zap.String("order_id", params["ORDERID"]), zap.Error(err))
		}
		c.HTML(status, "callback", callbackView{
			Message: callbackFailureMessage(status),
			OrderID: params["ORDERID"],
		})
		return
	}

	view := callbackView{
		Success:       res.Success,
		Message:       res.Message,
		OrderID:       res.OrderID,
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		RedirectURL:   res.RedirectURL,
	}
	if res.Booking != nil {
		view.BookingID = res.Booking.BookingID
	}
	c.HTML(http.StatusOK, "callback", view)
}

func callbackParams(c *gin.Context) (map[string]string, error) {
	params := make(map[string]string)

	// JSON values are kept as the gateway wrote them: strings are unquoted
	// and numbers keep their literal text, so the signed string is unchanged.
	if c.ContentType() == gin.MIMEJSON {
		var body map[string]json.RawMessage
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		for k, raw := range body {
			raw = bytes.TrimSpace(raw)
			switch {
			case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
			case raw[0] == '"':
				var v string
				if err := json.Unmarshal(raw, &v); err != nil {
					return nil, err
				}
				params[k] = v
			default:
				params[k] = string(raw)
			}
		}
		return params, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	for k := range c.Request.PostForm {
		params[k] = c.Request.PostForm.Get(k)
	}
	return params, nil
}

func callbackFailureMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Payment verification failed"
	case http.StatusNotFound:
		return "Booking not found for this payment"
	default:
		return "Payment processing failed"
	}
}
