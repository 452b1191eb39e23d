// Package whatsapp talks to the WhatsApp Cloud API: outbound text and
// reply-button messages, and parsing of inbound webhooks.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"booking-service/config"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// Cloud API limits for reply buttons.
const (
	maxButtonTitle = 20
	maxButtonID    = 256
)

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api returned %d: %s", e.StatusCode, e.Body)
}

// Client sends messages on behalf of one business phone number. It is built
// once from config and injected wherever messages are sent.
type Client struct {
	cfg    config.WhatsAppConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a Cloud API client. When cfg is not configured every
// send is logged and reported as delivered.
func NewClient(cfg config.WhatsAppConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://graph.facebook.com/v21.0"
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: util.GetLogger(),
	}
}

type textBody struct {
	Body string `json:"body"`
}

type replyButton struct {
	Type  string        `json:"type"`
	Reply models.Button `json:"reply"`
}

type interactive struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type outbound struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, outbound{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalize(to),
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendButtons sends an interactive message with reply buttons. The button
// id comes back verbatim in the webhook when tapped.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	in := &interactive{Type: "button"}
	in.Body.Text = body
	for _, b := range buttons {
		if len(b.ID) > maxButtonID {
			return fmt.Errorf("whatsapp: button id is %d bytes, limit is %d", len(b.ID), maxButtonID)
		}
		title := b.Title
		if r := []rune(title); len(r) > maxButtonTitle {
			title = string(r[:maxButtonTitle])
		}
		in.Action.Buttons = append(in.Action.Buttons, replyButton{
			Type:  "reply",
			Reply: models.Button{ID: b.ID, Title: title},
		})
	}

	return c.send(ctx, outbound{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalize(to),
		Type:             "interactive",
		Interactive:      in,
	})
}

// Send delivers an OutboundMessage, choosing text or buttons.
func (c *Client) Send(ctx context.Context, msg models.OutboundMessage) error {
	if len(msg.Buttons) > 0 {
		return c.SendButtons(ctx, msg.Phone, msg.Body, msg.Buttons)
	}
	return c.SendText(ctx, msg.Phone, msg.Body)
}

func (c *Client) send(ctx context.Context, payload outbound) error {
	if !c.cfg.Configured() {
		c.logger.Warn("WhatsApp not configured, message not sent",
			zap.String("to", payload.To),
			zap.String("type", payload.Type))
		return nil
	}
	if payload.To == "" {
		return fmt.Errorf("whatsapp: empty recipient")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.cfg.APIBaseURL, "/"), c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Debug("WhatsApp message sent",
		zap.String("to", payload.To),
		zap.String("type", payload.Type))
	return nil
}

func normalize(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+")
}
