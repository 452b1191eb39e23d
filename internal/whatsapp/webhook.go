package whatsapp

import "encoding/json"

// WebhookPayload is the subset of the Cloud API webhook body we read.
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []InboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// InboundMessage is one message delivered to the business number.
type InboundMessage struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

// ButtonReply is a tapped reply button.
type ButtonReply struct {
	MessageID string
	From      string
	ButtonID  string
	Title     string
}

// ParseWebhook decodes a raw webhook body.
func ParseWebhook(body []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ButtonReply returns the first interactive button reply in the payload.
// Status updates, plain texts and other events yield false.
func (p *WebhookPayload) ButtonReply() (*ButtonReply, bool) {
	if p == nil || len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil, false
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return nil, false
	}

	m := msgs[0]
	if m.Type != "interactive" || m.Interactive == nil || m.Interactive.ButtonReply == nil {
		return nil, false
	}
	if m.Interactive.ButtonReply.ID == "" || m.From == "" {
		return nil, false
	}
	return &ButtonReply{
		MessageID: m.ID,
		From:      m.From,
		ButtonID:  m.Interactive.ButtonReply.ID,
		Title:     m.Interactive.ButtonReply.Title,
	}, true
}

// VerifyHandshake answers the subscription challenge. ok is false when the
// mode or token do not match.
func VerifyHandshake(mode, token, challenge, expectedToken string) (string, bool) {
	if mode != "subscribe" || expectedToken == "" || token != expectedToken {
		return "", false
	}
	return challenge, true
}
