package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// SignatureHeader carries "sha256=<hex hmac of body>" when a secret is set.
const SignatureHeader = "X-Signature"

// Webhook posts a generic JSON event to any endpoint.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
	Now    func() time.Time
}

func NewWebhook(url, secret string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 10 * time.Second},
		Now:    time.Now,
	}
}

type webhookPayload struct {
	Event     string `json:"event"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, m Message) error {
	if w == nil || w.URL == "" {
		return errors.New("webhook disabled")
	}
	body, _ := json.Marshal(webhookPayload{
		Event:     m.Title,
		Message:   m.Text,
		Timestamp: w.Now().UTC().Format(time.RFC3339),
	})
	var h http.Header
	if w.Secret != "" {
		h = http.Header{}
		h.Set(SignatureHeader, "sha256="+Sign(w.Secret, body))
	}
	return postJSON(ctx, w.Client, w.URL, body, h)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
