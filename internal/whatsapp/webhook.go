package whatsapp

import (
	"crypto/hmac"   // Payload signatures
	"crypto/sha256" // Payload signatures
	"crypto/subtle" // Token comparison
	"encoding/hex"  // Signature header
	"encoding/json" // Webhook body
	"errors"        // Sentinel errors
	"fmt"           // Error wrapping
	"strconv"       // Timestamps
	"strings"       // Header prefix
	"time"          // Timestamps
)

// SignatureHeader carries the HMAC-SHA256 of the raw body, keyed with the app secret
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrVerifyFailed     = errors.New("webhook verification failed")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
)

// VerifySignature checks a "sha256=<hex>" header against the raw body.
// An empty app secret rejects every payload.
func VerifySignature(appSecret, header string, body []byte) error {
	if appSecret == "" {
		return ErrNotConfigured
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(appSecret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the raw HMAC-SHA256 of body
func Sign(appSecret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeaderValue formats a body signature the way the Cloud API sends it
func SignatureHeaderValue(appSecret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(appSecret, body))
}

// VerifyChallenge answers the GET subscription handshake.
// It returns the challenge to echo back when mode and token match.
func VerifyChallenge(mode, token, challenge, expected string) (string, error) {
	if expected == "" || mode != "subscribe" {
		return "", ErrVerifyFailed
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return "", ErrVerifyFailed
	}
	return challenge, nil
}

// Payload is the webhook body sent by the Cloud API
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string          `json:"messaging_product"`
	Messages         []RawMessage    `json:"messages"`
	Statuses         []StatusUpdate  `json:"statuses"`
	Contacts         json.RawMessage `json:"contacts,omitempty"`
}

type RawMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// StatusUpdate reports delivery state of an outbound message
type StatusUpdate struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // sent, delivered, read, failed
	Timestamp string `json:"timestamp"`
}

// Inbound is a received message flattened out of the payload
type Inbound struct {
	ID         string
	From       string
	Type       string
	Body       string
	ReceivedAt time.Time
}

// ParseWebhook decodes a webhook body into inbound messages and status updates.
// Non text messages are kept with an empty body.
func ParseWebhook(body []byte) ([]Inbound, []StatusUpdate, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, nil, fmt.Errorf("decode webhook: %w", err)
	}
	if p.Object != "whatsapp_business_account" {
		return nil, nil, fmt.Errorf("unexpected webhook object %q", p.Object)
	}
	var msgs []Inbound
	var statuses []StatusUpdate
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				in := Inbound{ID: m.ID, From: m.From, Type: m.Type, ReceivedAt: parseUnix(m.Timestamp)}
				if m.Text != nil {
					in.Body = m.Text.Body
				}
				msgs = append(msgs, in)
			}
			statuses = append(statuses, ch.Value.Statuses...)
		}
	}
	return msgs, statuses, nil
}

func parseUnix(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
