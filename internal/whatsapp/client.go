// Package whatsapp wraps the WhatsApp Cloud API: sending text messages,
// parsing webhook deliveries and answering the subscription challenge.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrNotConfigured = errors.New("whatsapp is not configured")
	ErrInvalidPhone  = errors.New("invalid phone number")
	ErrEmptyMessage  = errors.New("message body is empty")
)

// E.164 without the plus sign, as the Cloud API expects
var phonePattern = regexp.MustCompile(`^[1-9][0-9]{7,14}$`)

// NormalizePhone strips formatting and validates the number
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if !phonePattern.MatchString(phone) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phone, nil
}

// Client sends messages from one business phone number
type Client struct {
	http    *resty.Client
	phoneID string
}

// NewClient creates a client; a client without token or phone id refuses to send
func NewClient(apiURL, token, phoneID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		http.SetAuthToken(token)
	}
	c := &Client{http: http}
	if token != "" {
		c.phoneID = phoneID
	}
	return c
}

// Configured reports whether sending is possible
func (c *Client) Configured() bool {
	return c != nil && c.phoneID != ""
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a text message and returns the provider message id
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	phone, err := NormalizePhone(to)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}

	var out sendResponse
	var apiErr apiErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               phone,
			Type:             "text",
			Text:             textBody{Body: body},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/" + c.phoneID + "/messages")
	if err != nil {
		return "", fmt.Errorf("whatsapp send: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("whatsapp send: status %d: %s (code %d)", resp.StatusCode(), apiErr.Error.Message, apiErr.Error.Code)
		}
		return "", fmt.Errorf("whatsapp send: status %d", resp.StatusCode())
	}
	if len(out.Messages) == 0 {
		return "", errors.New("whatsapp send: response carried no message id")
	}
	return out.Messages[0].ID, nil
}
