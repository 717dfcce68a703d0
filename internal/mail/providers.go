package mail

import (
	"context" // Send deadlines
	"fmt"     // Error wrapping
	"time"    // Client timeout

	"github.com/go-resty/resty/v2" // HTTP client
)

// Resend sends through the Resend HTTP API
type Resend struct {
	http *resty.Client
	from string
}

// NewResend creates a Resend mailer
func NewResend(apiKey, from, base string, timeout time.Duration) *Resend {
	return &Resend{http: newHTTP(base, apiKey, timeout), from: from}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

func (r *Resend) Send(ctx context.Context, msg Message) error {
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(resendEmail{From: r.from, To: msg.To, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML}).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	if resp.IsError() {
		return apiError("resend", resp)
	}
	return nil
}

// SendGrid sends through the SendGrid v3 API
type SendGrid struct {
	http *resty.Client
	from string
}

// NewSendGrid creates a SendGrid mailer
func NewSendGrid(apiKey, from, base string, timeout time.Duration) *SendGrid {
	return &SendGrid{http: newHTTP(base, apiKey, timeout), from: from}
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	to := make([]sgAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sgAddress{Email: addr})
	}
	// text/plain must come first
	var content []sgContent
	if msg.Text != "" {
		content = append(content, sgContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		content = append(content, sgContent{Type: "text/html", Value: msg.HTML})
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(sgMail{
			Personalizations: []sgPersonalization{{To: to}},
			From:             sgAddress{Email: s.from},
			Subject:          msg.Subject,
			Content:          content,
		}).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.IsError() {
		return apiError("sendgrid", resp)
	}
	return nil
}
