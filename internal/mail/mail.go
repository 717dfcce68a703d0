// Package mail sends transactional emails through a configurable provider.
package mail

import (
	"context"          // Send deadlines
	"errors"           // Sentinel errors
	"fmt"              // Error wrapping
	netmail "net/mail" // Address parsing
	"strings"          // Body trimming
	"time"             // Client timeout

	"clube_beneficios/internal/metrics" // Prometheus collectors

	"github.com/go-resty/resty/v2" // HTTP client
	"github.com/sirupsen/logrus"   // Logging
)

// Provider endpoints
const (
	ResendURL   = "https://api.resend.com"
	SendGridURL = "https://api.sendgrid.com"
)

var ErrInvalidMessage = errors.New("invalid message")

// Message is one email
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Validate checks the recipients and that there is something to send
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if _, err := netmail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: bad recipient %q", ErrInvalidMessage, to)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	if m.Text == "" && m.HTML == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Options configures New
type Options struct {
	Provider string // log, resend or sendgrid
	APIKey   string
	From     string
	BaseURL  string // overrides the provider endpoint
	Timeout  time.Duration
	Metrics  *metrics.Metrics
}

// New returns the mailer for the configured provider
func New(opts Options) (Mailer, error) {
	var inner Mailer
	switch opts.Provider {
	case "", "log":
		return &instrumented{provider: "log", next: LogMailer{}, metrics: opts.Metrics}, nil
	case "resend":
		inner = NewResend(opts.APIKey, opts.From, baseURL(opts.BaseURL, ResendURL), opts.Timeout)
	case "sendgrid":
		inner = NewSendGrid(opts.APIKey, opts.From, baseURL(opts.BaseURL, SendGridURL), opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", opts.Provider)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("mail provider %s requires an API key", opts.Provider)
	}
	return &instrumented{provider: opts.Provider, next: inner, metrics: opts.Metrics}, nil
}

func baseURL(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

func newHTTP(base, apiKey string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
}

// apiError turns a non 2xx provider reply into an error
func apiError(provider string, resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("%s: status %d: %s", provider, resp.StatusCode(), body)
}

// LogMailer only logs; used in development
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	}).Info("Email (log provider)")
	return nil
}

// instrumented validates, counts and logs every send
type instrumented struct {
	provider string
	next     Mailer
	metrics  *metrics.Metrics
}

func (m *instrumented) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	err := m.next.Send(ctx, msg)
	m.metrics.MailSent(m.provider, err == nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"provider": m.provider,
			"subject":  msg.Subject,
			"error":    err.Error(),
		}).Error("Failed to send email")
	}
	return err
}
