// Package twiliowhatsapp wraps the Twilio API for WhatsApp delivery.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SendResult carries the provider's view of a dispatched message.
type SendResult struct {
	SID    string
	Status string
	SentAt time.Time
}

// Sender is the interface for sending WhatsApp messages via Twilio. The real
// Client and the in-package MockClient both implement it.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) (*SendResult, error)
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the WhatsApp sender number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewClient creates a Twilio WhatsApp client, falling back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables for any option not provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("twiliowhatsapp.NewClient: config loaded",
		"account_sid_set", cfg.AccountSID != "",
		"auth_token_set", cfg.AuthToken != "",
		"from_number_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Client{client: client, fromNumber: cfg.FromNumber}, nil
}

// SendMessage sends a WhatsApp message using the Twilio API and returns the
// provider message SID and status.
func (c *Client) SendMessage(ctx context.Context, to string, body string) (*SendResult, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom("whatsapp:" + c.fromNumber)
	params.SetBody(body)

	msg, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("twiliowhatsapp.SendMessage failed", "to", to, "error", err)
		return nil, fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	result := &SendResult{SentAt: time.Now().UTC()}
	if msg.Sid != nil {
		result.SID = *msg.Sid
	}
	if msg.Status != nil {
		result.Status = *msg.Status
	}
	slog.Debug("twiliowhatsapp message sent", "to", to, "sid", result.SID, "status", result.Status)
	return result, nil
}

// FormatPhoneNumber normalizes a phone number for WhatsApp delivery: strips
// every non-digit character and prefixes bare 10-digit numbers with the
// domestic country code "1".
func FormatPhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) == 10 && !strings.HasPrefix(cleaned, "1") {
		cleaned = "1" + cleaned
	}
	return cleaned
}

// MockClient implements Sender without touching the network (for tests).
type MockClient struct {
	SentMessages []SentMessage
	FailFor      map[string]error // recipient -> error to return
	nextSID      int
}

// SentMessage records one mock send.
type SentMessage struct {
	To   string
	Body string
}

// NewMockClient creates an empty mock sender.
func NewMockClient() *MockClient {
	return &MockClient{FailFor: make(map[string]error)}
}

// SendMessage records the message, or fails if the recipient was marked.
func (m *MockClient) SendMessage(ctx context.Context, to string, body string) (*SendResult, error) {
	if err, ok := m.FailFor[to]; ok {
		return nil, err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	m.nextSID++
	return &SendResult{
		SID:    fmt.Sprintf("SM%08d", m.nextSID),
		Status: "queued",
		SentAt: time.Now().UTC(),
	}, nil
}
