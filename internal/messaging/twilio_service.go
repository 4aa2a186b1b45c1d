package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bigdata5911/sales-agent/internal/models"
	"github.com/bigdata5911/sales-agent/internal/twiliowhatsapp"
)

// minPhoneDigits is the minimum number of digits accepted in a recipient.
const minPhoneDigits = 6

// TwilioService implements the Service interface using the Twilio API.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	responses chan models.InboundMessage
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a new TwilioService wrapping the given sender,
// which may be a real Twilio client or a mock.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number: strips non-digits, prefixes 10-digit numbers with the
// domestic country code, and rejects anything shorter than six digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := twiliowhatsapp.FormatPhoneNumber(recipient)
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < minPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, minPhoneDigits)
	}

	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio; inbound messages arrive via webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()

	return nil
}

// SendMessage sends a message via Twilio and returns the delivery receipt.
// Any provider failure is wrapped in a DeliveryError.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string, metadata map[string]string) (models.DeliveryReceipt, error) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return models.DeliveryReceipt{}, &DeliveryError{To: to, Err: ErrServiceStopped}
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendMessage: validation error", "error", err, "to", to)
		return models.DeliveryReceipt{}, &DeliveryError{To: to, Err: err}
	}

	result, err := s.client.SendMessage(ctx, canonicalTo, body)
	if err != nil {
		return models.DeliveryReceipt{}, &DeliveryError{To: canonicalTo, Err: err}
	}

	receipt := models.DeliveryReceipt{
		To:                canonicalTo,
		ProviderMessageID: result.SID,
		Status:            result.Status,
		SentAt:            result.SentAt,
	}
	slog.Info("TwilioService.SendMessage: message sent", "to", canonicalTo, "sid", result.SID, "status", result.Status)
	return receipt, nil
}

// Responses returns the channel of inbound messages parsed from webhooks.
func (s *TwilioService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// ParseInboundForm extracts a normalized inbound message from Twilio webhook
// form values. The "whatsapp:" prefix and any "+" are stripped from phone
// numbers.
func ParseInboundForm(form map[string][]string) (models.InboundMessage, error) {
	get := func(key string) string {
		if vals, ok := form[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	from := stripWhatsAppPrefix(get("From"))
	body := get("Body")
	if from == "" || body == "" {
		return models.InboundMessage{}, fmt.Errorf("webhook payload missing From or Body")
	}

	return models.InboundMessage{
		From:              from,
		To:                stripWhatsAppPrefix(get("To")),
		Body:              body,
		ProviderMessageID: get("MessageSid"),
		Time:              time.Now().Unix(),
	}, nil
}

func stripWhatsAppPrefix(number string) string {
	number = strings.TrimPrefix(number, "whatsapp:")
	return strings.TrimPrefix(number, "+")
}

// WebhookHandler handles inbound Twilio webhook requests. It parses the
// incoming message and emits it on the Responses() channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("TwilioService webhook received")

	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService failed to parse webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	inbound, err := ParseInboundForm(r.PostForm)
	if err != nil {
		slog.Warn("TwilioService webhook missing fields", "error", err)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", inbound.From, "body_length", len(inbound.Body))
	s.safeEmitResponse(inbound)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// safeEmitResponse pushes an inbound message into the responses channel
// without blocking indefinitely.
func (s *TwilioService) safeEmitResponse(inbound models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", inbound.From)
		return
	}

	select {
	case s.responses <- inbound:
		slog.Debug("TwilioService emitted inbound message", "from", inbound.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", inbound.From)
	}
}
