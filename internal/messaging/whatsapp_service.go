package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bigdata5911/sales-agent/internal/models"
	"github.com/bigdata5911/sales-agent/internal/twiliowhatsapp"
	"github.com/bigdata5911/sales-agent/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client, for deployments that run a direct WhatsApp session instead of
// Twilio.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // access to the underlying client for event handling
	responses chan models.InboundMessage
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}

	// Only a full client can register event handlers; mocks cannot.
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient applies the same phone normalization
// rules as the Twilio service; whatsmeow JIDs are digits-only as well.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
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
	return canonical, nil
}

// Start begins event handling when a live client is available.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService.Start invoked")
	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
	}
	return nil
}

// Stop stops background processing and closes channels.
func (s *WhatsAppService) Stop() error {
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

	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	return nil
}

// SendMessage sends a message over the live WhatsApp session.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string, metadata map[string]string) (models.DeliveryReceipt, error) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return models.DeliveryReceipt{}, &DeliveryError{To: to, Err: ErrServiceStopped}
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService.SendMessage: validation error", "error", err, "to", to)
		return models.DeliveryReceipt{}, &DeliveryError{To: to, Err: err}
	}

	receipt, err := s.client.SendMessage(ctx, canonicalTo, body)
	if err != nil {
		return models.DeliveryReceipt{}, &DeliveryError{To: canonicalTo, Err: err}
	}

	slog.Info("WhatsAppService.SendMessage: message sent", "to", canonicalTo, "message_id", receipt.MessageID)
	return models.DeliveryReceipt{
		To:                canonicalTo,
		ProviderMessageID: receipt.MessageID,
		Status:            string(models.MessageStatusSent),
		SentAt:            time.Now().UTC(),
	}, nil
}

// Responses returns a channel of inbound messages from the live session.
func (s *WhatsAppService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// handleEvents registers a whatsmeow event handler and feeds inbound text
// messages into the responses channel.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService.handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Receipt:
			slog.Debug("WhatsAppService receipt event", "type", v.Type, "from", v.MessageSource.Sender.User)
		default:
			// Ignore other event types.
		}
	})

	slog.Debug("WhatsAppService event handler registered")
	<-ctx.Done()
	slog.Debug("WhatsAppService.handleEvents stopping due to context cancellation")
}

// handleIncomingMessage processes incoming text messages from leads.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		// Skip non-text messages (images, audio, etc.).
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	inbound := models.InboundMessage{
		From:              strings.TrimPrefix(evt.Info.Sender.User, "+"),
		Body:              messageText,
		ProviderMessageID: string(evt.Info.ID),
		Time:              evt.Info.Timestamp.Unix(),
	}

	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("WhatsAppService dropping inbound message (service stopped)", "from", inbound.From)
		return
	}

	select {
	case s.responses <- inbound:
		slog.Info("WhatsAppService incoming message forwarded", "from", inbound.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", inbound.From)
	}
}
