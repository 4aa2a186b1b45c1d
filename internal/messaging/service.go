// Package messaging provides the WhatsApp gateway abstraction used by the
// conversation core: sending messages, normalizing recipients and surfacing
// inbound messages as events.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// Constants for messaging service configuration.
const (
	// DefaultChannelBufferSize defines the default buffer size for inbound
	// message and receipt channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking
	// channel operations.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted on a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// DeliveryError wraps a message-send failure. It is never swallowed: callers
// decide whether to retry or surface it, and no conversation turn may be
// recorded as sent when it occurs.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsDeliveryError reports whether err is (or wraps) a DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// Service defines a pluggable message delivery abstraction over a WhatsApp
// provider. It supports sending messages and provides a channel of inbound
// messages from leads.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient phone number. Each implementation applies its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient and returns the provider's
	// delivery receipt. Failures are returned as DeliveryError.
	SendMessage(ctx context.Context, to string, body string, metadata map[string]string) (models.DeliveryReceipt, error)

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of inbound messages from leads.
	Responses() <-chan models.InboundMessage
}
