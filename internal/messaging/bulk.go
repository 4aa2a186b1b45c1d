package messaging

import (
	"context"
	"log/slog"

	"github.com/bigdata5911/sales-agent/internal/models"
	"github.com/bigdata5911/sales-agent/internal/twiliowhatsapp"
)

// BulkMessage is one entry in a bulk send request. Either Body or Template
// must be set; when Template is set the body is rendered from the named
// built-in template with the supplied variables.
type BulkMessage struct {
	To        string            `json:"to"`
	Body      string            `json:"body,omitempty"`
	Template  string            `json:"template,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ResolveBody returns the message body to send, rendering the template when
// one is named.
func (m BulkMessage) ResolveBody() string {
	if m.Template != "" {
		return twiliowhatsapp.BuildTemplateMessage(m.Template, m.Variables)
	}
	return m.Body
}

// BulkResult reports the outcome for one bulk entry. Results are returned in
// request order, one per input message.
type BulkResult struct {
	To      string                 `json:"to"`
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Receipt models.DeliveryReceipt `json:"receipt,omitempty"`
}

// SendBulk sends messages sequentially with per-item failure capture: one
// message's failure does not abort the batch.
func SendBulk(ctx context.Context, svc Service, messages []BulkMessage) []BulkResult {
	results := make([]BulkResult, 0, len(messages))
	for _, msg := range messages {
		receipt, err := svc.SendMessage(ctx, msg.To, msg.ResolveBody(), msg.Metadata)
		if err != nil {
			slog.Error("messaging.SendBulk: message failed", "to", msg.To, "error", err)
			results = append(results, BulkResult{To: msg.To, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{To: receipt.To, Success: true, Receipt: receipt})
	}
	slog.Info("messaging.SendBulk: batch completed", "total", len(messages))
	return results
}
