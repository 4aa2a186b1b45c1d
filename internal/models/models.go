// Package models defines the core data structures for the sales agent.
//
// It includes types for clients, campaigns, leads, conversation turns and
// analytics events, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// LeadStatus describes where a lead is in its lifecycle.
type LeadStatus string

const (
	// LeadStatusNew marks a freshly ingested lead that has not been messaged yet.
	LeadStatusNew LeadStatus = "new"
	// LeadStatusContacted marks a lead that received an outbound message.
	LeadStatusContacted LeadStatus = "contacted"
	// LeadStatusResponded marks a lead that replied at least once.
	LeadStatusResponded LeadStatus = "responded"
	// LeadStatusConverted is terminal: the lead became a customer.
	LeadStatusConverted LeadStatus = "converted"
	// LeadStatusLost is terminal: the lead disengaged.
	LeadStatusLost LeadStatus = "lost"
)

// IsValidLeadStatus checks if the given lead status is supported.
func IsValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusResponded, LeadStatusConverted, LeadStatusLost:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further automated transition may leave the status.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusConverted || s == LeadStatusLost
}

// Direction indicates whether a conversation turn was received or sent.
type Direction string

const (
	// DirectionInbound is a message from the lead.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound is a message to the lead.
	DirectionOutbound Direction = "outbound"
)

// ActionType is the decision produced when processing an inbound message.
type ActionType string

const (
	// ActionRespond keeps the conversation going with a regular reply.
	ActionRespond ActionType = "respond"
	// ActionScheduleCall indicates the lead wants to talk to a person.
	ActionScheduleCall ActionType = "schedule_call"
	// ActionConvert indicates the lead is ready to buy.
	ActionConvert ActionType = "convert"
	// ActionEndConversation indicates the lead is not interested.
	ActionEndConversation ActionType = "end_conversation"
	// ActionClarify asks the lead a clarifying question.
	ActionClarify ActionType = "clarify"
)

// IsValidActionType checks if the given action type is supported.
func IsValidActionType(a ActionType) bool {
	switch a {
	case ActionRespond, ActionScheduleCall, ActionConvert, ActionEndConversation, ActionClarify:
		return true
	default:
		return false
	}
}

// Validation constants for input validation.
const (
	// MaxMessageBodyLength defines the maximum allowed length for outgoing message content.
	MaxMessageBodyLength = 4096
	// MaxLeadNameLength defines the maximum allowed length for a lead name.
	MaxLeadNameLength = 255
)

// Error variables for better error handling and testability.
var (
	ErrEmptyLeadName      = errors.New("lead name cannot be empty")
	ErrEmptyLeadPhone     = errors.New("lead phone cannot be empty")
	ErrLeadNameTooLong    = errors.New("lead name exceeds maximum length")
	ErrMissingCampaignID  = errors.New("campaign id is required")
	ErrMissingClientID    = errors.New("client id is required")
	ErrEmptyCampaignName  = errors.New("campaign name cannot be empty")
	ErrEmptyClientName    = errors.New("client name cannot be empty")
	ErrEmptyTurnContent   = errors.New("conversation turn content cannot be empty")
	ErrInvalidDirection   = errors.New("direction must be inbound or outbound")
	ErrMessageBodyTooLong = errors.New("message body exceeds maximum length")
)

// Client is a customer of the agency on whose behalf campaigns run.
type Client struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Settings  map[string]string `json:"settings,omitempty"` // well-known keys: industry, services
	CreatedAt time.Time         `json:"created_at"`
}

// Validate performs validation on a Client structure.
func (c *Client) Validate() error {
	if c.Name == "" {
		return ErrEmptyClientName
	}
	return nil
}

// Industry returns the client's industry setting, or "Unknown" if absent.
func (c *Client) Industry() string {
	if v, ok := c.Settings["industry"]; ok && v != "" {
		return v
	}
	return "Unknown"
}

// Services returns the client's services setting (comma-separated), or empty.
func (c *Client) Services() string {
	return c.Settings["services"]
}

// Campaign is a named outreach effort belonging to a client.
type Campaign struct {
	ID               int64             `json:"id"`
	ClientID         int64             `json:"client_id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	MessageTemplates map[string]string `json:"message_templates,omitempty"` // template name -> text with {placeholders}
	IsActive         bool              `json:"is_active"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Validate performs validation on a Campaign structure.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return ErrEmptyCampaignName
	}
	if c.ClientID == 0 {
		return ErrMissingClientID
	}
	return nil
}

// Lead is a prospective customer captured by an intake form for a campaign.
type Lead struct {
	ID         int64             `json:"id"`
	CampaignID int64             `json:"campaign_id"`
	Name       string            `json:"name"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email,omitempty"`
	LeadData   map[string]string `json:"lead_data,omitempty"` // free-form intake fields
	Status     LeadStatus        `json:"status"`
	LeadScore  int               `json:"lead_score"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Validate performs validation on a Lead structure.
func (l *Lead) Validate() error {
	if l.Name == "" {
		return ErrEmptyLeadName
	}
	if len(l.Name) > MaxLeadNameLength {
		return ErrLeadNameTooLong
	}
	if l.Phone == "" {
		return ErrEmptyLeadPhone
	}
	if l.CampaignID == 0 {
		return ErrMissingCampaignID
	}
	return nil
}

// ConversationTurn is one inbound or outbound message exchanged with a lead.
// Turns are append-only and immutable once created; the per-lead sequence
// ordered by SentAt is the conversation history.
type ConversationTurn struct {
	ID                int64             `json:"id"`
	LeadID            int64             `json:"lead_id"`
	Direction         Direction         `json:"direction"`
	Content           string            `json:"content"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	SentAt            time.Time         `json:"sent_at"`
}

// Validate performs validation on a ConversationTurn structure.
func (t *ConversationTurn) Validate() error {
	if t.Content == "" {
		return ErrEmptyTurnContent
	}
	if t.Direction != DirectionInbound && t.Direction != DirectionOutbound {
		return ErrInvalidDirection
	}
	return nil
}

// AnalyticsEvent records something notable that happened to a lead.
type AnalyticsEvent struct {
	ID         int64             `json:"id"`
	LeadID     int64             `json:"lead_id"`
	CampaignID int64             `json:"campaign_id"`
	EventType  string            `json:"event_type"`
	EventData  map[string]string `json:"event_data,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DecisionResult is the action/message/confidence triple produced from
// analyzing an inbound message. It is produced fresh per event and never
// persisted directly.
type DecisionResult struct {
	Action     ActionType `json:"action"`
	Message    string     `json:"message"`
	Confidence float64    `json:"confidence"`
}

// InboundMessage is a normalized incoming message from the messaging gateway.
type InboundMessage struct {
	From              string `json:"from"`
	To                string `json:"to,omitempty"`
	Body              string `json:"body"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Time              int64  `json:"time"`
}

// DeliveryReceipt reports the outcome of a successful gateway send.
type DeliveryReceipt struct {
	To                string    `json:"to"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Status            string    `json:"status"`
	SentAt            time.Time `json:"sent_at"`
}
