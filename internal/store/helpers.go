package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalStringMap encodes a map as JSON for a text column. Nil and empty
// maps encode as the empty string so the column stays NULL.
func marshalStringMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal map: %w", err)
	}
	return string(b), nil
}

// unmarshalStringMap decodes a JSON text column into a map. Malformed
// JSON yields an empty map rather than an error so a bad row cannot
// poison reads.
func unmarshalStringMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		slog.Error("store: failed to unmarshal map column", "error", err)
		return map[string]string{}
	}
	return m
}

// scanClient scans a client row: id, name, email, phone, settings, created_at.
func scanClient(row rowScanner) (models.Client, error) {
	var c models.Client
	var email, phone, settings sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &email, &phone, &settings, &c.CreatedAt); err != nil {
		return c, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Settings = unmarshalStringMap(settings.String)
	return c, nil
}

// scanCampaign scans a campaign row: id, client_id, name, description,
// message_templates, is_active, created_at.
func scanCampaign(row rowScanner) (models.Campaign, error) {
	var c models.Campaign
	var description, templates sql.NullString
	if err := row.Scan(&c.ID, &c.ClientID, &c.Name, &description, &templates, &c.IsActive, &c.CreatedAt); err != nil {
		return c, err
	}
	c.Description = description.String
	c.MessageTemplates = unmarshalStringMap(templates.String)
	return c, nil
}

// scanLead scans a lead row: id, campaign_id, name, phone, email,
// lead_data, status, lead_score, created_at, updated_at.
func scanLead(row rowScanner) (models.Lead, error) {
	var l models.Lead
	var email, leadData sql.NullString
	if err := row.Scan(&l.ID, &l.CampaignID, &l.Name, &l.Phone, &email, &leadData, &l.Status, &l.LeadScore, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return l, err
	}
	l.Email = email.String
	l.LeadData = unmarshalStringMap(leadData.String)
	return l, nil
}

// scanTurn scans a conversation turn row: id, lead_id, direction, content,
// provider_message_id, metadata, sent_at.
func scanTurn(row rowScanner) (models.ConversationTurn, error) {
	var t models.ConversationTurn
	var providerID, metadata sql.NullString
	if err := row.Scan(&t.ID, &t.LeadID, &t.Direction, &t.Content, &providerID, &metadata, &t.SentAt); err != nil {
		return t, err
	}
	t.ProviderMessageID = providerID.String
	t.Metadata = unmarshalStringMap(metadata.String)
	return t, nil
}

// scanEvent scans an analytics event row: id, lead_id, campaign_id,
// event_type, event_data, created_at.
func scanEvent(row rowScanner) (models.AnalyticsEvent, error) {
	var e models.AnalyticsEvent
	var eventData sql.NullString
	if err := row.Scan(&e.ID, &e.LeadID, &e.CampaignID, &e.EventType, &eventData, &e.CreatedAt); err != nil {
		return e, err
	}
	e.EventData = unmarshalStringMap(eventData.String)
	return e, nil
}
