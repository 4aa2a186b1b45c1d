// Package store provides storage backends for the sales agent.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/bigdata5911/sales-agent/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddClient(c *models.Client) error {
	settings, err := marshalStringMap(c.Settings)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO clients (name, email, phone, settings, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, nilIfEmpty(c.Email), nilIfEmpty(c.Phone), nilIfEmpty(settings), c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddClient failed", "error", err, "name", c.Name)
		return fmt.Errorf("failed to insert client %s: %w", c.Name, err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetClient(id int64) (*models.Client, error) {
	row := s.db.QueryRow(`SELECT id, name, email, phone, settings, created_at FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetClient failed", "error", err, "id", id)
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListClients() ([]models.Client, error) {
	rows, err := s.db.Query(`SELECT id, name, email, phone, settings, created_at FROM clients ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListClients query failed", "error", err)
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			slog.Error("SQLiteStore ListClients scan failed", "error", err)
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *SQLiteStore) AddCampaign(c *models.Campaign) error {
	templates, err := marshalStringMap(c.MessageTemplates)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO campaigns (client_id, name, description, message_templates, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ClientID, c.Name, nilIfEmpty(c.Description), nilIfEmpty(templates), c.IsActive, c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddCampaign failed", "error", err, "name", c.Name)
		return fmt.Errorf("failed to insert campaign %s: %w", c.Name, err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetCampaign(id int64) (*models.Campaign, error) {
	row := s.db.QueryRow(`SELECT id, client_id, name, description, message_templates, is_active, created_at FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCampaign failed", "error", err, "id", id)
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaignsByClient(clientID int64) ([]models.Campaign, error) {
	rows, err := s.db.Query(`SELECT id, client_id, name, description, message_templates, is_active, created_at FROM campaigns WHERE client_id = ? ORDER BY id`, clientID)
	if err != nil {
		slog.Error("SQLiteStore ListCampaignsByClient query failed", "error", err, "clientID", clientID)
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			slog.Error("SQLiteStore ListCampaignsByClient scan failed", "error", err)
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *SQLiteStore) AddLead(l *models.Lead) error {
	leadData, err := marshalStringMap(l.LeadData)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	res, err := s.db.Exec(`INSERT INTO leads (campaign_id, name, phone, email, lead_data, status, lead_score, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.CampaignID, l.Name, l.Phone, nilIfEmpty(l.Email), nilIfEmpty(leadData), l.Status, l.LeadScore, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddLead failed", "error", err, "phone", l.Phone)
		return fmt.Errorf("failed to insert lead %s: %w", l.Name, err)
	}
	l.ID, err = res.LastInsertId()
	return err
}

const leadColumns = `id, campaign_id, name, phone, email, lead_data, status, lead_score, created_at, updated_at`

func (s *SQLiteStore) GetLead(id int64) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLead failed", "error", err, "id", id)
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = ? ORDER BY id DESC LIMIT 1`, phone)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLeadByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return &l, nil
}

func (s *SQLiteStore) queryLeads(query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore lead query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			slog.Error("SQLiteStore lead scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *SQLiteStore) ListLeadsByCampaign(campaignID int64) ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE campaign_id = ? ORDER BY id`, campaignID)
}

func (s *SQLiteStore) ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE status = ? ORDER BY id`, status)
}

func (s *SQLiteStore) ListLeadsForFollowUp(cutoff time.Time) ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE status = ? AND updated_at < ? ORDER BY id`,
		models.LeadStatusContacted, cutoff)
}

func (s *SQLiteStore) UpdateLeadStatus(id int64, status models.LeadStatus) error {
	_, err := s.db.Exec(`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadStatus failed", "error", err, "id", id, "status", status)
		return fmt.Errorf("failed to update lead %d status: %w", id, err)
	}
	slog.Debug("SQLiteStore UpdateLeadStatus succeeded", "id", id, "status", status)
	return nil
}

func (s *SQLiteStore) UpdateLeadScore(id int64, score int) error {
	_, err := s.db.Exec(`UPDATE leads SET lead_score = ?, updated_at = ? WHERE id = ?`, score, time.Now().UTC(), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadScore failed", "error", err, "id", id)
		return fmt.Errorf("failed to update lead %d score: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddConversationTurn(t *models.ConversationTurn) error {
	metadata, err := marshalStringMap(t.Metadata)
	if err != nil {
		return err
	}
	if t.SentAt.IsZero() {
		t.SentAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO conversation_turns (lead_id, direction, content, provider_message_id, metadata, sent_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.LeadID, t.Direction, t.Content, nilIfEmpty(t.ProviderMessageID), nilIfEmpty(metadata), t.SentAt)
	if err != nil {
		slog.Error("SQLiteStore AddConversationTurn failed", "error", err, "leadID", t.LeadID)
		return fmt.Errorf("failed to insert conversation turn for lead %d: %w", t.LeadID, err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetConversationHistory(leadID int64, limit int) ([]models.ConversationTurn, error) {
	query := `SELECT id, lead_id, direction, content, provider_message_id, metadata, sent_at FROM conversation_turns WHERE lead_id = ?`
	args := []interface{}{leadID}
	if limit > 0 {
		// Take the newest rows, then flip back to chronological order.
		query += ` ORDER BY sent_at DESC, id DESC LIMIT ?`
		args = append(args, limit)
	} else {
		query += ` ORDER BY sent_at, id`
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetConversationHistory query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			slog.Error("SQLiteStore GetConversationHistory scan failed", "error", err)
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 {
		reverseTurns(turns)
	}
	return turns, nil
}

func reverseTurns(turns []models.ConversationTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func (s *SQLiteStore) AddAnalyticsEvent(e *models.AnalyticsEvent) error {
	eventData, err := marshalStringMap(e.EventData)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO analytics_events (lead_id, campaign_id, event_type, event_data, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.LeadID, e.CampaignID, e.EventType, nilIfEmpty(eventData), e.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddAnalyticsEvent failed", "error", err, "eventType", e.EventType)
		return fmt.Errorf("failed to insert analytics event %s: %w", e.EventType, err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListAnalyticsEvents(campaignID int64) ([]models.AnalyticsEvent, error) {
	query := `SELECT id, lead_id, campaign_id, event_type, event_data, created_at FROM analytics_events`
	var args []interface{}
	if campaignID != 0 {
		query += ` WHERE campaign_id = ?`
		args = append(args, campaignID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListAnalyticsEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query analytics events: %w", err)
	}
	defer rows.Close()

	var events []models.AnalyticsEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			slog.Error("SQLiteStore ListAnalyticsEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
