// Package store provides storage backends for the sales agent.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/bigdata5911/sales-agent/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddClient(c *models.Client) error {
	settings, err := marshalStringMap(c.Settings)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err = s.db.QueryRow(`INSERT INTO clients (name, email, phone, settings, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.Name, nilIfEmpty(c.Email), nilIfEmpty(c.Phone), nilIfEmpty(settings), c.CreatedAt).Scan(&c.ID)
	if err != nil {
		slog.Error("PostgresStore AddClient failed", "error", err, "name", c.Name)
		return fmt.Errorf("failed to insert client %s: %w", c.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetClient(id int64) (*models.Client, error) {
	row := s.db.QueryRow(`SELECT id, name, email, phone, settings, created_at FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetClient failed", "error", err, "id", id)
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListClients() ([]models.Client, error) {
	rows, err := s.db.Query(`SELECT id, name, email, phone, settings, created_at FROM clients ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListClients query failed", "error", err)
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			slog.Error("PostgresStore ListClients scan failed", "error", err)
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *PostgresStore) AddCampaign(c *models.Campaign) error {
	templates, err := marshalStringMap(c.MessageTemplates)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err = s.db.QueryRow(`INSERT INTO campaigns (client_id, name, description, message_templates, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.ClientID, c.Name, nilIfEmpty(c.Description), nilIfEmpty(templates), c.IsActive, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		slog.Error("PostgresStore AddCampaign failed", "error", err, "name", c.Name)
		return fmt.Errorf("failed to insert campaign %s: %w", c.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetCampaign(id int64) (*models.Campaign, error) {
	row := s.db.QueryRow(`SELECT id, client_id, name, description, message_templates, is_active, created_at FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCampaign failed", "error", err, "id", id)
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaignsByClient(clientID int64) ([]models.Campaign, error) {
	rows, err := s.db.Query(`SELECT id, client_id, name, description, message_templates, is_active, created_at FROM campaigns WHERE client_id = $1 ORDER BY id`, clientID)
	if err != nil {
		slog.Error("PostgresStore ListCampaignsByClient query failed", "error", err, "clientID", clientID)
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			slog.Error("PostgresStore ListCampaignsByClient scan failed", "error", err)
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *PostgresStore) AddLead(l *models.Lead) error {
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
	err = s.db.QueryRow(`INSERT INTO leads (campaign_id, name, phone, email, lead_data, status, lead_score, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		l.CampaignID, l.Name, l.Phone, nilIfEmpty(l.Email), nilIfEmpty(leadData), l.Status, l.LeadScore, l.CreatedAt, l.UpdatedAt).Scan(&l.ID)
	if err != nil {
		slog.Error("PostgresStore AddLead failed", "error", err, "phone", l.Phone)
		return fmt.Errorf("failed to insert lead %s: %w", l.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetLead(id int64) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLead failed", "error", err, "id", id)
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = $1 ORDER BY id DESC LIMIT 1`, phone)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLeadByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) queryLeads(query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore lead query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			slog.Error("PostgresStore lead scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *PostgresStore) ListLeadsByCampaign(campaignID int64) ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE campaign_id = $1 ORDER BY id`, campaignID)
}

func (s *PostgresStore) ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY id`, status)
}

func (s *PostgresStore) ListLeadsForFollowUp(cutoff time.Time) ([]models.Lead, error) {
	return s.queryLeads(`SELECT `+leadColumns+` FROM leads WHERE status = $1 AND updated_at < $2 ORDER BY id`,
		models.LeadStatusContacted, cutoff)
}

func (s *PostgresStore) UpdateLeadStatus(id int64, status models.LeadStatus) error {
	_, err := s.db.Exec(`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadStatus failed", "error", err, "id", id, "status", status)
		return fmt.Errorf("failed to update lead %d status: %w", id, err)
	}
	slog.Debug("PostgresStore UpdateLeadStatus succeeded", "id", id, "status", status)
	return nil
}

func (s *PostgresStore) UpdateLeadScore(id int64, score int) error {
	_, err := s.db.Exec(`UPDATE leads SET lead_score = $1, updated_at = $2 WHERE id = $3`, score, time.Now().UTC(), id)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadScore failed", "error", err, "id", id)
		return fmt.Errorf("failed to update lead %d score: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) AddConversationTurn(t *models.ConversationTurn) error {
	metadata, err := marshalStringMap(t.Metadata)
	if err != nil {
		return err
	}
	if t.SentAt.IsZero() {
		t.SentAt = time.Now().UTC()
	}
	err = s.db.QueryRow(`INSERT INTO conversation_turns (lead_id, direction, content, provider_message_id, metadata, sent_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.LeadID, t.Direction, t.Content, nilIfEmpty(t.ProviderMessageID), nilIfEmpty(metadata), t.SentAt).Scan(&t.ID)
	if err != nil {
		slog.Error("PostgresStore AddConversationTurn failed", "error", err, "leadID", t.LeadID)
		return fmt.Errorf("failed to insert conversation turn for lead %d: %w", t.LeadID, err)
	}
	return nil
}

func (s *PostgresStore) GetConversationHistory(leadID int64, limit int) ([]models.ConversationTurn, error) {
	query := `SELECT id, lead_id, direction, content, provider_message_id, metadata, sent_at FROM conversation_turns WHERE lead_id = $1`
	args := []interface{}{leadID}
	if limit > 0 {
		query += ` ORDER BY sent_at DESC, id DESC LIMIT $2`
		args = append(args, limit)
	} else {
		query += ` ORDER BY sent_at, id`
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetConversationHistory query failed", "error", err, "leadID", leadID)
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			slog.Error("PostgresStore GetConversationHistory scan failed", "error", err)
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

func (s *PostgresStore) AddAnalyticsEvent(e *models.AnalyticsEvent) error {
	eventData, err := marshalStringMap(e.EventData)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err = s.db.QueryRow(`INSERT INTO analytics_events (lead_id, campaign_id, event_type, event_data, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.LeadID, e.CampaignID, e.EventType, nilIfEmpty(eventData), e.CreatedAt).Scan(&e.ID)
	if err != nil {
		slog.Error("PostgresStore AddAnalyticsEvent failed", "error", err, "eventType", e.EventType)
		return fmt.Errorf("failed to insert analytics event %s: %w", e.EventType, err)
	}
	return nil
}

func (s *PostgresStore) ListAnalyticsEvents(campaignID int64) ([]models.AnalyticsEvent, error) {
	query := `SELECT id, lead_id, campaign_id, event_type, event_data, created_at FROM analytics_events`
	var args []interface{}
	if campaignID != 0 {
		query += ` WHERE campaign_id = $1`
		args = append(args, campaignID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListAnalyticsEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query analytics events: %w", err)
	}
	defer rows.Close()

	var events []models.AnalyticsEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			slog.Error("PostgresStore ListAnalyticsEvents scan failed", "error", err)
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
