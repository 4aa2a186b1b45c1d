// Package store provides storage backends for the sales agent.
//
// It includes SQLite and PostgreSQL backed stores plus an in-memory store
// for tests. All backends implement the Store interface.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the data source name: a file path for SQLite or a connection
	// string for PostgreSQL.
	DSN string
}

// Option configures store creation.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType determines whether a DSN refers to PostgreSQL or SQLite.
// PostgreSQL DSNs use URL schemes (postgres:// or postgresql://) or
// key=value connection strings; anything else is treated as an SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Store is the persistence interface shared by all backends. Add methods
// assign the generated ID back onto the passed struct.
type Store interface {
	AddClient(c *models.Client) error
	GetClient(id int64) (*models.Client, error)
	ListClients() ([]models.Client, error)

	AddCampaign(c *models.Campaign) error
	GetCampaign(id int64) (*models.Campaign, error)
	ListCampaignsByClient(clientID int64) ([]models.Campaign, error)

	AddLead(l *models.Lead) error
	GetLead(id int64) (*models.Lead, error)
	GetLeadByPhone(phone string) (*models.Lead, error)
	ListLeadsByCampaign(campaignID int64) ([]models.Lead, error)
	ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error)
	// ListLeadsForFollowUp returns contacted leads whose last update is
	// older than the cutoff.
	ListLeadsForFollowUp(cutoff time.Time) ([]models.Lead, error)
	UpdateLeadStatus(id int64, status models.LeadStatus) error
	UpdateLeadScore(id int64, score int) error

	AddConversationTurn(t *models.ConversationTurn) error
	// GetConversationHistory returns turns for a lead ordered oldest to
	// newest. If limit > 0 only the most recent limit turns are returned,
	// still in chronological order.
	GetConversationHistory(leadID int64, limit int) ([]models.ConversationTurn, error)

	AddAnalyticsEvent(e *models.AnalyticsEvent) error
	ListAnalyticsEvents(campaignID int64) ([]models.AnalyticsEvent, error)

	Close() error
}

// InMemoryStore is a Store backed by maps, for tests and local development.
type InMemoryStore struct {
	mu        sync.RWMutex
	clients   map[int64]models.Client
	campaigns map[int64]models.Campaign
	leads     map[int64]models.Lead
	turns     map[int64][]models.ConversationTurn
	events    []models.AnalyticsEvent
	nextID    int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clients:   make(map[int64]models.Client),
		campaigns: make(map[int64]models.Campaign),
		leads:     make(map[int64]models.Lead),
		turns:     make(map[int64][]models.ConversationTurn),
	}
}

func (s *InMemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) AddClient(c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.allocID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.clients[c.ID] = *c
	return nil
}

func (s *InMemoryStore) GetClient(id int64) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) ListClients() ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) AddCampaign(c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.allocID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.campaigns[c.ID] = *c
	return nil
}

func (s *InMemoryStore) GetCampaign(id int64) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) ListCampaignsByClient(clientID int64) ([]models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Campaign
	for _, c := range s.campaigns {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) AddLead(l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.allocID()
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
	s.leads[l.ID] = *l
	return nil
}

func (s *InMemoryStore) GetLead(id int64) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *InMemoryStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Lead
	for _, l := range s.leads {
		if l.Phone == phone {
			// Most recently created lead wins when a phone repeats.
			if found == nil || l.ID > found.ID {
				lead := l
				found = &lead
			}
		}
	}
	return found, nil
}

func (s *InMemoryStore) ListLeadsByCampaign(campaignID int64) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.Status == status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) ListLeadsForFollowUp(cutoff time.Time) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.Status == models.LeadStatusContacted && l.UpdatedAt.Before(cutoff) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) UpdateLeadStatus(id int64, status models.LeadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil
	}
	l.Status = status
	l.UpdatedAt = time.Now().UTC()
	s.leads[id] = l
	return nil
}

func (s *InMemoryStore) UpdateLeadScore(id int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil
	}
	l.LeadScore = score
	l.UpdatedAt = time.Now().UTC()
	s.leads[id] = l
	return nil
}

func (s *InMemoryStore) AddConversationTurn(t *models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.allocID()
	if t.SentAt.IsZero() {
		t.SentAt = time.Now().UTC()
	}
	s.turns[t.LeadID] = append(s.turns[t.LeadID], *t)
	return nil
}

func (s *InMemoryStore) GetConversationHistory(leadID int64, limit int) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns[leadID]
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *InMemoryStore) AddAnalyticsEvent(e *models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.allocID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *InMemoryStore) ListAnalyticsEvents(campaignID int64) ([]models.AnalyticsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AnalyticsEvent
	for _, e := range s.events {
		if campaignID == 0 || e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
