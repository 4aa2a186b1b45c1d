package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigdata5911/sales-agent/internal/agent"
	"github.com/bigdata5911/sales-agent/internal/conversation"
	"github.com/bigdata5911/sales-agent/internal/messaging"
	"github.com/bigdata5911/sales-agent/internal/models"
	"github.com/bigdata5911/sales-agent/internal/store"
	"github.com/bigdata5911/sales-agent/internal/twiliowhatsapp"
)

// scriptedGenerator returns a fixed response or error.
type scriptedGenerator struct {
	response string
	err      error
}

func (g *scriptedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

type testEnv struct {
	server *Server
	store  *store.InMemoryStore
	mock   *twiliowhatsapp.MockClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewInMemoryStore()
	mock := twiliowhatsapp.NewMockClient()
	msgService := messaging.NewTwilioService(mock)
	t.Cleanup(func() { msgService.Stop() })

	gen := &scriptedGenerator{response: "ACTION: respond\nMESSAGE: Happy to help!"}
	handler := conversation.NewHandler(st, agent.New(gen), msgService)
	server := NewServer(st, msgService, handler, WithoutAutoInitialMessage())
	return &testEnv{server: server, store: st, mock: mock}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.server.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func seedCampaign(t *testing.T, st *store.InMemoryStore) *models.Campaign {
	t.Helper()
	client := &models.Client{Name: "Acme Agency"}
	if err := st.AddClient(client); err != nil {
		t.Fatalf("AddClient failed: %v", err)
	}
	campaign := &models.Campaign{ClientID: client.ID, Name: "Spring Promo", IsActive: true}
	if err := st.AddCampaign(campaign); err != nil {
		t.Fatalf("AddCampaign failed: %v", err)
	}
	return campaign
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status, got %q", resp.Status)
	}
}

func TestCreateAndGetClient(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/clients", models.Client{
		Name:     "Bright Dental",
		Settings: map[string]string{"industry": "Dental"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.request(t, http.MethodGet, "/api/v1/clients/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object result, got %T", resp.Result)
	}
	if result["name"] != "Bright Dental" {
		t.Errorf("unexpected client name %v", result["name"])
	}
}

func TestCreateClientValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/clients", models.Client{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty client name, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients", bytes.NewBufferString("{not json"))
	recRaw := httptest.NewRecorder()
	env.server.Routes().ServeHTTP(recRaw, req)
	if recRaw.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", recRaw.Code)
	}
}

func TestGetClientNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/clients/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCreateCampaignRequiresClient(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodPost, "/api/v1/campaigns", models.Campaign{ClientID: 99, Name: "Ghost"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown client, got %d", rec.Code)
	}
}

func TestCreateLeadCanonicalizesPhone(t *testing.T) {
	env := newTestEnv(t)
	campaign := seedCampaign(t, env.store)

	rec := env.request(t, http.MethodPost, "/api/v1/leads", models.Lead{
		CampaignID: campaign.ID,
		Name:       "Jordan Smith",
		Phone:      "+1 (555) 123-4567",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if result["phone"] != "15551234567" {
		t.Errorf("expected canonical phone 15551234567, got %v", result["phone"])
	}
	if result["status"] != string(models.LeadStatusNew) {
		t.Errorf("expected new status, got %v", result["status"])
	}
}

func TestCreateLeadRejectsUnknownCampaign(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodPost, "/api/v1/leads", models.Lead{
		CampaignID: 77,
		Name:       "Jordan Smith",
		Phone:      "15551234567",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown campaign, got %d", rec.Code)
	}
}

func TestListLeadsByStatus(t *testing.T) {
	env := newTestEnv(t)
	campaign := seedCampaign(t, env.store)
	lead := &models.Lead{CampaignID: campaign.ID, Name: "Jordan", Phone: "15551234567", Status: models.LeadStatusContacted}
	if err := env.store.AddLead(lead); err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/api/v1/leads?status=contacted", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	leads, ok := resp.Result.([]interface{})
	if !ok || len(leads) != 1 {
		t.Errorf("expected 1 contacted lead, got %v", resp.Result)
	}

	rec = env.request(t, http.MethodGet, "/api/v1/leads?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", rec.Code)
	}
}

func TestConversationEndpoint(t *testing.T) {
	env := newTestEnv(t)
	campaign := seedCampaign(t, env.store)
	lead := &models.Lead{CampaignID: campaign.ID, Name: "Jordan", Phone: "15551234567"}
	if err := env.store.AddLead(lead); err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		turn := &models.ConversationTurn{LeadID: lead.ID, Direction: models.DirectionOutbound, Content: fmt.Sprintf("msg %d", i)}
		if err := env.store.AddConversationTurn(turn); err != nil {
			t.Fatalf("AddConversationTurn failed: %v", err)
		}
	}

	rec := env.request(t, http.MethodGet, fmt.Sprintf("/api/v1/leads/%d/conversation", lead.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	turns, ok := resp.Result.([]interface{})
	if !ok || len(turns) != 3 {
		t.Errorf("expected 3 turns, got %v", resp.Result)
	}

	rec = env.request(t, http.MethodGet, "/api/v1/leads/999/conversation", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown lead, got %d", rec.Code)
	}
}

func TestFollowUpEndpoint(t *testing.T) {
	env := newTestEnv(t)
	campaign := seedCampaign(t, env.store)
	lead := &models.Lead{CampaignID: campaign.ID, Name: "Jordan", Phone: "15551234567", Status: models.LeadStatusContacted}
	if err := env.store.AddLead(lead); err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}

	rec := env.request(t, http.MethodPost, fmt.Sprintf("/api/v1/leads/%d/followup", lead.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.mock.SentMessages) != 1 {
		t.Errorf("expected 1 follow-up sent, got %d", len(env.mock.SentMessages))
	}

	rec = env.request(t, http.MethodPost, "/api/v1/leads/999/followup", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown lead, got %d", rec.Code)
	}
}

func TestFollowUpDeliveryFailureReturnsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	campaign := seedCampaign(t, env.store)
	lead := &models.Lead{CampaignID: campaign.ID, Name: "Jordan", Phone: "15551234567", Status: models.LeadStatusContacted}
	if err := env.store.AddLead(lead); err != nil {
		t.Fatalf("AddLead failed: %v", err)
	}
	env.mock.FailFor["15551234567"] = errors.New("gateway down")

	rec := env.request(t, http.MethodPost, fmt.Sprintf("/api/v1/leads/%d/followup", lead.ID), nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for delivery failure, got %d", rec.Code)
	}
}

func TestBulkSendEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.mock.FailFor["15550000002"] = errors.New("unreachable")

	rec := env.request(t, http.MethodPost, "/api/v1/messages/bulk", bulkSendRequest{
		Messages: []messaging.BulkMessage{
			{To: "15550000001", Body: "Hello one"},
			{To: "15550000002", Body: "Hello two"},
			{To: "15550000003", Body: "Hello three"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	results, ok := resp.Result.([]interface{})
	if !ok || len(results) != 3 {
		t.Fatalf("expected 3 results, got %v", resp.Result)
	}
	second := results[1].(map[string]interface{})
	if second["success"] != false {
		t.Errorf("expected second message to fail, got %v", second)
	}

	rec = env.request(t, http.MethodPost, "/api/v1/messages/bulk", bulkSendRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	campaign := seedCampaign(t, env.store)
	event := &models.AnalyticsEvent{LeadID: 1, CampaignID: campaign.ID, EventType: "message_sent"}
	if err := env.store.AddAnalyticsEvent(event); err != nil {
		t.Fatalf("AddAnalyticsEvent failed: %v", err)
	}

	rec := env.request(t, http.MethodGet, fmt.Sprintf("/api/v1/analytics?campaign_id=%d", campaign.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	events, ok := resp.Result.([]interface{})
	if !ok || len(events) != 1 {
		t.Errorf("expected 1 event, got %v", resp.Result)
	}

	rec = env.request(t, http.MethodGet, "/api/v1/analytics", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without campaign_id, got %d", rec.Code)
	}
}

func TestWebhookRouteRegistered(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewBufferString("From=whatsapp%3A%2B15559876543&Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected webhook to be routed, got %d", rec.Code)
	}
}
