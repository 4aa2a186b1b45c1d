// Package api provides HTTP handlers for the sales agent endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bigdata5911/sales-agent/internal/messaging"
	"github.com/bigdata5911/sales-agent/internal/models"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

func (s *Server) clientsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.createClientHandler(w, r)
	case http.MethodGet:
		s.listClientsHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createClientHandler(w http.ResponseWriter, r *http.Request) {
	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		slog.Warn("Server.createClientHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := client.Validate(); err != nil {
		slog.Warn("Server.createClientHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.AddClient(&client); err != nil {
		slog.Error("Server.createClientHandler: failed to store client", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create client"))
		return
	}
	slog.Info("Server.createClientHandler: client created", "clientID", client.ID, "name", client.Name)
	writeJSONResponse(w, http.StatusCreated, models.Success(client))
}

func (s *Server) listClientsHandler(w http.ResponseWriter, r *http.Request) {
	clients, err := s.st.ListClients()
	if err != nil {
		slog.Error("Server.listClientsHandler: failed to list clients", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list clients"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(clients))
}

// clientRouter handles /api/v1/clients/{id} and /api/v1/clients/{id}/campaigns.
func (s *Server) clientRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/clients/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid client ID"))
		return
	}

	switch {
	case len(parts) == 1:
		client, err := s.st.GetClient(id)
		if err != nil {
			slog.Error("Server.clientRouter: failed to get client", "error", err, "clientID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get client"))
			return
		}
		if client == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Client not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(client))
	case len(parts) == 2 && parts[1] == "campaigns":
		campaigns, err := s.st.ListCampaignsByClient(id)
		if err != nil {
			slog.Error("Server.clientRouter: failed to list campaigns", "error", err, "clientID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list campaigns"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(campaigns))
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

func (s *Server) campaignsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.createCampaignHandler(w, r)
	case http.MethodGet:
		s.listCampaignsHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var campaign models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&campaign); err != nil {
		slog.Warn("Server.createCampaignHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := campaign.Validate(); err != nil {
		slog.Warn("Server.createCampaignHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	client, err := s.st.GetClient(campaign.ClientID)
	if err != nil {
		slog.Error("Server.createCampaignHandler: failed to check client", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check client"))
		return
	}
	if client == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Client not found"))
		return
	}
	if err := s.st.AddCampaign(&campaign); err != nil {
		slog.Error("Server.createCampaignHandler: failed to store campaign", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create campaign"))
		return
	}
	slog.Info("Server.createCampaignHandler: campaign created", "campaignID", campaign.ID, "name", campaign.Name)
	writeJSONResponse(w, http.StatusCreated, models.Success(campaign))
}

func (s *Server) listCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing or invalid client_id parameter"))
		return
	}
	campaigns, err := s.st.ListCampaignsByClient(clientID)
	if err != nil {
		slog.Error("Server.listCampaignsHandler: failed to list campaigns", "error", err, "clientID", clientID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list campaigns"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(campaigns))
}

// campaignRouter handles /api/v1/campaigns/{id} and /api/v1/campaigns/{id}/leads.
func (s *Server) campaignRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/campaigns/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid campaign ID"))
		return
	}

	switch {
	case len(parts) == 1:
		campaign, err := s.st.GetCampaign(id)
		if err != nil {
			slog.Error("Server.campaignRouter: failed to get campaign", "error", err, "campaignID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get campaign"))
			return
		}
		if campaign == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Campaign not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(campaign))
	case len(parts) == 2 && parts[1] == "leads":
		leads, err := s.st.ListLeadsByCampaign(id)
		if err != nil {
			slog.Error("Server.campaignRouter: failed to list leads", "error", err, "campaignID", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(leads))
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.createLeadHandler(w, r)
	case http.MethodGet:
		s.listLeadsHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// createLeadHandler ingests a lead. The phone number is canonicalized
// before storage; by default the opening message goes out asynchronously
// right after ingestion.
func (s *Server) createLeadHandler(w http.ResponseWriter, r *http.Request) {
	var lead models.Lead
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		slog.Warn("Server.createLeadHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := lead.Validate(); err != nil {
		slog.Warn("Server.createLeadHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	canonicalPhone, err := s.msgService.ValidateAndCanonicalizeRecipient(lead.Phone)
	if err != nil {
		slog.Warn("Server.createLeadHandler: phone validation failed", "error", err, "phone", lead.Phone)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	lead.Phone = canonicalPhone
	lead.Status = models.LeadStatusNew

	campaign, err := s.st.GetCampaign(lead.CampaignID)
	if err != nil {
		slog.Error("Server.createLeadHandler: failed to check campaign", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check campaign"))
		return
	}
	if campaign == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Campaign not found"))
		return
	}

	if err := s.st.AddLead(&lead); err != nil {
		slog.Error("Server.createLeadHandler: failed to store lead", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create lead"))
		return
	}
	slog.Info("Server.createLeadHandler: lead created", "leadID", lead.ID, "campaignID", lead.CampaignID)

	if s.autoInitial {
		leadID := lead.ID
		go func() {
			if err := s.handler.SendInitialMessage(context.Background(), leadID); err != nil {
				slog.Error("Server.createLeadHandler: initial message failed", "error", err, "leadID", leadID)
			}
		}()
	}

	writeJSONResponse(w, http.StatusCreated, models.Success(lead))
}

func (s *Server) listLeadsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if statusParam := q.Get("status"); statusParam != "" {
		status := models.LeadStatus(statusParam)
		if !models.IsValidLeadStatus(status) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid status parameter"))
			return
		}
		leads, err := s.st.ListLeadsByStatus(status)
		if err != nil {
			slog.Error("Server.listLeadsHandler: failed to list leads by status", "error", err, "status", status)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(leads))
		return
	}

	campaignID, err := strconv.ParseInt(q.Get("campaign_id"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing or invalid campaign_id parameter"))
		return
	}
	leads, err := s.st.ListLeadsByCampaign(campaignID)
	if err != nil {
		slog.Error("Server.listLeadsHandler: failed to list leads", "error", err, "campaignID", campaignID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}

// leadRouter handles /api/v1/leads/{id}, /api/v1/leads/{id}/conversation
// and /api/v1/leads/{id}/followup.
func (s *Server) leadRouter(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/leads/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid lead ID"))
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getLeadHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "conversation" && r.Method == http.MethodGet:
		s.conversationHandler(w, r, id)
	case len(parts) == 2 && parts[1] == "followup" && r.Method == http.MethodPost:
		s.followUpHandler(w, r, id)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

func (s *Server) getLeadHandler(w http.ResponseWriter, r *http.Request, id int64) {
	lead, err := s.st.GetLead(id)
	if err != nil {
		slog.Error("Server.getLeadHandler: failed to get lead", "error", err, "leadID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get lead"))
		return
	}
	if lead == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(lead))
}

func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request, id int64) {
	lead, err := s.st.GetLead(id)
	if err != nil {
		slog.Error("Server.conversationHandler: failed to get lead", "error", err, "leadID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get lead"))
		return
	}
	if lead == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}

	limit := 0
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err = strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
	}

	turns, err := s.st.GetConversationHistory(id, limit)
	if err != nil {
		slog.Error("Server.conversationHandler: failed to load history", "error", err, "leadID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

func (s *Server) followUpHandler(w http.ResponseWriter, r *http.Request, id int64) {
	lead, err := s.st.GetLead(id)
	if err != nil {
		slog.Error("Server.followUpHandler: failed to get lead", "error", err, "leadID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get lead"))
		return
	}
	if lead == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Lead not found"))
		return
	}

	if err := s.handler.SendFollowUp(r.Context(), id); err != nil {
		slog.Error("Server.followUpHandler: follow-up failed", "error", err, "leadID", id)
		if messaging.IsDeliveryError(err) {
			writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to deliver follow-up message"))
			return
		}
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send follow-up"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Follow-up sent", nil))
}

// bulkSendRequest is the body for POST /api/v1/messages/bulk.
type bulkSendRequest struct {
	Messages []messaging.BulkMessage `json:"messages"`
}

func (s *Server) bulkSendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req bulkSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.bulkSendHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if len(req.Messages) == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("No messages provided"))
		return
	}

	results := messaging.SendBulk(r.Context(), s.msgService, req.Messages)
	slog.Info("Server.bulkSendHandler: bulk send finished", "total", len(results))
	writeJSONResponse(w, http.StatusOK, models.Success(results))
}

func (s *Server) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	campaignID, err := strconv.ParseInt(r.URL.Query().Get("campaign_id"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing or invalid campaign_id parameter"))
		return
	}
	events, err := s.st.ListAnalyticsEvents(campaignID)
	if err != nil {
		slog.Error("Server.analyticsHandler: failed to list events", "error", err, "campaignID", campaignID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list analytics events"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}
