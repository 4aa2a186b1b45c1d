// Package conversation orchestrates lead conversations: it joins the
// store, the decision agent and the messaging gateway, applying lifecycle
// transitions as messages flow in and out.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigdata5911/sales-agent/internal/agent"
	"github.com/bigdata5911/sales-agent/internal/messaging"
	"github.com/bigdata5911/sales-agent/internal/models"
	"github.com/bigdata5911/sales-agent/internal/store"
)

// Analytics event types recorded by the handler.
const (
	EventTypeInitialMessageSent = "initial_message_sent"
	EventTypeFollowUpSent       = "follow_up_sent"
	EventTypeMessageReceived    = "message_received"
	EventTypeMessageSent        = "message_sent"
	EventTypeLeadConverted      = "lead_converted"
	EventTypeConversationEnded  = "conversation_ended"
	EventTypeCallRequested      = "call_requested"
)

// Handler drives conversations with leads. All processing for a given
// lead is serialized; different leads proceed concurrently.
type Handler struct {
	store store.Store
	agent *agent.Agent
	msg   messaging.Service

	mu        sync.Mutex
	leadLocks map[int64]*sync.Mutex
}

// NewHandler creates a conversation handler.
func NewHandler(st store.Store, ag *agent.Agent, msg messaging.Service) *Handler {
	return &Handler{
		store:     st,
		agent:     ag,
		msg:       msg,
		leadLocks: make(map[int64]*sync.Mutex),
	}
}

// leadLock returns the mutex serializing work for one lead.
func (h *Handler) leadLock(leadID int64) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.leadLocks[leadID]
	if !ok {
		lock = &sync.Mutex{}
		h.leadLocks[leadID] = lock
	}
	return lock
}

// Run consumes inbound messages from the gateway until the context is
// cancelled.
func (h *Handler) Run(ctx context.Context) {
	slog.Debug("Handler.Run: starting inbound loop")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Handler.Run: context cancelled, stopping")
			return
		case inbound, ok := <-h.msg.Responses():
			if !ok {
				slog.Debug("Handler.Run: responses channel closed, stopping")
				return
			}
			if err := h.HandleInbound(ctx, inbound); err != nil {
				slog.Error("Handler.Run: failed to handle inbound message", "error", err, "from", inbound.From)
			}
		}
	}
}

// HandleInbound processes one inbound message: it records the turn,
// advances the lead lifecycle, asks the agent for a decision and sends
// the reply. A delivery failure is returned to the caller; in that case
// no outbound turn is recorded.
func (h *Handler) HandleInbound(ctx context.Context, inbound models.InboundMessage) error {
	lead, err := h.store.GetLeadByPhone(inbound.From)
	if err != nil {
		return fmt.Errorf("failed to look up lead by phone: %w", err)
	}
	if lead == nil {
		slog.Warn("Handler.HandleInbound: no lead for sender, ignoring", "from", inbound.From)
		return nil
	}

	lock := h.leadLock(lead.ID)
	lock.Lock()
	defer lock.Unlock()

	sentAt := time.Now().UTC()
	if inbound.Time > 0 {
		sentAt = time.Unix(inbound.Time, 0).UTC()
	}
	inboundTurn := &models.ConversationTurn{
		LeadID:            lead.ID,
		Direction:         models.DirectionInbound,
		Content:           inbound.Body,
		ProviderMessageID: inbound.ProviderMessageID,
		SentAt:            sentAt,
	}
	if err := h.store.AddConversationTurn(inboundTurn); err != nil {
		return fmt.Errorf("failed to record inbound turn: %w", err)
	}
	h.recordEvent(lead, EventTypeMessageReceived, nil)

	if next, ok := agent.NextStatusForEvent(lead.Status, agent.EventInboundReceived); ok {
		if err := h.store.UpdateLeadStatus(lead.ID, next); err != nil {
			return fmt.Errorf("failed to update lead status: %w", err)
		}
		lead.Status = next
	}

	if lead.Status.IsTerminal() {
		slog.Debug("Handler.HandleInbound: lead in terminal state, no automated reply", "leadID", lead.ID, "status", lead.Status)
		return nil
	}

	campaign, client := h.loadContext(lead)
	history, err := h.store.GetConversationHistory(lead.ID, agent.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}

	decision := h.agent.ProcessIncomingMessage(ctx, inbound.Body, *lead, campaign, client, history)

	receipt, err := h.msg.SendMessage(ctx, lead.Phone, decision.Message, nil)
	if err != nil {
		slog.Error("Handler.HandleInbound: reply delivery failed", "error", err, "leadID", lead.ID)
		return err
	}

	outboundTurn := &models.ConversationTurn{
		LeadID:            lead.ID,
		Direction:         models.DirectionOutbound,
		Content:           decision.Message,
		ProviderMessageID: receipt.ProviderMessageID,
		Metadata: map[string]string{
			"action":     string(decision.Action),
			"confidence": fmt.Sprintf("%.2f", decision.Confidence),
		},
		SentAt: receipt.SentAt,
	}
	if err := h.store.AddConversationTurn(outboundTurn); err != nil {
		return fmt.Errorf("failed to record outbound turn: %w", err)
	}
	h.recordEvent(lead, EventTypeMessageSent, map[string]string{"action": string(decision.Action)})

	return h.applyAction(lead, decision.Action)
}

// applyAction advances the lead lifecycle based on the agent's decision.
func (h *Handler) applyAction(lead *models.Lead, action models.ActionType) error {
	if action == models.ActionScheduleCall {
		h.recordEvent(lead, EventTypeCallRequested, nil)
	}
	next, ok := agent.NextStatusForAction(lead.Status, action)
	if !ok {
		return nil
	}
	if err := h.store.UpdateLeadStatus(lead.ID, next); err != nil {
		return fmt.Errorf("failed to apply action %s to lead %d: %w", action, lead.ID, err)
	}
	lead.Status = next
	switch next {
	case models.LeadStatusConverted:
		h.recordEvent(lead, EventTypeLeadConverted, nil)
	case models.LeadStatusLost:
		h.recordEvent(lead, EventTypeConversationEnded, nil)
	}
	slog.Info("Handler.applyAction: lead transitioned", "leadID", lead.ID, "action", action, "status", next)
	return nil
}

// SendInitialMessage sends the opening message to a new lead and marks it
// contacted. Leads past the new state are skipped.
func (h *Handler) SendInitialMessage(ctx context.Context, leadID int64) error {
	lead, err := h.store.GetLead(leadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %d: %w", leadID, err)
	}
	if lead == nil {
		return fmt.Errorf("lead %d not found", leadID)
	}

	lock := h.leadLock(lead.ID)
	lock.Lock()
	defer lock.Unlock()

	if lead.Status != models.LeadStatusNew {
		slog.Warn("Handler.SendInitialMessage: lead already contacted, skipping", "leadID", lead.ID, "status", lead.Status)
		return nil
	}

	campaign, client := h.loadContext(lead)
	body := h.agent.GenerateInitialMessage(ctx, *lead, campaign, client)

	receipt, err := h.msg.SendMessage(ctx, lead.Phone, body, nil)
	if err != nil {
		slog.Error("Handler.SendInitialMessage: delivery failed", "error", err, "leadID", lead.ID)
		return err
	}

	turn := &models.ConversationTurn{
		LeadID:            lead.ID,
		Direction:         models.DirectionOutbound,
		Content:           body,
		ProviderMessageID: receipt.ProviderMessageID,
		SentAt:            receipt.SentAt,
	}
	if err := h.store.AddConversationTurn(turn); err != nil {
		return fmt.Errorf("failed to record initial turn: %w", err)
	}
	h.recordEvent(lead, EventTypeInitialMessageSent, nil)

	if next, ok := agent.NextStatusForEvent(lead.Status, agent.EventMessageDispatched); ok {
		if err := h.store.UpdateLeadStatus(lead.ID, next); err != nil {
			return fmt.Errorf("failed to mark lead contacted: %w", err)
		}
		lead.Status = next
	}
	slog.Info("Handler.SendInitialMessage: initial message sent", "leadID", lead.ID)
	return nil
}

// SendFollowUp sends a follow-up nudge to a contacted lead that has gone
// quiet. The lead stays contacted; its updated time advances so the next
// sweep does not pick it again immediately.
func (h *Handler) SendFollowUp(ctx context.Context, leadID int64) error {
	lead, err := h.store.GetLead(leadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %d: %w", leadID, err)
	}
	if lead == nil {
		return fmt.Errorf("lead %d not found", leadID)
	}

	lock := h.leadLock(lead.ID)
	lock.Lock()
	defer lock.Unlock()

	if lead.Status != models.LeadStatusContacted {
		slog.Debug("Handler.SendFollowUp: lead not awaiting follow-up, skipping", "leadID", lead.ID, "status", lead.Status)
		return nil
	}

	campaign, client := h.loadContext(lead)
	history, err := h.store.GetConversationHistory(lead.ID, agent.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}
	body := h.agent.GenerateFollowUpMessage(ctx, *lead, campaign, client, history)

	receipt, err := h.msg.SendMessage(ctx, lead.Phone, body, nil)
	if err != nil {
		slog.Error("Handler.SendFollowUp: delivery failed", "error", err, "leadID", lead.ID)
		return err
	}

	turn := &models.ConversationTurn{
		LeadID:            lead.ID,
		Direction:         models.DirectionOutbound,
		Content:           body,
		ProviderMessageID: receipt.ProviderMessageID,
		SentAt:            receipt.SentAt,
	}
	if err := h.store.AddConversationTurn(turn); err != nil {
		return fmt.Errorf("failed to record follow-up turn: %w", err)
	}
	h.recordEvent(lead, EventTypeFollowUpSent, nil)

	// Touch updated_at so the follow-up sweep moves on.
	if err := h.store.UpdateLeadStatus(lead.ID, lead.Status); err != nil {
		return fmt.Errorf("failed to touch lead %d: %w", lead.ID, err)
	}
	slog.Info("Handler.SendFollowUp: follow-up sent", "leadID", lead.ID)
	return nil
}

// loadContext fetches the campaign and client for a lead, tolerating
// missing rows so a half-provisioned lead can still be served.
func (h *Handler) loadContext(lead *models.Lead) (models.Campaign, models.Client) {
	var campaign models.Campaign
	var client models.Client

	c, err := h.store.GetCampaign(lead.CampaignID)
	if err != nil || c == nil {
		slog.Warn("Handler.loadContext: campaign not found", "leadID", lead.ID, "campaignID", lead.CampaignID, "error", err)
		return campaign, client
	}
	campaign = *c

	cl, err := h.store.GetClient(campaign.ClientID)
	if err != nil || cl == nil {
		slog.Warn("Handler.loadContext: client not found", "campaignID", campaign.ID, "clientID", campaign.ClientID, "error", err)
		return campaign, client
	}
	client = *cl
	return campaign, client
}

// recordEvent stores an analytics event, logging rather than failing the
// surrounding operation when the write goes wrong.
func (h *Handler) recordEvent(lead *models.Lead, eventType string, data map[string]string) {
	event := &models.AnalyticsEvent{
		LeadID:     lead.ID,
		CampaignID: lead.CampaignID,
		EventType:  eventType,
		EventData:  data,
	}
	if err := h.store.AddAnalyticsEvent(event); err != nil {
		slog.Error("Handler.recordEvent: failed to record analytics event", "error", err, "eventType", eventType, "leadID", lead.ID)
	}
}
