package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// Confidence constants. These are fixed literals, not computed scores.
const (
	// ParsedConfidence is assigned when generation output parsed cleanly.
	ParsedConfidence = 0.8
	// FallbackConfidence is assigned when generation failed and the fixed
	// fallback decision was used.
	FallbackConfidence = 0.5
)

// FallbackProcessingMessage is returned when inbound processing cannot reach
// the generation backend.
const FallbackProcessingMessage = "Thank you for your message. I'll have someone from our team contact you shortly."

// Generator produces free text from a system and user prompt. Every failure
// is treated identically: the engine selects the deterministic fallback.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Agent is the conversation decision engine. It orchestrates prompt
// construction, generation and parsing for the three conversation flows, and
// applies the fallback policy when generation fails. The engine is stateless;
// it holds only its generator dependency.
type Agent struct {
	generator Generator
}

// New creates a decision engine backed by the given generator.
func New(generator Generator) *Agent {
	return &Agent{generator: generator}
}

// GenerateInitialMessage produces the first outreach message for a new lead.
// On generation failure it returns a deterministic fallback built from the
// lead and client names; the conversation never stalls on a degraded backend.
func (a *Agent) GenerateInitialMessage(ctx context.Context, lead models.Lead, campaign models.Campaign, client models.Client) string {
	prompt := BuildInitialPrompt(lead, campaign, client)

	text, err := a.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		slog.Error("Agent.GenerateInitialMessage: generation failed, using fallback", "error", err, "lead_id", lead.ID)
		return initialFallback(lead, client)
	}

	message := strings.TrimSpace(text)
	slog.Info("Agent.GenerateInitialMessage: generated message", "lead_id", lead.ID, "message_length", len(message))
	return message
}

// GenerateFollowUpMessage produces a follow-up message grounded in recent
// conversation history, with the same fallback contract as initial outreach.
func (a *Agent) GenerateFollowUpMessage(ctx context.Context, lead models.Lead, campaign models.Campaign, client models.Client, history []models.ConversationTurn) string {
	prompt := BuildFollowUpPrompt(lead, campaign, client, history)

	text, err := a.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		slog.Error("Agent.GenerateFollowUpMessage: generation failed, using fallback", "error", err, "lead_id", lead.ID)
		return followUpFallback(lead)
	}

	message := strings.TrimSpace(text)
	slog.Info("Agent.GenerateFollowUpMessage: generated message", "lead_id", lead.ID, "message_length", len(message))
	return message
}

// ProcessIncomingMessage analyzes an inbound message and decides the next
// action. Successful generation is parsed into an action/message pair with
// ParsedConfidence; any generation failure yields the fixed handoff decision
// with FallbackConfidence regardless of input.
func (a *Agent) ProcessIncomingMessage(ctx context.Context, message string, lead models.Lead, campaign models.Campaign, client models.Client, history []models.ConversationTurn) models.DecisionResult {
	prompt := BuildProcessingPrompt(message, lead, campaign, client, history)

	text, err := a.generator.Generate(ctx, processingSystemPrompt, prompt)
	if err != nil {
		slog.Error("Agent.ProcessIncomingMessage: generation failed, using fallback", "error", err, "lead_id", lead.ID)
		return models.DecisionResult{
			Action:     models.ActionRespond,
			Message:    FallbackProcessingMessage,
			Confidence: FallbackConfidence,
		}
	}

	action, response := ParseDecision(text)
	action = normalizeAction(action)

	slog.Info("Agent.ProcessIncomingMessage: decision made", "lead_id", lead.ID, "action", action)
	return models.DecisionResult{
		Action:     action,
		Message:    response,
		Confidence: ParsedConfidence,
	}
}

// initialFallback is the fixed outreach message used when generation fails.
func initialFallback(lead models.Lead, client models.Client) string {
	name := lead.Name
	if name == "" {
		name = "there"
	}
	company := client.Name
	if company == "" {
		company = "our company"
	}
	return fmt.Sprintf("Hi %s! Thanks for your interest in %s. I'd love to tell you more about our services. When would be a good time to chat?", name, company)
}

// followUpFallback is the fixed follow-up message used when generation fails.
func followUpFallback(lead models.Lead) string {
	name := lead.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! Just following up on our previous conversation. Would you like to learn more about our services?", name)
}
