// Package agent implements the conversation decision core: prompt
// construction, generation with deterministic fallback, response parsing and
// the lead lifecycle state machine.
package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// HistoryLimit is the maximum number of conversation turns embedded in a
// prompt. Older turns are dropped; chronological order is preserved.
const HistoryLimit = 5

// systemPrompt is the persona used for message generation.
const systemPrompt = `You are an AI sales agent for a digital marketing agency. Your role is to:
1. Generate personalized WhatsApp messages for sales leads
2. Be professional, friendly, and engaging
3. Focus on the specific service/product the lead showed interest in
4. Keep messages concise and actionable
5. Use the client's brand voice and messaging guidelines
6. Always include a clear next step or call-to-action`

// processingSystemPrompt is the persona used for inbound message analysis.
const processingSystemPrompt = `You are an AI sales agent analyzing incoming messages. Your role is to:
1. Understand the lead's intent and sentiment
2. Determine the appropriate response action
3. Generate relevant and helpful responses
4. Identify conversion opportunities
5. Handle objections professionally
6. Escalate to human when necessary`

// orUnknown substitutes the literal "Unknown" for empty prompt fields.
func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// renderStringMap renders a map as "key=value" pairs in key order so prompt
// output is deterministic for identical inputs.
func renderStringMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// RenderHistory formats the most recent turns as "<direction>: <content>"
// lines, truncated to HistoryLimit with chronological order preserved.
func RenderHistory(history []models.ConversationTurn) string {
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Direction, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// BuildInitialPrompt renders the generation request for a new lead's first
// outreach message. Pure string rendering; no I/O.
func BuildInitialPrompt(lead models.Lead, campaign models.Campaign, client models.Client) string {
	var b strings.Builder
	b.WriteString("Generate a personalized initial WhatsApp message for a sales lead.\n\n")

	b.WriteString("Lead Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(lead.Name))
	fmt.Fprintf(&b, "- Phone: %s\n", orUnknown(lead.Phone))
	fmt.Fprintf(&b, "- Email: %s\n", orUnknown(lead.Email))
	fmt.Fprintf(&b, "- Additional Data: %s\n\n", renderStringMap(lead.LeadData))

	b.WriteString("Campaign Information:\n")
	fmt.Fprintf(&b, "- Campaign Name: %s\n", orUnknown(campaign.Name))
	fmt.Fprintf(&b, "- Description: %s\n", orUnknown(campaign.Description))
	fmt.Fprintf(&b, "- Message Templates: %s\n\n", renderStringMap(campaign.MessageTemplates))

	b.WriteString("Client Information:\n")
	fmt.Fprintf(&b, "- Company Name: %s\n", orUnknown(client.Name))
	fmt.Fprintf(&b, "- Industry: %s\n", client.Industry())
	fmt.Fprintf(&b, "- Services: %s\n\n", orUnknown(client.Services()))

	b.WriteString(`Requirements:
1. Keep the message under 160 characters
2. Make it personal and engaging
3. Include a clear call-to-action
4. Be professional but friendly
5. Mention the specific service/product they showed interest in

Generate only the message content, no additional formatting.`)
	return b.String()
}

// BuildFollowUpPrompt renders the generation request for a follow-up message
// based on the recent conversation history.
func BuildFollowUpPrompt(lead models.Lead, campaign models.Campaign, client models.Client, history []models.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Generate a follow-up WhatsApp message based on the conversation history.\n\n")

	b.WriteString("Lead Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(lead.Name))
	fmt.Fprintf(&b, "- Current Status: %s\n\n", orUnknown(string(lead.Status)))

	b.WriteString("Conversation History:\n")
	b.WriteString(RenderHistory(history))
	b.WriteString("\n\n")

	b.WriteString("Campaign Information:\n")
	fmt.Fprintf(&b, "- Campaign: %s\n", orUnknown(campaign.Name))
	fmt.Fprintf(&b, "- Templates: %s\n\n", renderStringMap(campaign.MessageTemplates))

	b.WriteString("Client Information:\n")
	fmt.Fprintf(&b, "- Company: %s\n\n", orUnknown(client.Name))

	b.WriteString(`Requirements:
1. Keep under 160 characters
2. Reference previous conversation
3. Provide value or new information
4. Include clear next steps
5. Be persistent but not pushy

Generate only the message content.`)
	return b.String()
}

// BuildProcessingPrompt renders the analysis request for an inbound message.
// The backend is instructed to answer in the two-line ACTION/MESSAGE format
// consumed by ParseDecision.
func BuildProcessingPrompt(message string, lead models.Lead, campaign models.Campaign, client models.Client, history []models.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Analyze this incoming message and determine the appropriate response.\n\n")

	fmt.Fprintf(&b, "Incoming Message: %q\n\n", message)

	b.WriteString("Lead Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(lead.Name))
	fmt.Fprintf(&b, "- Status: %s\n\n", orUnknown(string(lead.Status)))

	b.WriteString("Conversation History:\n")
	b.WriteString(RenderHistory(history))
	b.WriteString("\n\n")

	b.WriteString("Client Information:\n")
	fmt.Fprintf(&b, "- Company: %s\n", orUnknown(client.Name))
	fmt.Fprintf(&b, "- Services: %s\n\n", orUnknown(client.Services()))

	b.WriteString(`Determine the appropriate action and response:
1. If they're interested in buying - respond with conversion message
2. If they have questions - answer professionally
3. If they want to speak to someone - schedule a call
4. If they're not interested - politely end conversation
5. If unclear - ask clarifying questions

Respond in this format:
ACTION: [action_type]
MESSAGE: [response_message]`)
	return b.String()
}
