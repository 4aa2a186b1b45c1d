package agent

import (
	"log/slog"
	"strings"

	"github.com/bigdata5911/sales-agent/internal/models"
)

const (
	actionPrefix  = "ACTION:"
	messagePrefix = "MESSAGE:"

	// DefaultParsedMessage is used when generation output contains no
	// MESSAGE: line.
	DefaultParsedMessage = "Thank you for your message. I'll be happy to help you."
)

// ParseDecision extracts an (action, message) pair from raw generation
// output. It scans line by line: an ACTION: prefix sets the action, a
// MESSAGE: prefix sets the message, and later occurrences overwrite earlier
// ones. Missing pieces degrade to defaults; this function never fails.
func ParseDecision(raw string) (models.ActionType, string) {
	action := models.ActionRespond
	message := DefaultParsedMessage
	sawAction, sawMessage := false, false

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, actionPrefix):
			action = models.ActionType(strings.TrimSpace(strings.TrimPrefix(line, actionPrefix)))
			sawAction = true
		case strings.HasPrefix(line, messagePrefix):
			message = strings.TrimSpace(strings.TrimPrefix(line, messagePrefix))
			sawMessage = true
		}
	}

	if !sawAction || !sawMessage {
		slog.Debug("agent.ParseDecision: structure missing, using defaults",
			"saw_action", sawAction, "saw_message", sawMessage, "raw_length", len(raw))
	}
	return action, message
}

// normalizeAction clamps an action string emitted by the generation backend
// to the enumerated action set. Common disengage phrasings map to
// end_conversation; anything unrecognized falls back to respond.
func normalizeAction(a models.ActionType) models.ActionType {
	canonical := models.ActionType(strings.ToLower(strings.TrimSpace(string(a))))
	switch canonical {
	case "end", "not_interested", "end conversation":
		return models.ActionEndConversation
	}
	if models.IsValidActionType(canonical) {
		return canonical
	}
	slog.Warn("agent.normalizeAction: unrecognized action, defaulting to respond", "action", string(a))
	return models.ActionRespond
}
