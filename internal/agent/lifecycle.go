package agent

import (
	"log/slog"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// LifecycleEvent is an external event that can drive a lead status
// transition, alongside decision actions.
type LifecycleEvent string

const (
	// EventMessageDispatched fires when an initial or follow-up message was
	// successfully handed to the messaging gateway.
	EventMessageDispatched LifecycleEvent = "message_dispatched"
	// EventInboundReceived fires on receipt of any inbound message.
	EventInboundReceived LifecycleEvent = "inbound_received"
)

// NextStatusForEvent returns the lead status after applying an external
// lifecycle event. The second return value reports whether the status
// changed. Terminal statuses (converted, lost) never change.
func NextStatusForEvent(current models.LeadStatus, event LifecycleEvent) (models.LeadStatus, bool) {
	if current.IsTerminal() {
		return current, false
	}
	switch event {
	case EventMessageDispatched:
		if current == models.LeadStatusNew {
			return models.LeadStatusContacted, true
		}
	case EventInboundReceived:
		if current == models.LeadStatusContacted {
			return models.LeadStatusResponded, true
		}
	}
	return current, false
}

// NextStatusForAction returns the lead status after applying a decision
// action. Conversion and disengagement only fire from responded; ordinary
// back-and-forth actions (respond, schedule_call, clarify) are a self-loop.
// Terminal statuses never change.
func NextStatusForAction(current models.LeadStatus, action models.ActionType) (models.LeadStatus, bool) {
	if current.IsTerminal() {
		return current, false
	}
	if current != models.LeadStatusResponded {
		return current, false
	}
	switch action {
	case models.ActionConvert:
		return models.LeadStatusConverted, true
	case models.ActionEndConversation:
		return models.LeadStatusLost, true
	case models.ActionRespond, models.ActionScheduleCall, models.ActionClarify:
		return models.LeadStatusResponded, false
	default:
		slog.Warn("agent.NextStatusForAction: unknown action, keeping status", "action", action, "status", current)
		return current, false
	}
}
