package agent

import (
	"testing"

	"github.com/bigdata5911/sales-agent/internal/models"
)

func TestNextStatusForEvent(t *testing.T) {
	cases := []struct {
		name    string
		current models.LeadStatus
		event   LifecycleEvent
		want    models.LeadStatus
		changed bool
	}{
		{"dispatch moves new to contacted", models.LeadStatusNew, EventMessageDispatched, models.LeadStatusContacted, true},
		{"dispatch keeps contacted", models.LeadStatusContacted, EventMessageDispatched, models.LeadStatusContacted, false},
		{"dispatch keeps responded", models.LeadStatusResponded, EventMessageDispatched, models.LeadStatusResponded, false},
		{"inbound moves contacted to responded", models.LeadStatusContacted, EventInboundReceived, models.LeadStatusResponded, true},
		{"inbound keeps new", models.LeadStatusNew, EventInboundReceived, models.LeadStatusNew, false},
		{"inbound keeps responded", models.LeadStatusResponded, EventInboundReceived, models.LeadStatusResponded, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, changed := NextStatusForEvent(c.current, c.event)
			if got != c.want || changed != c.changed {
				t.Errorf("NextStatusForEvent(%q, %q) = (%q, %v), want (%q, %v)",
					c.current, c.event, got, changed, c.want, c.changed)
			}
		})
	}
}

func TestNextStatusForAction(t *testing.T) {
	cases := []struct {
		name    string
		current models.LeadStatus
		action  models.ActionType
		want    models.LeadStatus
		changed bool
	}{
		{"convert from responded", models.LeadStatusResponded, models.ActionConvert, models.LeadStatusConverted, true},
		{"end conversation from responded", models.LeadStatusResponded, models.ActionEndConversation, models.LeadStatusLost, true},
		{"respond self loop", models.LeadStatusResponded, models.ActionRespond, models.LeadStatusResponded, false},
		{"schedule call self loop", models.LeadStatusResponded, models.ActionScheduleCall, models.LeadStatusResponded, false},
		{"clarify self loop", models.LeadStatusResponded, models.ActionClarify, models.LeadStatusResponded, false},
		{"convert ignored before response", models.LeadStatusContacted, models.ActionConvert, models.LeadStatusContacted, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, changed := NextStatusForAction(c.current, c.action)
			if got != c.want || changed != c.changed {
				t.Errorf("NextStatusForAction(%q, %q) = (%q, %v), want (%q, %v)",
					c.current, c.action, got, changed, c.want, c.changed)
			}
		})
	}
}

// Terminal statuses must never transition again, no matter what arrives.
func TestTerminalStatusesAreIdempotent(t *testing.T) {
	terminals := []models.LeadStatus{models.LeadStatusConverted, models.LeadStatusLost}
	actions := []models.ActionType{models.ActionRespond, models.ActionScheduleCall, models.ActionConvert, models.ActionEndConversation, models.ActionClarify}
	events := []LifecycleEvent{EventMessageDispatched, EventInboundReceived}

	for _, terminal := range terminals {
		for _, action := range actions {
			if got, changed := NextStatusForAction(terminal, action); got != terminal || changed {
				t.Errorf("terminal %q transitioned on action %q to %q", terminal, action, got)
			}
		}
		for _, event := range events {
			if got, changed := NextStatusForEvent(terminal, event); got != terminal || changed {
				t.Errorf("terminal %q transitioned on event %q to %q", terminal, event, got)
			}
		}
	}
}
