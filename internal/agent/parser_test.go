package agent

import (
	"testing"

	"github.com/bigdata5911/sales-agent/internal/models"
)

func TestParseDecision_WellFormed(t *testing.T) {
	action, message := ParseDecision("ACTION: convert\nMESSAGE: Great, let's proceed!")
	if action != models.ActionConvert {
		t.Errorf("expected convert action, got %q", action)
	}
	if message != "Great, let's proceed!" {
		t.Errorf("expected parsed message, got %q", message)
	}
}

func TestParseDecision_NoRecognizedLines(t *testing.T) {
	action, message := ParseDecision("The lead seems interested in pricing.")
	if action != models.ActionRespond {
		t.Errorf("expected default respond action, got %q", action)
	}
	if message != DefaultParsedMessage {
		t.Errorf("expected default message, got %q", message)
	}
}

func TestParseDecision_LastOccurrenceWins(t *testing.T) {
	raw := "ACTION: respond\nMESSAGE: first reply\nACTION: convert\nMESSAGE: second reply"
	action, message := ParseDecision(raw)
	if action != models.ActionConvert {
		t.Errorf("expected last ACTION line to win, got %q", action)
	}
	if message != "second reply" {
		t.Errorf("expected last MESSAGE line to win, got %q", message)
	}
}

func TestParseDecision_IgnoresUnrelatedLines(t *testing.T) {
	raw := "Here is my analysis:\nACTION: schedule_call\nSome commentary.\nMESSAGE: Let's set up a call.\nThanks!"
	action, message := ParseDecision(raw)
	if action != models.ActionScheduleCall {
		t.Errorf("expected schedule_call, got %q", action)
	}
	if message != "Let's set up a call." {
		t.Errorf("expected parsed message, got %q", message)
	}
}

func TestParseDecision_EmptyInput(t *testing.T) {
	action, message := ParseDecision("")
	if action != models.ActionRespond || message != DefaultParsedMessage {
		t.Errorf("expected defaults for empty input, got %q / %q", action, message)
	}
}

func TestNormalizeAction(t *testing.T) {
	cases := []struct {
		in   models.ActionType
		want models.ActionType
	}{
		{"respond", models.ActionRespond},
		{"convert", models.ActionConvert},
		{"schedule_call", models.ActionScheduleCall},
		{"CONVERT", models.ActionConvert},
		{" end_conversation ", models.ActionEndConversation},
		{"end", models.ActionEndConversation},
		{"not_interested", models.ActionEndConversation},
		{"clarify", models.ActionClarify},
		{"purchase_now", models.ActionRespond},
		{"", models.ActionRespond},
	}
	for _, c := range cases {
		if got := normalizeAction(c.in); got != c.want {
			t.Errorf("normalizeAction(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
