package models

import "testing"

func TestIsValidLeadStatus(t *testing.T) {
	valid := []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusResponded, LeadStatusConverted, LeadStatusLost}
	for _, s := range valid {
		if !IsValidLeadStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if IsValidLeadStatus("archived") {
		t.Error("expected unknown status to be invalid")
	}
}

func TestLeadStatusIsTerminal(t *testing.T) {
	cases := []struct {
		status   LeadStatus
		terminal bool
	}{
		{LeadStatusNew, false},
		{LeadStatusContacted, false},
		{LeadStatusResponded, false},
		{LeadStatusConverted, true},
		{LeadStatusLost, true},
	}
	for _, c := range cases {
		if got := c.status.IsTerminal(); got != c.terminal {
			t.Errorf("IsTerminal(%q) = %v, want %v", c.status, got, c.terminal)
		}
	}
}

func TestIsValidActionType(t *testing.T) {
	valid := []ActionType{ActionRespond, ActionScheduleCall, ActionConvert, ActionEndConversation, ActionClarify}
	for _, a := range valid {
		if !IsValidActionType(a) {
			t.Errorf("expected %q to be valid", a)
		}
	}
	if IsValidActionType("escalate") {
		t.Error("expected unknown action to be invalid")
	}
}

func TestLeadValidate(t *testing.T) {
	lead := Lead{Name: "Sam", Phone: "15551234567", CampaignID: 1}
	if err := lead.Validate(); err != nil {
		t.Errorf("expected valid lead, got %v", err)
	}

	missingName := Lead{Phone: "15551234567", CampaignID: 1}
	if err := missingName.Validate(); err != ErrEmptyLeadName {
		t.Errorf("expected ErrEmptyLeadName, got %v", err)
	}

	missingPhone := Lead{Name: "Sam", CampaignID: 1}
	if err := missingPhone.Validate(); err != ErrEmptyLeadPhone {
		t.Errorf("expected ErrEmptyLeadPhone, got %v", err)
	}

	missingCampaign := Lead{Name: "Sam", Phone: "15551234567"}
	if err := missingCampaign.Validate(); err != ErrMissingCampaignID {
		t.Errorf("expected ErrMissingCampaignID, got %v", err)
	}
}

func TestCampaignValidate(t *testing.T) {
	campaign := Campaign{Name: "Spring Launch", ClientID: 1}
	if err := campaign.Validate(); err != nil {
		t.Errorf("expected valid campaign, got %v", err)
	}
	noClient := Campaign{Name: "Spring Launch"}
	if err := noClient.Validate(); err != ErrMissingClientID {
		t.Errorf("expected ErrMissingClientID, got %v", err)
	}
}

func TestConversationTurnValidate(t *testing.T) {
	turn := ConversationTurn{LeadID: 1, Direction: DirectionInbound, Content: "hi"}
	if err := turn.Validate(); err != nil {
		t.Errorf("expected valid turn, got %v", err)
	}
	badDirection := ConversationTurn{LeadID: 1, Direction: "sideways", Content: "hi"}
	if err := badDirection.Validate(); err != ErrInvalidDirection {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
	empty := ConversationTurn{LeadID: 1, Direction: DirectionOutbound}
	if err := empty.Validate(); err != ErrEmptyTurnContent {
		t.Errorf("expected ErrEmptyTurnContent, got %v", err)
	}
}

func TestClientSettingsHelpers(t *testing.T) {
	client := Client{Name: "Acme", Settings: map[string]string{"industry": "marketing", "services": "SEO, PPC"}}
	if client.Industry() != "marketing" {
		t.Errorf("expected industry 'marketing', got %q", client.Industry())
	}
	if client.Services() != "SEO, PPC" {
		t.Errorf("expected services 'SEO, PPC', got %q", client.Services())
	}

	bare := Client{Name: "Acme"}
	if bare.Industry() != "Unknown" {
		t.Errorf("expected 'Unknown' industry for empty settings, got %q", bare.Industry())
	}
	if bare.Services() != "" {
		t.Errorf("expected empty services, got %q", bare.Services())
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]int{"id": 7})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %q", resp.Status)
	}
	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) || errResp.Message != "boom" {
		t.Errorf("unexpected error response: %+v", errResp)
	}
	acc := Accepted("queued")
	if acc.Status != string(APIStatusAccepted) || acc.Message != "queued" {
		t.Errorf("unexpected accepted response: %+v", acc)
	}
}
