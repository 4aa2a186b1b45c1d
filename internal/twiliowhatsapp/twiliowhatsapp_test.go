package twiliowhatsapp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFormatPhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "15551234567"},
		{"5551234567", "15551234567"},    // 10-digit gets domestic prefix
		{"15551234567", "15551234567"},   // already prefixed
		{"445551234567", "445551234567"}, // non-domestic left alone
		{"555-1234", "5551234"},
		{"", ""},
	}
	for _, c := range cases {
		if got := FormatPhoneNumber(c.in); got != c.want {
			t.Errorf("FormatPhoneNumber(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials, got nil")
	}
}

func TestNewClient_MissingFromNumber(t *testing.T) {
	t.Setenv("TWILIO_FROM_NUMBER", "")
	_, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"))
	if err == nil || !strings.Contains(err.Error(), "from number") {
		t.Errorf("expected from number error, got %v", err)
	}
}

func TestMockClient_SendMessage(t *testing.T) {
	mock := NewMockClient()
	result, err := mock.SendMessage(context.Background(), "15551234567", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SID == "" || result.Status != "queued" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "hello" {
		t.Errorf("message not recorded: %+v", mock.SentMessages)
	}
}

func TestMockClient_FailFor(t *testing.T) {
	mock := NewMockClient()
	mock.FailFor["15550000000"] = errors.New("unreachable")
	if _, err := mock.SendMessage(context.Background(), "15550000000", "hello"); err == nil {
		t.Error("expected configured failure, got nil")
	}
	if len(mock.SentMessages) != 0 {
		t.Error("failed send should not be recorded")
	}
}

func TestBuildTemplateMessage(t *testing.T) {
	got := BuildTemplateMessage("welcome", map[string]string{"name": "Sam", "company": "Acme", "service": "SEO"})
	want := "Hi Sam! Welcome to Acme. Thanks for your interest in SEO."
	if got != want {
		t.Errorf("BuildTemplateMessage = %q, want %q", got, want)
	}
}

func TestBuildTemplateMessage_UnknownTemplate(t *testing.T) {
	got := BuildTemplateMessage("nonexistent", map[string]string{"name": "Sam"})
	if got != "Hi Sam! Thank you for your interest." {
		t.Errorf("unexpected default template rendering: %q", got)
	}
}

func TestBuildTemplateMessage_MissingVariables(t *testing.T) {
	got := BuildTemplateMessage("follow_up", nil)
	want := "Hi there! Just following up on our conversation about our services. Are you still interested?"
	if got != want {
		t.Errorf("BuildTemplateMessage with no vars = %q, want %q", got, want)
	}
}
