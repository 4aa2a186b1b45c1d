package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigdata5911/sales-agent/internal/models"
)

// mockGenerator implements Generator for testing. It records the prompts it
// receives and returns a canned response or error.
type mockGenerator struct {
	text       string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (m *mockGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	return m.text, m.err
}

func TestGenerateInitialMessage_Success(t *testing.T) {
	gen := &mockGenerator{text: "  Hi Sam, ready to grow your traffic?  "}
	a := New(gen)

	msg := a.GenerateInitialMessage(context.Background(),
		models.Lead{Name: "Sam"}, models.Campaign{Name: "Spring"}, models.Client{Name: "Acme"})

	if msg != "Hi Sam, ready to grow your traffic?" {
		t.Errorf("expected trimmed generated message, got %q", msg)
	}
	if gen.calls != 1 {
		t.Errorf("expected one generation call, got %d", gen.calls)
	}
}

func TestGenerateInitialMessage_FallbackExactString(t *testing.T) {
	gen := &mockGenerator{err: errors.New("backend down")}
	a := New(gen)

	msg := a.GenerateInitialMessage(context.Background(),
		models.Lead{Name: "Sam"}, models.Campaign{}, models.Client{Name: "Acme"})

	want := "Hi Sam! Thanks for your interest in Acme. I'd love to tell you more about our services. When would be a good time to chat?"
	if msg != want {
		t.Errorf("fallback mismatch:\ngot  %q\nwant %q", msg, want)
	}
}

func TestGenerateInitialMessage_FallbackDefaults(t *testing.T) {
	gen := &mockGenerator{err: errors.New("backend down")}
	a := New(gen)

	msg := a.GenerateInitialMessage(context.Background(), models.Lead{}, models.Campaign{}, models.Client{})

	want := "Hi there! Thanks for your interest in our company. I'd love to tell you more about our services. When would be a good time to chat?"
	if msg != want {
		t.Errorf("fallback mismatch:\ngot  %q\nwant %q", msg, want)
	}
}

func TestGenerateFollowUpMessage_Fallback(t *testing.T) {
	gen := &mockGenerator{err: errors.New("quota exceeded")}
	a := New(gen)

	msg := a.GenerateFollowUpMessage(context.Background(),
		models.Lead{Name: "Sam"}, models.Campaign{}, models.Client{}, nil)

	want := "Hi Sam! Just following up on our previous conversation. Would you like to learn more about our services?"
	if msg != want {
		t.Errorf("fallback mismatch:\ngot  %q\nwant %q", msg, want)
	}
}

func TestGenerateFollowUpMessage_UsesHistoryInPrompt(t *testing.T) {
	gen := &mockGenerator{text: "Following up!"}
	a := New(gen)

	history := []models.ConversationTurn{{Direction: models.DirectionInbound, Content: "sounds interesting"}}
	a.GenerateFollowUpMessage(context.Background(), models.Lead{Name: "Sam"}, models.Campaign{}, models.Client{}, history)

	if gen.lastSystem != systemPrompt {
		t.Error("expected generation system prompt")
	}
	if !strings.Contains(gen.lastUser, "inbound: sounds interesting") {
		t.Errorf("expected history in follow-up prompt, got:\n%s", gen.lastUser)
	}
}

func TestProcessIncomingMessage_ParsedDecision(t *testing.T) {
	gen := &mockGenerator{text: "ACTION: convert\nMESSAGE: Great, let's proceed!"}
	a := New(gen)

	result := a.ProcessIncomingMessage(context.Background(), "I want to buy",
		models.Lead{ID: 7, Name: "Sam", Status: models.LeadStatusResponded},
		models.Campaign{}, models.Client{Name: "Acme"}, nil)

	if result.Action != models.ActionConvert {
		t.Errorf("expected convert action, got %q", result.Action)
	}
	if result.Message != "Great, let's proceed!" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.Confidence != ParsedConfidence {
		t.Errorf("expected confidence %v, got %v", ParsedConfidence, result.Confidence)
	}
	if gen.lastSystem != processingSystemPrompt {
		t.Error("expected processing system prompt")
	}
}

func TestProcessIncomingMessage_FallbackOnGenerationError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("timeout")}
	a := New(gen)

	for _, inbound := range []string{"I want to buy everything", "stop messaging me", ""} {
		result := a.ProcessIncomingMessage(context.Background(), inbound,
			models.Lead{Status: models.LeadStatusResponded}, models.Campaign{}, models.Client{}, nil)

		if result.Action != models.ActionRespond {
			t.Errorf("expected respond action for %q, got %q", inbound, result.Action)
		}
		if result.Message != FallbackProcessingMessage {
			t.Errorf("expected fixed handoff message, got %q", result.Message)
		}
		if result.Confidence != FallbackConfidence {
			t.Errorf("expected confidence %v, got %v", FallbackConfidence, result.Confidence)
		}
	}
}

func TestProcessIncomingMessage_ClampsUnknownAction(t *testing.T) {
	gen := &mockGenerator{text: "ACTION: purchase_immediately\nMESSAGE: ok"}
	a := New(gen)

	result := a.ProcessIncomingMessage(context.Background(), "hello",
		models.Lead{Status: models.LeadStatusResponded}, models.Campaign{}, models.Client{}, nil)

	if result.Action != models.ActionRespond {
		t.Errorf("expected unknown action clamped to respond, got %q", result.Action)
	}
}
