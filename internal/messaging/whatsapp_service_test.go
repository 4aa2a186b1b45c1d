package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/bigdata5911/sales-agent/internal/whatsapp"
)

func TestWhatsAppServiceSendMessage(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	defer svc.Stop()

	receipt, err := svc.SendMessage(context.Background(), "(555) 123-4567", "Hello there", nil)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if receipt.To != "15551234567" {
		t.Errorf("expected canonical recipient 15551234567, got %q", receipt.To)
	}
	if receipt.ProviderMessageID == "" {
		t.Error("expected provider message ID on receipt")
	}
	if len(mock.Sent) != 1 || mock.Sent[0].To != "15551234567" {
		t.Errorf("unexpected sent messages %+v", mock.Sent)
	}
}

func TestWhatsAppServiceRejectsInvalidRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	defer svc.Stop()

	_, err := svc.SendMessage(context.Background(), "", "Hello", nil)
	if err == nil {
		t.Fatal("expected error for empty recipient")
	}
	if !IsDeliveryError(err) {
		t.Errorf("expected *DeliveryError, got %T", err)
	}
}

func TestWhatsAppServiceSendAfterStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	_, err := svc.SendMessage(context.Background(), "15551234567", "Hello", nil)
	if !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
