package app

import (
	"context"
	"errors"
	"testing"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
)

func TestRequestInvoice_EmbedsNumberInDescription(t *testing.T) {
	wallet := &walletStub{}
	svc := newTestService(newMemoryRepo(), wallet, &notifierStub{})

	invoice, err := svc.RequestInvoice(context.Background(), "+15551234567", "0.0011")
	if err != nil {
		t.Fatalf("RequestInvoice returned error: %v", err)
	}
	if invoice.Invoice == "" {
		t.Fatal("expected an invoice string")
	}

	if wallet.lastCreateAmount != "0.0011" {
		t.Fatalf("expected amount 0.0011 forwarded, got %s", wallet.lastCreateAmount)
	}
	if wallet.lastCreateExpiry != 3600 {
		t.Fatalf("expected expiry 3600, got %d", wallet.lastCreateExpiry)
	}

	number, ok := domain.ExtractClaimNumber(wallet.lastCreateDesc)
	if !ok || number != "+15551234567" {
		t.Fatalf("expected the number recoverable from %q, got %q ok=%v", wallet.lastCreateDesc, number, ok)
	}
}

func TestRequestInvoice_RejectsBadInput(t *testing.T) {
	wallet := &walletStub{}
	svc := newTestService(newMemoryRepo(), wallet, &notifierStub{})

	tests := []struct {
		name   string
		number string
		amount string
	}{
		{name: "missing number", number: "", amount: "0.001"},
		{name: "missing amount", number: "+111", amount: ""},
		{name: "unparsable amount", number: "+111", amount: "one btc"},
		{name: "amount equals fee", number: "+111", amount: "0.00001"},
		{name: "amount below fee", number: "+111", amount: "0.000001"},
		{name: "zero amount", number: "+111", amount: "0"},
		{name: "negative amount", number: "+111", amount: "-0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestInvoice(context.Background(), tt.number, tt.amount)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
	if wallet.createCall != 0 {
		t.Fatalf("expected no provider calls for rejected input, got %d", wallet.createCall)
	}
}

func TestRequestInvoice_ProviderFailure(t *testing.T) {
	wallet := &walletStub{createErr: errors.New("timeout")}
	svc := newTestService(newMemoryRepo(), wallet, &notifierStub{})

	_, err := svc.RequestInvoice(context.Background(), "+15551234567", "0.0011")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
