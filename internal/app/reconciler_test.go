package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/wosclient"
)

func paidCredit(id, amount, description string) wosclient.Payment {
	return wosclient.Payment{
		ID:          id,
		Type:        "CREDIT",
		Status:      "PAID",
		Amount:      amount,
		Description: description,
		Raw:         map[string]any{"id": id, "amount": amount},
	}
}

func TestReconcileOnce_NotifiesPaidCredit(t *testing.T) {
	repo := newMemoryRepo()
	wallet := &walletStub{payments: []wosclient.Payment{
		paidCredit("pay-1", "0.0011", "Sending payment to [+15551234567]"),
	}}
	notifier := &notifierStub{}
	svc := newTestService(repo, wallet, notifier)

	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected one SMS, got %d", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if msg.to != "+15551234567" {
		t.Fatalf("expected SMS to +15551234567, got %q", msg.to)
	}
	if !strings.Contains(msg.body, "0.00109 BTC") {
		t.Fatalf("expected fee-adjusted amount 0.00109 in SMS body, got %q", msg.body)
	}
	if !strings.Contains(msg.body, "https://lnsms.ga/#/claim/testclaimcode") {
		t.Fatalf("expected claim link in SMS body, got %q", msg.body)
	}

	rec, err := repo.GetPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if !rec.SentSMS {
		t.Fatal("expected sent flag after successful notification")
	}
	if rec.ClaimCode == nil || *rec.ClaimCode != "testclaimcode" {
		t.Fatalf("expected claim code pinned on the record, got %v", rec.ClaimCode)
	}
}

func TestReconcileOnce_SecondCycleDoesNotResend(t *testing.T) {
	repo := newMemoryRepo()
	wallet := &walletStub{payments: []wosclient.Payment{
		paidCredit("pay-1", "0.0011", "Sending payment to [+15551234567]"),
	}}
	notifier := &notifierStub{}
	svc := newTestService(repo, wallet, notifier)

	for i := 0; i < 3; i++ {
		if err := svc.ReconcileOnce(context.Background()); err != nil {
			t.Fatalf("cycle %d returned error: %v", i, err)
		}
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected exactly one SMS across replayed cycles, got %d", len(notifier.messages))
	}
}

func TestReconcileOnce_SkipsNonQualifyingPayments(t *testing.T) {
	tests := []struct {
		name    string
		payment wosclient.Payment
	}{
		{name: "debit", payment: wosclient.Payment{ID: "pay-d", Type: "DEBIT", Status: "PAID", Amount: "0.001", Description: "[+111]"}},
		{name: "pending credit", payment: wosclient.Payment{ID: "pay-p", Type: "CREDIT", Status: "PENDING", Amount: "0.001", Description: "[+111]"}},
		{name: "failed credit", payment: wosclient.Payment{ID: "pay-f", Type: "CREDIT", Status: "FAILED", Amount: "0.001", Description: "[+111]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			notifier := &notifierStub{}
			svc := newTestService(repo, &walletStub{payments: []wosclient.Payment{tt.payment}}, notifier)

			if err := svc.ReconcileOnce(context.Background()); err != nil {
				t.Fatalf("ReconcileOnce returned error: %v", err)
			}
			if len(notifier.messages) != 0 {
				t.Fatalf("expected no SMS, got %d", len(notifier.messages))
			}

			// The record is still merged into the ledger.
			if _, err := repo.GetPayment(context.Background(), tt.payment.ID); err != nil {
				t.Fatalf("expected record in ledger: %v", err)
			}
		})
	}
}

func TestReconcileOnce_NoDestinationTokenLeavesRecordUnnotified(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &notifierStub{}
	svc := newTestService(repo, &walletStub{payments: []wosclient.Payment{
		paidCredit("pay-1", "0.0011", "no token here"),
	}}, notifier)

	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatal("expected no SMS for a payment without a destination token")
	}

	rec, err := repo.GetPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if rec.SentSMS || rec.ClaimCode != nil {
		t.Fatal("expected the record to stay unnotified")
	}
}

func TestReconcileOnce_AmountBelowFeeIsNotNotified(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &notifierStub{}
	svc := newTestService(repo, &walletStub{payments: []wosclient.Payment{
		paidCredit("pay-1", "0.00001", "Sending payment to [+15551234567]"),
	}}, notifier)

	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatal("expected no SMS when the amount does not cover the network fee")
	}
}

func TestReconcileOnce_UnparsableAmountIsSkipped(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &notifierStub{}
	svc := newTestService(repo, &walletStub{payments: []wosclient.Payment{
		{ID: "pay-bad", Type: "CREDIT", Status: "PAID", Amount: "not-a-number", Description: "[+111]"},
		paidCredit("pay-good", "0.0011", "Sending payment to [+15551234567]"),
	}}, notifier)

	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected the parsable payment to still be processed, got %d messages", len(notifier.messages))
	}
	if _, err := repo.GetPayment(context.Background(), "pay-bad"); err == nil {
		t.Fatal("expected the unparsable payment to be left out of the ledger")
	}
}

func TestReconcileOnce_SendFailureLeavesFlagsUnset(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &notifierStub{sendErr: errors.New("twilio down")}
	svc := newTestService(repo, &walletStub{payments: []wosclient.Payment{
		paidCredit("pay-1", "0.0011", "Sending payment to [+15551234567]"),
	}}, notifier)

	if err := svc.ReconcileOnce(context.Background()); err == nil {
		t.Fatal("expected the cycle to surface the send failure")
	}

	rec, err := repo.GetPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if rec.SentSMS || rec.ClaimCode != nil {
		t.Fatal("expected flags unset after a failed send so the next cycle retries")
	}

	// Next cycle with a healthy notifier delivers.
	notifier.sendErr = nil
	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("retry cycle returned error: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected the retry cycle to send the SMS, got %d messages", len(notifier.messages))
	}
}

func TestReconcileOnce_ProviderFailureAbortsCycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &walletStub{listErr: errors.New("connection refused")}, &notifierStub{})

	err := svc.ReconcileOnce(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestReconcileOnce_UpsertFailureAbortsCycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.upsertErr = errors.New("connection reset")
	svc := newTestService(repo, &walletStub{payments: []wosclient.Payment{
		paidCredit("pay-1", "0.0011", "Sending payment to [+15551234567]"),
	}}, &notifierStub{})

	err := svc.ReconcileOnce(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestReconcileOnce_StatusUpgradeTriggersNotification(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &notifierStub{}
	wallet := &walletStub{payments: []wosclient.Payment{
		{ID: "pay-1", Type: "CREDIT", Status: "PENDING", Amount: "0.0011", Description: "Sending payment to [+15551234567]"},
	}}
	svc := newTestService(repo, wallet, notifier)

	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("pending cycle returned error: %v", err)
	}
	if len(notifier.messages) != 0 {
		t.Fatal("expected no SMS while the payment is pending")
	}

	wallet.payments[0].Status = "PAID"
	if err := svc.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("paid cycle returned error: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected SMS once the payment settles, got %d", len(notifier.messages))
	}

	rec, err := repo.GetPayment(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if rec.Status != domain.PaymentStatusPaid {
		t.Fatalf("expected merged status PAID, got %s", rec.Status)
	}
}
