package app

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/store"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/twilioclient"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/wosclient"
)

// newTestService wires a Service over stubs with the production defaults: a
// 0.00001 BTC network fee and the public claim site.
func newTestService(repo store.Repository, wallet PaymentProvider, notifier Notifier) *Service {
	return &Service{
		repo:          repo,
		wallet:        wallet,
		notifier:      notifier,
		networkFee:    decimal.RequireFromString("0.00001"),
		claimBaseURL:  "https://lnsms.ga",
		invoiceExpiry: 3600,
		pageLimit:     100,
		newClaimCode:  func() (string, error) { return "testclaimcode", nil },
	}
}

// memoryRepo is an in-memory Repository used by the service tests. Mutations
// mirror the single-statement semantics of the postgres implementation.
type memoryRepo struct {
	records map[string]*domain.PaymentRecord

	upsertErr       error
	markNotifiedErr error
	claimErr        error
	revertErr       error
	setPayoutErr    error

	markNotifiedCalls int
	revertCalls       int
	setPayoutCalls    int
	lastPayoutStatus  domain.PayoutStatus
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*domain.PaymentRecord)}
}

func (m *memoryRepo) ListPayments(ctx context.Context) ([]domain.PaymentRecord, error) {
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.PaymentRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.records[id])
	}
	return out, nil
}

func (m *memoryRepo) GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *memoryRepo) UpsertProviderPayment(ctx context.Context, p domain.ProviderPayment) (*domain.PaymentRecord, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	rec, ok := m.records[p.ID]
	if !ok {
		rec = &domain.PaymentRecord{ID: p.ID, CreatedAt: time.Now()}
		m.records[p.ID] = rec
	}
	rec.Type = p.Type
	rec.Status = p.Status
	rec.Amount = p.Amount
	rec.Description = p.Description
	rec.Provider = p.Raw
	rec.UpdatedAt = time.Now()
	copied := *rec
	return &copied, nil
}

func (m *memoryRepo) MarkNotified(ctx context.Context, id, claimCode string) (bool, error) {
	if m.markNotifiedErr != nil {
		return false, m.markNotifiedErr
	}
	m.markNotifiedCalls++
	rec, ok := m.records[id]
	if !ok || rec.SentSMS {
		return false, nil
	}
	rec.SentSMS = true
	rec.ClaimCode = &claimCode
	return true, nil
}

func (m *memoryRepo) ClaimByCode(ctx context.Context, code string) (*domain.PaymentRecord, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	for _, rec := range m.records {
		if rec.ClaimCode != nil && *rec.ClaimCode == code && !rec.Claimed {
			rec.Claimed = true
			now := time.Now()
			rec.ClaimedAt = &now
			copied := *rec
			return &copied, nil
		}
	}
	return nil, store.ErrClaimCodeNotFound
}

func (m *memoryRepo) RevertClaim(ctx context.Context, id string) error {
	m.revertCalls++
	if m.revertErr != nil {
		return m.revertErr
	}
	rec, ok := m.records[id]
	if !ok {
		return store.ErrPaymentNotFound
	}
	rec.Claimed = false
	rec.ClaimedAt = nil
	failed := domain.PayoutStatusFailed
	rec.PayoutStatus = &failed
	return nil
}

func (m *memoryRepo) SetPayoutResult(ctx context.Context, id string, status domain.PayoutStatus, payoutID, payoutInvoice *string) error {
	m.setPayoutCalls++
	m.lastPayoutStatus = status
	if m.setPayoutErr != nil {
		return m.setPayoutErr
	}
	rec, ok := m.records[id]
	if !ok {
		return store.ErrPaymentNotFound
	}
	rec.PayoutStatus = &status
	rec.PayoutID = payoutID
	rec.PayoutInvoice = payoutInvoice
	return nil
}

func (m *memoryRepo) ListIndeterminateClaims(ctx context.Context) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, rec := range m.records {
		if rec.Claimed && rec.PayoutStatus != nil && *rec.PayoutStatus == domain.PayoutStatusIndeterminate {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type walletStub struct {
	payments []wosclient.Payment
	listErr  error

	invoice          *wosclient.Invoice
	createErr        error
	createCall       int
	lastCreateAmount string
	lastCreateDesc   string
	lastCreateExpiry int

	payResult    *wosclient.Payment
	payErr       error
	payCalls     int
	lastAddress  string
	lastCurrency string
	lastAmount   string
}

func (w *walletStub) CreateInvoice(ctx context.Context, amount, description string, expirySeconds int) (*wosclient.Invoice, error) {
	w.createCall++
	w.lastCreateAmount = amount
	w.lastCreateDesc = description
	w.lastCreateExpiry = expirySeconds
	if w.createErr != nil {
		return nil, w.createErr
	}
	if w.invoice != nil {
		return w.invoice, nil
	}
	return &wosclient.Invoice{ID: "inv-1", Invoice: "lnbc1...", BTCAmount: amount}, nil
}

func (w *walletStub) ListPayments(ctx context.Context, limit int) ([]wosclient.Payment, error) {
	if w.listErr != nil {
		return nil, w.listErr
	}
	return w.payments, nil
}

func (w *walletStub) MakePayment(ctx context.Context, address, currency, amount string) (*wosclient.Payment, error) {
	w.payCalls++
	w.lastAddress = address
	w.lastCurrency = currency
	w.lastAmount = amount
	if w.payErr != nil {
		return nil, w.payErr
	}
	if w.payResult != nil {
		return w.payResult, nil
	}
	return &wosclient.Payment{ID: "payout-1", Status: "PAID"}, nil
}

type sentMessage struct {
	to   string
	body string
}

type notifierStub struct {
	sendErr  error
	messages []sentMessage
}

func (n *notifierStub) SendMessage(ctx context.Context, to, body string) (*twilioclient.MessageReceipt, error) {
	if n.sendErr != nil {
		return nil, n.sendErr
	}
	n.messages = append(n.messages, sentMessage{to: to, body: body})
	return &twilioclient.MessageReceipt{SID: "SM123", Status: "queued", To: to}, nil
}
