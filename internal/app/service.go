/**
 * @description
 * This file contains the core service for the relay. The `Service` struct
 * coordinates the ledger repository, the Wallet of Satoshi client, the SMS
 * notifier and the event producer. The individual operations live alongside in
 * claim.go, invoice.go and reconciler.go.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal arithmetic for BTC amounts.
 * - internal/domain, internal/store: Domain models and ledger access.
 * - pkg/wosclient, pkg/twilioclient, pkg/rabbitmq: External collaborators.
 */

package app

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/store"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/rabbitmq"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/twilioclient"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/wosclient"
)

// EventsExchange is the topic exchange relay lifecycle events are published to.
const EventsExchange = "lnsms.events"

var (
	// ErrInvalidRequest means the caller's input is missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidCode means no unclaimed payment matches the claim code. Unknown,
	// already-claimed and expired codes are indistinguishable to the caller.
	ErrInvalidCode = errors.New("invalid claim code")

	// ErrPayoutFailed means the provider explicitly rejected the payout; the
	// claim was reverted and the code can be retried.
	ErrPayoutFailed = errors.New("payout failed")

	// ErrPayoutIndeterminate means the payout call failed ambiguously. The claim
	// stays set and is frozen for manual review, since the payment may still
	// have gone through.
	ErrPayoutIndeterminate = errors.New("payout outcome indeterminate")

	// ErrProviderUnavailable means listing or creating payments at the provider
	// failed.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrPersistence means a ledger write failed; the current reconcile cycle is
	// aborted so no partially merged state is written.
	ErrPersistence = errors.New("ledger persistence failure")
)

// PaymentProvider is the slice of the wallet API the relay consumes.
type PaymentProvider interface {
	CreateInvoice(ctx context.Context, amount, description string, expirySeconds int) (*wosclient.Invoice, error)
	ListPayments(ctx context.Context, limit int) ([]wosclient.Payment, error)
	MakePayment(ctx context.Context, address, currency, amount string) (*wosclient.Payment, error)
}

// Notifier delivers a text message to a phone number.
type Notifier interface {
	SendMessage(ctx context.Context, to, body string) (*twilioclient.MessageReceipt, error)
}

// Config carries the tunables the service operations need.
type Config struct {
	// NetworkFee is the fixed fee subtracted from a payment's face value before
	// any display or payout computation.
	NetworkFee decimal.Decimal

	// ClaimBaseURL is the public site the redemption link points at.
	ClaimBaseURL string

	// InvoiceExpirySeconds is the lifetime of created invoices.
	InvoiceExpirySeconds int

	// ReconcilePageLimit bounds how many recent payments one cycle fetches.
	ReconcilePageLimit int
}

// Service provides the relay's operations: invoice requests, the reconcile
// cycle and claim redemption.
type Service struct {
	repo     store.Repository
	wallet   PaymentProvider
	notifier Notifier
	events   rabbitmq.Publisher

	networkFee    decimal.Decimal
	claimBaseURL  string
	invoiceExpiry int
	pageLimit     int

	// newClaimCode generates a fresh one-time claim code; injectable so tests
	// can pin codes and a stronger generator can be swapped in.
	newClaimCode func() (string, error)
}

// NewService creates a new relay service. events may be nil, in which case
// lifecycle events are skipped.
func NewService(repo store.Repository, wallet PaymentProvider, notifier Notifier, events rabbitmq.Publisher, cfg Config) *Service {
	if cfg.InvoiceExpirySeconds <= 0 {
		cfg.InvoiceExpirySeconds = 3600
	}
	if cfg.ReconcilePageLimit <= 0 {
		cfg.ReconcilePageLimit = 100
	}
	return &Service{
		repo:          repo,
		wallet:        wallet,
		notifier:      notifier,
		events:        events,
		networkFee:    cfg.NetworkFee,
		claimBaseURL:  cfg.ClaimBaseURL,
		invoiceExpiry: cfg.InvoiceExpirySeconds,
		pageLimit:     cfg.ReconcilePageLimit,
		newClaimCode:  NewClaimCode,
	}
}

// ListIndeterminateClaims returns claims frozen for manual review, for the
// operator report endpoint.
func (s *Service) ListIndeterminateClaims(ctx context.Context) ([]domain.PaymentRecord, error) {
	return s.repo.ListIndeterminateClaims(ctx)
}

// publish sends a lifecycle event, best effort. Event delivery never changes
// the outcome of the operation that emitted it.
func (s *Service) publish(ctx context.Context, routingKey string, body any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, EventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
