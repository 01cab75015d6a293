/**
 * @description
 * This file defines the `Repository` interface: the contract for the payment
 * ledger. The reconciler and the claim flow only depend on this interface, so
 * the database implementation can be swapped for an in-memory fake in tests.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: The service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrClaimCodeNotFound = errors.New("no unclaimed payment matches the claim code")
)

// Repository is the durable keyed store of PaymentRecords.
//
// Writes follow a single-statement discipline: every mutation is one atomic
// statement, so a record is never left half-merged and the reconciler's
// periodic rewrite cannot clobber a concurrent claim's flag update.
type Repository interface {
	// ListPayments returns every record in the ledger.
	ListPayments(ctx context.Context) ([]domain.PaymentRecord, error)

	// GetPayment returns the record for a provider payment id, or
	// ErrPaymentNotFound.
	GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error)

	// UpsertProviderPayment merges the provider's view of a payment into the
	// ledger and returns the merged record. Provider fields win; the internal
	// flags (sent_sms, claim_code, claimed, payout audit) are preserved.
	UpsertProviderPayment(ctx context.Context, p domain.ProviderPayment) (*domain.PaymentRecord, error)

	// MarkNotified records that an SMS was dispatched for the payment and pins
	// its claim code. The update only applies when sent_sms is still false;
	// the bool reports whether it applied, so a claim code is assigned at most
	// once per record.
	MarkNotified(ctx context.Context, id, claimCode string) (bool, error)

	// ClaimByCode atomically marks the record matching an unclaimed code as
	// claimed and returns it. Returns ErrClaimCodeNotFound when no record has
	// claim_code = code with claimed = false; of N concurrent calls with the
	// same code exactly one receives the record.
	ClaimByCode(ctx context.Context, code string) (*domain.PaymentRecord, error)

	// RevertClaim clears the claimed flag after the provider explicitly
	// rejected the payout, so the code becomes redeemable again.
	RevertClaim(ctx context.Context, id string) error

	// SetPayoutResult records the outcome of a payout attempt for auditing and
	// for the operator report of indeterminate claims.
	SetPayoutResult(ctx context.Context, id string, status domain.PayoutStatus, payoutID, payoutInvoice *string) error

	// ListIndeterminateClaims returns claimed records whose payout outcome is
	// ambiguous and needs manual reconciliation.
	ListIndeterminateClaims(ctx context.Context) ([]domain.PaymentRecord, error)
}
