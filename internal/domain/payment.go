/**
 * @description
 * This file defines the domain model shared by the reconciler, the claim flow and
 * the ledger store: the PaymentRecord tracked per provider-side payment, the
 * enums the provider reports, and the helpers for amount arithmetic and for
 * extracting the destination phone number from an invoice description.
 *
 * @dependencies
 * - regexp, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Exact decimal arithmetic for BTC amounts.
 */

package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType is the direction of value flow as reported by the provider.
type PaymentType string

const (
	PaymentTypeCredit PaymentType = "CREDIT"
	PaymentTypeDebit  PaymentType = "DEBIT"
)

// PaymentStatus is the provider-reported lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
)

// PayoutStatus tracks the outcome of a claim's outbound lightning payment.
// "indeterminate" means the payout call failed ambiguously and the claim is
// frozen for manual review.
type PayoutStatus string

const (
	PayoutStatusInitiated     PayoutStatus = "initiated"
	PayoutStatusPaid          PayoutStatus = "paid"
	PayoutStatusFailed        PayoutStatus = "failed"
	PayoutStatusIndeterminate PayoutStatus = "indeterminate"
)

// ProviderPayment carries one entry of the provider's recent-payments page into
// the ledger. Raw holds every provider-supplied field unmodified; the typed
// fields are the subset this service consumes.
type ProviderPayment struct {
	ID          string
	Type        PaymentType
	Status      PaymentStatus
	Amount      decimal.Decimal
	Description string
	Raw         map[string]any
}

// PaymentRecord is the ledger row kept per provider payment identifier. The
// provider owns every field except SentSMS, ClaimCode, Claimed and the payout
// audit fields, which are internal and survive provider-side merges.
type PaymentRecord struct {
	ID            string           `json:"id"`
	Type          PaymentType      `json:"type"`
	Status        PaymentStatus    `json:"status"`
	Amount        decimal.Decimal  `json:"amount"`
	Description   string           `json:"description"`
	SentSMS       bool             `json:"sent_sms"`
	ClaimCode     *string          `json:"claim_code,omitempty"`
	Claimed       bool             `json:"claimed"`
	PayoutStatus  *PayoutStatus    `json:"payout_status,omitempty"`
	PayoutID      *string          `json:"payout_id,omitempty"`
	PayoutInvoice *string          `json:"payout_invoice,omitempty"`
	ClaimedAt     *time.Time       `json:"claimed_at,omitempty"`
	Provider      map[string]any   `json:"provider,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

var claimNumberPattern = regexp.MustCompile(`\[(.*?)\]`)

// ExtractClaimNumber pulls the destination phone number out of an invoice
// description using the bracket-token convention, e.g. "pay [+15551234567]".
// The second return is false when the description carries no token or the
// token is empty.
func ExtractClaimNumber(description string) (string, bool) {
	matches := claimNumberPattern.FindStringSubmatch(description)
	if len(matches) < 2 {
		return "", false
	}
	number := strings.TrimSpace(matches[1])
	if number == "" {
		return "", false
	}
	return number, true
}

// PayableAmount is the face value minus the fixed network fee. Both the invoice
// request validation and the claim payout go through this helper so the two
// sides of a relay always agree on the amount.
func PayableAmount(amount, fee decimal.Decimal) decimal.Decimal {
	return amount.Sub(fee)
}
