package app

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys on the lifecycle exchange.
const (
	RoutingKeyPaymentNotified    = "payment.notified"
	RoutingKeyClaimCompleted     = "claim.completed"
	RoutingKeyClaimPayoutFailed  = "claim.payout.failed"
	RoutingKeyClaimIndeterminate = "claim.payout.indeterminate"
)

// PaymentNotifiedEvent is published after the claim SMS for a payment was
// dispatched and the ledger flags were set.
type PaymentNotifiedEvent struct {
	EventID   string    `json:"event_id"`
	PaymentID string    `json:"payment_id"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// ClaimEvent is published for every claim outcome: completed payouts, explicit
// rejections (reverted) and indeterminate ones frozen for review.
type ClaimEvent struct {
	EventID      string    `json:"event_id"`
	PaymentID    string    `json:"payment_id"`
	PayoutStatus string    `json:"payout_status"`
	Amount       string    `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

func newPaymentNotifiedEvent(paymentID, amount string) PaymentNotifiedEvent {
	return PaymentNotifiedEvent{
		EventID:   uuid.New().String(),
		PaymentID: paymentID,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
}

func newClaimEvent(paymentID, payoutStatus, amount string) ClaimEvent {
	return ClaimEvent{
		EventID:      uuid.New().String(),
		PaymentID:    paymentID,
		PayoutStatus: payoutStatus,
		Amount:       amount,
		Timestamp:    time.Now().UTC(),
	}
}
