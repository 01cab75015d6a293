/**
 * @description
 * This file implements claim redemption: the claim-then-pay flow that releases
 * a received payment to the claimant's lightning invoice.
 *
 * The claimed flag is flipped atomically BEFORE the payout is attempted, so at
 * most one payout can ever be initiated per payment no matter how many
 * concurrent claims race on the same code. The flag is reverted only when the
 * provider explicitly rejects the payout; an ambiguous failure leaves the
 * claim set and freezes it for manual review, since releasing the code while
 * the payout may have settled would risk paying twice.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/store"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/wosclient"
)

// Claim redeems a claim code by paying the supplied lightning invoice the
// payment's face value minus the network fee.
func (s *Service) Claim(ctx context.Context, code, invoice string) (*domain.PaymentRecord, error) {
	code = strings.TrimSpace(code)
	invoice = strings.TrimSpace(invoice)
	if code == "" || invoice == "" {
		return nil, fmt.Errorf("%w: code and invoice are required", ErrInvalidRequest)
	}

	rec, err := s.repo.ClaimByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrClaimCodeNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payable := domain.PayableAmount(rec.Amount, s.networkFee)
	log.Printf("level=info component=claim msg=\"claim accepted, initiating payout\" payment_id=%s amount=%s", rec.ID, payable.String())

	payout, err := s.wallet.MakePayment(ctx, invoice, "LIGHTNING", payable.String())
	if err != nil {
		var apiErr *wosclient.ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsExplicitRejection() {
			return nil, s.rejectPayout(ctx, rec, payable.String(), invoice, err)
		}
		return nil, s.freezeClaim(ctx, rec, payable.String(), invoice, err)
	}
	if payout.Status == string(domain.PaymentStatusFailed) {
		return nil, s.rejectPayout(ctx, rec, payable.String(), invoice, fmt.Errorf("provider reported payout status FAILED (id %s)", payout.ID))
	}

	status := domain.PayoutStatusPaid
	if err := s.repo.SetPayoutResult(ctx, rec.ID, status, &payout.ID, &invoice); err != nil {
		// The payout went through; an audit-write failure must not fail the claim.
		log.Printf("level=error component=claim msg=\"payout succeeded but audit write failed\" payment_id=%s payout_id=%s err=%v", rec.ID, payout.ID, err)
	}
	s.publish(ctx, RoutingKeyClaimCompleted, newClaimEvent(rec.ID, string(status), payable.String()))
	log.Printf("level=info component=claim msg=\"payout completed\" payment_id=%s payout_id=%s", rec.ID, payout.ID)
	return rec, nil
}

// rejectPayout handles an explicit provider rejection: the claim is reverted
// so the code can be retried with a working invoice.
func (s *Service) rejectPayout(ctx context.Context, rec *domain.PaymentRecord, amount, invoice string, cause error) error {
	log.Printf("level=warn component=claim msg=\"payout rejected, reverting claim\" payment_id=%s err=%v", rec.ID, cause)
	if err := s.repo.RevertClaim(ctx, rec.ID); err != nil {
		// Unable to release the code; freeze the claim rather than leave the
		// record in an unknown state.
		log.Printf("level=error component=claim msg=\"revert failed after payout rejection\" payment_id=%s err=%v", rec.ID, err)
		return s.freezeClaim(ctx, rec, amount, invoice, cause)
	}
	s.publish(ctx, RoutingKeyClaimPayoutFailed, newClaimEvent(rec.ID, string(domain.PayoutStatusFailed), amount))
	return fmt.Errorf("%w: %v", ErrPayoutFailed, cause)
}

// freezeClaim handles an ambiguous payout failure: the claim stays set and is
// marked indeterminate for the operator report.
func (s *Service) freezeClaim(ctx context.Context, rec *domain.PaymentRecord, amount, invoice string, cause error) error {
	log.Printf("level=error component=claim msg=\"payout outcome ambiguous, freezing claim\" payment_id=%s err=%v", rec.ID, cause)
	if err := s.repo.SetPayoutResult(ctx, rec.ID, domain.PayoutStatusIndeterminate, nil, &invoice); err != nil {
		log.Printf("level=error component=claim msg=\"failed to mark claim indeterminate\" payment_id=%s err=%v", rec.ID, err)
	}
	s.publish(ctx, RoutingKeyClaimIndeterminate, newClaimEvent(rec.ID, string(domain.PayoutStatusIndeterminate), amount))
	return fmt.Errorf("%w: %v", ErrPayoutIndeterminate, cause)
}
