/**
 * @description
 * This file implements the reconcile cycle and its scheduler. Every cycle
 * fetches a page of recent payments from the provider, merges each one into
 * the ledger, and dispatches the claim SMS for inbound payments that settled
 * since the last look.
 *
 * Notification is at-least-once: the sent flag is set only after the SMS
 * dispatch succeeds, so a crash between send and flag write causes a duplicate
 * SMS on the next cycle rather than a silently lost payment. The claim code is
 * pinned in the same write, so a duplicate SMS always carries the same code.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Interval scheduling with overlap suppression.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
)

// decimalFromProvider parses a provider-supplied amount string.
func decimalFromProvider(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}

// ReconcileOnce runs a single reconcile cycle. A provider failure aborts the
// cycle before any write; a ledger write failure aborts it mid-page, which is
// safe because every step is idempotent and the next cycle replays the page.
func (s *Service) ReconcileOnce(ctx context.Context) error {
	payments, err := s.wallet.ListPayments(ctx, s.pageLimit)
	if err != nil {
		return fmt.Errorf("%w: list payments: %v", ErrProviderUnavailable, err)
	}

	for i := range payments {
		p := &payments[i]
		amount, err := decimalFromProvider(p.Amount)
		if err != nil {
			log.Printf("level=warn component=reconciler msg=\"skipping payment with unparsable amount\" payment_id=%s amount=%q", p.ID, p.Amount)
			continue
		}

		rec, err := s.repo.UpsertProviderPayment(ctx, domain.ProviderPayment{
			ID:          p.ID,
			Type:        domain.PaymentType(p.Type),
			Status:      domain.PaymentStatus(p.Status),
			Amount:      amount,
			Description: p.Description,
			Raw:         p.Raw,
		})
		if err != nil {
			return fmt.Errorf("%w: upsert payment %s: %v", ErrPersistence, p.ID, err)
		}

		if rec.Type != domain.PaymentTypeCredit || rec.Status != domain.PaymentStatusPaid || rec.SentSMS {
			continue
		}
		if err := s.notifyPayment(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// notifyPayment dispatches the claim SMS for a settled inbound payment and
// records it in the ledger. Payments without a destination token or without a
// relayable amount are left unnotified and revisited every cycle.
func (s *Service) notifyPayment(ctx context.Context, rec *domain.PaymentRecord) error {
	number, ok := domain.ExtractClaimNumber(rec.Description)
	if !ok {
		log.Printf("level=warn component=reconciler msg=\"paid credit carries no destination number\" payment_id=%s", rec.ID)
		return nil
	}

	payable := domain.PayableAmount(rec.Amount, s.networkFee)
	if !payable.IsPositive() {
		log.Printf("level=warn component=reconciler msg=\"paid credit does not cover the network fee\" payment_id=%s amount=%s", rec.ID, rec.Amount.String())
		return nil
	}

	code, err := s.newClaimCode()
	if err != nil {
		return fmt.Errorf("claim code for payment %s: %w", rec.ID, err)
	}

	body := fmt.Sprintf("You received a payment of %s BTC. Claim it at %s/#/claim/%s", payable.String(), s.claimBaseURL, code)
	if _, err := s.notifier.SendMessage(ctx, number, body); err != nil {
		// The flag stays unset; the next cycle retries the send.
		return fmt.Errorf("send claim sms for payment %s: %w", rec.ID, err)
	}

	applied, err := s.repo.MarkNotified(ctx, rec.ID, code)
	if err != nil {
		return fmt.Errorf("%w: mark payment %s notified: %v", ErrPersistence, rec.ID, err)
	}
	if !applied {
		// A concurrent cycle won the write; its code is the live one.
		log.Printf("level=warn component=reconciler msg=\"payment already notified concurrently\" payment_id=%s", rec.ID)
		return nil
	}

	s.publish(ctx, RoutingKeyPaymentNotified, newPaymentNotifiedEvent(rec.ID, payable.String()))
	log.Printf("level=info component=reconciler msg=\"claim sms dispatched\" payment_id=%s amount=%s", rec.ID, payable.String())
	return nil
}

// Reconciler drives ReconcileOnce on a fixed interval. Overlapping runs are
// skipped and panics in a cycle are recovered, so one bad cycle cannot take
// the scheduler down.
type Reconciler struct {
	cron *cron.Cron
}

// NewReconciler schedules the service's reconcile cycle every interval.
func NewReconciler(svc *Service, interval time.Duration) (*Reconciler, error) {
	logger := cron.PrintfLogger(log.New(log.Writer(), "level=info component=reconciler ", log.LstdFlags))
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)

	spec := fmt.Sprintf("@every %s", interval)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval*10)
		defer cancel()
		if err := svc.ReconcileOnce(ctx); err != nil {
			log.Printf("level=error component=reconciler msg=\"reconcile cycle failed\" err=%v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconcile cycle: %w", err)
	}
	return &Reconciler{cron: c}, nil
}

// Start begins the schedule in its own goroutine.
func (r *Reconciler) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}
