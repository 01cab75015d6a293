/**
 * @description
 * PostgreSQL implementation of the ledger `Repository`. Every mutation is a
 * single SQL statement; the claim path in particular relies on a conditional
 * UPDATE so that concurrent redemptions of the same code are serialized by the
 * database rather than by application-level locking.
 *
 * The expected schema lives in schema.sql at the repository root.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
)

// PostgresRepository is the pgx-backed ledger.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository on the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const paymentColumns = `
	id, type, status, amount::text, description,
	sent_sms, claim_code, claimed,
	payout_status, payout_id, payout_invoice, claimed_at,
	provider_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.PaymentRecord, error) {
	var (
		rec          domain.PaymentRecord
		amountText   string
		payoutStatus *string
		providerData []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Type, &rec.Status, &amountText, &rec.Description,
		&rec.SentSMS, &rec.ClaimCode, &rec.Claimed,
		&payoutStatus, &rec.PayoutID, &rec.PayoutInvoice, &rec.ClaimedAt,
		&providerData, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount for payment %s: %w", rec.ID, err)
	}
	if payoutStatus != nil {
		status := domain.PayoutStatus(*payoutStatus)
		rec.PayoutStatus = &status
	}
	if len(providerData) > 0 {
		if err := json.Unmarshal(providerData, &rec.Provider); err != nil {
			return nil, fmt.Errorf("decode provider data for payment %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// ListPayments returns every record in the ledger, newest first.
func (r *PostgresRepository) ListPayments(ctx context.Context) ([]domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.PaymentRecord
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetPayment returns the record for a provider payment id.
func (r *PostgresRepository) GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	rec, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return rec, nil
}

// UpsertProviderPayment merges the provider's fields into the stored record.
// Provider fields win; provider_data is merged key-by-key (|| on jsonb) and
// the internal flag columns are untouched, so re-processing the same page is
// a no-op for already-notified records.
func (r *PostgresRepository) UpsertProviderPayment(ctx context.Context, p domain.ProviderPayment) (*domain.PaymentRecord, error) {
	providerData, err := json.Marshal(p.Raw)
	if err != nil {
		return nil, fmt.Errorf("encode provider data for payment %s: %w", p.ID, err)
	}

	query := `
		INSERT INTO payments (id, type, status, amount, description, provider_data)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			amount = EXCLUDED.amount,
			description = EXCLUDED.description,
			provider_data = payments.provider_data || EXCLUDED.provider_data,
			updated_at = NOW()
		RETURNING ` + paymentColumns
	rec, err := scanPayment(r.db.QueryRow(ctx, query,
		p.ID, string(p.Type), string(p.Status), p.Amount.String(), p.Description, providerData,
	))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkNotified sets sent_sms and pins the claim code, only if no notification
// has been recorded yet.
func (r *PostgresRepository) MarkNotified(ctx context.Context, id, claimCode string) (bool, error) {
	query := `
		UPDATE payments
		SET sent_sms = TRUE, claim_code = $2, updated_at = NOW()
		WHERE id = $1 AND NOT sent_sms`
	result, err := r.db.Exec(ctx, query, id, claimCode)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// ClaimByCode is the atomic conditional update guarding the at-most-one-payout
// invariant: the WHERE clause only matches while the record is unclaimed, so
// the database hands the record to exactly one caller.
func (r *PostgresRepository) ClaimByCode(ctx context.Context, code string) (*domain.PaymentRecord, error) {
	query := `
		UPDATE payments
		SET claimed = TRUE, claimed_at = NOW(), updated_at = NOW()
		WHERE claim_code = $1 AND NOT claimed
		RETURNING ` + paymentColumns
	rec, err := scanPayment(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClaimCodeNotFound
		}
		return nil, err
	}
	return rec, nil
}

// RevertClaim makes the code redeemable again after an explicit payout
// rejection.
func (r *PostgresRepository) RevertClaim(ctx context.Context, id string) error {
	query := `
		UPDATE payments
		SET claimed = FALSE, claimed_at = NULL, payout_status = $2, updated_at = NOW()
		WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, string(domain.PayoutStatusFailed))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// SetPayoutResult records the outcome of a payout attempt.
func (r *PostgresRepository) SetPayoutResult(ctx context.Context, id string, status domain.PayoutStatus, payoutID, payoutInvoice *string) error {
	query := `
		UPDATE payments
		SET payout_status = $2, payout_id = $3, payout_invoice = $4, updated_at = NOW()
		WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, string(status), payoutID, payoutInvoice)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListIndeterminateClaims returns the claims frozen for manual review, oldest
// first so operators work through the backlog in order.
func (r *PostgresRepository) ListIndeterminateClaims(ctx context.Context) ([]domain.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE claimed AND payout_status = $1
		ORDER BY claimed_at ASC`
	rows, err := r.db.Query(ctx, query, string(domain.PayoutStatusIndeterminate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.PaymentRecord
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
