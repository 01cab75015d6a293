package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/domain"
	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/pkg/wosclient"
)

// RequestInvoice creates a lightning invoice addressed to a phone number. The
// number is embedded in the invoice description inside square brackets so the
// reconciler can recover it once the invoice is paid.
//
// The amount must exceed the network fee; otherwise there would be nothing
// left to relay and the request is rejected before touching the provider.
func (s *Service) RequestInvoice(ctx context.Context, number, amount string) (*wosclient.Invoice, error) {
	number = strings.TrimSpace(number)
	amount = strings.TrimSpace(amount)
	if number == "" || amount == "" {
		return nil, fmt.Errorf("%w: number and amount are required", ErrInvalidRequest)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q is not a valid decimal", ErrInvalidRequest, amount)
	}
	if !domain.PayableAmount(value, s.networkFee).IsPositive() {
		return nil, fmt.Errorf("%w: amount must exceed the network fee of %s BTC", ErrInvalidRequest, s.networkFee.String())
	}

	description := fmt.Sprintf("Sending payment to [%s]", number)
	invoice, err := s.wallet.CreateInvoice(ctx, value.String(), description, s.invoiceExpiry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return invoice, nil
}
