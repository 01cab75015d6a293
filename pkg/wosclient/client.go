/**
 * @description
 * This package provides a client for the Wallet of Satoshi API. It encapsulates
 * the logic for making authenticated HTTP requests: every call carries the
 * api-token header, and mutating calls are additionally signed with an HMAC of
 * the path, nonce, token and request body.
 *
 * Non-2xx responses are surfaced as a typed *ErrorResponse so callers can tell
 * an explicit provider rejection apart from a transport failure. That
 * distinction drives the claim flow's revert-or-freeze decision.
 *
 * @dependencies
 * - bytes, context, crypto/hmac, crypto/sha256, encoding/json, net/http: Standard Go libraries.
 */
package wosclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a client for the Wallet of Satoshi API.
type Client struct {
	BaseURL    string
	APIToken   string
	APISecret  string
	HTTPClient *http.Client

	// nonce returns the value sent in the nonce header; injectable for tests.
	nonce func() string
}

// NewClient creates a new Wallet of Satoshi API client.
func NewClient(baseURL, apiToken, apiSecret string) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIToken:  apiToken,
		APISecret: apiSecret,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		nonce: func() string {
			return strconv.FormatInt(time.Now().UnixMicro(), 10)
		},
	}
}

// Payment is the provider's payment resource as returned by the payments
// endpoints. Raw keeps every field of the wire object so callers can pass
// provider data through without this client enumerating it.
type Payment struct {
	ID             string `json:"id"`
	Time           string `json:"time"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Amount         string `json:"amount"`
	Fees           string `json:"fees"`
	Currency       string `json:"currency"`
	TransactionID  string `json:"transactionId"`
	Description    string `json:"description"`
	PaymentGroupID string `json:"paymentGroupId"`

	Raw map[string]any `json:"-"`
}

func (p *Payment) UnmarshalJSON(data []byte) error {
	type alias Payment
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Payment(a)
	p.Raw = raw
	return nil
}

// Invoice is the response of createInvoice.
type Invoice struct {
	ID        string `json:"id"`
	Invoice   string `json:"invoice"`
	BTCAmount string `json:"btcAmount"`
}

// Balance is the wallet balance across settlement layers.
type Balance struct {
	BTC            string `json:"btc"`
	BTCUnconfirmed string `json:"btcUnconfirmed"`
	Lightning      string `json:"lightning"`
}

// FeeEstimate is the provider's current fee estimate.
type FeeEstimate struct {
	BTCFixedFee      string `json:"btcFixedFee"`
	BTCMinerFeePerKB string `json:"btcMinerFeePerKb"`
	LightningFee     any    `json:"lightningFee"`
}

// AccountInfo describes the wallet account.
type AccountInfo struct {
	BTCDepositAddress string  `json:"btcDepositAddress"`
	MaxBTCLimit       float64 `json:"maxBtcLimit"`
}

// ErrorResponse represents a non-2xx reply from the provider.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *ErrorResponse) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		msg = "unknown wallet api error"
	}
	return fmt.Sprintf("wallet api error (status %d): %s", e.StatusCode, msg)
}

// IsExplicitRejection reports whether the provider definitively refused the
// request. A 4xx means the request was received and rejected; a 5xx or a
// transport error leaves the outcome ambiguous.
func (e *ErrorResponse) IsExplicitRejection() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

type createInvoiceRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Expiry      int    `json:"expiry"`
}

type makePaymentRequest struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type cancelInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

// CreateInvoice creates a lightning invoice for the given amount with the
// destination phone number embedded in the description by the caller.
func (c *Client) CreateInvoice(ctx context.Context, amount, description string, expirySeconds int) (*Invoice, error) {
	var invoice Invoice
	req := createInvoiceRequest{Amount: amount, Description: description, Expiry: expirySeconds}
	if err := c.doSigned(ctx, "/api/v1/wallet/createInvoice", req, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListPayments fetches the most recent payments, newest first. The same
// payment can reappear across calls; callers must treat the page as a
// snapshot, not a cursor.
func (c *Client) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	var payments []Payment
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if err := c.doGet(ctx, "/api/v1/wallet/payments", query, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// MakePayment pays out to a destination address on the given settlement
// currency ("LIGHTNING" for invoice payouts).
func (c *Client) MakePayment(ctx context.Context, address, currency, amount string) (*Payment, error) {
	var payment Payment
	req := makePaymentRequest{Address: address, Currency: currency, Amount: amount}
	if err := c.doSigned(ctx, "/api/v1/wallet/payment", req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CancelInvoice cancels a previously created invoice.
func (c *Client) CancelInvoice(ctx context.Context, invoice string) (*Payment, error) {
	var payment Payment
	if err := c.doSigned(ctx, "/api/v1/wallet/cancelInvoice", cancelInvoiceRequest{Invoice: invoice}, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindPaymentByID fetches a single payment resource.
func (c *Client) FindPaymentByID(ctx context.Context, id string) (*Payment, error) {
	var payment Payment
	if err := c.doGet(ctx, "/api/v1/wallet/payment/"+url.PathEscape(id), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetBalance fetches the wallet balance.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var balance Balance
	if err := c.doGet(ctx, "/api/v1/wallet/balance", nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetFeeEstimate fetches the provider's current fee estimate.
func (c *Client) GetFeeEstimate(ctx context.Context) (*FeeEstimate, error) {
	var estimate FeeEstimate
	if err := c.doGet(ctx, "/api/v1/wallet/feeEstimate", nil, &estimate); err != nil {
		return nil, err
	}
	return &estimate, nil
}

// GetAccountInfo fetches the wallet account details.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.doGet(ctx, "/api/v1/wallet/account", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// sign computes the request signature: hex(HMAC-SHA256(path + nonce + token + body)).
func (c *Client) sign(path, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write([]byte(path + nonce + c.APIToken))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// doSigned executes an authenticated, signed POST and decodes the response.
func (c *Client) doSigned(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request for %s: %w", path, err)
	}

	nonce := c.nonce()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-token", c.APIToken)
	req.Header.Set("nonce", nonce)
	req.Header.Set("signature", c.sign(path, nonce, body))

	return c.execute(req, path, out)
}

// doGet executes an authenticated GET and decodes the response.
func (c *Client) doGet(ctx context.Context, path string, query url.Values, out any) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request for %s: %w", path, err)
	}
	req.Header.Set("api-token", c.APIToken)

	return c.execute(req, path, out)
}

func (c *Client) execute(req *http.Request, path string, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request for %s: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response for %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=wallet_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
		}
		return &errResp
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}
