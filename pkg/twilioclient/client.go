/**
 * @description
 * This package provides a minimal client for the Twilio Messages API, used to
 * deliver claim notifications over SMS. Requests are form-encoded against the
 * 2010-04-01 REST surface with basic auth; messages are sent through a
 * messaging service so Twilio picks the sender number.
 *
 * @dependencies
 * - context, encoding/json, net/http, net/url, strings: Standard Go libraries.
 */
package twilioclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

// Client is a client for the Twilio Messages API.
type Client struct {
	BaseURL             string
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	HTTPClient          *http.Client
}

// NewClient creates a new Twilio client. baseURL may be empty to use the
// public API host.
func NewClient(baseURL, accountSID, authToken, messagingServiceSID string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:             baseURL,
		AccountSID:          accountSID,
		AuthToken:           authToken,
		MessagingServiceSID: messagingServiceSID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MessageReceipt is the delivery receipt returned on send.
type MessageReceipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
}

// ErrorResponse represents an error reply from the Twilio API.
type ErrorResponse struct {
	StatusCode int    `json:"status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("twilio api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("twilio api error (status %d)", e.StatusCode)
}

// SendMessage sends an SMS to the destination number and returns the delivery
// receipt. A non-2xx reply is returned as a typed *ErrorResponse.
func (c *Client) SendMessage(ctx context.Context, to, body string) (*MessageReceipt, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	form.Set("MessagingServiceSid", c.MessagingServiceSID)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.BaseURL, c.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create message request: %w", err)
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute message request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read message response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(bodyBytes, &errResp)
		return nil, &errResp
	}

	var receipt MessageReceipt
	if err := json.Unmarshal(bodyBytes, &receipt); err != nil {
		return nil, fmt.Errorf("decode message response: %w", err)
	}
	return &receipt, nil
}
