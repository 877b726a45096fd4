// Package gateway implements the HTTP client for the mobile-money
// provider: STK push initiation, direct transaction lookup and the bulk
// transaction listing used as the fallback status tier.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/metrocheck/crb-service/internal"
	gatewaytypes "github.com/metrocheck/crb-service/internal/core/datamodel/gateway"
)

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg internal.GatewayConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: cfg.RequestTimeout(),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		logger: logger,
	}
}

// stkPushEnvelope tolerates the provider's two response layouts: fields
// at the top level or nested under "data", with either capitalization of
// the checkout id key.
type stkPushEnvelope struct {
	CheckoutRequestIDUpper string           `json:"checkoutRequestID"`
	CheckoutRequestID      string           `json:"checkoutRequestId"`
	TransactionID          string           `json:"transactionId"`
	Data                   *stkPushEnvelope `json:"data"`
}

func (e *stkPushEnvelope) result() gatewaytypes.STKPushResult {
	res := gatewaytypes.STKPushResult{
		CheckoutRequestID: firstNonEmpty(e.CheckoutRequestIDUpper, e.CheckoutRequestID),
		TransactionID:     e.TransactionID,
	}
	if e.Data != nil {
		nested := e.Data.result()
		res.CheckoutRequestID = firstNonEmpty(res.CheckoutRequestID, nested.CheckoutRequestID)
		res.TransactionID = firstNonEmpty(res.TransactionID, nested.TransactionID)
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// InitiateSTKPush asks the provider to prompt the payer's phone. The
// amount is truncated to whole currency units at this boundary.
func (c *Client) InitiateSTKPush(ctx context.Context, phoneE164 string, amount int64) (*gatewaytypes.STKPushResult, error) {
	payload := map[string]interface{}{
		"phone":  phoneE164,
		"amount": amount,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions/stk-push", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create stk push request: %w", err)
	}
	c.setHeaders(httpReq)

	c.logger.Info("initiating stk push", "phone", phoneE164, "amount", amount)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stk push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// the provider message travels verbatim into outcome metadata
		return nil, fmt.Errorf("provider rejected stk push (status %d): %s", resp.StatusCode, string(body))
	}

	var envelope stkPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response: %w", err)
	}

	result := envelope.result()
	c.logger.Info("stk push acknowledged",
		"checkout_request_id", result.CheckoutRequestID,
		"transaction_id", result.TransactionID)

	return &result, nil
}

type transactionEnvelope struct {
	TransactionID      string `json:"transactionId"`
	Status             string `json:"status"`
	MpesaReceiptNumber string `json:"mpesaReceiptNumber"`
	Receipt            string `json:"receipt"`
	Metadata           struct {
		MpesaReceiptNumber string `json:"mpesaReceiptNumber"`
	} `json:"metadata"`
}

func (t *transactionEnvelope) status() gatewaytypes.TransactionStatus {
	return gatewaytypes.TransactionStatus{
		TransactionID: t.TransactionID,
		Status:        t.Status,
		Receipt:       firstNonEmpty(t.MpesaReceiptNumber, t.Receipt, t.Metadata.MpesaReceiptNumber),
	}
}

// Retrieve is the primary status tier: a direct lookup by transaction id.
func (c *Client) Retrieve(ctx context.Context, transactionID string) (*gatewaytypes.TransactionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/transactions/%s", c.baseURL, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieve request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("retrieve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d for transaction %s", resp.StatusCode, transactionID)
	}

	var envelope transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode transaction response: %w", err)
	}
	if envelope.TransactionID == "" {
		envelope.TransactionID = transactionID
	}

	status := envelope.status()
	return &status, nil
}

// ListTransactions is the fallback status tier: fetch the recent
// transaction listing and let the caller scan for a matching id.
func (c *Client) ListTransactions(ctx context.Context) ([]gatewaytypes.TransactionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transactions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d for transaction listing", resp.StatusCode)
	}

	var listResponse struct {
		Data []transactionEnvelope `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResponse); err != nil {
		return nil, fmt.Errorf("failed to decode transaction listing: %w", err)
	}

	statuses := make([]gatewaytypes.TransactionStatus, 0, len(listResponse.Data))
	for _, entry := range listResponse.Data {
		statuses = append(statuses, entry.status())
	}

	return statuses, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
