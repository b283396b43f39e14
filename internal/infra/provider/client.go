package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Client emits charge requests to the external payment provider. The
// provider answers asynchronously through the payment webhook; this adapter
// only needs the accept/reject of the charge submission itself.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type ChargeRequest struct {
	PurchaseID     int64  `json:"purchase_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Method         string `json:"method"`
	IdempotencyKey string `json:"idempotency_key"`
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
	}
}

func (c *Client) RequestCharge(ctx context.Context, req ChargeRequest) error {
	if c.httpClient == nil || c.baseURL == "" {
		return fmt.Errorf("payment provider client is not configured")
	}
	if req.PurchaseID <= 0 || req.AmountMinor < 0 || req.IdempotencyKey == "" {
		return fmt.Errorf("invalid charge request payload")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send charge request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("charge request rejected with status %d", resp.StatusCode)
	}

	return nil
}
