package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPNotifier posts events to the notification gateway. One endpoint per
// event kind keeps the gateway contract flat.
type HTTPNotifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPNotifier(httpClient *http.Client, baseURL, apiKey string) *HTTPNotifier {
	return &HTTPNotifier{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
	}
}

func (n *HTTPNotifier) PurchaseConfirmed(ctx context.Context, event PurchaseConfirmedEvent) error {
	return n.post(ctx, "/v1/events/purchase-confirmed", event)
}

func (n *HTTPNotifier) RefundDecided(ctx context.Context, event RefundDecidedEvent) error {
	return n.post(ctx, "/v1/events/refund-decided", event)
}

func (n *HTTPNotifier) CourseCompleted(ctx context.Context, event CourseCompletedEvent) error {
	return n.post(ctx, "/v1/events/course-completed", event)
}

func (n *HTTPNotifier) post(ctx context.Context, path string, payload any) error {
	if n.httpClient == nil || n.baseURL == "" {
		return fmt.Errorf("notifier is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("event rejected with status %d", resp.StatusCode)
	}

	return nil
}
