package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/learnado/backend/internal/app/apiapp"
	"github.com/learnado/backend/internal/config"
)

// The app boots in degraded mode without postgres or s3, which is enough to
// smoke-test routing and middleware wiring.
func newTestApp(t *testing.T) *apiapp.App {
	t.Helper()

	cfg := config.Default()
	cfg.HTTP.Addr = ":0"

	app, err := apiapp.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	return app
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode healthz payload: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected healthz payload: %+v", payload)
	}
}

func TestCheckoutRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/checkout", "application/json", strings.NewReader(`{"course_ids":[1]}`))
	if err != nil {
		t.Fatalf("post checkout: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
