package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ict-dashboard/config"
	"ict-dashboard/internal/market"
	"ict-dashboard/internal/paper"

	"github.com/rs/zerolog"
)

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("Fourth request inside the window must be rejected")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Error("Limits are per client; a fresh key must pass")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(1, 10*time.Millisecond)

	if !limiter.Allow("k") {
		t.Fatal("First request should pass")
	}
	if limiter.Allow("k") {
		t.Fatal("Second request inside the window must be rejected")
	}

	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow("k") {
		t.Error("Request after the window expires must pass")
	}
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func testServer() *Server {
	cfg := &config.Config{}
	cfg.Server.GinMode = "test"
	cfg.Server.RateLimit = 100
	cfg.Server.RateLimitWindow = 60
	cfg.Paper.InitialBalance = 50000
	cfg.Paper.RiskPerTrade = 0.01

	logger := zerolog.Nop()
	client := market.NewClient("", "", logger)
	ledger := paper.NewLedger(nil, cfg.Paper.InitialBalance, logger)
	return NewServer(cfg, client, ledger, logger)
}

func TestServer_Health(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestServer_CandlesRequiresSymbol(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/candles", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing symbol must 400, got %d", w.Code)
	}
}

func TestServer_PaperAccountRoundTrip(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/paper/account", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/paper/positions/nope/close",
		jsonBody(`{"exitPrice":100}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Closing an unknown position must 404, got %d", w.Code)
	}
}

func TestServer_BalanceValidation(t *testing.T) {
	s := testServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/paper/balance", jsonBody(`{"balance":1}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Balance below the floor must 400, got %d", w.Code)
	}
}
