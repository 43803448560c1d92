package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	app "github.com/launchlayer/curve_layer/internal/app"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	application, err := app.New(app.Stores{}, app.Options{
		Treasury:         "wallet-treasury",
		Authority:        "wallet-authority",
		DisableScheduler: true,
	}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	handler := NewHandler(application, Config{JWTSecret: testSecret}, logger.NewDefault("test"))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, wallet string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, wallet string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if wallet != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, wallet))
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func launchTestToken(t *testing.T, srv *httptest.Server, deployer string) string {
	t.Helper()

	resp, body := doJSON(t, srv, http.MethodPost, "/tokens", deployer, map[string]any{"symbol": "TST", "name": "Test Token"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("launch returned %d: %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("launch response missing id: %v", body)
	}
	return id
}

func TestHealthzSkipsAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz returned %d", resp.StatusCode)
	}
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/tokens", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestLaunchBuySellFlow(t *testing.T) {
	srv := newTestServer(t)
	tokenID := launchTestToken(t, srv, "wallet-dep")

	// Fund the trader, then buy.
	resp, body := doJSON(t, srv, http.MethodPost, "/bank/deposit", "wallet-trader", map[string]any{
		"amount": "10000000000000000000", // 10 ether
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit returned %d: %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/buy", "wallet-trader", map[string]any{
		"amount": "1000000000000000000", // 1 ether
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy returned %d: %v", resp.StatusCode, body)
	}
	tokensOut, _ := body["tokens_out"].(string)
	if tokensOut == "" || tokensOut == "0" {
		t.Fatalf("buy returned no tokens: %v", body)
	}

	resp, body = doJSON(t, srv, http.MethodGet, "/tokens/"+tokenID+"/balance", "wallet-trader", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance returned %d: %v", resp.StatusCode, body)
	}
	if body["balance"] != tokensOut {
		t.Fatalf("balance %v, want %s", body["balance"], tokensOut)
	}

	resp, body = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/sell", "wallet-trader", map[string]any{
		"amount": tokensOut,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sell returned %d: %v", resp.StatusCode, body)
	}
	if netReturn, _ := body["net_return"].(string); netReturn == "" || netReturn == "0" {
		t.Fatalf("sell returned nothing: %v", body)
	}
}

func TestBuyRejectionsMapToStatusCodes(t *testing.T) {
	srv := newTestServer(t)
	tokenID := launchTestToken(t, srv, "wallet-dep")

	// Below minimum.
	resp, _ := doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/buy", "wallet-trader", map[string]any{"amount": "1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for dust buy, got %d", resp.StatusCode)
	}

	// Unknown token.
	resp, _ = doJSON(t, srv, http.MethodPost, "/tokens/nope/buy", "wallet-trader", map[string]any{"amount": "1000000000000000000"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", resp.StatusCode)
	}

	// Malformed amount.
	resp, _ = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/buy", "wallet-trader", map[string]any{"amount": "one ether"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed amount, got %d", resp.StatusCode)
	}
}

func TestFeeWithdrawalRequiresTreasury(t *testing.T) {
	srv := newTestServer(t)
	tokenID := launchTestToken(t, srv, "wallet-dep")

	resp, _ := doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/fees/withdraw", "wallet-dep", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-treasury caller, got %d", resp.StatusCode)
	}

	// The treasury with no accrued fees hits the conflict path.
	resp, _ = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/fees/withdraw", "wallet-treasury", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 with no fees accrued, got %d", resp.StatusCode)
	}
}

func TestVestingEndpoints(t *testing.T) {
	srv := newTestServer(t)
	tokenID := launchTestToken(t, srv, "wallet-dep")

	resp, body := doJSON(t, srv, http.MethodGet, "/tokens/"+tokenID+"/vesting", "wallet-dep", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vesting state returned %d: %v", resp.StatusCode, body)
	}
	if body["milestones"] != "pending" {
		t.Fatalf("expected pending milestones, got %v", body["milestones"])
	}

	// Claim right after launch releases nothing but succeeds.
	resp, body = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/vesting/claim", "wallet-dep", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim returned %d: %v", resp.StatusCode, body)
	}
	if body["delta"] != "0" {
		t.Fatalf("expected zero delta at launch, got %v", body["delta"])
	}

	// Only the configured authority may latch milestones; the deployer
	// cannot unlock its own tranche.
	resp, _ = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/vesting/milestones", "wallet-dep", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for the deployer, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/vesting/milestones", "wallet-authority", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 latching milestones, got %d", resp.StatusCode)
	}

	// Burning while the window is open conflicts.
	resp, _ = doJSON(t, srv, http.MethodPost, "/tokens/"+tokenID+"/vesting/burn", "wallet-dep", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 burning mid-window, got %d", resp.StatusCode)
	}
}

func TestEventStreamEndpoint(t *testing.T) {
	srv := newTestServer(t)
	tokenID := launchTestToken(t, srv, "wallet-dep")

	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/tokens/%s/events", srv.URL, tokenID), nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wallet-dep"))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	defer resp.Body.Close()

	var events []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected launch event, got %d events", len(events))
	}
	if events[0]["type"] != "token.launched" {
		t.Fatalf("unexpected event type %v", events[0]["type"])
	}
}

func TestRateLimiting(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{
		Treasury:         "wallet-treasury",
		Authority:        "wallet-authority",
		DisableScheduler: true,
	}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	handler := NewHandler(application, Config{JWTSecret: testSecret, RatePerSecond: 1, Burst: 1}, logger.NewDefault("test"))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	limited := false
	for i := 0; i < 5; i++ {
		resp, _ := doJSON(t, srv, http.MethodGet, "/tokens", "wallet-x", nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected a request to be rate limited")
	}
}
