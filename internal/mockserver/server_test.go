package mockserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradesync/internal/api"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.TokenTTL = time.Hour
	cfg.Now = clk.Now
	s := New(cfg)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv, clk
}

func do(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func login(t *testing.T, base string) string {
	t.Helper()
	var resp api.LoginResponse
	code := do(t, http.MethodPost, base+"/api/auth/login", "", api.LoginRequest{Username: "demo", Password: "demo"}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "demo", resp.User.Username)
	return resp.Token
}

func TestLogin_BadCredentials(t *testing.T) {
	_, srv, _ := newTestServer(t)
	var resp api.Envelope
	code := do(t, http.MethodPost, srv.URL+"/api/auth/login", "", api.LoginRequest{Username: "demo", Password: "x"}, &resp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid credentials", resp.Error)
}

func TestAuth_Required(t *testing.T) {
	_, srv, clk := newTestServer(t)

	var resp api.Envelope
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/symbols", "", nil, &resp))
	assert.Equal(t, "Authentication required", resp.Error)

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/symbols", "garbage", nil, &resp))
	assert.Equal(t, "Invalid token", resp.Error)

	token := login(t, srv.URL)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/symbols", token, nil, nil))

	clk.Advance(2 * time.Hour)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/symbols", token, nil, &resp))
	assert.Equal(t, "Token expired", resp.Error)
}

func TestLogout_RevokesToken(t *testing.T) {
	_, srv, _ := newTestServer(t)
	token := login(t, srv.URL)

	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/auth/logout", token, nil, nil))
	var resp api.Envelope
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodGet, srv.URL+"/api/trading/status", token, nil, &resp))
	assert.Equal(t, "Token revoked", resp.Error)
}

func TestTrading_StartStopLifecycle(t *testing.T) {
	_, srv, _ := newTestServer(t)
	token := login(t, srv.URL)

	var env api.Envelope
	do(t, http.MethodPost, srv.URL+"/api/trading/stop", token, nil, &env)
	assert.False(t, env.Success)
	assert.Equal(t, "Trading is not running", env.Error)

	cfg := api.TradingConfiguration{Symbols: []string{"BTCUSDT", "ETHUSDT"}, Leverage: 2}
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/trading/start", token, cfg, &env))
	assert.True(t, env.Success)

	do(t, http.MethodPost, srv.URL+"/api/trading/start", token, cfg, &env)
	assert.False(t, env.Success)

	var st api.StatusResponse
	do(t, http.MethodGet, srv.URL+"/api/trading/status", token, nil, &st)
	assert.True(t, st.Data.Trading)
	assert.Len(t, st.Data.Positions, 2)

	do(t, http.MethodPost, srv.URL+"/api/trading/stop", token, nil, &env)
	assert.True(t, env.Success)

	var ps api.PositionsResponse
	do(t, http.MethodGet, srv.URL+"/api/positions?status=closed&limit=1", token, nil, &ps)
	require.Len(t, ps.Positions, 1)
	assert.Equal(t, api.PositionClosed, ps.Positions[0].Status)
	assert.True(t, ps.Positions[0].ProfitLoss.Decimal().IsPositive())

	var bad api.Envelope
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/positions?limit=-1", token, nil, &bad))
}

func TestStart_RequiresSymbols(t *testing.T) {
	_, srv, _ := newTestServer(t)
	token := login(t, srv.URL)
	var env api.Envelope
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/trading/start", token, api.TradingConfiguration{}, &env))
	assert.False(t, env.Success)
}

func TestMarket(t *testing.T) {
	_, srv, _ := newTestServer(t)
	token := login(t, srv.URL)

	var md api.MarketDataResponse
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/market/BTCUSDT?timeframe=1h", token, nil, &md))
	require.Len(t, md.Data, 50)
	assert.Equal(t, api.Timestamp(3600), md.Data[1].Time-md.Data[0].Time)
	for _, c := range md.Data {
		assert.True(t, c.High.Decimal().GreaterThanOrEqual(c.Low.Decimal()))
	}

	var again api.MarketDataResponse
	do(t, http.MethodGet, srv.URL+"/api/market/BTCUSDT?timeframe=1h", token, nil, &again)
	assert.Equal(t, md.Data, again.Data)

	var env api.Envelope
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/market/DOGEUSDT", token, nil, &env))
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/market/BTCUSDT?timeframe=7m", token, nil, &env))
	assert.Equal(t, "Unsupported timeframe: 7m", env.Error)
}
