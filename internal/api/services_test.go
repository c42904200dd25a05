package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/internal/session"
	sdkhttp "github.com/betbot/tradesync/pkg/sdk/http"
	"github.com/betbot/tradesync/pkg/secretstore"
)

type call struct {
	method   string
	endpoint string
	params   map[string]any
	body     any
}

// fakeDoer 按 endpoint 返回预置的 JSON
type fakeDoer struct {
	calls     []call
	responses map[string]string
	errs      map[string]error
}

func (f *fakeDoer) do(method, endpoint string, params map[string]any, body, out any) error {
	f.calls = append(f.calls, call{method: method, endpoint: endpoint, params: params, body: body})
	if err := f.errs[endpoint]; err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, ok := f.responses[endpoint]
	if !ok {
		raw = `{"success":true}`
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *fakeDoer) Get(_ context.Context, endpoint string, params map[string]any, out any) error {
	return f.do("GET", endpoint, params, nil, out)
}

func (f *fakeDoer) Post(_ context.Context, endpoint string, body any, out any) error {
	return f.do("POST", endpoint, nil, body, out)
}

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	kv, err := secretstore.Open(secretstore.OpenOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return session.NewManager(kv)
}

func TestAuthService_LoginStoresSession(t *testing.T) {
	d := &fakeDoer{responses: map[string]string{
		"/auth/login": `{"success":true,"token":"jwt-1","user":{"id":"u1","username":"alice","role":"trader"}}`,
	}}
	sessions := newSessions(t)
	auth := NewAuthService(d, sessions)

	resp, err := auth.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, auth.IsAuthenticated())

	u, ok := auth.User()
	require.True(t, ok)
	assert.Equal(t, "trader", u.Role)
	assert.Equal(t, LoginRequest{Username: "alice", Password: "pw"}, d.calls[0].body)
}

func TestAuthService_LoginRejected(t *testing.T) {
	d := &fakeDoer{responses: map[string]string{
		"/auth/login": `{"success":false,"error":"Invalid credentials"}`,
	}}
	auth := NewAuthService(d, newSessions(t))

	resp, err := auth.Login(context.Background(), "alice", "bad")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid credentials", resp.Error)
	assert.False(t, auth.IsAuthenticated())
}

func TestAuthService_LogoutClearsEvenOnFailure(t *testing.T) {
	d := &fakeDoer{errs: map[string]error{"/auth/logout": errors.New("connection refused")}}
	sessions := newSessions(t)
	require.NoError(t, sessions.SetSession("jwt-1", session.User{ID: "u1"}))

	var reasons []events.InvalidationReason
	sessions.OnInvalidated(func(ev events.SessionInvalidatedEvent) { reasons = append(reasons, ev.Reason) })

	err := NewAuthService(d, sessions).Logout(context.Background())
	require.Error(t, err)
	assert.False(t, sessions.IsAuthenticated())
	assert.Equal(t, []events.InvalidationReason{events.ReasonLogout}, reasons)
}

func TestAuthService_LogoutUnauthorizedDoesNotNotifyAgain(t *testing.T) {
	d := &fakeDoer{errs: map[string]error{"/auth/logout": &sdkhttp.HTTPError{Status: 401, Message: "Token expired"}}}
	sessions := newSessions(t)
	require.NoError(t, sessions.SetSession("jwt-1", session.User{ID: "u1"}))

	var reasons []events.InvalidationReason
	sessions.OnInvalidated(func(ev events.SessionInvalidatedEvent) { reasons = append(reasons, ev.Reason) })

	err := NewAuthService(d, sessions).Logout(context.Background())
	require.Error(t, err)
	assert.True(t, sdkhttp.IsUnauthorized(err))
	assert.False(t, sessions.IsAuthenticated())
	assert.Empty(t, reasons)
}

func TestTradingService_Endpoints(t *testing.T) {
	d := &fakeDoer{responses: map[string]string{
		"/trading/status": `{"success":true,"data":{"trading":true,"symbols":["BTCUSDT"],"positions":{"BTCUSDT":{"id":"p1","status":"open","profit_loss":null}},"stats":{"trades":3}}}`,
		"/positions":      `{"success":true,"positions":[{"id":"p1","status":"closed","profit_loss":"12.5"}]}`,
	}}
	svc := NewTradingService(d)
	ctx := context.Background()

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Data.Trading)
	assert.Equal(t, "p1", st.Data.Positions["BTCUSDT"].ID)

	pos, err := svc.Positions(ctx, PositionFilters{Status: "closed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, pos.Positions, 1)
	assert.Equal(t, Amount("12.5"), pos.Positions[0].ProfitLoss)
	assert.Equal(t, map[string]any{"status": "closed", "limit": 10}, d.calls[1].params)

	cfg := TradingConfiguration{Symbols: []string{"ETHUSDT"}, Leverage: 2}
	_, err = svc.Start(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, d.calls[2].body)

	_, err = svc.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/trading/stop", d.calls[3].endpoint)
}

func TestMarketService_DefaultTimeframe(t *testing.T) {
	d := &fakeDoer{responses: map[string]string{
		"/market/BTCUSDT": `{"success":true,"data":[{"time":1,"open":1,"high":"2","low":0.5,"close":"1.5","volume":10}]}`,
	}}
	svc := NewMarketService(d)

	resp, err := svc.MarketData(context.Background(), "BTCUSDT", "")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, Amount("1.5"), resp.Data[0].Close)
	assert.Equal(t, "15m", d.calls[0].params["timeframe"])
}

func TestAmount_Lenient(t *testing.T) {
	var p Position
	require.NoError(t, json.Unmarshal([]byte(`{"profit_loss":10.5,"entry_price":"100","exit_price":null,"quantity":"abc"}`), &p))

	assert.Equal(t, "10.5", p.ProfitLoss.Decimal().String())
	assert.Equal(t, "100", p.EntryPrice.Decimal().String())
	assert.True(t, p.ExitPrice.Decimal().IsZero())
	assert.True(t, p.Quantity.Decimal().IsZero())

	b, err := json.Marshal(p.ExitPrice)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestTimestamp_Lenient(t *testing.T) {
	var resp MarketDataResponse
	body := `{"success":true,"data":[{"time":1700000000.75,"close":"1"},{"time":"1700000900"},{"time":null},{"time":"soon"},{"time":1700001800}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	require.Len(t, resp.Data, 5)
	assert.Equal(t, Timestamp(1700000000), resp.Data[0].Time)
	assert.Equal(t, Timestamp(1700000900), resp.Data[1].Time)
	assert.Equal(t, Timestamp(0), resp.Data[2].Time)
	assert.Equal(t, Timestamp(0), resp.Data[3].Time)
	assert.Equal(t, int64(1700001800), resp.Data[4].Time.Unix())

	b, err := json.Marshal(resp.Data[0].Time)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", string(b))
}
