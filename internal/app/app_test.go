package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/internal/mockserver"
	"github.com/betbot/tradesync/pkg/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNavigator struct {
	mu      sync.Mutex
	reasons []events.InvalidationReason
}

func (n *recordingNavigator) RedirectToLogin(reason events.InvalidationReason) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (n *recordingNavigator) Reasons() []events.InvalidationReason {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]events.InvalidationReason(nil), n.reasons...)
}

func newTestApp(t *testing.T) (*App, *recordingNavigator, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Now()}
	mcfg := mockserver.DefaultConfig()
	mcfg.TokenTTL = time.Hour
	mcfg.Now = clk.Now
	srv := httptest.NewServer(mockserver.New(mcfg).Router())
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.API.BaseURL = srv.URL + "/api"
	cfg.API.Timeout = 5 * time.Second
	cfg.Form.File = filepath.Join(t.TempDir(), "form.json")

	nav := &recordingNavigator{}
	a, err := New(cfg, Options{Navigator: nav, InMemorySession: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, nav, clk
}

func TestApp_LoginThenUnauthorizedRedirectsOnce(t *testing.T) {
	a, nav, clk := newTestApp(t)
	ctx := context.Background()

	resp, err := a.Auth.Login(ctx, "demo", "demo")
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.True(t, a.Auth.IsAuthenticated())

	a.Stores.RefreshAll(ctx)
	assert.Empty(t, a.Stores.Status.Get().Error)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}, a.Stores.Symbols.Get().Data)
	assert.Len(t, a.Stores.Market.Get().Data.Candles, 50)

	clk.Advance(2 * time.Hour)
	a.Stores.Positions.Fetch(ctx, nil)

	st := a.Stores.Positions.Get()
	assert.False(t, st.Loading)
	assert.Equal(t, "Token expired", st.Error)
	assert.False(t, a.Auth.IsAuthenticated())
	assert.Equal(t, []events.InvalidationReason{events.ReasonUnauthorized}, nav.Reasons())

	expected := `
# HELP tradesync_session_invalidations_total Session invalidations by reason
# TYPE tradesync_session_invalidations_total counter
tradesync_session_invalidations_total{reason="unauthorized"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(a.Metrics.Registry, strings.NewReader(expected), "tradesync_session_invalidations_total"))
}

func TestApp_TradingFlowAndViews(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()
	_, err := a.Auth.Login(ctx, "demo", "demo")
	require.NoError(t, err)

	form := a.Form.Get()
	form.Symbols = []string{"BTCUSDT", "SOLUSDT"}
	out := a.Stores.Status.Start(ctx, form)
	require.True(t, out.Success, out.Error)
	assert.True(t, a.Stores.Status.Get().Data.Trading)

	again := a.Stores.Status.Start(ctx, form)
	assert.False(t, again.Success)
	assert.Equal(t, "Trading is already running", again.Error)

	a.Stores.Positions.Fetch(ctx, nil)
	assert.Len(t, a.Views.OpenPositions.Get(), 2)
	assert.True(t, a.Views.TotalProfitLoss.Get().IsZero())

	require.True(t, a.Stores.Status.Stop(ctx).Success)
	a.Stores.Positions.Fetch(ctx, &api.PositionFilters{Status: api.PositionClosed})
	assert.Empty(t, a.Views.OpenPositions.Get())
	assert.Len(t, a.Views.ClosedPositions.Get(), 2)
	assert.True(t, a.Views.TotalProfitLoss.Get().IsPositive())
}

func TestApp_LogoutClearsAndNotifies(t *testing.T) {
	a, nav, _ := newTestApp(t)
	ctx := context.Background()
	_, err := a.Auth.Login(ctx, "demo", "demo")
	require.NoError(t, err)

	require.NoError(t, a.Auth.Logout(ctx))
	assert.False(t, a.Auth.IsAuthenticated())
	assert.Equal(t, []events.InvalidationReason{events.ReasonLogout}, nav.Reasons())

	// 未登录时请求：401，store 记录错误，不会崩溃
	a.Stores.Symbols.Fetch(ctx)
	assert.Equal(t, "Authentication required", a.Stores.Symbols.Get().Error)
}

func TestApp_LogoutWithExpiredTokenRedirectsOnce(t *testing.T) {
	a, nav, clk := newTestApp(t)
	ctx := context.Background()
	_, err := a.Auth.Login(ctx, "demo", "demo")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	err = a.Auth.Logout(ctx)
	require.Error(t, err)
	assert.Equal(t, "Token expired", err.Error())
	assert.False(t, a.Auth.IsAuthenticated())
	assert.Equal(t, []events.InvalidationReason{events.ReasonUnauthorized}, nav.Reasons())

	expected := `
# HELP tradesync_session_invalidations_total Session invalidations by reason
# TYPE tradesync_session_invalidations_total counter
tradesync_session_invalidations_total{reason="unauthorized"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(a.Metrics.Registry, strings.NewReader(expected), "tradesync_session_invalidations_total"))
}

func TestForm_PersistsWithoutCredentials(t *testing.T) {
	a, _, _ := newTestApp(t)

	f := a.Form.Get()
	assert.Equal(t, 5, f.Leverage)
	assert.Equal(t, "15m", f.Timeframe)

	f.APIKey = "secret-key"
	f.Leverage = 10
	require.NoError(t, a.Form.Set(f))

	reloaded := NewForm(a.Config.Form, a.Form.store).Get()
	assert.Equal(t, 10, reloaded.Leverage)
	assert.Empty(t, reloaded.APIKey)

	require.NoError(t, a.Form.Reset())
	assert.Equal(t, 5, NewForm(a.Config.Form, a.Form.store).Get().Leverage)
}
