package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/betbot/tradesync/internal/api"
)

// TradingAPI 交易接口（*api.TradingService）
type TradingAPI interface {
	Start(ctx context.Context, cfg api.TradingConfiguration) (*api.Envelope, error)
	Stop(ctx context.Context) (*api.Envelope, error)
	Status(ctx context.Context) (*api.StatusResponse, error)
	Positions(ctx context.Context, filters api.PositionFilters) (*api.PositionsResponse, error)
}

// MarketAPI 行情接口（*api.MarketService）
type MarketAPI interface {
	Symbols(ctx context.Context) (*api.SymbolsResponse, error)
	MarketData(ctx context.Context, symbol, timeframe string) (*api.MarketDataResponse, error)
}

// 默认行情选择
const (
	DefaultSymbol    = "BTCUSDT"
	DefaultTimeframe = "15m"
)

// ---- trading status ----

// TradingStatusStore 交易状态
type TradingStatusStore struct {
	*Store[api.TradingStatus]
	svc TradingAPI
}

func NewTradingStatusStore(svc TradingAPI, opts Options) *TradingStatusStore {
	return &TradingStatusStore{
		Store: newStore("trading_status", api.TradingStatus{
			Symbols:   []string{},
			Positions: map[string]api.Position{},
			Stats:     map[string]any{},
		}, cloneStatus, opts),
		svc: svc,
	}
}

// cloneStatus Stats 只复制一层
func cloneStatus(d api.TradingStatus) api.TradingStatus {
	d.Symbols = slices.Clone(d.Symbols)
	d.Positions = maps.Clone(d.Positions)
	d.Stats = maps.Clone(d.Stats)
	return d
}

// Fetch 刷新交易状态
func (s *TradingStatusStore) Fetch(ctx context.Context) {
	const action = "fetch"
	t := s.begin(nil)
	resp, err := s.svc.Status(ctx)
	switch {
	case err != nil:
		s.fail(t, action, failureMessage(err))
	case !resp.Success:
		s.fail(t, action, logicalError(resp.Error, "Failed to fetch trading status"))
	default:
		s.succeed(t, action, func(d *api.TradingStatus) { *d = resp.Data })
	}
}

// Start 启动交易；结果同时写入 store 和返回值
func (s *TradingStatusStore) Start(ctx context.Context, cfg api.TradingConfiguration) Outcome {
	return s.toggle("start", true, "Failed to start trading", func() (*api.Envelope, error) {
		return s.svc.Start(ctx, cfg)
	})
}

// Stop 停止交易
func (s *TradingStatusStore) Stop(ctx context.Context) Outcome {
	return s.toggle("stop", false, "Failed to stop trading", func() (*api.Envelope, error) {
		return s.svc.Stop(ctx)
	})
}

func (s *TradingStatusStore) toggle(action string, trading bool, fallback string, call func() (*api.Envelope, error)) Outcome {
	t := s.begin(nil)
	resp, err := call()
	switch {
	case err != nil:
		msg := failureMessage(err)
		s.fail(t, action, msg)
		return Outcome{Error: msg}
	case !resp.Success:
		msg := logicalError(resp.Error, fallback)
		s.fail(t, action, msg)
		return Outcome{Error: msg}
	default:
		s.succeed(t, action, func(d *api.TradingStatus) { d.Trading = trading })
		return Outcome{Success: true}
	}
}

// ---- positions ----

// PositionsStore 仓位列表
type PositionsStore struct {
	*Store[[]api.Position]
	svc TradingAPI

	filtersMu   sync.Mutex
	lastFilters api.PositionFilters
}

func NewPositionsStore(svc TradingAPI, opts Options) *PositionsStore {
	return &PositionsStore{Store: newStore("positions", []api.Position{}, slices.Clone[[]api.Position], opts), svc: svc}
}

// Fetch 刷新仓位；filters 为 nil 时沿用上一次的过滤条件
func (s *PositionsStore) Fetch(ctx context.Context, filters *api.PositionFilters) {
	const action = "fetch"
	s.filtersMu.Lock()
	if filters != nil {
		s.lastFilters = *filters
	}
	f := s.lastFilters
	s.filtersMu.Unlock()

	t := s.begin(nil)
	resp, err := s.svc.Positions(ctx, f)
	switch {
	case err != nil:
		s.fail(t, action, failureMessage(err))
	case !resp.Success:
		s.fail(t, action, logicalError(resp.Error, "Failed to fetch positions"))
	default:
		positions := resp.Positions
		if positions == nil {
			positions = []api.Position{}
		}
		s.succeed(t, action, func(d *[]api.Position) { *d = positions })
	}
}

// Filters 最近一次使用的过滤条件
func (s *PositionsStore) Filters() api.PositionFilters {
	s.filtersMu.Lock()
	defer s.filtersMu.Unlock()
	return s.lastFilters
}

// ---- market data ----

// MarketData 当前行情选择与 K 线
type MarketData struct {
	Symbol    string
	Timeframe string
	Candles   []api.Candle
}

// MarketDataStore 行情
type MarketDataStore struct {
	*Store[MarketData]
	svc MarketAPI
}

func NewMarketDataStore(svc MarketAPI, opts Options) *MarketDataStore {
	return &MarketDataStore{
		Store: newStore("market_data", MarketData{
			Symbol:    DefaultSymbol,
			Timeframe: DefaultTimeframe,
			Candles:   []api.Candle{},
		}, func(d MarketData) MarketData {
			d.Candles = slices.Clone(d.Candles)
			return d
		}, opts),
		svc: svc,
	}
}

// Fetch 获取 K 线；参数为空时沿用当前选择，选择在发请求前同步更新
func (s *MarketDataStore) Fetch(ctx context.Context, symbol, timeframe string) {
	const action = "fetch"
	var sym, tf string
	t := s.begin(func(d *MarketData) {
		if symbol != "" {
			d.Symbol = symbol
		}
		if timeframe != "" {
			d.Timeframe = timeframe
		}
		sym, tf = d.Symbol, d.Timeframe
	})

	resp, err := s.svc.MarketData(ctx, sym, tf)
	switch {
	case err != nil:
		s.fail(t, action, failureMessage(err))
	case !resp.Success:
		s.fail(t, action, logicalError(resp.Error, "Failed to fetch market data"))
	default:
		candles := resp.Data
		if candles == nil {
			candles = []api.Candle{}
		}
		s.succeed(t, action, func(d *MarketData) { d.Candles = candles })
	}
}

// ---- symbols ----

// SymbolsStore 可交易品种
type SymbolsStore struct {
	*Store[[]string]
	svc MarketAPI
}

func NewSymbolsStore(svc MarketAPI, opts Options) *SymbolsStore {
	return &SymbolsStore{Store: newStore("symbols", []string{}, slices.Clone[[]string], opts), svc: svc}
}

func (s *SymbolsStore) Fetch(ctx context.Context) {
	const action = "fetch"
	t := s.begin(nil)
	resp, err := s.svc.Symbols(ctx)
	switch {
	case err != nil:
		s.fail(t, action, failureMessage(err))
	case !resp.Success:
		s.fail(t, action, logicalError(resp.Error, "Failed to fetch symbols"))
	default:
		symbols := resp.Symbols
		if symbols == nil {
			symbols = []string{}
		}
		s.succeed(t, action, func(d *[]string) { *d = symbols })
	}
}
