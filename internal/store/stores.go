package store

import (
	"context"

	"github.com/betbot/tradesync/pkg/syncgroup"
)

// Stores 全部资源 store，由组合根显式构造并注入
type Stores struct {
	Status    *TradingStatusStore
	Positions *PositionsStore
	Market    *MarketDataStore
	Symbols   *SymbolsStore
}

func NewStores(trading TradingAPI, market MarketAPI, opts Options) *Stores {
	return &Stores{
		Status:    NewTradingStatusStore(trading, opts),
		Positions: NewPositionsStore(trading, opts),
		Market:    NewMarketDataStore(market, opts),
		Symbols:   NewSymbolsStore(market, opts),
	}
}

// RefreshAll 并发刷新全部 store，各自独立结束；全部结束后返回
func (s *Stores) RefreshAll(ctx context.Context) {
	sg := syncgroup.NewSyncGroup()
	sg.Add("status", func(ctx context.Context) { s.Status.Fetch(ctx) })
	sg.Add("positions", func(ctx context.Context) { s.Positions.Fetch(ctx, nil) })
	sg.Add("symbols", func(ctx context.Context) { s.Symbols.Fetch(ctx) })
	sg.Add("market", func(ctx context.Context) { s.Market.Fetch(ctx, "", "") })
	for _, err := range sg.RunAndWait(ctx) {
		log.Errorf("刷新失败: %v", err)
	}
}
