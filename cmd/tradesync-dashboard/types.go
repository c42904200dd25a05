package main

import (
	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/store"
)

type (
	statusState    = store.State[api.TradingStatus]
	positionsState = store.State[[]api.Position]
	marketState    = store.State[store.MarketData]
	symbolsState   = store.State[[]string]
)
