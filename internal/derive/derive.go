// Package derive 从资源 store 派生只读视图。
//
// 派生值不缓存：Get 每次都从源的当前状态重新计算，Subscribe 在源变化时推送新值。
package derive

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/store"
)

// OpenPositions status 为 open 的仓位
func OpenPositions(positions []api.Position) []api.Position {
	open, _ := Partition(positions)
	return open
}

// ClosedPositions status 为 closed 的仓位
func ClosedPositions(positions []api.Position) []api.Position {
	_, closed := Partition(positions)
	return closed
}

// Partition 按 status 拆分，保持原顺序；其他状态两边都不包含
func Partition(positions []api.Position) (open, closed []api.Position) {
	open = []api.Position{}
	closed = []api.Position{}
	for _, p := range positions {
		switch p.Status {
		case api.PositionOpen:
			open = append(open, p)
		case api.PositionClosed:
			closed = append(closed, p)
		}
	}
	return open, closed
}

// TotalProfitLoss profit_loss 求和，缺失或无法解析的按 0 计
func TotalProfitLoss(positions []api.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.ProfitLoss.Decimal())
	}
	return total
}

// Source 可读可订阅的值（store.Store 和 Derived 都实现）
type Source[S any] interface {
	Get() S
	Subscribe(fn func(S)) (unsubscribe func())
}

// Derived 由源计算出的视图
type Derived[S, T any] struct {
	source Source[S]
	fn     func(S) T
}

// Map 创建派生视图
func Map[S, T any](source Source[S], fn func(S) T) *Derived[S, T] {
	return &Derived[S, T]{source: source, fn: fn}
}

// Get 用源的当前值重新计算
func (d *Derived[S, T]) Get() T {
	return d.fn(d.source.Get())
}

// Subscribe 立即推送一次，之后源每次变化都推送重新计算的值
func (d *Derived[S, T]) Subscribe(fn func(T)) (unsubscribe func()) {
	return d.source.Subscribe(func(s S) { fn(d.fn(s)) })
}

// Views 仓位相关的派生视图
type Views struct {
	OpenPositions   *Derived[store.State[[]api.Position], []api.Position]
	ClosedPositions *Derived[store.State[[]api.Position], []api.Position]
	TotalProfitLoss *Derived[[]api.Position, decimal.Decimal]
}

// NewViews 基于仓位 store 构建视图；总盈亏基于已平仓视图
func NewViews(positions Source[store.State[[]api.Position]]) *Views {
	data := func(fn func([]api.Position) []api.Position) func(store.State[[]api.Position]) []api.Position {
		return func(st store.State[[]api.Position]) []api.Position { return fn(st.Data) }
	}
	closed := Map(positions, data(ClosedPositions))
	return &Views{
		OpenPositions:   Map(positions, data(OpenPositions)),
		ClosedPositions: closed,
		TotalProfitLoss: Map[[]api.Position, decimal.Decimal](closed, TotalProfitLoss),
	}
}
