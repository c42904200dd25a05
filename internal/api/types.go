package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/betbot/tradesync/internal/session"
)

// Envelope 每个响应都带的 success/error
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Amount 宽松的数值：接受 JSON 数字、字符串或 null，解析失败不报错
//
// 原样保存文本，需要计算时再用 Decimal() 转换。
type Amount string

// UnmarshalJSON 实现 json.Unmarshaler
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*a = ""
			return nil
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	*a = Amount(b)
	return nil
}

// MarshalJSON 空值编码为 null
func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// Decimal 转换为 decimal，缺失或无法解析时返回 0
func (a Amount) Decimal() decimal.Decimal {
	if a == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// 仓位状态
const (
	PositionOpen   = "open"
	PositionClosed = "closed"
)

// Position 仓位
type Position struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Status     string `json:"status"`
	EntryPrice Amount `json:"entry_price"`
	ExitPrice  Amount `json:"exit_price"`
	Quantity   Amount `json:"quantity"`
	ProfitLoss Amount `json:"profit_loss"`
	OpenedAt   string `json:"opened_at,omitempty"`
	ClosedAt   string `json:"closed_at,omitempty"`
}

// PositionFilters GET /positions 的查询条件
type PositionFilters struct {
	Status string
	Symbol string
	Limit  int
}

// Params 转为查询参数，空值不发送
func (f PositionFilters) Params() map[string]any {
	p := map[string]any{}
	if f.Status != "" {
		p["status"] = f.Status
	}
	if f.Symbol != "" {
		p["symbol"] = f.Symbol
	}
	if f.Limit > 0 {
		p["limit"] = f.Limit
	}
	return p
}

// TradingStatus 交易状态
type TradingStatus struct {
	Trading   bool                `json:"trading"`
	Symbols   []string            `json:"symbols"`
	Positions map[string]Position `json:"positions"`
	Stats     map[string]any      `json:"stats"`
}

// Timestamp Unix 秒；接受整数、小数或数字字符串，小数部分截断，无法解析时为 0
type Timestamp int64

// UnmarshalJSON 实现 json.Unmarshaler
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(b); err != nil {
		return err
	}
	*ts = Timestamp(a.Decimal().IntPart())
	return nil
}

// Unix 秒
func (ts Timestamp) Unix() int64 { return int64(ts) }

// Candle K 线
type Candle struct {
	Time   Timestamp `json:"time"`
	Open   Amount    `json:"open"`
	High   Amount    `json:"high"`
	Low    Amount    `json:"low"`
	Close  Amount    `json:"close"`
	Volume Amount    `json:"volume"`
}

// TradingConfiguration 启动交易的参数，由表单层持有，核心只读
type TradingConfiguration struct {
	APIKey            string   `json:"api_key"`
	APISecret         string   `json:"api_secret"`
	Passphrase        string   `json:"passphrase"`
	Symbols           []string `json:"symbols"`
	Timeframe         string   `json:"timeframe"`
	Leverage          int      `json:"leverage"`
	Interval          int      `json:"interval"`
	RSIPeriod         int      `json:"rsi_period"`
	RSIOverbought     float64  `json:"rsi_overbought"`
	RSIOversold       float64  `json:"rsi_oversold"`
	ShortSMA          int      `json:"short_sma"`
	LongSMA           int      `json:"long_sma"`
	StopLossPercent   float64  `json:"stop_loss_percent"`
	TakeProfitPercent float64  `json:"take_profit_percent"`
}

// LoginRequest POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse POST /auth/login
type LoginResponse struct {
	Envelope
	Token string       `json:"token"`
	User  session.User `json:"user"`
}

// StatusResponse GET /trading/status
type StatusResponse struct {
	Envelope
	Data TradingStatus `json:"data"`
}

// PositionsResponse GET /positions
type PositionsResponse struct {
	Envelope
	Positions []Position `json:"positions"`
}

// SymbolsResponse GET /symbols
type SymbolsResponse struct {
	Envelope
	Symbols []string `json:"symbols"`
}

// MarketDataResponse GET /market/{symbol}
type MarketDataResponse struct {
	Envelope
	Data []Candle `json:"data"`
}
