package mockserver

import (
	"errors"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/betbot/tradesync/internal/api"
)

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

var basePrices = map[string]string{
	"BTCUSDT": "65000",
	"ETHUSDT": "3200",
	"SOLUSDT": "150",
	"XRPUSDT": "0.55",
}

func basePrice(symbol string) decimal.Decimal {
	if p, ok := basePrices[symbol]; ok {
		return decimal.RequireFromString(p)
	}
	return decimal.NewFromInt(100)
}

// candles 生成确定性的 K 线：同一 symbol/周期/时间窗口总是返回相同数据
func candles(symbol string, step time.Duration, now time.Time, n int) []api.Candle {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := int64(h.Sum32() % 97)

	base := basePrice(symbol)
	unit := base.Div(decimal.NewFromInt(1000))
	end := now.Truncate(step)
	out := make([]api.Candle, 0, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * step)
		wave := decimal.NewFromInt((seed+int64(i)*7)%21 - 10)
		open := base.Add(unit.Mul(wave))
		closeP := open.Add(unit.Mul(decimal.NewFromInt(int64(i%5) - 2)))
		high := decimal.Max(open, closeP).Add(unit)
		low := decimal.Min(open, closeP).Sub(unit)
		out = append(out, api.Candle{
			Time:   api.Timestamp(ts.Unix()),
			Open:   api.Amount(open.Round(4).String()),
			High:   api.Amount(high.Round(4).String()),
			Low:    api.Amount(low.Round(4).String()),
			Close:  api.Amount(closeP.Round(4).String()),
			Volume: api.Amount(decimal.NewFromInt(seed + int64(i)*3 + 10).String()),
		})
	}
	return out
}

func errorsIsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("not positive")
	}
	return n, nil
}
