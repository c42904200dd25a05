package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/session"
	"github.com/betbot/tradesync/internal/store"
	sdkhttp "github.com/betbot/tradesync/pkg/sdk/http"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	onStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	offStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func errorText(err error) string {
	return sdkhttp.ErrorMessage(err)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func renderUser(u *session.User) string {
	return fmt.Sprintf("%s %s\n%s %s\n%s %s",
		labelStyle.Render("user:"), u.Username,
		labelStyle.Render("email:"), orDefault(u.Email, "-"),
		labelStyle.Render("role:"), orDefault(u.Role, "-"))
}

func renderStatus(st api.TradingStatus) string {
	state := offStyle.Render("STOPPED")
	if st.Trading {
		state = onStyle.Render("TRADING")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("state:"), state)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("symbols:"), orDefault(strings.Join(st.Symbols, ", "), "-"))

	keys := make([]string, 0, len(st.Stats))
	for k := range st.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %v\n", labelStyle.Render(k+":"), st.Stats[k])
	}

	if len(st.Positions) > 0 {
		positions := make([]api.Position, 0, len(st.Positions))
		for _, p := range st.Positions {
			positions = append(positions, p)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
		b.WriteString(renderPositions(positions))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPositions(positions []api.Position) string {
	if len(positions) == 0 {
		return labelStyle.Render("no positions")
	}
	t := newTable("ID", "SYMBOL", "SIDE", "STATUS", "ENTRY", "EXIT", "QTY", "P/L")
	for _, p := range positions {
		t.Row(shortID(p.ID), p.Symbol, p.Side, p.Status,
			amount(p.EntryPrice), amount(p.ExitPrice), amount(p.Quantity), amount(p.ProfitLoss))
	}
	return t.Render()
}

func renderCandles(md store.MarketData, last int) string {
	candles := md.Candles
	if len(candles) > last {
		candles = candles[len(candles)-last:]
	}
	title := headerStyle.Render(fmt.Sprintf("%s %s", md.Symbol, md.Timeframe))
	if len(candles) == 0 {
		return title + "\n" + labelStyle.Render("no candles")
	}
	t := newTable("TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
	for _, c := range candles {
		t.Row(time.Unix(c.Time.Unix(), 0).UTC().Format("01-02 15:04"),
			amount(c.Open), amount(c.High), amount(c.Low), amount(c.Close), amount(c.Volume))
	}
	return title + "\n" + t.Render()
}

func renderForm(f api.TradingConfiguration) string {
	t := newTable("FIELD", "VALUE")
	t.Row("symbols", strings.Join(f.Symbols, ", "))
	t.Row("timeframe", f.Timeframe)
	t.Row("leverage", fmt.Sprint(f.Leverage))
	t.Row("interval", fmt.Sprint(f.Interval))
	t.Row("rsi", fmt.Sprintf("%d / %g / %g", f.RSIPeriod, f.RSIOverbought, f.RSIOversold))
	t.Row("sma", fmt.Sprintf("%d / %d", f.ShortSMA, f.LongSMA))
	t.Row("stop loss %", fmt.Sprint(f.StopLossPercent))
	t.Row("take profit %", fmt.Sprint(f.TakeProfitPercent))
	return t.Render()
}

func amount(a api.Amount) string {
	if a == "" {
		return "-"
	}
	return string(a)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
