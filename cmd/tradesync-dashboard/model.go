package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/app"
	"github.com/betbot/tradesync/pkg/sigchan"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2")) // 绿色

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

var timeframeCycle = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}

type tickMsg time.Time

// changedMsg 任意 store 变化（合并后）
type changedMsg struct{}

type outcomeMsg struct {
	action string
	err    string
}

type refreshedMsg struct{}

type model struct {
	ctx      context.Context
	app      *app.App
	changed  *sigchan.Chan
	interval time.Duration

	refreshing bool
	lastUpdate time.Time
	notice     string
	width      int
}

func newModel(ctx context.Context, a *app.App, changed *sigchan.Chan, interval time.Duration) model {
	return model{ctx: ctx, app: a, changed: changed, interval: interval}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.ctx, m.changed),
		m.refreshCmd(),
		tickCmd(m.interval),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.notice = "刷新中..."
			cmd := m.refreshCmd()
			return m, cmd
		case "s":
			m.notice = "启动交易..."
			return m, m.startCmd()
		case "x":
			m.notice = "停止交易..."
			return m, m.stopCmd()
		case "left", "right":
			return m, m.switchSymbolCmd(msg.String() == "right")
		case "t":
			return m, m.switchTimeframeCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.interval)}
		if !m.refreshing && m.app.Auth.IsAuthenticated() {
			cmds = append(cmds, m.refreshCmd())
		}
		return m, tea.Batch(cmds...)

	case changedMsg:
		m.lastUpdate = time.Now()
		return m, waitForChange(m.ctx, m.changed)

	case refreshedMsg:
		m.refreshing = false
		if m.notice == "刷新中..." {
			m.notice = ""
		}

	case outcomeMsg:
		if msg.err != "" {
			m.notice = fmt.Sprintf("%s 失败: %s", msg.action, msg.err)
		} else {
			m.notice = msg.action + " 成功"
		}
	}
	return m, nil
}

// ---- commands ----

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange 等待下一次 store 变化；每次收到后需要重新调用
func waitForChange(ctx context.Context, changed *sigchan.Chan) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changed.C():
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *model) refreshCmd() tea.Cmd {
	if !m.app.Auth.IsAuthenticated() {
		return nil
	}
	m.refreshing = true
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		a.Stores.RefreshAll(ctx)
		return refreshedMsg{}
	}
}

func (m model) startCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		out := a.Stores.Status.Start(ctx, a.Form.Get())
		a.Stores.Positions.Fetch(ctx, nil)
		return outcomeMsg{action: "启动交易", err: out.Error}
	}
}

func (m model) stopCmd() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		out := a.Stores.Status.Stop(ctx)
		a.Stores.Positions.Fetch(ctx, nil)
		return outcomeMsg{action: "停止交易", err: out.Error}
	}
}

func (m model) switchSymbolCmd(next bool) tea.Cmd {
	symbols := m.app.Stores.Symbols.Get().Data
	if len(symbols) == 0 {
		return nil
	}
	current := m.app.Stores.Market.Get().Data.Symbol
	i := indexOf(symbols, current)
	if next {
		i = (i + 1) % len(symbols)
	} else {
		i = (i - 1 + len(symbols)) % len(symbols)
	}
	symbol := symbols[i]
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		a.Stores.Market.Fetch(ctx, symbol, "")
		return nil
	}
}

func (m model) switchTimeframeCmd() tea.Cmd {
	current := m.app.Stores.Market.Get().Data.Timeframe
	tf := timeframeCycle[(indexOf(timeframeCycle, current)+1)%len(timeframeCycle)]
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		a.Stores.Market.Fetch(ctx, "", tf)
		return nil
	}
}

// indexOf 找不到时返回 -1
func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// ---- view ----

func (m model) View() string {
	var s strings.Builder

	user := "未登录（先运行 tradesync login）"
	if u, ok := m.app.Auth.User(); ok {
		user = u.Username
	}
	updated := "-"
	if !m.lastUpdate.IsZero() {
		updated = m.lastUpdate.Format("15:04:05")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("tradesync | 用户: %s | 更新: %s", user, updated)))
	s.WriteString("\n\n")

	left := lipgloss.JoinVertical(lipgloss.Left, m.statusPanel(), m.summaryPanel())
	row := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.marketPanel())
	s.WriteString(row)
	s.WriteString("\n")
	s.WriteString(m.positionsPanel())
	s.WriteString("\n")

	if m.notice != "" {
		s.WriteString(m.notice)
		s.WriteString("\n")
	}
	s.WriteString(dimStyle.Render("r 刷新 · s 启动 · x 停止 · ←/→ 品种 · t 周期 · q 退出"))
	return s.String()
}

func (m model) statusPanel() string {
	st := m.app.Stores.Status.Get()
	var b strings.Builder
	b.WriteString(titleStyle.Render("交易状态"))
	b.WriteString(loadingMark(st.Loading))
	b.WriteString("\n")
	if st.Data.Trading {
		b.WriteString(upStyle.Render("● TRADING"))
	} else {
		b.WriteString(downStyle.Render("○ STOPPED"))
	}
	b.WriteString("\n")
	b.WriteString("品种: " + orDash(strings.Join(st.Data.Symbols, ", ")))
	keys := make([]string, 0, len(st.Data.Stats))
	for k := range st.Data.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("\n%s: %v", k, st.Data.Stats[k]))
	}
	b.WriteString(errorLine(st.Error))
	return borderStyle.Render(b.String())
}

func (m model) summaryPanel() string {
	open := m.app.Views.OpenPositions.Get()
	closed := m.app.Views.ClosedPositions.Get()
	pnl := m.app.Views.TotalProfitLoss.Get()
	style := upStyle
	if pnl.IsNegative() {
		style = downStyle
	}
	body := fmt.Sprintf("%s\n持仓: %d  已平: %d\n总盈亏: %s",
		titleStyle.Render("汇总"), len(open), len(closed), style.Render(pnl.StringFixed(2)))
	return borderStyle.Render(body)
}

func (m model) marketPanel() string {
	st := m.app.Stores.Market.Get()
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", st.Data.Symbol, st.Data.Timeframe)))
	b.WriteString(loadingMark(st.Loading))
	candles := st.Data.Candles
	if len(candles) > 12 {
		candles = candles[len(candles)-12:]
	}
	for _, c := range candles {
		style := upStyle
		if c.Close.Decimal().LessThan(c.Open.Decimal()) {
			style = downStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(fmt.Sprintf("%s  O %-10s C %-10s",
			time.Unix(c.Time.Unix(), 0).Format("01-02 15:04"), c.Open, c.Close)))
	}
	if len(candles) == 0 {
		b.WriteString("\n" + dimStyle.Render("暂无数据"))
	}
	b.WriteString(errorLine(st.Error))
	return borderStyle.Render(b.String())
}

func (m model) positionsPanel() string {
	st := m.app.Stores.Positions.Get()
	var b strings.Builder
	b.WriteString(titleStyle.Render("仓位"))
	b.WriteString(loadingMark(st.Loading))
	for _, p := range st.Data {
		b.WriteString("\n")
		b.WriteString(positionLine(p))
	}
	if len(st.Data) == 0 {
		b.WriteString("\n" + dimStyle.Render("暂无仓位"))
	}
	b.WriteString(errorLine(st.Error))
	return borderStyle.Render(b.String())
}

func positionLine(p api.Position) string {
	line := fmt.Sprintf("%-8s %-5s %-6s entry %-10s exit %-10s qty %-6s", p.Symbol, p.Side, p.Status,
		orDash(string(p.EntryPrice)), orDash(string(p.ExitPrice)), orDash(string(p.Quantity)))
	if p.ProfitLoss == "" {
		return line
	}
	pl := p.ProfitLoss.Decimal()
	style := upStyle
	if pl.IsNegative() {
		style = downStyle
	}
	return line + " P/L " + style.Render(pl.String())
}

func loadingMark(loading bool) string {
	if loading {
		return dimStyle.Render(" (加载中)")
	}
	return ""
}

func errorLine(msg string) string {
	if msg == "" {
		return ""
	}
	return "\n" + downStyle.Render("错误: "+msg)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
