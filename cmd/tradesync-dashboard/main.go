package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/app"
	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/pkg/config"
	"github.com/betbot/tradesync/pkg/logger"
	"github.com/betbot/tradesync/pkg/shutdown"
	"github.com/betbot/tradesync/pkg/sigchan"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("TRADESYNC_CONFIG"), "config file (yaml/json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// TUI 模式下日志只写文件，避免干扰终端画面
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "logs/tradesync-dashboard.log"
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: logFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		JSON:       cfg.Log.JSON,
		Quiet:      true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	changed := sigchan.New(1)
	a, err := app.New(cfg, app.Options{
		Navigator: app.NavigatorFunc(func(reason events.InvalidationReason) {
			logrus.WithField("reason", reason).Warn("会话失效，需要重新登录")
			changed.Emit()
		}),
		UserAgent: "tradesync-dashboard",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdowns := shutdown.NewManager()
	shutdowns.OnShutdown("app", func(context.Context) error { return a.Close() })

	if cfg.Metrics.Listen != "" {
		srv, err := a.Metrics.StartAsync(ctx, cfg.Metrics.Listen)
		if err != nil {
			logger.Errorf("启动 metrics 失败: %v", err)
		} else {
			logger.Infof("metrics listening on %s", cfg.Metrics.Listen)
			shutdowns.OnShutdown("metrics", srv.Shutdown)
		}
	}

	code := run(a, changed, func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}, newModel(ctx, a, changed, cfg.Dashboard.RefreshInterval))

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	shutdowns.Shutdown(shutdownCtx)
	stop()
	os.Exit(code)
}

// run 订阅 store 变化并运行界面，返回进程退出码；返回前取消所有订阅
func run(a *app.App, changed *sigchan.Chan, program func(tea.Model) error, m model) int {
	for _, unsubscribe := range subscribeAll(a, changed) {
		defer unsubscribe()
	}
	if err := program(m); err != nil {
		fmt.Fprintf(os.Stderr, "运行程序失败: %v\n", err)
		return 1
	}
	return 0
}

// subscribeAll 每个 store 的变化都合并成一次重绘信号
func subscribeAll(a *app.App, changed *sigchan.Chan) []func() {
	emit := func() { changed.Emit() }
	return []func(){
		a.Stores.Status.Subscribe(func(_ statusState) { emit() }),
		a.Stores.Positions.Subscribe(func(_ positionsState) { emit() }),
		a.Stores.Market.Subscribe(func(_ marketState) { emit() }),
		a.Stores.Symbols.Subscribe(func(_ symbolsState) { emit() }),
	}
}
