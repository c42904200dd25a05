package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/app"
	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/pkg/config"
	"github.com/betbot/tradesync/pkg/logger"
)

const usage = `tradesync - trading backend client

usage: tradesync [-config file] <command> [flags]

commands:
  login      -u user -p password
  logout
  whoami
  status
  start      [-symbols BTCUSDT,ETHUSDT] [-timeframe 15m] [-leverage 5]
  stop
  positions  [-status open|closed] [-symbol BTCUSDT] [-limit 50]
  symbols
  market     [-symbol BTCUSDT] [-timeframe 15m]
  form       [show|reset]
`

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("TRADESYNC_CONFIG"), "config file (yaml/json)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		JSON:       cfg.Log.JSON,
		Quiet:      cfg.Log.File != "",
	}); err != nil {
		logrus.Fatalf("初始化日志失败: %v", err)
	}

	a, err := app.New(cfg, app.Options{
		Navigator: app.NavigatorFunc(func(reason events.InvalidationReason) {
			if reason == events.ReasonUnauthorized {
				fmt.Fprintln(os.Stderr, "session expired, run `tradesync login` again")
			}
		}),
		UserAgent: "tradesync-cli",
	})
	if err != nil {
		logrus.Fatalf("初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, a, flag.Arg(0), flag.Args()[1:])
	stop()
	_ = a.Close()
	os.Exit(code)
}

func run(ctx context.Context, a *app.App, name string, args []string) int {
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}
	if err := cmd(ctx, a, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
