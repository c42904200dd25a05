package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/mockserver"
	"github.com/betbot/tradesync/pkg/logger"
	"github.com/betbot/tradesync/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		listenAddr = flag.String("listen", getenv("TRADESYNC_MOCK_LISTEN", ":4000"), "HTTP listen address")
		secret     = flag.String("jwt-secret", getenv("TRADESYNC_MOCK_JWT_SECRET", ""), "HS256 secret (random if empty)")
		tokenTTL   = flag.Duration("token-ttl", 24*time.Hour, "token lifetime")
		logLevel   = flag.String("log-level", getenv("TRADESYNC_LOG_LEVEL", "info"), "log level")
	)
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *logLevel}); err != nil {
		logrus.Fatalf("init logger failed: %v", err)
	}

	cfg := mockserver.DefaultConfig()
	cfg.Secret = []byte(*secret)
	cfg.TokenTTL = *tokenTTL
	srv := mockserver.New(cfg)

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdowns := shutdown.NewManager()
	shutdowns.OnShutdown("http", httpSrv.Shutdown)

	go func() {
		logger.Infof("mock backend listening on %s (login demo/demo)", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdowns.Shutdown(ctx)
	logger.Infof("mock backend stopped")
}
