// Package app 组合根：按依赖顺序显式构造会话、请求管道、服务、store 和派生视图。
package app

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/derive"
	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/internal/metrics"
	"github.com/betbot/tradesync/internal/session"
	"github.com/betbot/tradesync/internal/store"
	"github.com/betbot/tradesync/pkg/config"
	"github.com/betbot/tradesync/pkg/persistence"
	sdkhttp "github.com/betbot/tradesync/pkg/sdk/http"
	"github.com/betbot/tradesync/pkg/secretstore"
)

var log = logrus.WithField("component", "app")

// Navigator 由 UI 提供：会话失效后跳转到登录页
type Navigator interface {
	RedirectToLogin(reason events.InvalidationReason)
}

// NavigatorFunc 函数适配 Navigator
type NavigatorFunc func(reason events.InvalidationReason)

func (f NavigatorFunc) RedirectToLogin(reason events.InvalidationReason) { f(reason) }

type Options struct {
	Navigator Navigator
	// InMemorySession 会话不落盘（测试、一次性命令）
	InMemorySession bool
	UserAgent       string
}

type App struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Sessions *session.Manager
	HTTP     *sdkhttp.Client

	Auth    *api.AuthService
	Trading *api.TradingService
	Market  *api.MarketService

	Stores *store.Stores
	Views  *derive.Views
	Form   *Form

	kv        *secretstore.Store
	removeNav func()
}

func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}

	kv, err := openSessionStore(cfg.Session, opts.InMemorySession)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	sessions := session.NewManager(kv)
	sessions.OnInvalidate = func(reason events.InvalidationReason) {
		m.SessionInvalidated(string(reason))
	}

	httpClient := sdkhttp.NewClient(sdkhttp.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tokens:  sessions,
		OnUnauthorized: func(method, path string) {
			sessions.Invalidate(events.SessionInvalidatedEvent{
				Reason: events.ReasonUnauthorized,
				Method: method,
				Path:   path,
			})
		},
		Observer:  m,
		UserAgent: opts.UserAgent,
	})

	trading := api.NewTradingService(httpClient)
	market := api.NewMarketService(httpClient)
	stores := store.NewStores(trading, market, store.Options{
		DiscardStale: cfg.Stores.DiscardStaleResponses,
		Recorder:     m,
	})

	a := &App{
		Config:   cfg,
		Metrics:  m,
		Sessions: sessions,
		HTTP:     httpClient,
		Auth:     api.NewAuthService(httpClient, sessions),
		Trading:  trading,
		Market:   market,
		Stores:   stores,
		Views:    derive.NewViews(stores.Positions),
		Form:     NewForm(cfg.Form, persistence.NewJSONFileStore(cfg.Form.File)),
		kv:       kv,
	}

	if opts.Navigator != nil {
		nav := opts.Navigator
		a.removeNav = sessions.OnInvalidated(func(ev events.SessionInvalidatedEvent) {
			nav.RedirectToLogin(ev.Reason)
		})
	}

	log.WithFields(logrus.Fields{
		"base_url":      cfg.API.BaseURL,
		"authenticated": sessions.IsAuthenticated(),
	}).Debug("app 已初始化")
	return a, nil
}

func openSessionStore(cfg config.SessionConfig, inMemory bool) (*secretstore.Store, error) {
	opts := secretstore.OpenOptions{Path: cfg.DBPath, InMemory: inMemory}
	if key := strings.TrimSpace(cfg.EncryptionKey); key != "" {
		b, err := secretstore.ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("session encryption key: %w", err)
		}
		opts.EncryptionKey = b
	}
	kv, err := secretstore.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", cfg.DBPath, err)
	}
	return kv, nil
}

// Close 取消导航订阅并关闭会话存储
func (a *App) Close() error {
	if a.removeNav != nil {
		a.removeNav()
	}
	if a.kv != nil {
		return a.kv.Close()
	}
	return nil
}
