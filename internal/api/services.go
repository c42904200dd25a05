package api

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/internal/session"
	sdkhttp "github.com/betbot/tradesync/pkg/sdk/http"
)

var log = logrus.WithField("component", "api")

// DefaultTimeframe 未指定周期时使用
const DefaultTimeframe = "15m"

// Doer 请求管道（*sdkhttp.Client 实现该接口）
type Doer interface {
	Get(ctx context.Context, endpoint string, params map[string]any, out any) error
	Post(ctx context.Context, endpoint string, body any, out any) error
}

// AuthService 登录/登出
type AuthService struct {
	http     Doer
	sessions *session.Manager
}

func NewAuthService(http Doer, sessions *session.Manager) *AuthService {
	return &AuthService{http: http, sessions: sessions}
}

// Login 登录成功后写入会话；返回服务端响应（失败时 Success=false）
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := s.http.Post(ctx, "/auth/login", LoginRequest{Username: username, Password: password}, &resp); err != nil {
		log.WithField("username", username).Errorf("登录失败: %v", err)
		return nil, err
	}
	if resp.Success {
		if err := s.sessions.SetSession(resp.Token, resp.User); err != nil {
			return nil, err
		}
	}
	return &resp, nil
}

// Logout 通知服务端登出；无论请求是否成功，本地会话都会清除
//
// 401 时请求管道已经让会话失效并通知过一次，这里只补一次幂等的清除。
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.http.Post(ctx, "/auth/logout", nil, nil)
	if err != nil {
		log.Warnf("登出请求失败，仍清除本地会话: %v", err)
	}
	if sdkhttp.IsUnauthorized(err) {
		if cerr := s.sessions.ClearSession(); cerr != nil {
			log.Error(cerr)
		}
		return err
	}
	s.sessions.Invalidate(events.SessionInvalidatedEvent{Reason: events.ReasonLogout})
	return err
}

// IsAuthenticated 是否已登录
func (s *AuthService) IsAuthenticated() bool {
	return s.sessions.IsAuthenticated()
}

// User 当前用户
func (s *AuthService) User() (*session.User, bool) {
	return s.sessions.GetUser()
}

// TradingService 交易控制与查询
type TradingService struct {
	http Doer
}

func NewTradingService(http Doer) *TradingService {
	return &TradingService{http: http}
}

func (s *TradingService) Start(ctx context.Context, cfg TradingConfiguration) (*Envelope, error) {
	var resp Envelope
	if err := s.http.Post(ctx, "/trading/start", cfg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *TradingService) Stop(ctx context.Context) (*Envelope, error) {
	var resp Envelope
	if err := s.http.Post(ctx, "/trading/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *TradingService) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := s.http.Get(ctx, "/trading/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *TradingService) Positions(ctx context.Context, filters PositionFilters) (*PositionsResponse, error) {
	var resp PositionsResponse
	if err := s.http.Get(ctx, "/positions", filters.Params(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarketService 行情
type MarketService struct {
	http Doer
}

func NewMarketService(http Doer) *MarketService {
	return &MarketService{http: http}
}

func (s *MarketService) Symbols(ctx context.Context) (*SymbolsResponse, error) {
	var resp SymbolsResponse
	if err := s.http.Get(ctx, "/symbols", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarketData 获取 K 线，timeframe 为空时使用 15m
func (s *MarketService) MarketData(ctx context.Context, symbol, timeframe string) (*MarketDataResponse, error) {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	var resp MarketDataResponse
	endpoint := "/market/" + url.PathEscape(symbol)
	if err := s.http.Get(ctx, endpoint, map[string]any{"timeframe": timeframe}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

var _ Doer = (*sdkhttp.Client)(nil)
