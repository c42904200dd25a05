// Package mockserver 是一个内存版的交易后端，实现客户端使用的 HTTP 接口。
//
// 用于本地开发（cmd/mockbackend）和集成测试；所有状态都在内存里，重启即丢失。
package mockserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/internal/session"
)

var log = logrus.WithField("component", "mockserver")

// Account 可登录的账号
type Account struct {
	Password string
	User     session.User
}

type Config struct {
	// Secret HS256 签名密钥，为空时随机生成
	Secret   []byte
	TokenTTL time.Duration
	Accounts map[string]Account
	Symbols  []string
	// Now 可替换的时钟（测试里用来让 token 过期）
	Now func() time.Time
}

// DefaultConfig 一个 demo 账号和默认品种
func DefaultConfig() Config {
	return Config{
		TokenTTL: 24 * time.Hour,
		Accounts: map[string]Account{
			"demo": {Password: "demo", User: session.User{ID: "u-demo", Username: "demo", Email: "demo@example.com", Role: "trader"}},
		},
		Symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"},
	}
}

type Server struct {
	cfg Config

	mu        sync.Mutex
	trading   bool
	config    *api.TradingConfiguration
	positions []api.Position
	revoked   map[string]struct{}
	trades    int
}

func New(cfg Config) *Server {
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte(uuid.NewString())
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultConfig().Symbols
	}
	return &Server{cfg: cfg, revoked: map[string]struct{}{}, positions: []api.Position{}}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	g := r.Group("/api")
	g.POST("/auth/login", s.handleLogin)

	authed := g.Group("", s.requireAuth)
	authed.POST("/auth/logout", s.handleLogout)
	authed.POST("/trading/start", s.handleStart)
	authed.POST("/trading/stop", s.handleStop)
	authed.GET("/trading/status", s.handleStatus)
	authed.GET("/positions", s.handlePositions)
	authed.GET("/symbols", s.handleSymbols)
	authed.GET("/market/:symbol", s.handleMarket)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"cost":   time.Since(start).String(),
		}).Debug("request")
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// ---- auth ----

type claims struct {
	User session.User `json:"user"`
	jwt.RegisteredClaims
}

// IssueToken 签发 token（也给测试直接使用）
func (s *Server) IssueToken(u session.User) (string, error) {
	now := s.cfg.Now()
	c := claims{
		User: u,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
}

func (s *Server) parseToken(raw string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.cfg.Secret, nil
	}, jwt.WithTimeFunc(s.cfg.Now))
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

const claimsKey = "claims"

func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	cl, err := s.parseToken(strings.TrimSpace(raw))
	if err != nil {
		msg := "Invalid token"
		if errorsIsExpired(err) {
			msg = "Token expired"
		}
		writeError(c, http.StatusUnauthorized, msg)
		return
	}
	s.mu.Lock()
	_, revoked := s.revoked[cl.ID]
	s.mu.Unlock()
	if revoked {
		writeError(c, http.StatusUnauthorized, "Token revoked")
		return
	}
	c.Set(claimsKey, cl)
	c.Next()
}

func (s *Server) handleLogin(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	acc, ok := s.cfg.Accounts[req.Username]
	if !ok || acc.Password != req.Password {
		writeError(c, http.StatusBadRequest, "Invalid credentials")
		return
	}
	token, err := s.IssueToken(acc.User)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": acc.User})
}

func (s *Server) handleLogout(c *gin.Context) {
	cl := c.MustGet(claimsKey).(*claims)
	s.mu.Lock()
	s.revoked[cl.ID] = struct{}{}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- trading ----

func (s *Server) handleStart(c *gin.Context) {
	var cfg api.TradingConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(cfg.Symbols) == 0 {
		writeError(c, http.StatusBadRequest, "At least one symbol is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trading {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Trading is already running"})
		return
	}
	s.trading = true
	s.config = &cfg
	now := s.cfg.Now().UTC().Format(time.RFC3339)
	for _, sym := range cfg.Symbols {
		price := basePrice(sym)
		s.positions = append(s.positions, api.Position{
			ID:         uuid.NewString(),
			Symbol:     sym,
			Side:       "long",
			Status:     api.PositionOpen,
			EntryPrice: api.Amount(price.String()),
			Quantity:   api.Amount(decimal.NewFromInt(int64(max(cfg.Leverage, 1))).String()),
			OpenedAt:   now,
		})
	}
	log.WithField("symbols", cfg.Symbols).Info("交易已启动")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStop(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trading {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Trading is not running"})
		return
	}
	s.trading = false
	now := s.cfg.Now().UTC().Format(time.RFC3339)
	for i := range s.positions {
		p := &s.positions[i]
		if p.Status != api.PositionOpen {
			continue
		}
		entry := p.EntryPrice.Decimal()
		exit := entry.Mul(decimal.RequireFromString("1.01")).Round(2)
		p.Status = api.PositionClosed
		p.ExitPrice = api.Amount(exit.String())
		p.ProfitLoss = api.Amount(exit.Sub(entry).Mul(p.Quantity.Decimal()).Round(2).String())
		p.ClosedAt = now
		s.trades++
	}
	log.Info("交易已停止")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols := []string{}
	if s.config != nil && s.trading {
		symbols = s.config.Symbols
	}
	open := map[string]api.Position{}
	closed := 0
	pnl := decimal.Zero
	for _, p := range s.positions {
		switch p.Status {
		case api.PositionOpen:
			open[p.Symbol] = p
		case api.PositionClosed:
			closed++
			pnl = pnl.Add(p.ProfitLoss.Decimal())
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": api.TradingStatus{
		Trading:   s.trading,
		Symbols:   symbols,
		Positions: open,
		Stats: map[string]any{
			"total_trades":     s.trades,
			"open_positions":   len(open),
			"closed_positions": closed,
			"realized_pnl":     pnl.String(),
		},
	}})
}

func (s *Server) handlePositions(c *gin.Context) {
	status := c.Query("status")
	symbol := c.Query("symbol")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Position{}
	for _, p := range s.positions {
		if status != "" && p.Status != status {
			continue
		}
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "positions": out})
}

// AddPosition 直接写入一个仓位（测试用）
func (s *Server) AddPosition(p api.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.positions = append(s.positions, p)
}

// ---- market ----

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "symbols": s.cfg.Symbols})
}

func (s *Server) handleMarket(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	known := false
	for _, sym := range s.cfg.Symbols {
		if sym == symbol {
			known = true
			break
		}
	}
	if !known {
		writeError(c, http.StatusNotFound, "Unknown symbol: "+symbol)
		return
	}
	timeframe := c.DefaultQuery("timeframe", api.DefaultTimeframe)
	step, ok := timeframes[timeframe]
	if !ok {
		writeError(c, http.StatusBadRequest, "Unsupported timeframe: "+timeframe)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": candles(symbol, step, s.cfg.Now(), 50)})
}
