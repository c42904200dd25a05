package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值（与后端开发环境保持一致）
const (
	DefaultBaseURL         = "http://localhost:4000/api"
	DefaultTimeout         = 10 * time.Second
	DefaultSessionDB       = "data/session.badger"
	DefaultFormFile        = "data/trading_form.json"
	DefaultRefreshInterval = 5 * time.Second
)

// APIConfig 后端接口配置
type APIConfig struct {
	BaseURL string
	Timeout time.Duration // 每个请求的超时时间，超时按普通失败处理
}

// SessionConfig 会话持久化配置
type SessionConfig struct {
	DBPath        string // badger 目录
	EncryptionKey string // 32 字节 key（hex/base64），为空则不加密
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	JSON       bool
}

// StoresConfig 资源 store 配置
type StoresConfig struct {
	// DiscardStaleResponses 为 true 时，同一个 store 并发请求只接受最后发起的那个结果
	DiscardStaleResponses bool
}

// FormConfig 交易表单默认值（启动交易时的参数）
type FormConfig struct {
	Symbols           []string
	Timeframe         string
	Leverage          int
	Interval          int
	RSIPeriod         int
	RSIOverbought     float64
	RSIOversold       float64
	ShortSMA          int
	LongSMA           int
	StopLossPercent   float64
	TakeProfitPercent float64
	File              string // 表单持久化文件
}

// DashboardConfig 终端看板配置
type DashboardConfig struct {
	RefreshInterval time.Duration
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Listen string // 为空则不启动 /metrics
}

// Config 应用配置
type Config struct {
	API       APIConfig
	Session   SessionConfig
	Log       LogConfig
	Stores    StoresConfig
	Form      FormConfig
	Dashboard DashboardConfig
	Metrics   MetricsConfig
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	API struct {
		BaseURL string `yaml:"base_url" json:"base_url"`
		Timeout string `yaml:"timeout" json:"timeout"` // 例如 "10s"
	} `yaml:"api" json:"api"`
	Session struct {
		DBPath        string `yaml:"db_path" json:"db_path"`
		EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`
	} `yaml:"session" json:"session"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   *bool  `yaml:"compress" json:"compress"`
		JSON       bool   `yaml:"json" json:"json"`
	} `yaml:"log" json:"log"`
	Stores struct {
		DiscardStaleResponses bool `yaml:"discard_stale_responses" json:"discard_stale_responses"`
	} `yaml:"stores" json:"stores"`
	Form struct {
		Symbols           []string `yaml:"symbols" json:"symbols"`
		Timeframe         string   `yaml:"timeframe" json:"timeframe"`
		Leverage          int      `yaml:"leverage" json:"leverage"`
		Interval          int      `yaml:"interval" json:"interval"`
		RSIPeriod         int      `yaml:"rsi_period" json:"rsi_period"`
		RSIOverbought     float64  `yaml:"rsi_overbought" json:"rsi_overbought"`
		RSIOversold       float64  `yaml:"rsi_oversold" json:"rsi_oversold"`
		ShortSMA          int      `yaml:"short_sma" json:"short_sma"`
		LongSMA           int      `yaml:"long_sma" json:"long_sma"`
		StopLossPercent   float64  `yaml:"stop_loss_percent" json:"stop_loss_percent"`
		TakeProfitPercent float64  `yaml:"take_profit_percent" json:"take_profit_percent"`
		File              string   `yaml:"file" json:"file"`
	} `yaml:"form" json:"form"`
	Dashboard struct {
		RefreshInterval string `yaml:"refresh_interval" json:"refresh_interval"`
	} `yaml:"dashboard" json:"dashboard"`
	Metrics struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"metrics" json:"metrics"`
}

// Defaults 返回默认配置
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Session: SessionConfig{
			DBPath: DefaultSessionDB,
		},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/tradesync.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Form: FormConfig{
			Symbols:           []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"},
			Timeframe:         "15m",
			Leverage:          5,
			Interval:          60,
			RSIPeriod:         14,
			RSIOverbought:     70,
			RSIOversold:       30,
			ShortSMA:          20,
			LongSMA:           50,
			StopLossPercent:   2.5,
			TakeProfitPercent: 5.5,
			File:              DefaultFormFile,
		},
		Dashboard: DashboardConfig{
			RefreshInterval: DefaultRefreshInterval,
		},
	}
}

// Load 加载配置（优先级：环境变量 > 配置文件 > 默认值），filePath 为空时只使用默认值和环境变量
func Load(filePath string) (*Config, error) {
	cfg := Defaults()

	if filePath != "" {
		cf, err := loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
		if err := cfg.applyFile(cf); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

func (c *Config) applyFile(cf *ConfigFile) error {
	if cf.API.BaseURL != "" {
		c.API.BaseURL = cf.API.BaseURL
	}
	if cf.API.Timeout != "" {
		d, err := time.ParseDuration(cf.API.Timeout)
		if err != nil {
			return fmt.Errorf("api.timeout 格式错误: %w", err)
		}
		c.API.Timeout = d
	}

	if cf.Session.DBPath != "" {
		c.Session.DBPath = cf.Session.DBPath
	}
	if cf.Session.EncryptionKey != "" {
		c.Session.EncryptionKey = cf.Session.EncryptionKey
	}

	if cf.Log.Level != "" {
		c.Log.Level = cf.Log.Level
	}
	if cf.Log.File != "" {
		c.Log.File = cf.Log.File
	}
	if cf.Log.MaxSize > 0 {
		c.Log.MaxSize = cf.Log.MaxSize
	}
	if cf.Log.MaxBackups > 0 {
		c.Log.MaxBackups = cf.Log.MaxBackups
	}
	if cf.Log.MaxAge > 0 {
		c.Log.MaxAge = cf.Log.MaxAge
	}
	if cf.Log.Compress != nil {
		c.Log.Compress = *cf.Log.Compress
	}
	c.Log.JSON = cf.Log.JSON

	c.Stores.DiscardStaleResponses = cf.Stores.DiscardStaleResponses

	f := cf.Form
	if len(f.Symbols) > 0 {
		c.Form.Symbols = f.Symbols
	}
	if f.Timeframe != "" {
		c.Form.Timeframe = f.Timeframe
	}
	if f.Leverage > 0 {
		c.Form.Leverage = f.Leverage
	}
	if f.Interval > 0 {
		c.Form.Interval = f.Interval
	}
	if f.RSIPeriod > 0 {
		c.Form.RSIPeriod = f.RSIPeriod
	}
	if f.RSIOverbought > 0 {
		c.Form.RSIOverbought = f.RSIOverbought
	}
	if f.RSIOversold > 0 {
		c.Form.RSIOversold = f.RSIOversold
	}
	if f.ShortSMA > 0 {
		c.Form.ShortSMA = f.ShortSMA
	}
	if f.LongSMA > 0 {
		c.Form.LongSMA = f.LongSMA
	}
	if f.StopLossPercent > 0 {
		c.Form.StopLossPercent = f.StopLossPercent
	}
	if f.TakeProfitPercent > 0 {
		c.Form.TakeProfitPercent = f.TakeProfitPercent
	}
	if f.File != "" {
		c.Form.File = f.File
	}

	if cf.Dashboard.RefreshInterval != "" {
		d, err := time.ParseDuration(cf.Dashboard.RefreshInterval)
		if err != nil {
			return fmt.Errorf("dashboard.refresh_interval 格式错误: %w", err)
		}
		c.Dashboard.RefreshInterval = d
	}
	if cf.Metrics.Listen != "" {
		c.Metrics.Listen = cf.Metrics.Listen
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.API.BaseURL = getEnv("TRADESYNC_API_URL", c.API.BaseURL)
	if v := getEnv("TRADESYNC_API_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRADESYNC_API_TIMEOUT 格式错误: %w", err)
		}
		c.API.Timeout = d
	}
	c.Session.DBPath = getEnv("TRADESYNC_SESSION_DB", c.Session.DBPath)
	c.Session.EncryptionKey = getEnv("TRADESYNC_SESSION_KEY", c.Session.EncryptionKey)
	c.Log.Level = getEnv("TRADESYNC_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("TRADESYNC_LOG_FILE", c.Log.File)
	c.Stores.DiscardStaleResponses = parseBoolEnv("TRADESYNC_DISCARD_STALE", c.Stores.DiscardStaleResponses)
	c.Metrics.Listen = getEnv("TRADESYNC_METRICS_LISTEN", c.Metrics.Listen)
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url 未配置")
	}
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url 格式错误: %w", err)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout 必须大于 0")
	}
	if c.Session.DBPath == "" {
		return fmt.Errorf("session.db_path 未配置")
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval 必须大于 0")
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
