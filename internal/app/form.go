package app

import (
	"sync"

	"github.com/betbot/tradesync/internal/api"
	"github.com/betbot/tradesync/pkg/config"
	"github.com/betbot/tradesync/pkg/persistence"
)

// Form 交易表单：配置默认值 + 上次保存的值
//
// 凭证（api_key/api_secret/passphrase）只保存在内存里，不写文件。
type Form struct {
	defaults config.FormConfig
	store    persistence.Store

	mu      sync.Mutex
	current api.TradingConfiguration
	loaded  bool
}

func NewForm(defaults config.FormConfig, store persistence.Store) *Form {
	return &Form{defaults: defaults, store: store}
}

// DefaultConfiguration 由配置默认值构造
func DefaultConfiguration(f config.FormConfig) api.TradingConfiguration {
	return api.TradingConfiguration{
		Symbols:           append([]string(nil), f.Symbols...),
		Timeframe:         f.Timeframe,
		Leverage:          f.Leverage,
		Interval:          f.Interval,
		RSIPeriod:         f.RSIPeriod,
		RSIOverbought:     f.RSIOverbought,
		RSIOversold:       f.RSIOversold,
		ShortSMA:          f.ShortSMA,
		LongSMA:           f.LongSMA,
		StopLossPercent:   f.StopLossPercent,
		TakeProfitPercent: f.TakeProfitPercent,
	}
}

// Get 当前表单值；第一次调用时从文件加载，加载失败回退到默认值
func (f *Form) Get() api.TradingConfiguration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		f.current = DefaultConfiguration(f.defaults)
		saved := f.current
		if err := persistence.LoadOr(f.store, &saved); err != nil {
			log.Warnf("加载交易表单失败，使用默认值: %v", err)
		} else {
			f.current = saved
		}
		f.loaded = true
	}
	return f.current
}

// Set 更新表单并保存（不含凭证）
func (f *Form) Set(cfg api.TradingConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = cfg
	f.loaded = true

	onDisk := cfg
	onDisk.APIKey, onDisk.APISecret, onDisk.Passphrase = "", "", ""
	return f.store.Save(onDisk)
}

// Reset 恢复默认值并删除保存的文件
func (f *Form) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = DefaultConfiguration(f.defaults)
	f.loaded = true
	if c, ok := f.store.(interface{ Clear() error }); ok {
		return c.Clear()
	}
	return nil
}
