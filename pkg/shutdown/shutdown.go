package shutdown

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "shutdown")

// Handler 关闭回调；ctx 带超时
type Handler func(ctx context.Context) error

// Manager 优雅关闭管理器
type Manager struct {
	mu        sync.Mutex
	callbacks []named
}

type named struct {
	name string
	fn   Handler
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, named{name: name, fn: handler})
}

// Shutdown 并发执行所有关闭回调，等待完成或 ctx 超时；返回超时前完成且失败的回调数
func (m *Manager) Shutdown(ctx context.Context) int {
	m.mu.Lock()
	callbacks := m.callbacks
	m.callbacks = nil
	m.mu.Unlock()

	if len(callbacks) == 0 {
		return 0
	}
	log.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   int
	)
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(cb named) {
			defer wg.Done()
			if err := cb.fn(ctx); err != nil {
				log.Warnf("关闭 %s 失败: %v", cb.name, err)
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("所有关闭回调已完成")
	case <-ctx.Done():
		log.Warnf("关闭超时: %v", ctx.Err())
	}
	failedMu.Lock()
	defer failedMu.Unlock()
	return failed
}
