package syncgroup

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "syncgroup")

type syncGroupFunc func(ctx context.Context)

// SyncGroup 是 sync.WaitGroup 的包装器：先 Add 再 Run，最后 Wait
// 自动管理 Add() 和 Done()，单个函数 panic 不影响其他函数
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	funcs   []namedFunc
	running bool
	panics  []error
}

type namedFunc struct {
	name string
	fn   syncGroupFunc
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个函数；运行期间调用会被忽略
func (w *SyncGroup) Add(name string, fn syncGroupFunc) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		log.Warnf("SyncGroup 正在运行，忽略 %s", name)
		return
	}
	w.funcs = append(w.funcs, namedFunc{name: name, fn: fn})
}

// Run 并发启动所有已添加的函数并清空列表
func (w *SyncGroup) Run(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	fns := w.funcs
	w.funcs = nil
	w.running = true
	w.panics = nil
	w.mu.Unlock()

	for _, f := range fns {
		w.wg.Add(1)
		go func(f namedFunc) {
			defer w.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("%s panic: %v\n%s", f.name, r, debug.Stack())
					w.mu.Lock()
					w.panics = append(w.panics, fmt.Errorf("%s: panic: %v", f.name, r))
					w.mu.Unlock()
				}
			}()
			f.fn(ctx)
		}(f)
	}
}

// Wait 等待所有函数完成，返回被恢复的 panic
func (w *SyncGroup) Wait() []error {
	w.wg.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	return w.panics
}

// RunAndWait Run + Wait
func (w *SyncGroup) RunAndWait(ctx context.Context) []error {
	w.Run(ctx)
	return w.Wait()
}
