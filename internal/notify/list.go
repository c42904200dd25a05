package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "notify")

// Handler 事件处理函数
type Handler[E any] func(E)

type entry[E any] struct {
	id uint64
	fn Handler[E]
}

// List 处理器列表：按注册顺序串行触发，单个处理器 panic 不影响其他处理器
type List[E any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []entry[E]
}

// Add 添加处理器，返回取消注册函数（可重复调用）
func (l *List[E]) Add(fn Handler[E]) (remove func()) {
	if fn == nil {
		return func() {}
	}
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.handlers = append(l.handlers, entry[E]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *List[E]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, h := range l.handlers {
		if h.id == id {
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return
		}
	}
}

// Snapshot 返回处理器快照（用于在无锁状态下遍历，避免持锁调用外部代码）
func (l *List[E]) Snapshot() []Handler[E] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Handler[E], len(l.handlers))
	for i, h := range l.handlers {
		out[i] = h.fn
	}
	return out
}

// Emit 串行触发所有处理器
func (l *List[E]) Emit(event E) {
	for i, h := range l.Snapshot() {
		func(idx int, fn Handler[E]) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("处理器 %d panic: %v", idx, r)
				}
			}()
			fn(event)
		}(i, h)
	}
}

// Count 返回处理器数量
func (l *List[E]) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}
