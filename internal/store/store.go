package store

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/notify"
	sdkhttp "github.com/betbot/tradesync/pkg/sdk/http"
)

var log = logrus.WithField("component", "store")

// UnknownError 失败没有任何可用文本时的兜底
const UnknownError = "Unknown error occurred"

// action 结果（指标 label）
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultStale   = "stale"
)

// State 资源状态；Error 为空表示没有错误
type State[T any] struct {
	Loading bool
	Data    T
	Error   string
}

// Recorder 记录 action 结果（metrics.Metrics 实现该接口）
type Recorder interface {
	StoreAction(store, action, result string)
}

// Options 所有 store 共用的参数
type Options struct {
	// DiscardStale 为 true 时，只接受最近一次 begin 对应的结果
	DiscardStale bool
	Recorder     Recorder
}

type ticket uint64

// Store 可订阅的异步资源状态，只能由所属实例的 action 修改
type Store[T any] struct {
	name string
	opts Options

	mu    sync.Mutex
	state State[T]
	seq   uint64
	// clone 复制 Data 中的 slice/map，Get 返回的状态不与 store 共享内存
	clone func(T) T

	// emitMu 保证监听器串行收到通知且最后一次通知是最新状态
	emitMu    sync.Mutex
	listeners notify.List[State[T]]
}

func newStore[T any](name string, initial T, clone func(T) T, opts Options) *Store[T] {
	return &Store[T]{name: name, opts: opts, clone: clone, state: State[T]{Data: initial}}
}

// Name store 名称
func (s *Store[T]) Name() string { return s.name }

// Get 当前状态的副本，修改返回值不会影响 store
func (s *Store[T]) Get() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if s.clone != nil {
		st.Data = s.clone(st.Data)
	}
	return st
}

// Subscribe 立即用当前状态调用一次 fn，之后每次变化再调用；返回取消订阅函数
//
// 监听器在修改状态的 goroutine 上串行执行，不能在监听器里同步调用本 store 的 action。
func (s *Store[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	fn(s.Get())
	return s.listeners.Add(fn)
}

func (s *Store[T]) notify() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.listeners.Emit(s.Get())
}

// begin 同步进入 loading 并清除旧错误；mutate 可同时修改数据（例如行情的选择）
func (s *Store[T]) begin(mutate func(*T)) ticket {
	s.mu.Lock()
	s.seq++
	t := ticket(s.seq)
	s.state.Loading = true
	s.state.Error = ""
	if mutate != nil {
		mutate(&s.state.Data)
	}
	s.mu.Unlock()

	s.notify()
	return t
}

// settle 结束一次 action；开启 DiscardStale 且不是最新请求时丢弃，返回 false
func (s *Store[T]) settle(t ticket, action string, apply func(*State[T])) bool {
	s.mu.Lock()
	if s.opts.DiscardStale && uint64(t) != s.seq {
		s.mu.Unlock()
		log.WithFields(logrus.Fields{"store": s.name, "action": action}).Debug("丢弃过期响应")
		s.record(action, resultStale)
		return false
	}
	apply(&s.state)
	s.state.Loading = false
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Store[T]) succeed(t ticket, action string, fn func(*T)) bool {
	ok := s.settle(t, action, func(st *State[T]) {
		if fn != nil {
			fn(&st.Data)
		}
	})
	if ok {
		s.record(action, resultSuccess)
	}
	return ok
}

// fail 失败只写 Error，不动 Data
func (s *Store[T]) fail(t ticket, action, msg string) bool {
	if msg == "" {
		msg = UnknownError
	}
	ok := s.settle(t, action, func(st *State[T]) { st.Error = msg })
	if ok {
		log.WithFields(logrus.Fields{"store": s.name, "action": action}).Warnf("action 失败: %s", msg)
		s.record(action, resultFailure)
	}
	return ok
}

func (s *Store[T]) record(action, result string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.StoreAction(s.name, action, result)
	}
}

// Outcome 有副作用的 action 直接返回给调用方的结果
type Outcome struct {
	Success bool
	Error   string
}

// logicalError success=false 时：服务端文本，否则 fallback
func logicalError(serverText, fallback string) string {
	if serverText != "" {
		return serverText
	}
	return fallback
}

// failureMessage 请求失败时：服务端文本 → 错误本身 → UnknownError
func failureMessage(err error) string {
	if msg := sdkhttp.ErrorMessage(err); msg != "" {
		return msg
	}
	return UnknownError
}
