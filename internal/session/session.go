package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/internal/notify"
)

var log = logrus.WithField("component", "session")

// 持久化 key
const (
	TokenKey = "auth_token"
	UserKey  = "user"
)

// KV 持久化存储（secretstore.Store 实现该接口）
//
// 多 key 操作必须是原子的：要么全部可见，要么全部不可见。
type KV interface {
	GetMany(keys ...string) (map[string]string, error)
	SetMany(kv map[string]string) error
	DeleteMany(keys ...string) error
}

// User 当前登录用户
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Manager 会话管理器：唯一持有 token/user 的写入方
//
// 不变量：user 存在当且仅当 token 存在。
type Manager struct {
	kv KV

	mu            sync.Mutex
	invalidations notify.List[events.SessionInvalidatedEvent]

	// OnInvalidate 可选回调（指标）
	OnInvalidate func(reason events.InvalidationReason)
}

// NewManager 创建会话管理器
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// load 一次读事务同时读取 token 和 user，半写状态视为未登录
func (m *Manager) load() (string, *User, bool) {
	vals, err := m.kv.GetMany(TokenKey, UserKey)
	if err != nil {
		log.Errorf("读取会话失败: %v", err)
		return "", nil, false
	}
	token, hasToken := vals[TokenKey]
	rawUser, hasUser := vals[UserKey]
	if !hasToken || token == "" || !hasUser {
		return "", nil, false
	}
	var u User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		log.Warnf("会话 user 解析失败，视为未登录: %v", err)
		return "", nil, false
	}
	return token, &u, true
}

// GetToken 读取 token
func (m *Manager) GetToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, _, ok := m.load()
	return token, ok
}

// GetUser 读取当前用户
func (m *Manager) GetUser() (*User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, u, ok := m.load()
	return u, ok
}

// IsAuthenticated token 存在即为已登录
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.GetToken()
	return ok
}

// SetSession 原子写入 token 和 user
func (m *Manager) SetSession(token string, user User) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token 不能为空")
	}
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("序列化 user 失败: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.kv.SetMany(map[string]string{TokenKey: token, UserKey: string(b)}); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	log.WithField("user", user.Username).Info("会话已建立")
	return nil
}

// ClearSession 原子删除 token 和 user，可重复调用
func (m *Manager) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.kv.DeleteMany(TokenKey, UserKey); err != nil {
		return fmt.Errorf("清除会话失败: %w", err)
	}
	return nil
}

// Invalidate 清除会话并通知订阅方（例如跳转登录页）
//
// 本地清除失败只记录日志，事件照常发出：订阅方需要知道会话已不可用。
func (m *Manager) Invalidate(ev events.SessionInvalidatedEvent) {
	if err := m.ClearSession(); err != nil {
		log.Errorf("会话失效时清除失败: %v", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	log.WithFields(logrus.Fields{
		"reason": ev.Reason,
		"method": ev.Method,
		"path":   ev.Path,
	}).Warn("会话已失效")

	if m.OnInvalidate != nil {
		m.OnInvalidate(ev.Reason)
	}
	m.invalidations.Emit(ev)
}

// OnInvalidated 注册会话失效回调，返回取消注册函数
func (m *Manager) OnInvalidated(fn func(events.SessionInvalidatedEvent)) (remove func()) {
	return m.invalidations.Add(fn)
}
