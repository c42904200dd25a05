package events

import "time"

// InvalidationReason 会话失效原因
type InvalidationReason string

const (
	// ReasonUnauthorized 服务端返回 401（token 缺失/过期/无效）
	ReasonUnauthorized InvalidationReason = "unauthorized"
	// ReasonLogout 用户主动登出
	ReasonLogout InvalidationReason = "logout"
	// ReasonCleared 显式清除
	ReasonCleared InvalidationReason = "cleared"
)

// SessionInvalidatedEvent 会话失效事件
//
// 数据层只负责发出该事件，跳转登录页由订阅方（UI/路由）完成。
type SessionInvalidatedEvent struct {
	Reason    InvalidationReason
	Method    string // 触发失效的请求（仅 unauthorized 时有值）
	Path      string
	Timestamp time.Time
}
