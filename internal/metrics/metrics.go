package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 请求管道与资源 store 的指标
//
// 每个实例使用独立的 registry，测试里可以并行构造多个实例而不冲突。
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	unauthorized     prometheus.Counter
	transportErrors  prometheus.Counter
	storeActions     *prometheus.CounterVec
	sessionsInvalids *prometheus.CounterVec
}

// New 创建并注册所有指标
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesync_http_requests_total",
				Help: "Outbound requests by method, path and status code",
			},
			[]string{"method", "path", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesync_http_request_duration_seconds",
				Help:    "Outbound request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesync_unauthorized_total",
			Help: "Responses rejected with 401",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesync_transport_errors_total",
			Help: "Requests that failed before a response was received",
		}),
		storeActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesync_store_actions_total",
				Help: "Store actions by store, action and result (success|failure|stale)",
			},
			[]string{"store", "action", "result"},
		),
		sessionsInvalids: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesync_session_invalidations_total",
				Help: "Session invalidations by reason",
			},
			[]string{"reason"},
		),
	}
	m.Registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.unauthorized,
		m.transportErrors,
		m.storeActions,
		m.sessionsInvalids,
	)
	return m
}

// ObserveRequest 记录一次已收到响应的请求
func (m *Metrics) ObserveRequest(method, path string, code int, d time.Duration) {
	if m == nil {
		return
	}
	route := routeLabel(path)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
	if code == 401 {
		m.unauthorized.Inc()
	}
}

// routeLabel 把带参数的路径折叠成路由模板，path label 的取值集合保持固定
func routeLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, "/market/") {
		return "/market/:symbol"
	}
	return path
}

// TransportError 记录一次传输层失败（网络、超时）
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

// StoreAction 记录一次 store action 的结算结果
func (m *Metrics) StoreAction(store, action, result string) {
	if m == nil {
		return
	}
	m.storeActions.WithLabelValues(store, action, result).Inc()
}

// SessionInvalidated 记录一次会话失效
func (m *Metrics) SessionInvalidated(reason string) {
	if m == nil {
		return
	}
	m.sessionsInvalids.WithLabelValues(reason).Inc()
}
