package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "http")

// DefaultTimeout 每个请求的默认超时
const DefaultTimeout = 10 * time.Second

// TokenSource 提供当前凭证（session.Manager 实现该接口）
type TokenSource interface {
	GetToken() (string, bool)
}

// Observer 请求指标（metrics.Metrics 实现该接口）
type Observer interface {
	ObserveRequest(method, path string, code int, d time.Duration)
	TransportError()
}

// Options 客户端参数
type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	// OnUnauthorized 收到 401 后、错误返回给调用方之前调用
	OnUnauthorized func(method, path string)
	Observer       Observer
	UserAgent      string
}

// Client 请求管道：发送前附加凭证，收到响应后检查 401
type Client struct {
	client         *resty.Client
	tokens         TokenSource
	onUnauthorized func(method, path string)
	observer       Observer
}

func NewClient(opts Options) *Client {
	host := strings.TrimRight(opts.BaseURL, "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "tradesync-client"
	}

	c := &Client{
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		observer:       opts.Observer,
	}

	// 不做自动重试：写操作（start/stop）不是幂等的
	c.client = resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua).
		OnBeforeRequest(c.beforeRequest).
		OnAfterResponse(c.afterResponse).
		OnError(func(r *resty.Request, err error) {
			log.WithFields(logrus.Fields{"method": r.Method, "url": r.URL}).Debugf("请求失败: %v", err)
		})

	return c
}

// beforeRequest 发送前：有 token 就带上，没有 token 直接发送未认证请求
func (c *Client) beforeRequest(_ *resty.Client, r *resty.Request) error {
	if c.tokens != nil {
		if token, ok := c.tokens.GetToken(); ok {
			r.SetHeader("Authorization", "Bearer "+token)
		}
	}
	if r.Header.Get("X-Request-ID") == "" {
		r.SetHeader("X-Request-ID", uuid.NewString())
	}
	return nil
}

// afterResponse 收到响应后：401 触发会话失效，原始响应照常返回给调用方
func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	if resp.StatusCode() != http.StatusUnauthorized {
		return nil
	}
	path := ""
	if raw := resp.Request.RawRequest; raw != nil && raw.URL != nil {
		path = raw.URL.Path
	}
	log.WithFields(logrus.Fields{"method": resp.Request.Method, "path": path}).Warn("收到 401，会话失效")
	if c.onUnauthorized != nil {
		c.onUnauthorized(resp.Request.Method, path)
	}
	return nil
}

// RequestOptions 单次请求参数
type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]any
}

// DoRequest 发送请求并把 2xx 响应体解码到 out
//
// 返回的错误：
//   - *HTTPError：非 2xx（401 时 errors.Is(err, ErrUnauthorized) 为 true）
//   - *TransportError：网络失败、超时、响应体无法解析
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rc := c.client.R().SetContext(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if opt.Params != nil {
			rc.SetQueryParamsFromValues(toValues(opt.Params))
		}
		if opt.Data != nil {
			rc.SetBody(opt.Data)
		}
	}

	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method: %s", method)
	}

	start := time.Now()
	resp, err := rc.Execute(method, endpoint)
	if err != nil {
		if c.observer != nil {
			c.observer.TransportError()
		}
		return &TransportError{Method: method, Path: endpoint, Err: errors.WithStack(err)}
	}
	if c.observer != nil {
		c.observer.ObserveRequest(method, endpoint, resp.StatusCode(), time.Since(start))
	}

	if !resp.IsSuccess() {
		return ParseHTTPError(method, endpoint, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &TransportError{Method: method, Path: endpoint, Err: errors.Wrap(err, "malformed response")}
	}
	return nil
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any, out any) error {
	return c.DoRequest(ctx, http.MethodGet, endpoint, &RequestOptions{Params: params}, out)
}

// Post 发送 POST 请求
func (c *Client) Post(ctx context.Context, endpoint string, body any, out any) error {
	return c.DoRequest(ctx, http.MethodPost, endpoint, &RequestOptions{Data: body}, out)
}

func toValues(m map[string]any) map[string][]string {
	v := make(map[string][]string, len(m))
	for k, val := range m {
		switch t := val.(type) {
		case nil:
			continue
		case []string:
			v[k] = t
		case string:
			if t == "" {
				continue
			}
			v[k] = []string{t}
		default:
			v[k] = []string{fmt.Sprint(val)}
		}
	}
	return v
}
