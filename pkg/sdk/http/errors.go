package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// ErrUnauthorized 服务端拒绝凭证（401）
var ErrUnauthorized = errors.New("unauthorized")

// HTTPError 非 2xx 响应
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string // 服务端返回的 error 文本（如有）
	Body    []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed with status code %d", e.Status)
}

// Is 让 errors.Is(err, ErrUnauthorized) 只对 401 成立
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TransportError 没有拿到可用响应：网络不可达、超时、响应体无法解析
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseHTTPError 把非 2xx 响应转换为 *HTTPError，尽量提取服务端的 error 文本
func ParseHTTPError(method, path string, resp *resty.Response) error {
	body := resp.Body()
	return &HTTPError{
		Method:  method,
		Path:    path,
		Status:  resp.StatusCode(),
		Message: serverMessage(body),
		Body:    body,
	}
}

func serverMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(payload.Message)
}

// IsUnauthorized 是否为 401
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTransport 是否为传输层失败
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrorMessage 给用户看的错误文本：服务端文本优先，其次是错误本身的描述
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Error()
	}
	return err.Error()
}
