package xsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HTTP 默认值
const (
	DefaultHTTPTimeout         = 10 * time.Second
	DefaultBreakerFailures     = 5
	DefaultBreakerOpenDuration = 30 * time.Second

	// APIKeyHeader ingest 认证头
	APIKeyHeader = "X-API-Key"
)

// HTTPConfig 直连 ingest 接口配置
type HTTPConfig struct {
	// Endpoint ingest URL（必需）
	Endpoint string `koanf:"endpoint"`

	// APIKey 放入 X-API-Key 头（必需）
	APIKey string `koanf:"apiKey"`

	// Timeout 单次请求超时，默认 DefaultHTTPTimeout
	Timeout time.Duration `koanf:"timeout"`

	// BreakerFailures 连续失败多少次后熔断，默认 DefaultBreakerFailures
	BreakerFailures uint32 `koanf:"breakerFailures"`

	// BreakerOpenDuration 熔断后多久进入半开，默认 DefaultBreakerOpenDuration
	BreakerOpenDuration time.Duration `koanf:"breakerOpenDuration"`
}

// HTTPOption HTTP Sink 选项
type HTTPOption func(*HTTP)

// WithHTTPClient 使用自定义 *http.Client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithBreakerStateChange 设置熔断状态变化回调
func WithBreakerStateChange(fn func(name string, from, to gobreaker.State)) HTTPOption {
	return func(h *HTTP) {
		h.onStateChange = fn
	}
}

// HTTP 将批次以 JSON 数组 POST 到 ingest 接口
//
// 4xx（408/429 除外）视为永久失败，不计入熔断统计。
type HTTP struct {
	cfg           HTTPConfig
	client        *http.Client
	cb            *gobreaker.CircuitBreaker[struct{}]
	onStateChange func(name string, from, to gobreaker.State)
	closed        atomic.Bool
}

// NewHTTP 创建 HTTP Sink
func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (*HTTP, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint", ErrMissingConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: apiKey", ErrMissingConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerOpenDuration <= 0 {
		cfg.BreakerOpenDuration = DefaultBreakerOpenDuration
	}

	h := &HTTP{cfg: cfg}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{}
	}

	failures := cfg.BreakerFailures
	h.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "xmeter-http-sink",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDuration,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: h.onStateChange,
	})
	return h, nil
}

// State 返回熔断器状态
func (h *HTTP) State() gobreaker.State {
	return h.cb.State()
}

// Send POST 批次
func (h *HTTP) Send(ctx context.Context, batch Batch) error {
	if h.closed.Load() {
		return Permanent(ErrClosed)
	}
	if batch.Len() == 0 {
		return nil
	}
	body, err := json.Marshal(batch.Events)
	if err != nil {
		return Permanent(fmt.Errorf("xsink: encode batch %s: %w", batch.ID, err))
	}
	_, err = h.cb.Execute(func() (struct{}, error) {
		return struct{}{}, h.post(ctx, body)
	})
	return err
}

func (h *HTTP) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("xsink: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, h.cfg.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("xsink: post: %w", err)
	}
	defer resp.Body.Close()
	// 读完 body 以复用连接
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err = fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(msg))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}

// Close 标记关闭并释放空闲连接
func (h *HTTP) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.client.CloseIdleConnections()
	}
	return nil
}
