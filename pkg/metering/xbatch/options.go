package xbatch

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// 默认值
const (
	DefaultMaxBatchSize  = 100
	DefaultMaxInterval   = 5 * time.Second
	DefaultRetries       = 3
	DefaultRetryDelay    = 200 * time.Millisecond
	DefaultMaxRetryDelay = 5 * time.Second
	DefaultSendTimeout   = 10 * time.Second
	DefaultQueueCapacity = 10000
	DefaultCloseTimeout  = 30 * time.Second
	DefaultName          = "default"
)

type options struct {
	async         bool
	maxBatchSize  int
	maxInterval   time.Duration
	retries       int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	sendTimeout   time.Duration
	queueCapacity int
	closeTimeout  time.Duration
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	name          string
}

func defaultOptions() options {
	return options{
		maxBatchSize:  DefaultMaxBatchSize,
		maxInterval:   DefaultMaxInterval,
		retries:       DefaultRetries,
		retryDelay:    DefaultRetryDelay,
		maxRetryDelay: DefaultMaxRetryDelay,
		sendTimeout:   DefaultSendTimeout,
		queueCapacity: DefaultQueueCapacity,
		closeTimeout:  DefaultCloseTimeout,
		name:          DefaultName,
	}
}

func (o *options) validate() error {
	switch {
	case o.maxBatchSize < 1:
		return fmt.Errorf("%w: max batch size %d < 1", ErrInvalidOption, o.maxBatchSize)
	case o.maxInterval < 0:
		return fmt.Errorf("%w: max interval %s < 0", ErrInvalidOption, o.maxInterval)
	case o.retries < 0:
		return fmt.Errorf("%w: retries %d < 0", ErrInvalidOption, o.retries)
	case o.retryDelay < 0:
		return fmt.Errorf("%w: retry delay %s < 0", ErrInvalidOption, o.retryDelay)
	case o.sendTimeout <= 0:
		return fmt.Errorf("%w: send timeout %s <= 0", ErrInvalidOption, o.sendTimeout)
	case o.async && o.queueCapacity < o.maxBatchSize:
		return fmt.Errorf("%w: queue capacity %d < max batch size %d",
			ErrInvalidOption, o.queueCapacity, o.maxBatchSize)
	case o.closeTimeout <= 0:
		return fmt.Errorf("%w: close timeout %s <= 0", ErrInvalidOption, o.closeTimeout)
	}
	return nil
}

// Option 配置 Batcher
type Option func(*options)

// WithAsync 启用异步投递
func WithAsync(async bool) Option {
	return func(o *options) {
		o.async = async
	}
}

// WithMaxBatchSize 设置单批次最大事件数（≥1）
func WithMaxBatchSize(n int) Option {
	return func(o *options) {
		o.maxBatchSize = n
	}
}

// WithMaxInterval 设置最早缓冲事件的最长等待时间。
// 0 表示每个事件单独成批并立即投递。
func WithMaxInterval(d time.Duration) Option {
	return func(o *options) {
		o.maxInterval = d
	}
}

// WithRetries 设置投递失败后的重试次数（≥0）
func WithRetries(n int) Option {
	return func(o *options) {
		o.retries = n
	}
}

// WithRetryDelay 设置首次重试的退避时间与退避上限
func WithRetryDelay(initial, maxDelay time.Duration) Option {
	return func(o *options) {
		o.retryDelay = initial
		if maxDelay > 0 {
			o.maxRetryDelay = maxDelay
		}
	}
}

// WithSendTimeout 设置单次投递尝试的超时
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		o.sendTimeout = d
	}
}

// WithQueueCapacity 设置异步模式缓冲区容量
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		o.queueCapacity = n
	}
}

// WithCloseTimeout 设置关闭时等待在途投递的上限
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		o.closeTimeout = d
	}
}

// WithLogger 设置日志记录器，nil 使用 slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider 设置 MeterProvider，nil 使用全局 provider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithName 设置 Batcher 名称，用于日志与指标属性
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
