package xpipeline

import (
	"fmt"
	"time"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
	"github.com/omeyang/xmeter/pkg/metering/xsink"
)

// 默认值
const (
	DefaultSinkType                = SinkDirect
	DefaultMaxBatchSize            = 100
	DefaultMaxSecondsBetweenWrites = 5
	DefaultHTTPRetriesCount        = 3
	DefaultHTTPTimeoutSeconds      = 10
)

// Config 管道配置
type Config struct {
	// SinkType 主 Sink 类型，见 SinkTypes
	SinkType string `koanf:"sinkType"`

	// FallbackSinkType 备用 Sink 类型，空表示不启用
	FallbackSinkType string `koanf:"fallbackSinkType"`

	// IsAsync 是否异步投递
	IsAsync bool `koanf:"isAsync"`

	// MaxBatchSize 单批次最大事件数（≥1）
	MaxBatchSize int `koanf:"maxBatchSize"`

	// MaxSecondsBetweenWrites 最早缓冲事件的最长等待秒数（≥0，0 表示逐条投递）
	MaxSecondsBetweenWrites int `koanf:"maxSecondsBetweenWrites"`

	// HTTPRetriesCount 投递失败后的重试次数（≥0）
	HTTPRetriesCount int `koanf:"httpRetriesCount"`

	// HTTPTimeoutSeconds 单次投递超时秒数（>0）
	HTTPTimeoutSeconds int `koanf:"httpTimeoutSeconds"`

	// ServiceName 未设置服务名的事件使用此值
	ServiceName string `koanf:"serviceName"`

	// Region Meter 构建事件时使用的区域，空表示不设置
	Region string `koanf:"region"`

	// APIKey direct Sink 的认证密钥
	APIKey string `koanf:"apiKey"`

	// Endpoint direct Sink 的 ingest 地址
	Endpoint string `koanf:"endpoint"`

	S3         xsink.S3Config         `koanf:"s3"`
	Kafka      xsink.KafkaConfig      `koanf:"kafka"`
	Pulsar     xsink.PulsarConfig     `koanf:"pulsar"`
	Redis      xsink.RedisConfig      `koanf:"redis"`
	Mongo      xsink.MongoConfig      `koanf:"mongo"`
	ClickHouse xsink.ClickHouseConfig `koanf:"clickhouse"`
	File       xsink.FileConfig       `koanf:"file"`
}

// DefaultConfig 返回默认配置。加载配置文件时未出现的字段保留默认值。
func DefaultConfig() Config {
	return Config{
		SinkType:                DefaultSinkType,
		MaxBatchSize:            DefaultMaxBatchSize,
		MaxSecondsBetweenWrites: DefaultMaxSecondsBetweenWrites,
		HTTPRetriesCount:        DefaultHTTPRetriesCount,
		HTTPTimeoutSeconds:      DefaultHTTPTimeoutSeconds,
	}
}

// Validate 检查取值范围与 Sink 类型
func (c Config) Validate() error {
	switch {
	case c.SinkType == "":
		return fmt.Errorf("%w: sinkType is required", ErrInvalidConfig)
	case c.MaxBatchSize < 1:
		return fmt.Errorf("%w: maxBatchSize %d < 1", ErrInvalidConfig, c.MaxBatchSize)
	case c.MaxSecondsBetweenWrites < 0:
		return fmt.Errorf("%w: maxSecondsBetweenWrites %d < 0", ErrInvalidConfig, c.MaxSecondsBetweenWrites)
	case c.HTTPRetriesCount < 0:
		return fmt.Errorf("%w: httpRetriesCount %d < 0", ErrInvalidConfig, c.HTTPRetriesCount)
	case c.HTTPTimeoutSeconds <= 0:
		return fmt.Errorf("%w: httpTimeoutSeconds %d <= 0", ErrInvalidConfig, c.HTTPTimeoutSeconds)
	case c.FallbackSinkType != "" && c.FallbackSinkType == c.SinkType:
		return fmt.Errorf("%w: fallbackSinkType equals sinkType %q", ErrInvalidConfig, c.SinkType)
	}
	if c.Region != "" {
		if _, err := xevent.ParseRegion(c.Region); err != nil {
			return fmt.Errorf("%w: region %q: %w", ErrInvalidConfig, c.Region, err)
		}
	}
	if !sinkRegistered(c.SinkType) {
		return fmt.Errorf("%w: %q", ErrUnknownSink, c.SinkType)
	}
	if c.FallbackSinkType != "" && !sinkRegistered(c.FallbackSinkType) {
		return fmt.Errorf("%w: fallback %q", ErrUnknownSink, c.FallbackSinkType)
	}
	return nil
}

// MaxInterval 返回 MaxSecondsBetweenWrites 对应的时长
func (c Config) MaxInterval() time.Duration {
	return time.Duration(c.MaxSecondsBetweenWrites) * time.Second
}

// HTTPTimeout 返回 HTTPTimeoutSeconds 对应的时长
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
