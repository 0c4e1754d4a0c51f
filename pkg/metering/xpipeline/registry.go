package xpipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xmeter/pkg/metering/xsink"
)

// 内置 Sink 类型
const (
	SinkDirect     = "direct"
	SinkS3         = "s3"
	SinkStdout     = "stdout"
	SinkFile       = "file"
	SinkKafka      = "kafka"
	SinkPulsar     = "pulsar"
	SinkRedis      = "redis"
	SinkMongo      = "mongo"
	SinkClickHouse = "clickhouse"
	SinkMemory     = "memory"
)

// SinkFactory 根据配置创建 Sink
type SinkFactory func(cfg Config, logger *slog.Logger) (xsink.Sink, error)

var (
	registryMu sync.RWMutex
	registry   = builtinSinks()
)

func builtinSinks() map[string]SinkFactory {
	return map[string]SinkFactory{
		SinkDirect: func(cfg Config, logger *slog.Logger) (xsink.Sink, error) {
			return xsink.NewHTTP(xsink.HTTPConfig{
				Endpoint: cfg.Endpoint,
				APIKey:   cfg.APIKey,
				Timeout:  cfg.HTTPTimeout(),
			}, xsink.WithBreakerStateChange(func(name string, from, to gobreaker.State) {
				logger.Warn("ingest circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}))
		},
		SinkS3: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewS3(cfg.S3)
		},
		SinkStdout: func(Config, *slog.Logger) (xsink.Sink, error) {
			return xsink.NewStdout(), nil
		},
		SinkFile: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewFile(cfg.File)
		},
		SinkKafka: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewKafka(cfg.Kafka)
		},
		SinkPulsar: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewPulsar(cfg.Pulsar)
		},
		SinkRedis: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewRedisStream(cfg.Redis)
		},
		SinkMongo: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewMongo(cfg.Mongo)
		},
		SinkClickHouse: func(cfg Config, _ *slog.Logger) (xsink.Sink, error) {
			return xsink.NewClickHouse(cfg.ClickHouse)
		},
		SinkMemory: func(Config, *slog.Logger) (xsink.Sink, error) {
			return xsink.NewMemory(), nil
		},
	}
}

// RegisterSink 注册自定义 Sink 类型，已存在的类型返回 ErrSinkRegistered
func RegisterSink(sinkType string, factory SinkFactory) error {
	if sinkType == "" || factory == nil {
		return fmt.Errorf("%w: empty sink type or nil factory", ErrInvalidConfig)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[sinkType]; ok {
		return fmt.Errorf("%w: %q", ErrSinkRegistered, sinkType)
	}
	registry[sinkType] = factory
	return nil
}

// SinkTypes 返回已注册的 Sink 类型（排序）
func SinkTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func sinkRegistered(sinkType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[sinkType]
	return ok
}

func buildSink(sinkType string, cfg Config, logger *slog.Logger) (xsink.Sink, error) {
	registryMu.RLock()
	factory, ok := registry[sinkType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, sinkType)
	}
	sink, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("xpipeline: create %s sink: %w", sinkType, err)
	}
	return sink, nil
}
