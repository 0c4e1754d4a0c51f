package xsink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisStream 默认 stream 键
const DefaultRedisStream = "xmeter:events"

// RedisConfig Redis Stream Sink 配置
type RedisConfig struct {
	// Addr 地址，如 localhost:6379（必需）
	Addr string `koanf:"addr"`

	// Password / DB 连接参数
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`

	// Stream stream 键，默认 DefaultRedisStream
	Stream string `koanf:"stream"`

	// MaxLen 近似裁剪长度，0 表示不裁剪
	MaxLen int64 `koanf:"maxLen"`
}

// RedisStream 每个事件一条 XADD，整批在一个事务 pipeline 中提交
type RedisStream struct {
	client     redis.UniversalClient
	stream     string
	maxLen     int64
	ownsClient bool
	closed     atomic.Bool
}

// NewRedisStream 创建 Redis Stream Sink
func NewRedisStream(cfg RedisConfig) (*RedisStream, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis.addr", ErrMissingConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := NewRedisStreamWithClient(client, cfg.Stream, cfg.MaxLen)
	s.ownsClient = true
	return s, nil
}

// NewRedisStreamWithClient 使用已有客户端创建 Sink，Close 不关闭 client
func NewRedisStreamWithClient(client redis.UniversalClient, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultRedisStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Send XADD 批次内每个事件
func (r *RedisStream) Send(ctx context.Context, batch Batch) error {
	if r.closed.Load() {
		return Permanent(ErrClosed)
	}
	if batch.Len() == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	for _, ev := range batch.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return Permanent(fmt.Errorf("xsink: encode event %s: %w", ev.UniqueID(), err))
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			MaxLen: r.maxLen,
			Approx: r.maxLen > 0,
			Values: map[string]any{
				"batch": batch.ID,
				"key":   ev.PartitionKey(),
				"event": payload,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xsink: redis xadd: %w", err)
	}
	return nil
}

// Close 关闭自有客户端
func (r *RedisStream) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}
