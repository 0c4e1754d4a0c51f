package xsink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
)

// DefaultPulsarOperationTimeout Pulsar 操作超时
const DefaultPulsarOperationTimeout = 30 * time.Second

// PulsarConfig Pulsar Sink 配置
type PulsarConfig struct {
	// URL 服务地址，如 pulsar://localhost:6650（必需）
	URL string `koanf:"url"`

	// Topic 目标 topic（必需）
	Topic string `koanf:"topic"`

	// OperationTimeout 操作超时，默认 DefaultPulsarOperationTimeout
	OperationTimeout time.Duration `koanf:"operationTimeout"`
}

// pulsarProducer pulsar.Producer 满足此接口
type pulsarProducer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

// Pulsar 每个事件一条消息，键为客户或用户 ID
type Pulsar struct {
	producer pulsarProducer
	client   pulsar.Client
	closed   atomic.Bool
}

// NewPulsar 创建 Pulsar Sink
func NewPulsar(cfg PulsarConfig) (*Pulsar, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: pulsar.url", ErrMissingConfig)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: pulsar.topic", ErrMissingConfig)
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultPulsarOperationTimeout
	}
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:              cfg.URL,
		OperationTimeout: cfg.OperationTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("xsink: create pulsar client: %w", err)
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{Topic: cfg.Topic})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("xsink: create pulsar producer: %w", err)
	}
	return &Pulsar{producer: producer, client: client}, nil
}

// Send 同步发送批次内每个事件
func (p *Pulsar) Send(ctx context.Context, batch Batch) error {
	if p.closed.Load() {
		return Permanent(ErrClosed)
	}
	for _, ev := range batch.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return Permanent(fmt.Errorf("xsink: encode event %s: %w", ev.UniqueID(), err))
		}
		_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
			Payload:    payload,
			Key:        ev.PartitionKey(),
			EventTime:  ev.Time(),
			Properties: map[string]string{BatchIDHeader: batch.ID},
		})
		if err != nil {
			return fmt.Errorf("xsink: pulsar send: %w", err)
		}
	}
	return nil
}

// Close 关闭 producer 与 client
func (p *Pulsar) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.producer.Close()
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
