package xsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Kafka 默认值
const (
	DefaultKafkaAcks         = "all"
	DefaultKafkaFlushTimeout = 10 * time.Second

	// BatchIDHeader 消息头中的批次 ID
	BatchIDHeader = "xmeter-batch-id"
)

// ErrKafkaFlushTimeout 关闭时仍有消息未发送
var ErrKafkaFlushTimeout = errors.New("xsink: kafka flush timeout")

// KafkaConfig Kafka Sink 配置
type KafkaConfig struct {
	// BootstrapServers broker 列表（必需）
	BootstrapServers string `koanf:"bootstrapServers"`

	// Topic 目标 topic（必需）
	Topic string `koanf:"topic"`

	// ClientID 客户端标识
	ClientID string `koanf:"clientId"`

	// Acks 确认级别，默认 "all"
	Acks string `koanf:"acks"`

	// FlushTimeout 关闭时等待未发送消息的时长
	FlushTimeout time.Duration `koanf:"flushTimeout"`
}

// kafkaProducer *kafka.Producer 满足此接口
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Kafka 每个事件一条消息，键为客户或用户 ID
//
// Send 等待本批全部消息的投递报告后返回。
type Kafka struct {
	cfg      KafkaConfig
	producer kafkaProducer

	mu     sync.Mutex
	closed atomic.Bool

	produced atomic.Int64
	failed   atomic.Int64
}

// NewKafka 创建 Kafka Sink
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	cm := &kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapServers,
		"acks":              cfg.Acks,
	}
	if cfg.ClientID != "" {
		if err := cm.SetKey("client.id", cfg.ClientID); err != nil {
			return nil, fmt.Errorf("xsink: kafka config: %w", err)
		}
	}
	p, err := kafka.NewProducer(cm)
	if err != nil {
		return nil, fmt.Errorf("xsink: create kafka producer: %w", err)
	}
	return &Kafka{cfg: cfg, producer: p}, nil
}

func newKafkaWithProducer(cfg KafkaConfig, p kafkaProducer) (*Kafka, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Kafka{cfg: cfg, producer: p}, nil
}

func (c KafkaConfig) withDefaults() (KafkaConfig, error) {
	if c.BootstrapServers == "" {
		return c, fmt.Errorf("%w: kafka.bootstrapServers", ErrMissingConfig)
	}
	if c.Topic == "" {
		return c, fmt.Errorf("%w: kafka.topic", ErrMissingConfig)
	}
	if c.Acks == "" {
		c.Acks = DefaultKafkaAcks
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultKafkaFlushTimeout
	}
	return c, nil
}

// Send 逐事件 Produce 并等待投递报告
func (k *Kafka) Send(ctx context.Context, batch Batch) error {
	if k.closed.Load() {
		return Permanent(ErrClosed)
	}
	if batch.Len() == 0 {
		return nil
	}

	deliveries := make(chan kafka.Event, batch.Len())
	topic := k.cfg.Topic
	var errs []error
	inFlight := 0
	for _, ev := range batch.Events {
		value, err := json.Marshal(ev)
		if err != nil {
			return Permanent(fmt.Errorf("xsink: encode event %s: %w", ev.UniqueID(), err))
		}
		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Key:            []byte(ev.PartitionKey()),
			Value:          value,
			Headers:        []kafka.Header{{Key: BatchIDHeader, Value: []byte(batch.ID)}},
		}
		if err := k.producer.Produce(msg, deliveries); err != nil {
			errs = append(errs, fmt.Errorf("xsink: kafka produce: %w", err))
			break
		}
		inFlight++
	}

	for range inFlight {
		select {
		case e := <-deliveries:
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				errs = append(errs, fmt.Errorf("xsink: kafka delivery: %w", m.TopicPartition.Error))
				k.failed.Add(1)
				continue
			}
			k.produced.Add(1)
		case <-ctx.Done():
			return fmt.Errorf("xsink: kafka delivery: %w", ctx.Err())
		}
	}
	return errors.Join(errs...)
}

// Produced 返回已确认投递的消息数
func (k *Kafka) Produced() int64 {
	return k.produced.Load()
}

// Close 等待未发送消息并关闭 producer
func (k *Kafka) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	remaining := k.producer.Flush(int(k.cfg.FlushTimeout.Milliseconds()))
	k.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("%w: %d messages still in queue", ErrKafkaFlushTimeout, remaining)
	}
	return nil
}
