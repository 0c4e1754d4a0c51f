package xpipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xmeter/pkg/metering/xbatch"
	"github.com/omeyang/xmeter/pkg/metering/xevent"
	"github.com/omeyang/xmeter/pkg/metering/xsink"
)

// Option 配置 Pipeline
type Option func(*options)

type options struct {
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	sink          xsink.Sink
	closeTimeout  time.Duration
}

// WithLogger 设置日志记录器
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider 设置 Batcher 指标使用的 MeterProvider
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithSink 使用给定 Sink，忽略 sinkType 与 fallbackSinkType
func WithSink(s xsink.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithCloseTimeout 设置关闭时等待在途投递的上限
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		o.closeTimeout = d
	}
}

// Pipeline 一条完整的计量管道
type Pipeline struct {
	cfg     Config
	region  xevent.Region
	batcher *xbatch.Batcher
	logger  *slog.Logger
}

// New 按配置创建 Sink 与 Batcher
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With(slog.String("component", "xpipeline"))

	var region xevent.Region
	if cfg.Region != "" {
		region, _ = xevent.ParseRegion(cfg.Region) //nolint:errcheck // Validate 已检查
	}

	sink := o.sink
	if sink == nil {
		var err error
		if sink, err = newSink(cfg, logger); err != nil {
			return nil, err
		}
	}

	name := cfg.ServiceName
	if name == "" {
		name = cfg.SinkType
	}
	batchOpts := []xbatch.Option{
		xbatch.WithName(name),
		xbatch.WithAsync(cfg.IsAsync),
		xbatch.WithMaxBatchSize(cfg.MaxBatchSize),
		xbatch.WithMaxInterval(cfg.MaxInterval()),
		xbatch.WithRetries(cfg.HTTPRetriesCount),
		xbatch.WithSendTimeout(cfg.HTTPTimeout()),
		xbatch.WithLogger(o.logger),
		xbatch.WithMeterProvider(o.meterProvider),
	}
	if o.closeTimeout > 0 {
		batchOpts = append(batchOpts, xbatch.WithCloseTimeout(o.closeTimeout))
	}
	if cfg.MaxBatchSize > xbatch.DefaultQueueCapacity {
		batchOpts = append(batchOpts, xbatch.WithQueueCapacity(cfg.MaxBatchSize*2))
	}

	b, err := xbatch.New(sink, batchOpts...)
	if err != nil {
		return nil, errors.Join(err, sink.Close())
	}

	logger.Info("metering pipeline created",
		slog.String("sink_type", cfg.SinkType),
		slog.String("fallback_sink_type", cfg.FallbackSinkType),
		slog.Bool("async", cfg.IsAsync),
		slog.Int("max_batch_size", cfg.MaxBatchSize),
		slog.Int("max_seconds_between_writes", cfg.MaxSecondsBetweenWrites),
	)
	return &Pipeline{cfg: cfg, region: region, batcher: b, logger: logger}, nil
}

// newSink 创建主 Sink，配置了备用类型时组合为 Fallback
func newSink(cfg Config, logger *slog.Logger) (xsink.Sink, error) {
	primary, err := buildSink(cfg.SinkType, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackSinkType == "" {
		return primary, nil
	}
	secondary, err := buildSink(cfg.FallbackSinkType, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, primary.Close())
	}
	return xsink.Fallback(primary, secondary, logger), nil
}

// Config 返回管道配置
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Record 记录事件。未设置服务名的事件使用配置中的 serviceName。
// nil Pipeline 返回 ErrNotInitialized。
func (p *Pipeline) Record(ctx context.Context, ev *xevent.Event) error {
	if p == nil {
		return ErrNotInitialized
	}
	if ev == nil {
		return xbatch.ErrNilEvent
	}
	return p.batcher.Record(ctx, ev.WithServiceName(p.cfg.ServiceName))
}

// Meter 构建并记录一个事件。customerID 与 customerName 均为空时从当前 Scope 继承身份，
// t 为零值时使用当前时间，dims 可为 nil。
func (p *Pipeline) Meter(ctx context.Context, customerName, customerID, meterName string,
	value float64, t time.Time, dims map[string]string,
) error {
	if p == nil {
		return ErrNotInitialized
	}
	b := xevent.New(ctx, meterName).
		SetValue(value).
		SetDimensions(dims)
	if !t.IsZero() {
		b.SetTime(t)
	}
	if customerID != "" || customerName != "" {
		b.SetCustomer(customerID, customerName)
	}
	if p.region != "" {
		b.SetRegion(p.region)
	}
	ev, err := b.Build()
	if err != nil {
		return err
	}
	return p.Record(ctx, ev)
}

// Flush 立即投递缓冲的事件
func (p *Pipeline) Flush(ctx context.Context) error {
	if p == nil {
		return ErrNotInitialized
	}
	return p.batcher.Flush(ctx)
}

// Close 投递剩余事件并释放 Sink，可重复调用
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	return p.batcher.Close()
}

// Shutdown 同 Close，等待时间另受 ctx 约束
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.batcher.Shutdown(ctx)
}

// Stats 返回 Batcher 运行统计
func (p *Pipeline) Stats() xbatch.Stats {
	if p == nil {
		return xbatch.Stats{}
	}
	return p.batcher.Stats()
}
