package xbatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
	"github.com/omeyang/xmeter/pkg/metering/xsink"
	"github.com/omeyang/xmeter/pkg/observability/xlog"
)

var now = time.Now

// Stats Batcher 运行统计
type Stats struct {
	// Recorded 被接收进缓冲区的事件数
	Recorded uint64

	// Buffered 当前缓冲区事件数
	Buffered int

	// BatchesDelivered 成功投递的批次数
	BatchesDelivered uint64

	// BatchesFailed 重试耗尽后丢弃的批次数
	BatchesFailed uint64

	// EventsDelivered 成功投递的事件数
	EventsDelivered uint64

	// EventsDropped 未投递的事件数（含队列满拒绝）
	EventsDropped uint64
}

type entry struct {
	ev *xevent.Event
	at time.Time
}

// Batcher 并发安全的事件缓冲与批次分发器
type Batcher struct {
	sink    xsink.Sink
	opts    options
	logger  *slog.Logger
	metrics *metrics
	ids     *idGenerator

	mu     sync.Mutex
	buf    []entry
	closed bool

	// 同步模式下串行化切批与投递，保证批次按形成顺序到达 Sink
	deliverMu sync.Mutex

	// 异步模式
	kick     chan struct{}
	flushReq chan chan error
	stop     chan struct{}
	done     chan struct{}

	// 关闭超时时取消在途投递
	runCtx    context.Context
	cancelRun context.CancelFunc

	// 仅由消费者写入，shutdown 在 done 关闭后读取
	stopErrs []error
	drainErr error

	closeOnce sync.Once

	recorded         atomic.Uint64
	batchesDelivered atomic.Uint64
	batchesFailed    atomic.Uint64
	eventsDelivered  atomic.Uint64
	eventsDropped    atomic.Uint64
}

// New 创建 Batcher。异步模式会启动一个消费 goroutine，须调用 Close 释放。
func New(sink xsink.Sink, opts ...Option) (*Batcher, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics(o.meterProvider, o.name)
	if err != nil {
		return nil, err
	}
	ids, err := newIDGenerator()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &Batcher{
		sink:      sink,
		opts:      o,
		logger:    logger.With(slog.String("batcher", o.name)),
		metrics:   m,
		ids:       ids,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	if o.async {
		b.kick = make(chan struct{}, 1)
		b.flushReq = make(chan chan error)
		b.stop = make(chan struct{})
		b.done = make(chan struct{})
		go b.run()
	}
	return b, nil
}

// Async 返回是否为异步模式
func (b *Batcher) Async() bool {
	return b.opts.async
}

// Record 将事件加入缓冲区。
//
// 同步模式下若本次记录触发了投递，调用方阻塞至投递完成，
// 重试耗尽的失败以 ErrDelivery 返回。异步模式只入队。
func (b *Batcher) Record(ctx context.Context, ev *xevent.Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := now()
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.opts.async && len(b.buf) >= b.opts.queueCapacity {
		b.mu.Unlock()
		b.eventsDropped.Add(1)
		b.metrics.eventsDropped(ctx, 1, dropQueueFull)
		return ErrQueueFull
	}
	wasEmpty := len(b.buf) == 0
	b.buf = append(b.buf, entry{ev: ev, at: t})
	triggered := b.triggeredLocked(t)
	b.mu.Unlock()

	b.recorded.Add(1)
	b.metrics.eventRecorded(ctx)

	if b.opts.async {
		// 首个事件需要消费者设置时间触发
		if wasEmpty || triggered {
			b.signal()
		}
		return nil
	}
	if !triggered {
		return nil
	}
	return b.flushSync(ctx, false)
}

// Flush 立即投递缓冲区中的全部事件，返回本次投递的错误。
func (b *Batcher) Flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if !b.opts.async {
		return b.flushSync(ctx, true)
	}

	reply := make(chan error, 1)
	select {
	case b.flushReq <- reply:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 以默认关闭超时执行 Shutdown
func (b *Batcher) Close() error {
	return b.Shutdown(context.Background())
}

// Shutdown 停止接收，投递剩余事件并关闭 Sink。
//
// 等待时间受 ctx 与关闭超时共同约束；超时返回 ErrShutdownTimeout。
// 只有第一次调用返回关闭过程中的错误，之后的调用返回 nil。
func (b *Batcher) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	b.closeOnce.Do(func() {
		err = b.shutdown(ctx)
	})
	return err
}

// Len 返回当前缓冲的事件数
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Stats 返回运行统计快照
func (b *Batcher) Stats() Stats {
	return Stats{
		Recorded:         b.recorded.Load(),
		Buffered:         b.Len(),
		BatchesDelivered: b.batchesDelivered.Load(),
		BatchesFailed:    b.batchesFailed.Load(),
		EventsDelivered:  b.eventsDelivered.Load(),
		EventsDropped:    b.eventsDropped.Load(),
	}
}

// =============================================================================
// 切批
// =============================================================================

// chunkSize MaxInterval 为 0 时每个事件单独成批
func (b *Batcher) chunkSize() int {
	if b.opts.maxInterval == 0 {
		return 1
	}
	return b.opts.maxBatchSize
}

func (b *Batcher) triggeredLocked(t time.Time) bool {
	n := len(b.buf)
	if n == 0 {
		return false
	}
	if n >= b.chunkSize() {
		return true
	}
	return t.Sub(b.buf[0].at) >= b.opts.maxInterval
}

// cut 从缓冲区头部切出批次。all 为 false 时只切满足触发条件的部分。
func (b *Batcher) cut(t time.Time, all bool) []xsink.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	var batches []xsink.Batch
	size := b.chunkSize()
	for len(b.buf) > 0 && (all || b.triggeredLocked(t)) {
		k := min(size, len(b.buf))
		events := make([]*xevent.Event, k)
		for i := range k {
			events[i] = b.buf[i].ev
		}
		n := copy(b.buf, b.buf[k:])
		clear(b.buf[n:])
		b.buf = b.buf[:n]

		batches = append(batches, xsink.Batch{
			ID:        b.ids.NewID(),
			Events:    events,
			CreatedAt: t,
		})
	}
	return batches
}

// =============================================================================
// 投递
// =============================================================================

// deliver 带重试地投递一个批次
func (b *Batcher) deliver(ctx context.Context, batch xsink.Batch) error {
	start := time.Now()
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(b.opts.retries)+1),
		retry.DelayType(b.backoff),
		retry.RetryIf(func(err error) bool {
			return !xsink.IsPermanent(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			// n 从 0 开始，最后一次失败由下方的 "batch dropped" 记录
			if int(n) >= b.opts.retries {
				return
			}
			b.logger.Warn("batch delivery attempt failed, retrying",
				xlog.BatchID(batch.ID),
				slog.Uint64("attempt", uint64(n)+1),
				xlog.Err(err),
			)
		}),
		retry.LastErrorOnly(true),
	).Do(func() error {
		sendCtx, cancel := context.WithTimeout(ctx, b.opts.sendTimeout)
		defer cancel()
		return b.sink.Send(sendCtx, batch)
	})
	elapsed := time.Since(start)

	b.metrics.batchDone(context.WithoutCancel(ctx), batch.Len(), elapsed, err)
	if err != nil {
		b.batchesFailed.Add(1)
		b.eventsDropped.Add(uint64(batch.Len()))
		b.logger.Error("batch dropped",
			xlog.BatchID(batch.ID),
			slog.Int("events", batch.Len()),
			xlog.Err(err),
		)
		return fmt.Errorf("%w: batch %s (%d events): %w", ErrDelivery, batch.ID, batch.Len(), err)
	}
	b.batchesDelivered.Add(1)
	b.eventsDelivered.Add(uint64(batch.Len()))
	b.logger.Debug("batch delivered",
		xlog.BatchID(batch.ID),
		slog.Int("events", batch.Len()),
		xlog.Duration(elapsed),
	)
	return nil
}

// backoff 指数退避，n 从 1 开始
func (b *Batcher) backoff(n uint, _ error, _ retry.DelayContext) time.Duration {
	d := b.opts.retryDelay
	for i := uint(1); i < n; i++ {
		d *= 2
		if d >= b.opts.maxRetryDelay {
			return b.opts.maxRetryDelay
		}
	}
	return min(d, b.opts.maxRetryDelay)
}

// deliverAll 顺序投递，返回全部失败
func (b *Batcher) deliverAll(ctx context.Context, batches []xsink.Batch) error {
	var errs []error
	for _, batch := range batches {
		if err := b.deliver(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flushSync 同步模式投递；关闭超时会取消其中的在途投递
func (b *Batcher) flushSync(ctx context.Context, all bool) error {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.runCtx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	return b.deliverAll(ctx, b.cut(now(), all))
}

// drain 投递剩余全部事件。ctx 结束后剩余批次直接计为丢弃。
func (b *Batcher) drain(ctx context.Context) error {
	var errs []error
	for _, batch := range b.cut(now(), true) {
		if ctx.Err() != nil {
			b.eventsDropped.Add(uint64(batch.Len()))
			b.metrics.eventsDropped(context.WithoutCancel(ctx), batch.Len(), dropShutdown)
			continue
		}
		if err := b.deliver(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// 异步消费者
// =============================================================================

func (b *Batcher) signal() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *Batcher) run() {
	defer close(b.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	var timerC <-chan time.Time
	for {
		select {
		case <-b.kick:
			b.deliverTriggered()
		case <-timerC:
			b.deliverTriggered()
		case reply := <-b.flushReq:
			reply <- b.deliverAll(b.runCtx, b.cut(now(), true))
		case <-b.stop:
			b.drainErr = errors.Join(append(b.stopErrs, b.drain(b.runCtx))...)
			return
		}
		timerC = b.rearm(timer)
	}
}

// deliverTriggered 投递触发的批次。失败已记录日志与指标；
// 若此时关闭已开始，失败另行保留给 shutdown 返回。
func (b *Batcher) deliverTriggered() {
	err := b.deliverAll(b.runCtx, b.cut(now(), false))
	if err != nil && b.stopping() {
		b.stopErrs = append(b.stopErrs, err)
	}
}

func (b *Batcher) stopping() bool {
	select {
	case <-b.stop:
		return true
	default:
		return false
	}
}

// rearm 按最早缓冲事件设置时间触发
func (b *Batcher) rearm(timer *time.Timer) <-chan time.Time {
	if b.opts.maxInterval == 0 {
		return nil
	}
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		timer.Stop()
		return nil
	}
	deadline := b.buf[0].at.Add(b.opts.maxInterval)
	b.mu.Unlock()

	timer.Reset(deadline.Sub(now()))
	return timer.C
}

// =============================================================================
// 关闭
// =============================================================================

func (b *Batcher) shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	// 关闭开始后丢弃的事件（含在途批次）都计入 undelivered
	droppedBefore := b.eventsDropped.Load()

	ctx, cancel := context.WithTimeout(ctx, b.opts.closeTimeout)
	defer cancel()

	var derr error
	if b.opts.async {
		close(b.stop)
		select {
		case <-b.done:
		case <-ctx.Done():
			b.cancelRun()
			<-b.done
		}
		derr = b.drainErr
	} else {
		acquired := make(chan struct{})
		go func() {
			b.deliverMu.Lock()
			close(acquired)
		}()
		select {
		case <-acquired:
		case <-ctx.Done():
			b.cancelRun()
			<-acquired
		}
		derr = b.drain(ctx)
		b.deliverMu.Unlock()
	}
	b.cancelRun()
	undelivered := int(b.eventsDropped.Load() - droppedBefore)

	var errs []error
	switch {
	case undelivered > 0 && ctx.Err() != nil:
		b.logger.Error("shutdown timed out",
			slog.Int("undelivered", undelivered),
			slog.Duration("close_timeout", b.opts.closeTimeout),
		)
		errs = append(errs, fmt.Errorf("%w: %d events undelivered", ErrShutdownTimeout, undelivered))
	case derr != nil:
		errs = append(errs, derr)
	}
	if err := b.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("xbatch: close sink: %w", err))
	}
	return errors.Join(errs...)
}
