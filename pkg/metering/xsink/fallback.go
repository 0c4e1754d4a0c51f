package xsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/omeyang/xmeter/pkg/observability/xlog"
)

// FallbackSink 主 Sink 失败时写入备 Sink
//
// 两者都失败时返回合并错误；仅当两者都是永久失败时结果才是永久失败。
type FallbackSink struct {
	primary   Sink
	secondary Sink
	logger    *slog.Logger
}

// Fallback 组合主备 Sink，logger 为 nil 时使用 slog.Default()
func Fallback(primary, secondary Sink, logger *slog.Logger) *FallbackSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSink{primary: primary, secondary: secondary, logger: logger}
}

// Send 先写主 Sink，失败后写备 Sink
func (f *FallbackSink) Send(ctx context.Context, batch Batch) error {
	perr := f.primary.Send(ctx, batch)
	if perr == nil {
		return nil
	}
	f.logger.WarnContext(ctx, "primary sink failed, using fallback",
		xlog.Sink(fmt.Sprintf("%T", f.primary)),
		xlog.BatchID(batch.ID),
		slog.Int("events", batch.Len()),
		xlog.Err(perr))

	serr := f.secondary.Send(ctx, batch)
	if serr == nil {
		return nil
	}
	switch {
	case IsPermanent(perr) && IsPermanent(serr):
		return Permanent(fmt.Errorf("xsink: fallback: %w", errors.Join(perr, serr)))
	case IsPermanent(serr):
		// 只保留可重试的一侧在错误链中
		return fmt.Errorf("xsink: fallback: secondary: %v: %w", serr, perr)
	default:
		return fmt.Errorf("xsink: fallback: primary: %v: %w", perr, serr)
	}
}

// Close 关闭两个 Sink
func (f *FallbackSink) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
