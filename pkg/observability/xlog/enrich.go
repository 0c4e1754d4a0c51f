package xlog

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xmeter/pkg/metering/xscope"
)

// ErrNilHandler 当 NewEnrichHandler 的 base handler 为 nil 时返回
var ErrNilHandler = errors.New("xlog: base handler is nil")

// EnrichHandler 从 context 提取追踪与计量 Scope 信息并注入日志
//
// 装饰 slog.Handler，在 Handle() 时添加：
//   - trace: trace_id, span_id（OpenTelemetry span 有效时）
//   - identity: customer_id 或 user_id
//   - service: service_name, service_call
//
// 缺少的字段不注入。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 创建 EnrichHandler
//
// 对 enrich logger 调用 WithGroup 后，注入的属性会落入该 group。
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

// Enabled 委托给底层 handler
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// maxEnrichAttrs 最大注入属性数量（trace 2 + identity 1 + service 2）
const maxEnrichAttrs = 5

// Handle 注入 Scope 属性后交给底层 handler
//
// 修改前先 Clone record，不影响其他 handler 持有的同一条记录。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf [maxEnrichAttrs]slog.Attr
	attrs := appendTraceAttrs(buf[:0], ctx)
	attrs = appendScopeAttrs(attrs, ctx)

	if len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func appendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return attrs
	}
	return append(attrs,
		slog.String(KeyTraceID, sc.TraceID().String()),
		slog.String(KeySpanID, sc.SpanID().String()),
	)
}

// appendScopeAttrs 追加 ctx 中活跃 Scope 的属性
func appendScopeAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	snap := xscope.Current(ctx)
	if !snap.Active {
		return attrs
	}
	if id := snap.CustomerID(); id != "" {
		attrs = append(attrs, slog.String(KeyCustomerID, id))
	}
	if id := snap.UserID(); id != "" {
		attrs = append(attrs, slog.String(KeyUserID, id))
	}
	if snap.ServiceName != "" {
		attrs = append(attrs, slog.String(KeyServiceName, snap.ServiceName))
	}
	if snap.ServiceCall != "" {
		attrs = append(attrs, slog.String(KeyServiceCall, snap.ServiceCall))
	}
	return attrs
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}
