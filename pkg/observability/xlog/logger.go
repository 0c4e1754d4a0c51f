package xlog

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// Logger 计量进程的日志出口
//
// 方法都要求 ctx，EnrichHandler 借此注入 Scope 与 trace 字段。
// 同一次 Build 派生出的 Logger 与 Slog() 共享级别和写失败计数。
type Logger struct {
	handler   slog.Handler
	level     *slog.LevelVar
	stats     *writeStats
	addSource bool
}

// Debug 记录 Debug 级别日志
func (l *Logger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, msg, attrs)
}

// Info 记录 Info 级别日志
func (l *Logger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 记录 Warn 级别日志
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelWarn, msg, attrs)
}

// Error 记录 Error 级别日志
func (l *Logger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelError, msg, attrs)
}

// log 跳过 runtime.Callers、log 与导出方法三帧
//
//go:noinline
func (l *Logger) log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pc uintptr
	if l.addSource {
		var pcs [1]uintptr
		runtime.Callers(3, pcs[:])
		pc = pcs[0]
	}
	r := slog.NewRecord(time.Now(), level, msg, pc)
	r.AddAttrs(attrs...)
	_ = l.handler.Handle(ctx, r) //nolint:errcheck // 失败已由 guardHandler 计数
}

// With 返回带固定属性的派生 Logger
func (l *Logger) With(attrs ...slog.Attr) *Logger {
	if len(attrs) == 0 {
		return l
	}
	child := *l
	child.handler = l.handler.WithAttrs(attrs)
	return &child
}

// SetLevel 动态调整级别，对派生 Logger 与 Slog() 同时生效
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Level 当前级别
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Enabled 构造昂贵属性前先检查级别
func (l *Logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.handler.Enabled(ctx, level)
}

// Slog 返回同一 handler 之上的 *slog.Logger，交给 xbatch、xpipeline 等组件
func (l *Logger) Slog() *slog.Logger {
	return slog.New(l.handler)
}

// WriteFailures 输出端写失败的累计次数（含 onError 回调 panic）
func (l *Logger) WriteFailures() uint64 {
	return l.stats.failures.Load()
}

// writeStats 在同一次 Build 派生的 handler 间共享
type writeStats struct {
	failures   atomic.Uint64
	onError    func(error)
	inCallback atomic.Bool
}

// record 计数并回调；回调同一时刻最多执行一个，并发期间的其余失败只计数
func (s *writeStats) record(err error) {
	s.failures.Add(1)
	if s.onError == nil || !s.inCallback.CompareAndSwap(false, true) {
		return
	}
	defer s.inCallback.Store(false)
	defer func() {
		if recover() != nil {
			s.failures.Add(1)
		}
	}()
	s.onError(err)
}

// guardHandler 统计下游写失败；*slog.Logger 会丢弃 Handle 的返回值
type guardHandler struct {
	next  slog.Handler
	stats *writeStats
}

func (h *guardHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *guardHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)
	if err != nil {
		h.stats.record(err)
	}
	return err
}

func (h *guardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &guardHandler{next: h.next.WithAttrs(attrs), stats: h.stats}
}

func (h *guardHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &guardHandler{next: h.next.WithGroup(name), stats: h.stats}
}
