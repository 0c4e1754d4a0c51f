package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omeyang/xmeter/pkg/metering/xdomain"
)

// ErrEmptyFilename SetRotation 的文件名为空
var ErrEmptyFilename = errors.New("xlog: rotation filename is empty")

// ReplaceAttrFunc 属性替换函数，返回空 Key 的 Attr 表示移除该属性
//
// 典型用法是脱敏 api key：
//
//	func(groups []string, a slog.Attr) slog.Attr {
//	    if a.Key == "api_key" {
//	        return slog.String(a.Key, "***")
//	    }
//	    return a
//	}
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Builder 日志配置构建器
//
// first-error-wins：记录第一个配置错误，由 Build 返回。
type Builder struct {
	output       io.Writer
	levelVar     *slog.LevelVar
	format       string
	addSource    bool
	enableEnrich bool
	domain       xdomain.Domain
	hasDomain    bool
	replaceAttr  ReplaceAttrFunc
	rotator      io.Closer
	onError      func(error)
	err          error
}

// New 创建配置构建器：stderr、Info、text、启用 enrich
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:       os.Stderr,
		levelVar:     levelVar,
		format:       "text",
		enableEnrich: true,
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		b.setErr(errors.New("xlog: output writer is nil"))
		return b
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level slog.Level) *Builder {
	b.levelVar.Set(level)
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值使用 text
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.setErr(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否从 context 中的计量 Scope 注入 customer_id 等字段，默认启用
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enableEnrich = enable
	return b
}

// RotationOption 日志轮转选项
type RotationOption func(*lumberjack.Logger)

// WithMaxSizeMB 单个文件上限（MB）
func WithMaxSizeMB(n int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxSize = n }
}

// WithMaxBackups 保留的旧文件个数
func WithMaxBackups(n int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxBackups = n }
}

// WithMaxAgeDays 旧文件保留天数
func WithMaxAgeDays(n int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxAge = n }
}

// WithCompress 是否 gzip 压缩旧文件
func WithCompress(enable bool) RotationOption {
	return func(l *lumberjack.Logger) { l.Compress = enable }
}

// SetRotation 输出到按大小轮转的文件
//
// 默认 100MB、保留 7 个备份、28 天、压缩。cleanup 负责关闭文件。
func (b *Builder) SetRotation(filename string, opts ...RotationOption) *Builder {
	if strings.TrimSpace(filename) == "" {
		b.setErr(ErrEmptyFilename)
		return b
	}
	rotator := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     28,
		Compress:   true,
		LocalTime:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rotator)
		}
	}
	if rotator.MaxSize <= 0 || rotator.MaxBackups < 0 || rotator.MaxAge < 0 {
		b.setErr(fmt.Errorf("xlog: invalid rotation size=%d backups=%d age=%d",
			rotator.MaxSize, rotator.MaxBackups, rotator.MaxAge))
		return b
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// SetOnError 设置输出端写失败时的回调
//
// 回调在日志调用方的 goroutine 中同步执行，也覆盖 Slog() 的写入。
// 回调内部再次触发日志错误不会递归，回调 panic 被吞掉并计入 WriteFailures。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// SetReplaceAttr 设置属性替换函数
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// SetDomain 把计量域作为固定属性写入每条日志
func (b *Builder) SetDomain(d xdomain.Domain) *Builder {
	if !d.IsValid() {
		b.setErr(fmt.Errorf("xlog: invalid metering domain %q", d))
		return b
	}
	b.domain = d
	b.hasDomain = true
	return b
}

// SetDomainFromProcess 使用进程级计量域 xdomain.Current()
func (b *Builder) SetDomainFromProcess() *Builder {
	return b.SetDomain(xdomain.Current())
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build 构建 Logger
//
// 返回的 cleanup 关闭轮转文件，可重复调用。
func (b *Builder) Build() (*Logger, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.replaceAttr,
	}
	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}

	if b.enableEnrich {
		enriched, err := NewEnrichHandler(handler)
		if err != nil {
			return nil, nil, err
		}
		handler = enriched
	}
	if b.hasDomain {
		handler = handler.WithAttrs([]slog.Attr{slog.String(KeyDomain, b.domain.String())})
	}

	stats := &writeStats{onError: b.onError}
	logger := &Logger{
		handler:   &guardHandler{next: handler, stats: stats},
		level:     b.levelVar,
		stats:     stats,
		addSource: b.addSource,
	}
	return logger, b.createCleanup(), nil
}

func (b *Builder) createCleanup() func() error {
	var once sync.Once
	rotator := b.rotator

	return func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
}
