package xsink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Writer 将事件以 JSON lines 写入 io.Writer 的诊断 Sink
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewWriter 创建写入 w 的 Sink；Close 不关闭 w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewStdout 创建写入标准输出的 Sink
func NewStdout() *Writer {
	return NewWriter(os.Stdout)
}

// FileConfig 轮转文件配置
type FileConfig struct {
	// Path 文件路径（必需）
	Path string `koanf:"path"`

	// MaxSizeMB 单文件最大大小，默认 100
	MaxSizeMB int `koanf:"maxSizeMB"`

	// MaxBackups 保留备份数，0 表示不限
	MaxBackups int `koanf:"maxBackups"`

	// MaxAgeDays 备份保留天数，0 表示不按天清理
	MaxAgeDays int `koanf:"maxAgeDays"`

	// Compress 是否 gzip 压缩备份
	Compress bool `koanf:"compress"`
}

// DefaultFileMaxSizeMB 单文件默认最大大小
const DefaultFileMaxSizeMB = 100

// NewFile 创建写入轮转文件的 Sink
func NewFile(cfg FileConfig) (*Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: file.path", ErrMissingConfig)
	}
	size := cfg.MaxSizeMB
	if size <= 0 {
		size = DefaultFileMaxSizeMB
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    size,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &Writer{w: lj, closer: lj}, nil
}

// Send 每个事件写一行 JSON
func (s *Writer) Send(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Permanent(ErrClosed)
	}

	bw := bufio.NewWriter(s.w)
	enc := json.NewEncoder(bw)
	for _, ev := range batch.Events {
		if err := enc.Encode(ev); err != nil {
			return Permanent(fmt.Errorf("xsink: encode event %s: %w", ev.UniqueID(), err))
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("xsink: write batch %s: %w", batch.ID, err)
	}
	return nil
}

// Close 关闭底层文件（如有）
func (s *Writer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
