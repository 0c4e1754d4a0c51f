package xpipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	current  atomic.Pointer[Pipeline]
	globalMu sync.Mutex
)

// CreateOrReplace 创建新管道并原子替换进程级管道，旧管道在替换后排空关闭。
// 旧管道关闭失败只记录日志。
func CreateOrReplace(cfg Config, opts ...Option) (*Pipeline, error) {
	p, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	old := current.Swap(p)
	globalMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			p.logger.Warn("previous metering pipeline closed with error", slog.Any("error", err))
		}
	}
	return p, nil
}

// Init 创建进程级管道，已存在时返回 ErrAlreadyInitialized
func Init(cfg Config, opts ...Option) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if current.Load() != nil {
		return ErrAlreadyInitialized
	}
	p, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	current.Store(p)
	return nil
}

// Get 返回进程级管道，未初始化返回 ErrNotInitialized
func Get() (*Pipeline, error) {
	p := current.Load()
	if p == nil {
		return nil, ErrNotInitialized
	}
	return p, nil
}

// Metering 返回进程级管道。未初始化时返回 nil，
// 其 Record/Meter/Flush 返回 ErrNotInitialized。
func Metering() *Pipeline {
	return current.Load()
}

// FlushAndClose 取下并关闭进程级管道，未初始化时返回 nil
func FlushAndClose() error {
	globalMu.Lock()
	p := current.Swap(nil)
	globalMu.Unlock()
	return p.Close()
}

// Handle 由 Acquire 返回，Close 时关闭其创建的进程级管道
type Handle struct {
	p    *Pipeline
	once sync.Once
}

// Acquire 创建或替换进程级管道，返回的 Handle 用于在作用域结束时释放：
//
//	h, err := xpipeline.Acquire(cfg)
//	if err != nil { ... }
//	defer h.Close()
func Acquire(cfg Config, opts ...Option) (*Handle, error) {
	p, err := CreateOrReplace(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Handle{p: p}, nil
}

// Pipeline 返回 Handle 持有的管道
func (h *Handle) Pipeline() *Pipeline {
	return h.p
}

// Close 关闭持有的管道。若它仍是进程级管道则一并取下；已被替换时只保证其关闭。
// 重复调用返回 nil。
func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		globalMu.Lock()
		current.CompareAndSwap(h.p, nil)
		globalMu.Unlock()
		err = h.p.Close()
	})
	return err
}
