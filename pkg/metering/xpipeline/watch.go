package xpipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 文件变更防抖时间
const DefaultDebounce = 100 * time.Millisecond

// ReloadCallback 重载完成回调，err 非 nil 时进程级管道保持不变
type ReloadCallback func(p *Pipeline, err error)

type watchOptions struct {
	debounce time.Duration
	callback ReloadCallback
	pipeOpts []Option
	logger   *slog.Logger
}

// WatchOption 配置 Watcher
type WatchOption func(*watchOptions)

// WithDebounce 设置防抖时间，窗口内的多次变更只触发一次重载
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithReloadCallback 设置重载回调
func WithReloadCallback(fn ReloadCallback) WatchOption {
	return func(o *watchOptions) {
		o.callback = fn
	}
}

// WithPipelineOptions 设置重建管道时使用的选项
func WithPipelineOptions(opts ...Option) WatchOption {
	return func(o *watchOptions) {
		o.pipeOpts = append(o.pipeOpts, opts...)
	}
}

// WithWatchLogger 设置 Watcher 日志记录器
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(o *watchOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Watcher 监视配置文件，变更时重新加载并替换进程级管道
type Watcher struct {
	path    string
	opts    watchOptions
	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// Watch 开始监视 path。监视的是所在目录，以覆盖编辑器先删除再创建、
// 或写临时文件后 rename 的保存方式。调用方负责 Stop。
func Watch(path string, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if _, err := detectFormat(path); err != nil {
		return nil, err
	}

	o := watchOptions{debounce: DefaultDebounce, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xpipeline: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(
			fmt.Errorf("xpipeline: watch directory %s: %w", dir, err),
			fsw.Close(),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:    path,
		opts:    o,
		watcher: fsw,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Stop 停止监视，可重复调用
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	filename := filepath.Base(w.path)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filename {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.logger.Warn("metering config watch error", slog.Any("error", err))
		}
	}
}

// schedule 重置防抖定时器
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.debounce, w.reload)
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	p, err := w.apply()
	if err != nil {
		w.opts.logger.Error("metering config reload failed",
			slog.String("path", w.path),
			slog.Any("error", err),
		)
	} else {
		w.opts.logger.Info("metering config reloaded", slog.String("path", w.path))
	}
	if w.opts.callback != nil {
		w.opts.callback(p, err)
	}
}

func (w *Watcher) apply() (*Pipeline, error) {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return nil, err
	}
	return CreateOrReplace(cfg, w.opts.pipeOpts...)
}
