package xsink

import (
	"context"
	"errors"
	"time"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

// Sink 批次投递目标
type Sink interface {
	// Send 投递一个批次，返回错误表示失败
	Send(ctx context.Context, batch Batch) error

	// Close 释放资源，可重复调用
	Close() error
}

// Batch 一次投递的事件组
type Batch struct {
	// ID 批次 ID，单进程内按形成顺序递增
	ID string

	// Events 批次内事件，同一生产者的事件保持记录顺序
	Events []*xevent.Event

	// CreatedAt 批次形成时刻
	CreatedAt time.Time
}

// Len 返回批次事件数
func (b Batch) Len() int {
	return len(b.Events)
}

// Func 将函数适配为 Sink，Close 为空操作
type Func func(ctx context.Context, batch Batch) error

// Send 调用 f
func (f Func) Send(ctx context.Context, batch Batch) error {
	return f(ctx, batch)
}

// Close 空操作
func (Func) Close() error {
	return nil
}

// =============================================================================
// 错误
// =============================================================================

var (
	// ErrClosed Sink 已关闭
	ErrClosed = errors.New("xsink: closed")

	// ErrEmptyBatch 批次为空
	ErrEmptyBatch = errors.New("xsink: empty batch")

	// ErrMissingConfig 必需配置缺失
	ErrMissingConfig = errors.New("xsink: missing required config")

	// ErrUnexpectedStatus HTTP 响应状态码非 2xx
	ErrUnexpectedStatus = errors.New("xsink: unexpected status")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不应重试的错误，err 为 nil 时返回 nil
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *permanentError
	if errors.As(err, &p) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent 判断错误链中是否有 Permanent 标记
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
