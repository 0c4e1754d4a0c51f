package xbatch

import "errors"

var (
	// ErrNilSink 未提供 Sink
	ErrNilSink = errors.New("xbatch: nil sink")

	// ErrNilEvent Record 收到 nil 事件
	ErrNilEvent = errors.New("xbatch: nil event")

	// ErrInvalidOption 选项取值非法
	ErrInvalidOption = errors.New("xbatch: invalid option")

	// ErrClosed Batcher 已关闭
	ErrClosed = errors.New("xbatch: closed")

	// ErrQueueFull 异步缓冲区已满
	ErrQueueFull = errors.New("xbatch: queue full")

	// ErrDelivery 批次重试耗尽后投递失败
	ErrDelivery = errors.New("xbatch: delivery failed")

	// ErrShutdownTimeout 关闭超时，仍有事件未投递
	ErrShutdownTimeout = errors.New("xbatch: shutdown timeout")
)
