package xsink

import (
	"context"
	"slices"
	"sync"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

// Memory 把批次记录在内存中的诊断 Sink
type Memory struct {
	mu      sync.Mutex
	batches []Batch
	closed  bool
	failN   int
	failErr error
}

// NewMemory 创建内存 Sink
func NewMemory() *Memory {
	return &Memory{}
}

// FailNext 让接下来 n 次 Send 返回 err（测试故障注入）
func (m *Memory) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failN, m.failErr = n, err
}

// Send 记录批次
func (m *Memory) Send(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Permanent(ErrClosed)
	}
	if m.failN > 0 {
		m.failN--
		return m.failErr
	}
	batch.Events = slices.Clone(batch.Events)
	m.batches = append(m.batches, batch)
	return nil
}

// Close 标记关闭
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed 返回是否已关闭
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Batches 返回已记录批次的副本
func (m *Memory) Batches() []Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.batches)
}

// Events 按投递顺序返回全部事件
func (m *Memory) Events() []*xevent.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*xevent.Event
	for _, b := range m.batches {
		out = append(out, b.Events...)
	}
	return out
}

// Sizes 返回各批次大小
func (m *Memory) Sizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batches))
	for i, b := range m.batches {
		out[i] = len(b.Events)
	}
	return out
}

// Reset 清空记录
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = nil
}
