package xtemplate

import (
	"context"
	"time"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

// Recorder 记录已构建的事件
type Recorder interface {
	Record(ctx context.Context, ev *xevent.Event) error
}

// RecorderFunc 将函数适配为 Recorder
type RecorderFunc func(ctx context.Context, ev *xevent.Event) error

// Record 调用 f
func (f RecorderFunc) Record(ctx context.Context, ev *xevent.Event) error {
	return f(ctx, ev)
}

// record 补全公共字段后构建并记录
func record(ctx context.Context, r Recorder, b *xevent.Builder, customerID string, t time.Time) error {
	if customerID != "" {
		b.SetCustomerID(customerID)
	}
	if !t.IsZero() {
		b.SetTime(t)
	}
	ev, err := b.Build()
	if err != nil {
		return err
	}
	return r.Record(ctx, ev)
}
