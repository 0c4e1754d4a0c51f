package xbatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
	"github.com/omeyang/xmeter/pkg/metering/xsink"
)

var eventTime = time.Date(2026, 5, 7, 9, 30, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEvent(t testing.TB, customer string, seq int) *xevent.Event {
	t.Helper()
	ev, err := xevent.New(context.Background(), "ApiCall").
		SetCustomer(customer, "name-"+customer).
		SetTime(eventTime).
		SetUniqueID(fmt.Sprintf("%s-%d", customer, seq)).
		Build()
	require.NoError(t, err)
	return ev
}

// newBatcher 创建测试 Batcher，测试结束时关闭
func newBatcher(t testing.TB, sink xsink.Sink, opts ...Option) *Batcher {
	t.Helper()
	opts = append([]Option{
		WithLogger(discard),
		WithRetryDelay(time.Millisecond, 2*time.Millisecond),
	}, opts...)
	b, err := New(sink, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() }) //nolint:errcheck // 幂等关闭
	return b
}

func uniqueIDs(events []*xevent.Event) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.UniqueID()
	}
	return ids
}
