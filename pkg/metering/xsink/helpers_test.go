package xsink

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

var batchTime = time.Date(2026, 5, 7, 9, 30, 0, 0, time.UTC)

// newEvent 构建测试事件
func newEvent(t testing.TB, name, customer string) *xevent.Event {
	t.Helper()
	b := xevent.New(context.Background(), name).
		SetTime(batchTime).
		SetUniqueID(fmt.Sprintf("%s-%s", name, customer))
	if customer != "" {
		b.SetCustomer(customer, "name-"+customer)
	}
	ev, err := b.Build()
	require.NoError(t, err)
	return ev
}

// newBatch 构建含 n 个事件的批次
func newBatch(t testing.TB, id string, n int) Batch {
	t.Helper()
	events := make([]*xevent.Event, n)
	for i := range n {
		events[i] = newEvent(t, "ApiCall", fmt.Sprintf("C%d", i))
	}
	return Batch{ID: id, Events: events, CreatedAt: batchTime}
}
