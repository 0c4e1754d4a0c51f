package xbatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/omeyang/xmeter/pkg/metering/xbatch"

	metricEventsRecorded   = "xmeter.events.recorded"
	metricBatchesDelivered = "xmeter.batches.delivered"
	metricBatchesFailed    = "xmeter.batches.failed"
	metricEventsDropped    = "xmeter.events.dropped"
	metricFlushDuration    = "xmeter.flush.duration"
)

// 丢弃原因
const (
	dropQueueFull = "queue_full"
	dropDelivery  = "delivery"
	dropShutdown  = "shutdown"
)

type metrics struct {
	attrs     metric.MeasurementOption
	recorded  metric.Int64Counter
	delivered metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
	name      string
}

func newMetrics(mp metric.MeterProvider, name string) (*metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	m := &metrics{
		name:  name,
		attrs: metric.WithAttributes(attribute.String("batcher", name)),
	}
	var err error
	if m.recorded, err = meter.Int64Counter(metricEventsRecorded,
		metric.WithDescription("events accepted into the buffer"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("xbatch: create counter %s: %w", metricEventsRecorded, err)
	}
	if m.delivered, err = meter.Int64Counter(metricBatchesDelivered,
		metric.WithDescription("batches delivered to the sink"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("xbatch: create counter %s: %w", metricBatchesDelivered, err)
	}
	if m.failed, err = meter.Int64Counter(metricBatchesFailed,
		metric.WithDescription("batches dropped after exhausting retries"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("xbatch: create counter %s: %w", metricBatchesFailed, err)
	}
	if m.dropped, err = meter.Int64Counter(metricEventsDropped,
		metric.WithDescription("events that were never delivered"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("xbatch: create counter %s: %w", metricEventsDropped, err)
	}
	if m.duration, err = meter.Float64Histogram(metricFlushDuration,
		metric.WithDescription("batch delivery duration including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("xbatch: create histogram %s: %w", metricFlushDuration, err)
	}
	return m, nil
}

func (m *metrics) eventRecorded(ctx context.Context) {
	m.recorded.Add(ctx, 1, m.attrs)
}

func (m *metrics) batchDone(ctx context.Context, size int, elapsed time.Duration, err error) {
	if err == nil {
		m.delivered.Add(ctx, 1, m.attrs)
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("batcher", m.name),
			attribute.String("outcome", "success"),
		))
		return
	}
	m.failed.Add(ctx, 1, m.attrs)
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("batcher", m.name),
		attribute.String("outcome", "failure"),
	))
	m.eventsDropped(ctx, size, dropDelivery)
}

func (m *metrics) eventsDropped(ctx context.Context, n int, reason string) {
	if n <= 0 {
		return
	}
	m.dropped.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("batcher", m.name),
		attribute.String("reason", reason),
	))
}
