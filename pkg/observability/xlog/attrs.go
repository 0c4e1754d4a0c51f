package xlog

import (
	"log/slog"
	"time"
)

// 日志中常用的标准字段名
const (
	KeyError    = "error"
	KeyDuration = "duration"
	KeyCount    = "count"

	// KeyTraceID、KeySpanID 由 EnrichHandler 从 OpenTelemetry span 注入
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// KeyCustomerID 计量客户 ID，由 EnrichHandler 从 Scope 注入
	KeyCustomerID = "customer_id"

	// KeyUserID 用户 ID，由 EnrichHandler 从 Scope 注入
	KeyUserID = "user_id"

	// KeyServiceName 服务名，由 EnrichHandler 从 Scope 注入
	KeyServiceName = "service_name"

	// KeyServiceCall 服务调用名，由 EnrichHandler 从 Scope 注入
	KeyServiceCall = "service_call"

	// KeyDomain 计量域（Dev/Prod），Build 时作为固定属性写入
	KeyDomain = "metering_domain"

	KeyMeter     = "meter"
	KeySink      = "sink"
	KeyBatchID   = "batch_id"
	KeyComponent = "component"
)

// Err 创建错误属性
//
// err 为 nil 时返回空属性，slog 会忽略它：
//
//	logger.Error(ctx, "deliver failed", xlog.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出 "1.5s" 这类可读格式
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// CustomerID 创建客户 ID 属性
func CustomerID(id string) slog.Attr {
	return slog.String(KeyCustomerID, id)
}

// Meter 创建计量名属性
func Meter(name string) slog.Attr {
	return slog.String(KeyMeter, name)
}

// Sink 创建 sink 类型属性
func Sink(name string) slog.Attr {
	return slog.String(KeySink, name)
}

// BatchID 创建批次 ID 属性
func BatchID(id string) slog.Attr {
	return slog.String(KeyBatchID, id)
}
