package xevent

import (
	"maps"
	"time"

	"github.com/omeyang/xmeter/internal/domain"
	"github.com/omeyang/xmeter/pkg/metering/xscope"
)

// MeterTypeMillis CaptureEndTimeAndDuration 在未设置类型时使用的类型
const MeterTypeMillis = "Millis"

// Event 一次计量事件，构建后不可变
type Event struct {
	uniqueID string
	name     string
	value    float64
	time     time.Time

	identity xscope.Identity

	serviceName string
	serviceCall string

	isError   bool
	errorKind string

	region    Region
	domain    domain.Type
	meterType string

	startTime time.Time
	endTime   time.Time
	duration  time.Duration
	hasDur    bool

	dimensions map[string]string
}

// UniqueID 返回事件唯一 ID
func (e *Event) UniqueID() string { return e.uniqueID }

// Name 返回计量名
func (e *Event) Name() string { return e.name }

// Value 返回计量值
func (e *Event) Value() float64 { return e.value }

// Time 返回事件时间
func (e *Event) Time() time.Time { return e.time }

// Identity 返回身份
func (e *Event) Identity() xscope.Identity { return e.identity }

// CustomerID 返回客户 ID，非客户身份时为空
func (e *Event) CustomerID() string {
	if e.identity.Kind != xscope.IdentityCustomer {
		return ""
	}
	return e.identity.ID
}

// CustomerName 返回客户名，非客户身份时为空
func (e *Event) CustomerName() string {
	if e.identity.Kind != xscope.IdentityCustomer {
		return ""
	}
	return e.identity.Name
}

// UserID 返回用户 ID，非用户身份时为空
func (e *Event) UserID() string {
	if e.identity.Kind != xscope.IdentityUser {
		return ""
	}
	return e.identity.ID
}

// UserName 返回用户名，非用户身份时为空
func (e *Event) UserName() string {
	if e.identity.Kind != xscope.IdentityUser {
		return ""
	}
	return e.identity.Name
}

// ServiceName 返回服务名
func (e *Event) ServiceName() string { return e.serviceName }

// ServiceCall 返回服务调用名
func (e *Event) ServiceCall() string { return e.serviceCall }

// IsError 返回是否为错误事件
func (e *Event) IsError() bool { return e.isError }

// ErrorKind 返回错误分类名
func (e *Event) ErrorKind() string { return e.errorKind }

// Region 返回区域
func (e *Event) Region() Region { return e.region }

// Domain 返回计量域标签
func (e *Event) Domain() domain.Type { return e.domain }

// MeterType 返回计量类型标签
func (e *Event) MeterType() string { return e.meterType }

// StartTime 返回开始时间，未设置时为零值
func (e *Event) StartTime() time.Time { return e.startTime }

// EndTime 返回结束时间，未捕获时为零值
func (e *Event) EndTime() time.Time { return e.endTime }

// Duration 返回捕获的时长
func (e *Event) Duration() (time.Duration, bool) { return e.duration, e.hasDur }

// Dimensions 返回维度副本
func (e *Event) Dimensions() map[string]string {
	return maps.Clone(e.dimensions)
}

// Dimension 返回单个维度
func (e *Event) Dimension(key string) (string, bool) {
	v, ok := e.dimensions[key]
	return v, ok
}

// PartitionKey 返回用于分区的键：客户或用户 ID，均无时为事件名
func (e *Event) PartitionKey() string {
	if e.identity.ID != "" {
		return e.identity.ID
	}
	return e.name
}

// WithServiceName 返回服务名为 name 的副本；已有服务名时返回自身
func (e *Event) WithServiceName(name string) *Event {
	if e.serviceName != "" || name == "" {
		return e
	}
	cp := *e
	cp.dimensions = maps.Clone(e.dimensions)
	cp.serviceName = name
	return &cp
}
