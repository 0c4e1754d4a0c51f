package xevent

import (
	"context"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/xmeter/internal/domain"
	"github.com/omeyang/xmeter/pkg/metering/xscope"
)

// now 可在测试中替换
var now = time.Now

// Builder 事件的流式构建器
//
// Builder 不是并发安全的，应在单个 goroutine 内使用。
type Builder struct {
	ctx          context.Context
	requireScope bool

	uniqueID string
	name     string

	value    float64
	hasValue bool

	time    time.Time
	hasTime bool

	customerID, customerName string
	hasCustomer              bool
	userID, userName         string
	hasUser                  bool

	serviceName    string
	hasServiceName bool
	serviceCall    string
	hasServiceCall bool

	isError   bool
	errorKind string

	region    Region
	domain    domain.Type
	meterType string

	startTime    time.Time
	hasStart     bool
	endTime      time.Time
	captureCalls int

	dimensions map[string]string
	dupKeys    []string
}

// New 创建名为 name 的事件构建器
//
// ctx 用于在 Build 时查找活跃 Scope，可为 nil。
func New(ctx context.Context, name string) *Builder {
	return &Builder{ctx: ctx, name: name}
}

// NewWithinContext 创建要求活跃 Scope 的构建器
//
// Build 时 ctx 上没有携带身份的活跃 Scope 返回 ErrNoActiveScope。
func NewWithinContext(ctx context.Context, name string) *Builder {
	return &Builder{ctx: ctx, name: name, requireScope: true}
}

// SetUniqueID 设置事件唯一 ID，未设置时 Build 生成 UUID
func (b *Builder) SetUniqueID(id string) *Builder {
	b.uniqueID = id
	return b
}

// SetTime 设置事件时间，未设置时使用 Build 时刻
func (b *Builder) SetTime(t time.Time) *Builder {
	b.time = t
	b.hasTime = true
	return b
}

// SetValue 设置计量值，默认 1
func (b *Builder) SetValue(v float64) *Builder {
	b.value = v
	b.hasValue = true
	return b
}

// SetType 设置计量类型标签
func (b *Builder) SetType(t string) *Builder {
	b.meterType = t
	return b
}

// SetCustomer 设置客户身份，id 与 name 都为空时视为未设置
func (b *Builder) SetCustomer(id, name string) *Builder {
	b.customerID, b.customerName = id, name
	b.hasCustomer = true
	return b
}

// SetCustomerID 设置客户 ID
func (b *Builder) SetCustomerID(id string) *Builder {
	b.customerID = id
	b.hasCustomer = true
	return b
}

// SetCustomerName 设置客户名
func (b *Builder) SetCustomerName(name string) *Builder {
	b.customerName = name
	b.hasCustomer = true
	return b
}

// SetUser 设置用户身份，规则同 SetCustomer
func (b *Builder) SetUser(id, name string) *Builder {
	b.userID, b.userName = id, name
	b.hasUser = true
	return b
}

// SetUserID 设置用户 ID
func (b *Builder) SetUserID(id string) *Builder {
	b.userID = id
	b.hasUser = true
	return b
}

// SetUserName 设置用户名
func (b *Builder) SetUserName(name string) *Builder {
	b.userName = name
	b.hasUser = true
	return b
}

// SetServiceName 设置服务名
func (b *Builder) SetServiceName(name string) *Builder {
	b.serviceName = name
	b.hasServiceName = true
	return b
}

// SetServiceCall 设置服务调用名
func (b *Builder) SetServiceCall(call string) *Builder {
	b.serviceCall = call
	b.hasServiceCall = true
	return b
}

// AsError 标记为错误事件
func (b *Builder) AsError() *Builder {
	b.isError = true
	return b
}

// AsErrorKind 标记为错误事件并设置错误分类
func (b *Builder) AsErrorKind(kind string) *Builder {
	b.isError = true
	b.errorKind = kind
	return b
}

// AsErrorOf 标记为错误事件，分类取 err 的类型名（如 "fs.PathError"）
func (b *Builder) AsErrorOf(err error) *Builder {
	b.isError = true
	if err != nil {
		b.errorKind = errorKindOf(err)
	}
	return b
}

func errorKindOf(err error) string {
	return strings.TrimPrefix(reflect.TypeOf(err).String(), "*")
}

// SetRegion 设置区域
func (b *Builder) SetRegion(r Region) *Builder {
	b.region = r
	return b
}

// SetDomain 设置计量域标签
func (b *Builder) SetDomain(d domain.Type) *Builder {
	b.domain = d
	return b
}

// SetDimensions 合并一组维度，键必须与已合并的键不相交
func (b *Builder) SetDimensions(dims map[string]string) *Builder {
	for _, k := range slices.Sorted(maps.Keys(dims)) {
		b.putDimension(k, dims[k])
	}
	return b
}

// SetDimension 设置单个维度
func (b *Builder) SetDimension(key, value string) *Builder {
	b.putDimension(key, value)
	return b
}

func (b *Builder) putDimension(key, value string) {
	if _, dup := b.dimensions[key]; dup {
		b.dupKeys = append(b.dupKeys, key)
		return
	}
	if b.dimensions == nil {
		b.dimensions = make(map[string]string)
	}
	b.dimensions[key] = value
}

// SetStartTime 设置开始时间
func (b *Builder) SetStartTime(t time.Time) *Builder {
	b.startTime = t
	b.hasStart = true
	return b
}

// CaptureEndTimeAndDuration 以当前时刻为结束时间，时长为结束时间减开始时间
//
// 开始时间取 SetStartTime，未设置时取 SetTime 给出的事件时间；
// 两者都没有时 Build 返回 ErrMissingStartTime。未设置类型时类型为 "Millis"。
func (b *Builder) CaptureEndTimeAndDuration() *Builder {
	b.endTime = now()
	b.captureCalls++
	return b
}

// Build 校验并构建不可变的 Event
func (b *Builder) Build() (*Event, error) {
	if strings.TrimSpace(b.name) == "" {
		return nil, ErrEmptyName
	}

	value := 1.0
	if b.hasValue {
		value = b.value
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: %v", ErrNonFiniteValue, value)
	}

	if b.explicitCustomer() && b.explicitUser() {
		return nil, ErrAmbiguousIdentity
	}
	if b.region != "" && !b.region.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, b.region)
	}
	if b.domain != "" && !b.domain.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, b.domain)
	}
	if len(b.dupKeys) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateDimension, b.dupKeys[0])
	}

	var scope xscope.Snapshot
	if b.ctx != nil {
		scope = xscope.Current(b.ctx)
	}
	if b.requireScope && !scope.HasIdentity() {
		return nil, ErrNoActiveScope
	}

	ev := &Event{
		uniqueID:  b.uniqueID,
		name:      b.name,
		value:     value,
		time:      b.time,
		isError:   b.isError,
		errorKind: b.errorKind,
		region:    b.region,
		domain:    b.domain,
		meterType: b.meterType,
	}
	if ev.uniqueID == "" {
		ev.uniqueID = uuid.NewString()
	}
	if !b.hasTime {
		ev.time = now()
	}

	ev.identity = b.resolveIdentity(scope)
	ev.serviceName = pick(b.hasServiceName, b.serviceName, scope.ServiceName)
	ev.serviceCall = pick(b.hasServiceCall, b.serviceCall, scope.ServiceCall)

	dims, err := b.mergeDimensions(scope)
	if err != nil {
		return nil, err
	}
	ev.dimensions = dims

	if err := b.applyTiming(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// explicitCustomer ID 与名称都为空的显式客户身份视为未设置
func (b *Builder) explicitCustomer() bool {
	return b.hasCustomer && (b.customerID != "" || b.customerName != "")
}

func (b *Builder) explicitUser() bool {
	return b.hasUser && (b.userID != "" || b.userName != "")
}

// resolveIdentity 显式身份整体优先，否则使用 Scope 身份
func (b *Builder) resolveIdentity(scope xscope.Snapshot) xscope.Identity {
	switch {
	case b.explicitCustomer():
		return xscope.Identity{Kind: xscope.IdentityCustomer, ID: b.customerID, Name: b.customerName}
	case b.explicitUser():
		return xscope.Identity{Kind: xscope.IdentityUser, ID: b.userID, Name: b.userName}
	case scope.HasIdentity():
		return scope.Identity
	default:
		return xscope.Identity{}
	}
}

func (b *Builder) mergeDimensions(scope xscope.Snapshot) (map[string]string, error) {
	if len(scope.Collisions) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateDimension, scope.Collisions[0])
	}
	if len(scope.Dimensions) == 0 && len(b.dimensions) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(scope.Dimensions)+len(b.dimensions))
	maps.Copy(out, scope.Dimensions)
	for _, k := range slices.Sorted(maps.Keys(b.dimensions)) {
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDimension, k)
		}
		out[k] = b.dimensions[k]
	}
	return out, nil
}

func (b *Builder) applyTiming(ev *Event) error {
	if b.hasStart {
		ev.startTime = b.startTime
	}
	if b.captureCalls == 0 {
		return nil
	}
	start := b.startTime
	if !b.hasStart {
		if !b.hasTime {
			return ErrMissingStartTime
		}
		start = b.time
		ev.startTime = start
	}
	ev.endTime = b.endTime
	ev.duration = b.endTime.Sub(start)
	ev.hasDur = true
	if ev.meterType == "" {
		ev.meterType = MeterTypeMillis
	}
	return nil
}

func pick(explicit bool, v, inherited string) string {
	if explicit {
		return v
	}
	return inherited
}
