package xscope

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// =============================================================================
// 身份
// =============================================================================

// IdentityKind 表示身份种类
type IdentityKind uint8

const (
	// IdentityNone 未设置身份
	IdentityNone IdentityKind = iota
	// IdentityCustomer 客户身份
	IdentityCustomer
	// IdentityUser 用户身份
	IdentityUser
)

// String 返回身份种类名
func (k IdentityKind) String() string {
	switch k {
	case IdentityCustomer:
		return "customer"
	case IdentityUser:
		return "user"
	default:
		return "none"
	}
}

// Identity 作用域内的身份信息
type Identity struct {
	Kind IdentityKind
	ID   string
	Name string
}

// IsZero 判断身份是否为空
func (i Identity) IsZero() bool {
	return i.Kind == IdentityNone
}

// =============================================================================
// Scope
// =============================================================================

type scopeKey struct{}

// Scope 一层计量环境属性
type Scope struct {
	mu     sync.RWMutex
	parent *Scope
	closed bool

	identity    Identity
	serviceName string
	serviceCall string
	dimensions  map[string]string
	collisions  []string

	props *Properties
}

// New 创建空 Scope 并绑定到返回的 ctx
//
// ctx 上已有的 Scope 被新 Scope 遮蔽，新 Scope 关闭后重新可见。
// ctx 为 nil 时使用 context.Background()。
func New(ctx context.Context) (context.Context, *Scope) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Scope{parent: fromContext(ctx)}
	s.props = &Properties{s: s}
	return context.WithValue(ctx, scopeKey{}, s), s
}

// Ensure 返回 ctx 上的活跃 Scope，没有时创建一个
//
// created 为 true 时调用方负责 Close。
func Ensure(ctx context.Context) (_ context.Context, s *Scope, created bool) {
	if s, ok := Active(ctx); ok {
		return ctx, s, false
	}
	ctx, s = New(ctx)
	return ctx, s, true
}

// Do 在一个新 Scope 内执行 fn，fn 返回或 panic 时关闭 Scope
func Do(ctx context.Context, fn func(ctx context.Context, s *Scope) error) error {
	ctx, s := New(ctx)
	defer s.Close() //nolint:errcheck // Close 恒返回 nil
	return fn(ctx, s)
}

// Active 返回 ctx 上当前活跃（未关闭）的 Scope
func Active(ctx context.Context) (*Scope, bool) {
	for s := fromContext(ctx); s != nil; s = s.parent {
		if !s.isClosed() {
			return s, true
		}
	}
	return nil, false
}

// CurrentProperties 返回活跃 Scope 的属性句柄
func CurrentProperties(ctx context.Context) (*Properties, bool) {
	s, ok := Active(ctx)
	if !ok {
		return nil, false
	}
	return s.props, true
}

// Current 返回活跃 Scope 的快照；没有活跃 Scope 时返回零值快照
func Current(ctx context.Context) Snapshot {
	s, ok := Active(ctx)
	if !ok {
		return Snapshot{}
	}
	return s.Snapshot()
}

func fromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// SetCustomer 设置客户身份，清除已有的用户身份
func (s *Scope) SetCustomer(id, name string) *Scope {
	s.setIdentity(Identity{Kind: IdentityCustomer, ID: id, Name: name})
	return s
}

// SetUser 设置用户身份，清除已有的客户身份
func (s *Scope) SetUser(id, name string) *Scope {
	s.setIdentity(Identity{Kind: IdentityUser, ID: id, Name: name})
	return s
}

// ClearIdentity 清除身份
func (s *Scope) ClearIdentity() *Scope {
	s.setIdentity(Identity{})
	return s
}

func (s *Scope) setIdentity(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.identity = id
}

// Identity 返回当前身份
func (s *Scope) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Properties 返回服务与维度属性句柄
func (s *Scope) Properties() *Properties {
	return s.props
}

// Close 关闭 Scope 并清空其属性，可重复调用
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.identity = Identity{}
	s.serviceName = ""
	s.serviceCall = ""
	s.dimensions = nil
	s.collisions = nil
	return nil
}

// Closed 返回 Scope 是否已关闭
func (s *Scope) Closed() bool {
	return s.isClosed()
}

func (s *Scope) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Snapshot 返回 Scope 当前状态的一致副本
func (s *Scope) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Snapshot{}
	}
	snap := Snapshot{
		Active:      true,
		Identity:    s.identity,
		ServiceName: s.serviceName,
		ServiceCall: s.serviceCall,
	}
	if len(s.dimensions) > 0 {
		snap.Dimensions = maps.Clone(s.dimensions)
	}
	if len(s.collisions) > 0 {
		snap.Collisions = slices.Clone(s.collisions)
	}
	return snap
}

// =============================================================================
// Properties
// =============================================================================

// Properties 作用域内的服务与维度属性句柄
//
// 与所属 Scope 共享锁与生命周期，Scope 关闭后所有写入被忽略。
type Properties struct {
	s *Scope
}

// SetServiceName 设置服务名
func (p *Properties) SetServiceName(name string) *Properties {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if !p.s.closed {
		p.s.serviceName = name
	}
	return p
}

// SetServiceCall 设置服务调用名
func (p *Properties) SetServiceCall(call string) *Properties {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if !p.s.closed {
		p.s.serviceCall = call
	}
	return p
}

// SetDimensions 合并一组维度
//
// 已存在的键保留原值并记为冲突。
func (p *Properties) SetDimensions(dims map[string]string) *Properties {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.s.closed {
		return p
	}
	// 排序保证冲突记录顺序稳定
	for _, k := range slices.Sorted(maps.Keys(dims)) {
		p.s.putDimension(k, dims[k])
	}
	return p
}

// SetDimension 设置单个维度
func (p *Properties) SetDimension(key, value string) *Properties {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if !p.s.closed {
		p.s.putDimension(key, value)
	}
	return p
}

// 调用方持有写锁
func (s *Scope) putDimension(key, value string) {
	if _, dup := s.dimensions[key]; dup {
		s.collisions = append(s.collisions, key)
		return
	}
	if s.dimensions == nil {
		s.dimensions = make(map[string]string)
	}
	s.dimensions[key] = value
}

// ServiceName 返回服务名
func (p *Properties) ServiceName() string {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.s.serviceName
}

// ServiceCall 返回服务调用名
func (p *Properties) ServiceCall() string {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.s.serviceCall
}

// Dimensions 返回维度副本
func (p *Properties) Dimensions() map[string]string {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return maps.Clone(p.s.dimensions)
}

// Scope 返回所属 Scope
func (p *Properties) Scope() *Scope {
	return p.s
}
