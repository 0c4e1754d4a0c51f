package xscope

// Snapshot Scope 在某一时刻的只读副本
//
// 零值表示没有活跃 Scope。
type Snapshot struct {
	// Active 快照是否来自一个打开的 Scope
	Active bool

	Identity    Identity
	ServiceName string
	ServiceCall string

	// Dimensions 维度副本，可安全修改
	Dimensions map[string]string

	// Collisions 合并维度时出现的重复键，按出现顺序
	Collisions []string
}

// HasIdentity 判断快照是否携带身份
func (s Snapshot) HasIdentity() bool {
	return s.Active && !s.Identity.IsZero()
}

// CustomerID 返回客户 ID，非客户身份时为空
func (s Snapshot) CustomerID() string {
	if s.Identity.Kind != IdentityCustomer {
		return ""
	}
	return s.Identity.ID
}

// UserID 返回用户 ID，非用户身份时为空
func (s Snapshot) UserID() string {
	if s.Identity.Kind != IdentityUser {
		return ""
	}
	return s.Identity.ID
}
