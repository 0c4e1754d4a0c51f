// Package xscope 提供绑定到 context.Context 的计量作用域。
//
// # 概述
//
// Scope 是一层环境属性覆盖：身份（客户或用户的 id+name）、服务名、服务调用、
// 以及累积的维度。xevent.Builder 在未显式设置这些字段时从当前活跃 Scope 继承。
//
// Scope 随 context 显式向下传递，而不是绑定在 goroutine 上：
//
//	ctx, s := xscope.New(ctx)
//	defer s.Close()
//	s.SetCustomer("C1", "Acme")
//	s.Properties().SetServiceName("billing").SetDimension("region", "us-west-2")
//
//	ev, err := xevent.NewWithinContext(ctx, "ApiCall").Build()
//
// # 生命周期
//
//   - New 创建一个空 Scope 并绑定到返回的 ctx；不继承外层仍打开的 Scope
//   - Close 幂等；关闭后该 Scope 不再提供任何属性，即使 ctx 仍在使用
//   - 内层 Scope 关闭后，外层仍打开的 Scope 重新成为活跃 Scope
//   - Do 在回调的所有退出路径（包括 panic）上关闭 Scope
//
// # 并发
//
// 单个 Scope 由互斥锁保护，ctx 传给其他 goroutine 后并发读写是安全的。
// 身份为客户或用户二选一：SetCustomer 会清除用户身份，反之亦然。
//
// # 维度冲突
//
// Properties.SetDimensions 遇到已存在的键时不覆盖原值，而是记录冲突键；
// xevent.Builder.Build 读取快照时将冲突报告为 ErrDuplicateDimension。
package xscope
