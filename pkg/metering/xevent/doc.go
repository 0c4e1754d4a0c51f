// Package xevent 提供计量事件（meter）及其构建器。
//
// # 概述
//
// Event 是一次被计量的发生：名称、数值、时间、身份（客户或用户）、服务信息、
// 错误标记以及自定义维度。Event 构建后不可变。
//
// Builder 是可变的流式构建器，所有校验集中在 Build 一步完成，链式调用中途不会失败：
//
//	ev, err := xevent.New(ctx, "ApiCall").
//	    SetCustomer("C1", "Acme").
//	    SetValue(3).
//	    SetDimensions(map[string]string{"plan": "pro"}).
//	    Build()
//
// # 属性继承
//
// 身份、服务名、服务调用与维度在未显式设置时从 ctx 上的活跃 xscope.Scope 继承。
// 优先级：显式调用 > 活跃 Scope > 默认值。
//
// 身份作为整体解析：只要显式调用过任意身份 setter，Scope 身份整体不再参与，
// 不会出现"显式 id + 继承 name"的拼接。
//
// NewWithinContext 要求 Build 时 ctx 上有携带身份的活跃 Scope，否则返回 ErrNoActiveScope。
//
// # 维度
//
// SetDimensions 可多次调用，但每次的键必须与已合并的键（包括 Scope 维度）不相交，
// 重复键在 Build 时报告为 ErrDuplicateDimension，不会静默覆盖。
//
// # 错误
//
// 所有构建错误都包装 ErrConstruction，可用 errors.Is 统一分类。
// Build 不做任何网络 I/O。
package xevent
