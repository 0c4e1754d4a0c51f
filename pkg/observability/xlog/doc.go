// Package xlog 基于 log/slog 的结构化日志库，是 xmeter 各组件的日志出口。
//
// # 创建 Logger
//
// Builder 采用 first-error-wins：记录第一个配置错误，由 Build 返回。
//
//	logger, cleanup, err := xlog.New().
//		SetFormat("json").
//		SetLevelString("debug").
//		SetRotation("/var/log/xmeter/xmeter.log", xlog.WithMaxSizeMB(50)).
//		SetDomainFromProcess().
//		Build()
//	defer cleanup()
//
// 计量组件（xbatch、xpipeline、xsink）接受 *slog.Logger，用 [Logger.Slog] 取得
// 同一 handler 之上的 *slog.Logger，级别调整与写失败计数对两者同时生效。
// 组件日志字段统一使用本包的属性构造函数（[BatchID]、[Sink]、[Err] 等）。
//
// # Scope 注入
//
// 默认启用 [EnrichHandler]：ctx 中有有效的 OpenTelemetry span 时附加 trace_id、span_id；
// 有活跃的 xscope.Scope 时附加 customer_id 或 user_id、service_name、service_call。
// 通过 Slog() 调用 WithGroup 后，这些字段会落入 group 下。
//
// # 日志级别
//
// 级别直接使用 slog.Level；[ParseLevel] 额外接受 "warning"。
package xlog
