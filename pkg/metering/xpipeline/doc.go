// Package xpipeline 组装计量管道：配置、Sink 与 Batcher。
//
// # 配置
//
// Config 对应配置文件中的字段（koanf 标签，YAML 或 JSON）：
//
//	sinkType: direct
//	isAsync: true
//	maxBatchSize: 100
//	maxSecondsBetweenWrites: 5
//	httpRetriesCount: 3
//	httpTimeoutSeconds: 10
//	serviceName: billing
//	apiKey: xxx
//
// LoadDomainConfig 按 xdomain 当前环境选择 dev-metering.* 或 prod-metering.*。
//
// # Sink 注册表
//
// sinkType 通过注册表解析为 xsink.Sink。内置类型见 SinkTypes，
// 自定义类型用 RegisterSink 注册。fallbackSinkType 非空时，
// 主 Sink 失败的批次写入备用 Sink。
//
// # 进程级管道
//
// CreateOrReplace/Init/Get/Metering/FlushAndClose 管理进程内唯一的管道。
// 替换是原子的：并发生产者要么看到旧管道，要么看到新管道；
// 旧管道在替换之后排空并关闭。Watch 在配置文件变更时自动替换。
package xpipeline
