// Package xsink 定义计量批次的投递契约及其实现。
//
// # 契约
//
// Sink 只有一个核心操作：Send 接收一个批次，返回 nil 表示成功，返回错误表示失败。
// 重试由调用方（xbatch）负责；用 Permanent 包装的错误表示重试无意义。
//
// # 实现
//
// 诊断类：
//   - Memory: 记录所有批次，供测试与检查
//   - Writer: JSON lines 输出到 stdout 或轮转文件（lumberjack）
//
// 网络/持久化类：
//   - HTTP: 直连 ingest 接口，X-API-Key 认证，熔断保护（gobreaker）
//   - S3: 每批次一个对象（minio-go），作为持久化兜底
//   - Kafka / Pulsar: 每事件一条消息，以客户或用户 ID 为键
//   - RedisStream: 每事件一条 XADD，单个 pipeline 提交
//   - Mongo: 每批次一次 InsertMany
//   - ClickHouse: 每批次一次 prepared batch
//
// 组合：
//   - Fallback: 主 Sink 失败时写入备 Sink
//
// 所有 Sink 的 Close 幂等；关闭后 Send 返回 ErrClosed（Permanent）。
package xsink
