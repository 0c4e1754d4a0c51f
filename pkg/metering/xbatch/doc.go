// Package xbatch 实现计量事件的批量缓冲与投递。
//
// Batcher 在共享缓冲区中累积事件，满足任一触发条件即切出批次交给 xsink.Sink：
//   - 数量触发：缓冲事件数达到 MaxBatchSize
//   - 时间触发：最早未投递事件已等待 MaxInterval（MaxInterval 为 0 时每个事件单独成批）
//   - 显式 Flush 或关闭
//
// # 同步与异步
//
// 同步模式下，触发的投递在调用 Record 的 goroutine 中完成，重试耗尽后的错误
// 以 ErrDelivery 返回。时间触发只在 Record/Flush 调用时检查，没有后台 goroutine。
//
// 异步模式下，Record 只做入队（容量满时返回 ErrQueueFull），由唯一的消费 goroutine
// 切批并顺序投递。投递失败记录日志与指标，不返回给 Record。
//
// 两种模式下批次都按形成顺序投递，同一生产者的事件保持记录顺序。
//
// # 重试
//
// 每个批次最多尝试 retries+1 次（avast/retry-go），指数退避；
// xsink.Permanent 标记的错误立即放弃。批次 ID 由 sonyflake 生成，进程内单调递增。
//
// # 关闭
//
// Close/Shutdown 幂等：停止接收（之后 Record 返回 ErrClosed），投递剩余事件，
// 在关闭超时内等待消费者结束；超时则取消在途投递并返回 ErrShutdownTimeout，
// 其中包含未投递的事件数。该错误只报告一次，之后关闭 Sink。
//
// # 指标
//
// 通过 OpenTelemetry metric API 上报：
//   - xmeter.events.recorded
//   - xmeter.batches.delivered
//   - xmeter.batches.failed
//   - xmeter.events.dropped
//   - xmeter.flush.duration
package xbatch
