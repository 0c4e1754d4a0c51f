// Package xtemplate 提供预定义形状的计量事件。
//
// Service 记录服务调用相关的事件：
//   - Call / CallCompleted / CallError / CallErrorOf：调用结束，计量名 Call
//   - CallStarted：调用开始，计量名 CallStarted
//   - ProcessingTime：处理耗时（毫秒），计量名 CallProcessingTime
//   - DataUsage：数据用量（MB），计量名 CallDataUsage
//   - Track：包装一次调用，依次记录开始、结束与耗时
//
// Customer 记录客户生命周期事件：SignUp、Onboarded、Offboarded、Login、OnboardingRejected。
//
// customerID 为空时从当前 xscope.Scope 继承身份，serviceCall 为空时同样继承。
// 事件通过 Recorder 记录，*xpipeline.Pipeline 满足该接口。
package xtemplate
