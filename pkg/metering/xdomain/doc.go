// Package xdomain 提供进程级计量域开关。
//
// # 概述
//
// 计量域（Dev/Prod）决定 xpipeline 读取哪一份配置文件：
//   - Dev  -> dev-metering.{yaml,yml,json}，通常配置 stdout/memory 等诊断 sink
//   - Prod -> prod-metering.{yaml,yml,json}，配置真实的 ingest sink
//
// 域在进程启动时从环境变量 METERING_DOMAIN 读取一次，之后不可变。
//
// # 默认值
//
// 与"开发环境无需任何设置"的约定一致：
//   - 环境变量未设置时 Init 使用 Dev
//   - 未调用 Init 时 Current 返回 Dev
//
// 需要区分"未初始化"与"Dev"时使用 Require。
//
// # 使用示例
//
//	func main() {
//	    if err := xdomain.Init(); err != nil {
//	        log.Fatal(err)
//	    }
//	    cfg, err := xpipeline.LoadDomainConfig("./config")
//	    ...
//	}
//
// 测试或嵌入式场景可使用 InitWith 显式指定：
//
//	_ = xdomain.InitWith(xdomain.Prod)
package xdomain
