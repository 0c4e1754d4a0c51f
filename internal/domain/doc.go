// Package domain 提供计量域（metering domain）的共享定义。
//
// 计量域决定进程使用哪一份计量配置（dev-metering.* 或 prod-metering.*），
// 供 xdomain（进程级开关）与 xevent（事件上的 domain 标签）共享同一类型。
package domain
