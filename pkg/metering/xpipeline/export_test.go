package xpipeline

// Reset 关闭并清空进程级管道（仅用于测试）
func Reset() {
	globalMu.Lock()
	p := current.Swap(nil)
	globalMu.Unlock()
	_ = p.Close() //nolint:errcheck // 测试清理
}

// UnregisterSink 删除注册的 Sink 类型（仅用于测试）
func UnregisterSink(sinkType string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, sinkType)
}
