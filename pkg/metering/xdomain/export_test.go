package xdomain

// Reset 重置全局状态（仅用于测试）
func Reset() {
	globalMu.Lock()
	initialized.Store(false)
	globalDomain.Store(Domain(""))
	globalMu.Unlock()
}
