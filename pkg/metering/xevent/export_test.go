package xevent

import "time"

// SetNow 替换时钟（仅用于测试），返回恢复函数
func SetNow(f func() time.Time) func() {
	old := now
	now = f
	return func() { now = old }
}
