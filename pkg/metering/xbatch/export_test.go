package xbatch

import "time"

// SetNow 替换时钟，返回恢复函数
func SetNow(f func() time.Time) func() {
	prev := now
	now = f
	return func() { now = prev }
}
