package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLevel 解析 debug/info/warn/warning/error，忽略大小写与首尾空白
//
// 也接受 slog 的偏移写法，如 "info+2"。无法解析时返回 LevelInfo 与错误。
func ParseLevel(s string) (slog.Level, error) {
	name := strings.TrimSpace(s)
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("xlog: unknown level %q", s)
	}
	return level, nil
}
