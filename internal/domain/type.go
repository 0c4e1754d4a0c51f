package domain

import (
	"errors"
	"fmt"
	"strings"
)

// EnvName 环境变量名（单一事实来源）
//
// xdomain.EnvMeteringDomain 引用此常量。
const EnvName = "METERING_DOMAIN"

// Type 表示计量域
type Type string

const (
	// Dev 开发域，默认使用诊断类 sink（stdout/memory）
	Dev Type = "Dev"

	// Prod 生产域，默认使用真实的 ingest sink
	Prod Type = "Prod"
)

// 错误定义
var (
	// ErrMissingValue 计量域值缺失/为空
	ErrMissingValue = errors.New("domain: missing metering domain value")

	// ErrInvalidType 计量域非法（不是 Dev/Prod）
	ErrInvalidType = errors.New("domain: invalid metering domain")
)

// String 返回计量域的字符串表示
func (d Type) String() string {
	return string(d)
}

// IsDev 判断是否为开发域
func (d Type) IsDev() bool {
	return d == Dev
}

// IsProd 判断是否为生产域
func (d Type) IsProd() bool {
	return d == Prod
}

// IsValid 判断计量域是否有效
func (d Type) IsValid() bool {
	return d == Dev || d == Prod
}

// ConfigPrefix 返回该域配置文件名前缀，如 "dev" -> dev-metering.yaml
func (d Type) ConfigPrefix() string {
	return strings.ToLower(string(d))
}

// Parse 解析字符串为 Type
//
// 大小写不敏感，同时接受常见别名：
//   - "dev", "DEV", "development" -> Dev
//   - "prod", "PROD", "production" -> Prod
func Parse(s string) (Type, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "dev", "development":
		return Dev, nil
	case "prod", "production":
		return Prod, nil
	case "":
		return "", ErrMissingValue
	default:
		return "", fmt.Errorf("%w: %q (expected Dev or Prod)", ErrInvalidType, s)
	}
}
