package xdomain

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xmeter/internal/domain"
)

// =============================================================================
// Domain 类型定义
// =============================================================================

// Domain 表示计量域
//
// 与 xevent 事件上的 domain 标签是同一底层类型。
type Domain = domain.Type

const (
	// Dev 开发域
	Dev = domain.Dev

	// Prod 生产域
	Prod = domain.Prod
)

// EnvMeteringDomain 环境变量名
const EnvMeteringDomain = domain.EnvName

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNotInitialized xdomain 未初始化
	ErrNotInitialized = errors.New("xdomain: not initialized, call Init() first")

	// ErrAlreadyInitialized 重复初始化
	ErrAlreadyInitialized = errors.New("xdomain: already initialized")

	// ErrInvalidDomain 计量域非法（不是 Dev/Prod）
	ErrInvalidDomain = errors.New("xdomain: invalid metering domain")
)

// =============================================================================
// 全局状态
// =============================================================================

var (
	globalDomain atomic.Value // 存储 Domain

	// globalMu 仅保护写路径（Init/InitWith/Reset）
	globalMu    sync.Mutex
	initialized atomic.Bool
)

// =============================================================================
// 初始化函数
// =============================================================================

// Init 从环境变量 METERING_DOMAIN 初始化计量域
//
// 大小写不敏感："dev"/"Dev"/"development" -> Dev，"prod"/"PROD"/"production" -> Prod。
// 环境变量未设置或为空白时使用 Dev。
//
// 错误场景：
//   - 已初始化: ErrAlreadyInitialized
//   - 值非法: ErrInvalidDomain
func Init() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if initialized.Load() {
		return ErrAlreadyInitialized
	}

	d := Dev
	if v, ok := os.LookupEnv(EnvMeteringDomain); ok && strings.TrimSpace(v) != "" {
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		d = parsed
	}

	globalDomain.Store(d)
	initialized.Store(true)
	return nil
}

// MustInit 从环境变量初始化计量域，失败时 panic
//
// 仅用于 main() 启动阶段。
func MustInit() {
	if err := Init(); err != nil {
		panic(err)
	}
}

// InitWith 使用指定的计量域初始化
//
// 错误优先级：ErrAlreadyInitialized > ErrInvalidDomain。
func InitWith(d Domain) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if initialized.Load() {
		return ErrAlreadyInitialized
	}
	if !d.IsValid() {
		return fmt.Errorf("%w: %q (expected Dev or Prod)", ErrInvalidDomain, d)
	}

	globalDomain.Store(d)
	initialized.Store(true)
	return nil
}

// =============================================================================
// 全局访问函数
// =============================================================================

// Current 返回当前计量域，未初始化时返回 Dev
func Current() Domain {
	if !initialized.Load() {
		return Dev
	}
	d, ok := globalDomain.Load().(Domain)
	if !ok || d == "" {
		return Dev
	}
	return d
}

// Require 返回当前计量域，未初始化时返回 ErrNotInitialized
func Require() (Domain, error) {
	if !initialized.Load() {
		return "", ErrNotInitialized
	}
	d, ok := globalDomain.Load().(Domain)
	if !ok || d == "" {
		return "", ErrNotInitialized
	}
	return d, nil
}

// IsDev 判断当前是否为开发域
func IsDev() bool {
	return Current() == Dev
}

// IsProd 判断当前是否为生产域
func IsProd() bool {
	return Current() == Prod
}

// IsInitialized 返回是否已初始化
func IsInitialized() bool {
	return initialized.Load()
}

// Parse 解析字符串为 Domain
//
// 空字符串与非法值统一返回 ErrInvalidDomain。
func Parse(s string) (Domain, error) {
	d, err := domain.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q (expected Dev or Prod)", ErrInvalidDomain, s)
	}
	return d, nil
}
