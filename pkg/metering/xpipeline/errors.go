package xpipeline

import "errors"

var (
	// ErrInvalidConfig 配置取值非法
	ErrInvalidConfig = errors.New("xpipeline: invalid config")

	// ErrUnknownSink sinkType 未注册
	ErrUnknownSink = errors.New("xpipeline: unknown sink type")

	// ErrSinkRegistered sinkType 已注册
	ErrSinkRegistered = errors.New("xpipeline: sink type already registered")

	// ErrEmptyPath 配置文件路径为空
	ErrEmptyPath = errors.New("xpipeline: empty config path")

	// ErrUnsupportedFormat 配置文件格式不支持
	ErrUnsupportedFormat = errors.New("xpipeline: unsupported config format")

	// ErrLoadFailed 读取配置文件失败
	ErrLoadFailed = errors.New("xpipeline: failed to load config")

	// ErrParseFailed 解析配置失败
	ErrParseFailed = errors.New("xpipeline: failed to parse config")

	// ErrConfigNotFound 环境对应的配置文件不存在
	ErrConfigNotFound = errors.New("xpipeline: config file not found")

	// ErrNotInitialized 进程级管道未初始化
	ErrNotInitialized = errors.New("xpipeline: not initialized")

	// ErrAlreadyInitialized 进程级管道已初始化
	ErrAlreadyInitialized = errors.New("xpipeline: already initialized")
)
