package xevent

import "errors"

// ErrConstruction 构建错误的分类哨兵，所有构建错误都包装它
var ErrConstruction = errors.New("xevent: construction error")

var (
	// ErrEmptyName 事件名为空
	ErrEmptyName = constructionError("meter name is empty")

	// ErrNonFiniteValue 事件值为 NaN 或 ±Inf
	ErrNonFiniteValue = constructionError("meter value is not finite")

	// ErrAmbiguousIdentity 同时显式设置了客户身份与用户身份
	ErrAmbiguousIdentity = constructionError("both customer and user identity set")

	// ErrDuplicateDimension 维度合并出现重复键
	ErrDuplicateDimension = constructionError("duplicate dimension key")

	// ErrMissingStartTime CaptureEndTimeAndDuration 之前没有开始时间
	ErrMissingStartTime = constructionError("capture end time without start time")

	// ErrNoActiveScope NewWithinContext 构建时没有携带身份的活跃 Scope
	ErrNoActiveScope = constructionError("no active scope with identity")

	// ErrInvalidRegion 区域不在已知列表中
	ErrInvalidRegion = constructionError("invalid region")

	// ErrInvalidDomain 计量域非法
	ErrInvalidDomain = constructionError("invalid domain")
)

// constructionErr 同时匹配自身与 ErrConstruction
type constructionErr struct {
	msg string
}

func constructionError(msg string) error {
	return &constructionErr{msg: "xevent: " + msg}
}

func (e *constructionErr) Error() string { return e.msg }

func (e *constructionErr) Is(target error) bool {
	return target == ErrConstruction
}
