package xtemplate

import (
	"context"
	"time"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

// 服务调用计量名
const (
	MeterCall               = "Call"
	MeterCallStarted        = "CallStarted"
	MeterCallDataUsage      = "CallDataUsage"
	MeterCallProcessingTime = "CallProcessingTime"
)

// MeterTypeMegabytes DataUsage 的计量类型
const MeterTypeMegabytes = "Mb"

// Service 服务调用模板
type Service struct {
	r   Recorder
	now func() time.Time
}

// NewService 创建服务调用模板
func NewService(r Recorder) *Service {
	return &Service{r: r, now: time.Now}
}

func (s *Service) builder(ctx context.Context, meter, serviceCall string) *xevent.Builder {
	b := xevent.New(ctx, meter)
	if serviceCall != "" {
		b.SetServiceCall(serviceCall)
	}
	return b
}

// Call 记录一次调用结束，不区分成功与失败
func (s *Service) Call(ctx context.Context, customerID, serviceCall string, t time.Time) error {
	return record(ctx, s.r, s.builder(ctx, MeterCall, serviceCall), customerID, t)
}

// CallCompleted 记录一次成功结束的调用
func (s *Service) CallCompleted(ctx context.Context, customerID, serviceCall string, t time.Time) error {
	return s.Call(ctx, customerID, serviceCall, t)
}

// CallError 记录一次以错误结束的调用
func (s *Service) CallError(ctx context.Context, customerID, serviceCall string, t time.Time) error {
	return record(ctx, s.r, s.builder(ctx, MeterCall, serviceCall).AsError(), customerID, t)
}

// CallErrorOf 记录一次以错误结束的调用，错误类型取自 err
func (s *Service) CallErrorOf(ctx context.Context, customerID, serviceCall string, err error, t time.Time) error {
	return record(ctx, s.r, s.builder(ctx, MeterCall, serviceCall).AsErrorOf(err), customerID, t)
}

// CallStarted 记录一次调用开始
func (s *Service) CallStarted(ctx context.Context, customerID, serviceCall string, t time.Time) error {
	return record(ctx, s.r, s.builder(ctx, MeterCallStarted, serviceCall), customerID, t)
}

// ProcessingTime 记录调用处理耗时，计量值为毫秒
func (s *Service) ProcessingTime(ctx context.Context, customerID, serviceCall string, d time.Duration, t time.Time) error {
	b := s.builder(ctx, MeterCallProcessingTime, serviceCall).
		SetValue(float64(d.Milliseconds())).
		SetType(xevent.MeterTypeMillis)
	return record(ctx, s.r, b, customerID, t)
}

// DataUsage 记录调用使用的数据量（MB）
func (s *Service) DataUsage(ctx context.Context, customerID, serviceCall string, mb float64, t time.Time) error {
	b := s.builder(ctx, MeterCallDataUsage, serviceCall).
		SetValue(mb).
		SetType(MeterTypeMegabytes)
	return record(ctx, s.r, b, customerID, t)
}

// Track 执行 fn 并记录 CallStarted、Call（成功或错误）与 ProcessingTime。
// 返回 fn 的错误；计量失败只在 fn 成功时返回。
func (s *Service) Track(ctx context.Context, customerID, serviceCall string, fn func(ctx context.Context) error) error {
	start := s.now()
	startErr := s.CallStarted(ctx, customerID, serviceCall, start)

	fnErr := fn(ctx)
	end := s.now()

	var endErr error
	if fnErr != nil {
		endErr = s.CallErrorOf(ctx, customerID, serviceCall, fnErr, end)
	} else {
		endErr = s.CallCompleted(ctx, customerID, serviceCall, end)
	}
	timeErr := s.ProcessingTime(ctx, customerID, serviceCall, end.Sub(start), end)

	if fnErr != nil {
		return fnErr
	}
	return firstErr(startErr, endErr, timeErr)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
