package xbatch

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/omeyang/xmeter/pkg/metering/xsink"
)

// MockSink 手写的 xsink.Sink gomock 替身，按 gomock.Controller 的调用约定记录期望。
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkMockRecorder
}

// MockSinkMockRecorder 记录 MockSink 的调用期望
type MockSinkMockRecorder struct {
	mock *MockSink
}

// NewMockSink 创建绑定到 ctrl 的 MockSink
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	mock := &MockSink{ctrl: ctrl}
	mock.recorder = &MockSinkMockRecorder{mock}
	return mock
}

func (m *MockSink) EXPECT() *MockSinkMockRecorder {
	return m.recorder
}

func (m *MockSink) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockSinkMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockSink)(nil).Close))
}

func (m *MockSink) Send(ctx context.Context, batch xsink.Batch) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", ctx, batch)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockSinkMockRecorder) Send(ctx, batch any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockSink)(nil).Send), ctx, batch)
}
