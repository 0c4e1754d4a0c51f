package xtemplate

import (
	"context"
	"time"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

// 客户生命周期计量名
const (
	MeterCustomerSignUp             = "CustomerSignUp"
	MeterCustomerOnboarded          = "CustomerOnboarded"
	MeterCustomerOffboarded         = "CustomerOffboarded"
	MeterCustomerLogin              = "CustomerLogin"
	MeterCustomerOnboardingRejected = "CustomerOnboardingRejected"
)

// Customer 客户生命周期模板
type Customer struct {
	r Recorder
}

// NewCustomer 创建客户生命周期模板
func NewCustomer(r Recorder) *Customer {
	return &Customer{r: r}
}

func (c *Customer) record(ctx context.Context, meter, customerID string, t time.Time) error {
	return record(ctx, c.r, xevent.New(ctx, meter), customerID, t)
}

// SignUp 客户注册
func (c *Customer) SignUp(ctx context.Context, customerID string, t time.Time) error {
	return c.record(ctx, MeterCustomerSignUp, customerID, t)
}

// Onboarded 客户完成接入
func (c *Customer) Onboarded(ctx context.Context, customerID string, t time.Time) error {
	return c.record(ctx, MeterCustomerOnboarded, customerID, t)
}

// Offboarded 客户退出
func (c *Customer) Offboarded(ctx context.Context, customerID string, t time.Time) error {
	return c.record(ctx, MeterCustomerOffboarded, customerID, t)
}

// Login 客户登录
func (c *Customer) Login(ctx context.Context, customerID string, t time.Time) error {
	return c.record(ctx, MeterCustomerLogin, customerID, t)
}

// OnboardingRejected 客户注册后被拒绝接入
func (c *Customer) OnboardingRejected(ctx context.Context, customerID string, t time.Time) error {
	return c.record(ctx, MeterCustomerOnboardingRejected, customerID, t)
}
