package xevent_test

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xdomain"
	"github.com/omeyang/xmeter/pkg/metering/xevent"
	"github.com/omeyang/xmeter/pkg/metering/xscope"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	t.Cleanup(xevent.SetNow(func() time.Time { return fixedNow }))
}

// =============================================================================
// 默认值与基本字段
// =============================================================================

func TestBuild_Defaults(t *testing.T) {
	freezeClock(t)

	ev, err := xevent.New(context.Background(), "ApiCall").Build()
	require.NoError(t, err)

	assert.Equal(t, "ApiCall", ev.Name())
	assert.Equal(t, 1.0, ev.Value())
	assert.Equal(t, fixedNow, ev.Time())
	assert.NotEmpty(t, ev.UniqueID())
	assert.True(t, ev.Identity().IsZero())
	assert.Nil(t, ev.Dimensions())
	_, hasDur := ev.Duration()
	assert.False(t, hasDur)
}

func TestBuild_AllSetters(t *testing.T) {
	freezeClock(t)
	evTime := fixedNow.Add(-time.Hour)

	ev, err := xevent.New(context.Background(), "Transaction").
		SetUniqueID("id-1").
		SetTime(evTime).
		SetValue(42.5).
		SetType("count").
		SetCustomer("C1", "Acme").
		SetServiceName("billing").
		SetServiceCall("charge").
		AsErrorKind("Timeout").
		SetRegion(xevent.RegionUSWest).
		SetDomain(xdomain.Prod).
		SetDimensions(map[string]string{"plan": "pro"}).
		SetDimension("tier", "gold").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "id-1", ev.UniqueID())
	assert.Equal(t, evTime, ev.Time())
	assert.Equal(t, 42.5, ev.Value())
	assert.Equal(t, "count", ev.MeterType())
	assert.Equal(t, "C1", ev.CustomerID())
	assert.Equal(t, "Acme", ev.CustomerName())
	assert.Empty(t, ev.UserID())
	assert.Equal(t, "billing", ev.ServiceName())
	assert.Equal(t, "charge", ev.ServiceCall())
	assert.True(t, ev.IsError())
	assert.Equal(t, "Timeout", ev.ErrorKind())
	assert.Equal(t, xevent.RegionUSWest, ev.Region())
	assert.Equal(t, xdomain.Prod, ev.Domain())
	assert.Equal(t, map[string]string{"plan": "pro", "tier": "gold"}, ev.Dimensions())
	assert.Equal(t, "C1", ev.PartitionKey())
}

func TestBuild_AsErrorOf(t *testing.T) {
	pathErr := &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}

	ev, err := xevent.New(context.Background(), "m").AsErrorOf(pathErr).Build()
	require.NoError(t, err)
	assert.True(t, ev.IsError())
	assert.Equal(t, "fs.PathError", ev.ErrorKind())

	ev, err = xevent.New(context.Background(), "m").AsError().Build()
	require.NoError(t, err)
	assert.True(t, ev.IsError())
	assert.Empty(t, ev.ErrorKind())
}

// =============================================================================
// 校验错误
// =============================================================================

func TestBuild_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *xevent.Builder
		wantErr error
	}{
		{"empty name", func() *xevent.Builder { return xevent.New(context.Background(), "") }, xevent.ErrEmptyName},
		{"blank name", func() *xevent.Builder { return xevent.New(context.Background(), "  ") }, xevent.ErrEmptyName},
		{"NaN", func() *xevent.Builder { return xevent.New(context.Background(), "m").SetValue(math.NaN()) }, xevent.ErrNonFiniteValue},
		{"+Inf", func() *xevent.Builder { return xevent.New(context.Background(), "m").SetValue(math.Inf(1)) }, xevent.ErrNonFiniteValue},
		{"ambiguous identity", func() *xevent.Builder {
			return xevent.New(context.Background(), "m").SetCustomerID("C1").SetUserID("U1")
		}, xevent.ErrAmbiguousIdentity},
		{"duplicate dimension", func() *xevent.Builder {
			return xevent.New(context.Background(), "m").
				SetDimensions(map[string]string{"a": "1"}).
				SetDimensions(map[string]string{"a": "2"})
		}, xevent.ErrDuplicateDimension},
		{"capture without start", func() *xevent.Builder {
			return xevent.New(context.Background(), "m").CaptureEndTimeAndDuration()
		}, xevent.ErrMissingStartTime},
		{"no active scope", func() *xevent.Builder {
			return xevent.NewWithinContext(context.Background(), "m")
		}, xevent.ErrNoActiveScope},
		{"invalid region", func() *xevent.Builder {
			return xevent.New(context.Background(), "m").SetRegion("mars")
		}, xevent.ErrInvalidRegion},
		{"invalid domain", func() *xevent.Builder {
			return xevent.New(context.Background(), "m").SetDomain("Staging")
		}, xevent.ErrInvalidDomain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := tt.build().Build()
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, xevent.ErrConstruction)
		})
	}
}

func TestBuild_ErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(xevent.ErrEmptyName, xevent.ErrNonFiniteValue))
	assert.True(t, errors.Is(xevent.ErrEmptyName, xevent.ErrConstruction))
}

// =============================================================================
// 维度
// =============================================================================

func TestBuild_DisjointDimensionsUnion(t *testing.T) {
	ev, err := xevent.New(context.Background(), "m").
		SetDimensions(map[string]string{"session": "789"}).
		SetDimensions(map[string]string{"country": "US", "state": "WA"}).
		SetDimensions(nil).
		Build()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session": "789", "country": "US", "state": "WA"}, ev.Dimensions())

	dims := ev.Dimensions()
	dims["session"] = "mutated"
	v, _ := ev.Dimension("session")
	assert.Equal(t, "789", v, "Dimensions must return a copy")
}

func TestBuild_ScopeDimensionCollision(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()
	s.Properties().SetDimension("plan", "free")

	_, err := xevent.New(ctx, "m").SetDimension("plan", "pro").Build()
	assert.ErrorIs(t, err, xevent.ErrDuplicateDimension)

	s.Properties().SetDimension("plan", "again")
	_, err = xevent.New(ctx, "m").Build()
	assert.ErrorIs(t, err, xevent.ErrDuplicateDimension, "scope collisions surface at build")
}

// =============================================================================
// 时长
// =============================================================================

func TestCaptureEndTimeAndDuration(t *testing.T) {
	freezeClock(t)
	start := fixedNow.Add(-3 * time.Minute)

	ev, err := xevent.New(context.Background(), "m").
		SetStartTime(start).
		CaptureEndTimeAndDuration().
		Build()
	require.NoError(t, err)

	d, ok := ev.Duration()
	require.True(t, ok)
	assert.Equal(t, 3*time.Minute, d)
	assert.Equal(t, start, ev.StartTime())
	assert.Equal(t, fixedNow, ev.EndTime())
	assert.Equal(t, xevent.MeterTypeMillis, ev.MeterType())
}

func TestCaptureEndTimeAndDuration_EventTimeAsStart(t *testing.T) {
	freezeClock(t)

	ev, err := xevent.New(context.Background(), "m").
		SetTime(fixedNow.Add(-time.Second)).
		CaptureEndTimeAndDuration().
		SetType("millis").
		Build()
	require.NoError(t, err)

	d, ok := ev.Duration()
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
	assert.Equal(t, "millis", ev.MeterType(), "explicit type wins")
}

// =============================================================================
// Scope 继承
// =============================================================================

func TestBuild_InheritsFromScope(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()
	s.SetCustomer("C1", "Acme")
	s.Properties().SetServiceName("svc").SetServiceCall("call").SetDimension("session", "1")

	ev, err := xevent.New(ctx, "m").SetDimension("extra", "x").Build()
	require.NoError(t, err)
	assert.Equal(t, "C1", ev.CustomerID())
	assert.Equal(t, "Acme", ev.CustomerName())
	assert.Equal(t, "svc", ev.ServiceName())
	assert.Equal(t, "call", ev.ServiceCall())
	assert.Equal(t, map[string]string{"session": "1", "extra": "x"}, ev.Dimensions())
}

func TestBuild_ExplicitIdentityWinsAsUnit(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()
	s.SetCustomer("C1", "Acme")

	ev, err := xevent.New(ctx, "m").SetCustomerID("C2").Build()
	require.NoError(t, err)
	assert.Equal(t, "C2", ev.CustomerID())
	assert.Empty(t, ev.CustomerName(), "scope name must not merge into explicit id")

	ev, err = xevent.New(ctx, "m").SetUser("U1", "bob").Build()
	require.NoError(t, err)
	assert.Equal(t, "U1", ev.UserID())
	assert.Empty(t, ev.CustomerID())
}

func TestBuild_EmptyExplicitIdentityIsUnset(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()
	s.SetUser("U1", "bob")

	ev, err := xevent.New(ctx, "m").SetCustomer("", "").Build()
	require.NoError(t, err)
	assert.Equal(t, "U1", ev.UserID())
	assert.Empty(t, ev.CustomerID())

	ev, err = xevent.New(context.Background(), "m").SetUser("", "").SetCustomerID("C1").Build()
	require.NoError(t, err, "empty user does not conflict with a customer")
	assert.Equal(t, "C1", ev.CustomerID())

	ev, err = xevent.New(context.Background(), "m").SetCustomer("", "").Build()
	require.NoError(t, err)
	assert.Empty(t, ev.CustomerID())
	assert.Empty(t, ev.UserID())

	_, err = xevent.NewWithinContext(context.Background(), "m").SetCustomer("", "").Build()
	assert.ErrorIs(t, err, xevent.ErrNoActiveScope)
}

func TestBuild_ExplicitServiceOverridesScope(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()
	s.Properties().SetServiceName("svc")

	ev, err := xevent.New(ctx, "m").SetServiceName("").Build()
	require.NoError(t, err)
	assert.Empty(t, ev.ServiceName(), "explicit empty value still wins")
}

func TestBuild_ScopeRoundTrip(t *testing.T) {
	freezeClock(t)
	ctx, s := xscope.New(context.Background())
	defer s.Close()
	s.SetUser("U1", "bob")

	inherited, err := xevent.NewWithinContext(ctx, "m").SetUniqueID("u").Build()
	require.NoError(t, err)
	explicit, err := xevent.New(context.Background(), "m").SetUniqueID("u").SetUser("U1", "bob").Build()
	require.NoError(t, err)

	assert.Equal(t, explicit, inherited)
}

func TestBuild_ScopeClosedStopsInheritance(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	s.SetCustomer("C1", "Acme")

	for range 15 {
		ev, err := xevent.New(ctx, "m").Build()
		require.NoError(t, err)
		assert.Equal(t, "C1", ev.CustomerID())
	}

	require.NoError(t, s.Close())
	ev, err := xevent.New(ctx, "m").Build()
	require.NoError(t, err)
	assert.Empty(t, ev.CustomerID())

	_, err = xevent.NewWithinContext(ctx, "m").Build()
	assert.ErrorIs(t, err, xevent.ErrNoActiveScope)
}

func TestWithServiceName(t *testing.T) {
	ev, err := xevent.New(context.Background(), "m").SetDimension("k", "v").Build()
	require.NoError(t, err)

	stamped := ev.WithServiceName("svc")
	assert.Equal(t, "svc", stamped.ServiceName())
	assert.Empty(t, ev.ServiceName(), "original untouched")
	assert.Same(t, stamped, stamped.WithServiceName("other"))
}

// =============================================================================
// JSON
// =============================================================================

func TestMarshalJSON_WireShape(t *testing.T) {
	ev, err := xevent.New(context.Background(), "ApiCall").
		SetUniqueID("id-1").
		SetTime(time.UnixMilli(1700000000123)).
		SetValue(2).
		SetCustomer("C1", "Acme").
		SetDimension("k", "v").
		Build()
	require.NoError(t, err)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "id-1", got["uniqueId"])
	assert.Equal(t, "ApiCall", got["meterApiName"])
	assert.Equal(t, 2.0, got["meterValue"])
	assert.Equal(t, 1700000000123.0, got["meterTimeInMillis"])
	assert.Equal(t, "C1", got["customerId"])
	assert.Equal(t, map[string]any{"k": "v"}, got["dimensions"])
	assert.NotContains(t, got, "userId")
	assert.NotContains(t, got, "durationInMillis")

	var back xevent.Event
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "C1", back.CustomerID())
	assert.Equal(t, ev.Time().UnixMilli(), back.Time().UnixMilli())
}

func TestParseRegion(t *testing.T) {
	r, err := xevent.ParseRegion("US_West")
	require.NoError(t, err)
	assert.Equal(t, xevent.RegionUSWest, r)

	_, err = xevent.ParseRegion("moon")
	assert.ErrorIs(t, err, xevent.ErrInvalidRegion)
}
