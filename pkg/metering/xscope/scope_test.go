package xscope_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xscope"
)

func TestNew_StartsEmpty(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()

	active, ok := xscope.Active(ctx)
	require.True(t, ok)
	assert.Same(t, s, active)

	snap := s.Snapshot()
	assert.True(t, snap.Active)
	assert.False(t, snap.HasIdentity())
	assert.Empty(t, snap.Dimensions)
}

func TestNew_NilContext(t *testing.T) {
	//nolint:staticcheck // 测试 nil ctx 兜底
	ctx, s := xscope.New(nil)
	defer s.Close()
	_, ok := xscope.Active(ctx)
	assert.True(t, ok)
}

func TestActive_NoScope(t *testing.T) {
	_, ok := xscope.Active(context.Background())
	assert.False(t, ok)

	_, ok = xscope.CurrentProperties(context.Background())
	assert.False(t, ok)

	assert.Equal(t, xscope.Snapshot{}, xscope.Current(context.Background()))
}

func TestIdentity_MutuallyExclusive(t *testing.T) {
	_, s := xscope.New(context.Background())
	defer s.Close()

	s.SetCustomer("C1", "Acme")
	snap := s.Snapshot()
	assert.Equal(t, "C1", snap.CustomerID())
	assert.Empty(t, snap.UserID())

	s.SetUser("U1", "alice")
	snap = s.Snapshot()
	assert.Empty(t, snap.CustomerID())
	assert.Equal(t, "U1", snap.UserID())
	assert.Equal(t, "alice", snap.Identity.Name)
	assert.Equal(t, "user", snap.Identity.Kind.String())

	s.ClearIdentity()
	assert.False(t, s.Snapshot().HasIdentity())
}

func TestProperties_Chaining(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()

	p, ok := xscope.CurrentProperties(ctx)
	require.True(t, ok)
	p.SetServiceName("billing").
		SetServiceCall("charge").
		SetDimensions(map[string]string{"a": "1", "b": "2"}).
		SetDimension("c", "3")

	assert.Same(t, s, p.Scope())
	assert.Equal(t, "billing", p.ServiceName())
	assert.Equal(t, "charge", p.ServiceCall())
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, p.Dimensions())
	assert.Empty(t, s.Snapshot().Collisions)
}

func TestProperties_CollisionRecorded(t *testing.T) {
	_, s := xscope.New(context.Background())
	defer s.Close()

	s.Properties().
		SetDimensions(map[string]string{"a": "1"}).
		SetDimensions(map[string]string{"a": "2", "b": "3"}).
		SetDimension("b", "4")

	snap := s.Snapshot()
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, snap.Dimensions)
	assert.Equal(t, []string{"a", "b"}, snap.Collisions)
}

func TestSnapshot_IsCopy(t *testing.T) {
	_, s := xscope.New(context.Background())
	defer s.Close()
	s.Properties().SetDimension("k", "v")

	snap := s.Snapshot()
	snap.Dimensions["k"] = "mutated"
	assert.Equal(t, "v", s.Properties().Dimensions()["k"])
}

func TestClose_Idempotent(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	s.SetCustomer("C1", "Acme")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())

	_, ok := xscope.Active(ctx)
	assert.False(t, ok, "closed scope must not stay active through its ctx")
	assert.Equal(t, xscope.Snapshot{}, s.Snapshot())

	// 关闭后的写入被忽略
	s.SetCustomer("C2", "Other")
	s.Properties().SetServiceName("x").SetDimension("k", "v")
	assert.True(t, s.Identity().IsZero())
	assert.Empty(t, s.Properties().ServiceName())
}

func TestNested_StartsEmptyAndRestoresOuter(t *testing.T) {
	outerCtx, outer := xscope.New(context.Background())
	defer outer.Close()
	outer.SetCustomer("C1", "Acme")

	innerCtx, inner := xscope.New(outerCtx)
	snap := xscope.Current(innerCtx)
	assert.True(t, snap.Active)
	assert.False(t, snap.HasIdentity(), "nested scope starts empty")

	inner.SetUser("U1", "bob")
	assert.Equal(t, "U1", xscope.Current(innerCtx).UserID())
	assert.Equal(t, "C1", xscope.Current(outerCtx).CustomerID())

	require.NoError(t, inner.Close())
	active, ok := xscope.Active(innerCtx)
	require.True(t, ok)
	assert.Same(t, outer, active)
	assert.Equal(t, "C1", xscope.Current(innerCtx).CustomerID())
}

func TestEnsure(t *testing.T) {
	ctx, s, created := xscope.Ensure(context.Background())
	require.True(t, created)
	defer s.Close()

	ctx2, s2, created2 := xscope.Ensure(ctx)
	assert.False(t, created2)
	assert.Same(t, s, s2)
	assert.Equal(t, ctx, ctx2)
}

func TestDo_ClosesOnEveryPath(t *testing.T) {
	var captured *xscope.Scope
	errBoom := errors.New("boom")

	err := xscope.Do(context.Background(), func(ctx context.Context, s *xscope.Scope) error {
		captured = s
		s.SetCustomer("C1", "Acme")
		assert.Equal(t, "C1", xscope.Current(ctx).CustomerID())
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.True(t, captured.Closed())

	assert.Panics(t, func() {
		_ = xscope.Do(context.Background(), func(_ context.Context, s *xscope.Scope) error {
			captured = s
			panic("boom")
		})
	})
	assert.True(t, captured.Closed())
}

func TestScope_ConcurrentAccess(t *testing.T) {
	ctx, s := xscope.New(context.Background())
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				s.SetCustomer("C", "n")
			} else {
				s.SetUser("U", "n")
			}
			s.Properties().SetDimension("k", "v")
		}()
		go func() {
			defer wg.Done()
			snap := xscope.Current(ctx)
			// 身份在任一时刻只能是一种
			assert.False(t, snap.CustomerID() != "" && snap.UserID() != "")
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, map[string]string{"k": "v"}, snap.Dimensions)
	assert.Len(t, snap.Collisions, 15)
}
