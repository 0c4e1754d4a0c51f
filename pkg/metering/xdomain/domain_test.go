package xdomain_test

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xdomain"
)

// withEnv 临时设置环境变量并在测试结束后恢复
func withEnv(t *testing.T, value string, set bool) {
	t.Helper()
	old, had := os.LookupEnv(xdomain.EnvMeteringDomain)
	t.Cleanup(func() {
		xdomain.Reset()
		if had {
			_ = os.Setenv(xdomain.EnvMeteringDomain, old)
		} else {
			_ = os.Unsetenv(xdomain.EnvMeteringDomain)
		}
	})
	if set {
		require.NoError(t, os.Setenv(xdomain.EnvMeteringDomain, value))
	} else {
		require.NoError(t, os.Unsetenv(xdomain.EnvMeteringDomain))
	}
}

func TestInit_FromEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  xdomain.Domain
	}{
		{"unset defaults to Dev", "", false, xdomain.Dev},
		{"blank defaults to Dev", "  ", true, xdomain.Dev},
		{"Dev", "Dev", true, xdomain.Dev},
		{"prod lowercase", "prod", true, xdomain.Prod},
		{"Prod", "Prod", true, xdomain.Prod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.value, tt.set)
			require.NoError(t, xdomain.Init())
			assert.Equal(t, tt.want, xdomain.Current())
			assert.True(t, xdomain.IsInitialized())
		})
	}
}

func TestInit_Invalid(t *testing.T) {
	withEnv(t, "staging", true)
	err := xdomain.Init()
	require.ErrorIs(t, err, xdomain.ErrInvalidDomain)
	assert.False(t, xdomain.IsInitialized())
}

func TestInit_Twice(t *testing.T) {
	withEnv(t, "Prod", true)
	require.NoError(t, xdomain.Init())
	assert.ErrorIs(t, xdomain.Init(), xdomain.ErrAlreadyInitialized)
	assert.ErrorIs(t, xdomain.InitWith(xdomain.Dev), xdomain.ErrAlreadyInitialized)
	assert.True(t, xdomain.IsProd())
}

func TestInitWith(t *testing.T) {
	withEnv(t, "", false)

	err := xdomain.InitWith(xdomain.Domain("Staging"))
	require.ErrorIs(t, err, xdomain.ErrInvalidDomain)

	require.NoError(t, xdomain.InitWith(xdomain.Prod))
	d, err := xdomain.Require()
	require.NoError(t, err)
	assert.Equal(t, xdomain.Prod, d)
	assert.False(t, xdomain.IsDev())
}

func TestCurrent_Uninitialized(t *testing.T) {
	withEnv(t, "", false)
	assert.Equal(t, xdomain.Dev, xdomain.Current())
	_, err := xdomain.Require()
	assert.ErrorIs(t, err, xdomain.ErrNotInitialized)
}

func TestMustInit_Panics(t *testing.T) {
	withEnv(t, "nope", true)
	assert.Panics(t, xdomain.MustInit)
}

func TestParse(t *testing.T) {
	d, err := xdomain.Parse("development")
	require.NoError(t, err)
	assert.Equal(t, xdomain.Dev, d)

	_, err = xdomain.Parse("")
	assert.ErrorIs(t, err, xdomain.ErrInvalidDomain)
}

func TestConcurrentRead(t *testing.T) {
	withEnv(t, "", false)
	require.NoError(t, xdomain.InitWith(xdomain.Prod))

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if xdomain.Current() != xdomain.Prod {
					t.Error("unexpected domain")
					return
				}
			}
		}()
	}
	wg.Wait()
}
