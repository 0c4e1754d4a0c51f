package xlog_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/observability/xlog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"info+2", slog.LevelInfo + 2},
	}
	for _, tt := range tests {
		got, err := xlog.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"trace", "", "loud"} {
		got, err := xlog.ParseLevel(bad)
		require.Error(t, err, bad)
		assert.Equal(t, slog.LevelInfo, got)
	}
}
