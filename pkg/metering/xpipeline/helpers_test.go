package xpipeline_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xpipeline"
	"github.com/omeyang/xmeter/pkg/metering/xsink"
)

var eventTime = time.Date(2026, 5, 7, 9, 30, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// memoryConfig 同步、逐批投递的内存管道配置
func memoryConfig() xpipeline.Config {
	cfg := xpipeline.DefaultConfig()
	cfg.SinkType = xpipeline.SinkMemory
	cfg.MaxBatchSize = 1
	cfg.HTTPRetriesCount = 0
	return cfg
}

// newPipeline 创建写入 mem 的管道，测试结束时关闭
func newPipeline(t *testing.T, cfg xpipeline.Config, mem *xsink.Memory) *xpipeline.Pipeline {
	t.Helper()
	p, err := xpipeline.New(cfg, xpipeline.WithSink(mem), xpipeline.WithLogger(discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() }) //nolint:errcheck // 幂等关闭
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
