package xpipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xmeter/pkg/metering/xdomain"
	"github.com/omeyang/xmeter/pkg/metering/xpipeline"
)

const prodYAML = `
sinkType: s3
fallbackSinkType: file
isAsync: true
maxBatchSize: 50
maxSecondsBetweenWrites: 2
httpRetriesCount: 5
httpTimeoutSeconds: 30
serviceName: billing
region: us-west
s3:
  bucketName: metering-ingest
  accessKey: AK
  secretKey: SK
  prefix: ingest/records
kafka:
  bootstrapServers: localhost:9092
  topic: meters
  flushTimeout: 3s
clickhouse:
  addr:
    - ch-1:9000
    - ch-2:9000
  table: events
file:
  path: /var/log/xmeter/events.jsonl
  maxSizeMB: 50
  compress: true
`

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "metering.yaml", prodYAML)

	cfg, err := xpipeline.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, xpipeline.SinkS3, cfg.SinkType)
	assert.Equal(t, xpipeline.SinkFile, cfg.FallbackSinkType)
	assert.True(t, cfg.IsAsync)
	assert.Equal(t, 50, cfg.MaxBatchSize)
	assert.Equal(t, 2*time.Second, cfg.MaxInterval())
	assert.Equal(t, 5, cfg.HTTPRetriesCount)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "billing", cfg.ServiceName)
	assert.Equal(t, "us-west", cfg.Region)

	assert.Equal(t, "metering-ingest", cfg.S3.Bucket)
	assert.Equal(t, "AK", cfg.S3.AccessKey)
	assert.Equal(t, "ingest/records", cfg.S3.Prefix)
	assert.Equal(t, "meters", cfg.Kafka.Topic)
	assert.Equal(t, 3*time.Second, cfg.Kafka.FlushTimeout)
	assert.Equal(t, []string{"ch-1:9000", "ch-2:9000"}, cfg.ClickHouse.Addr)
	assert.Equal(t, "events", cfg.ClickHouse.Table)
	assert.Equal(t, 50, cfg.File.MaxSizeMB)
	assert.True(t, cfg.File.Compress)
}

func TestLoadConfig_JSONKeepsDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "metering.json",
		`{"sinkType": "stdout", "apiKey": "k-123"}`)

	cfg, err := xpipeline.LoadConfig(path)
	require.NoError(t, err)

	want := xpipeline.DefaultConfig()
	want.SinkType = xpipeline.SinkStdout
	want.APIKey = "k-123"
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"empty path", "", xpipeline.ErrEmptyPath},
		{"unknown extension", writeFile(t, dir, "metering.toml", "sinkType = 's3'"), xpipeline.ErrUnsupportedFormat},
		{"missing file", dir + "/absent.yaml", xpipeline.ErrLoadFailed},
		{"malformed yaml", writeFile(t, dir, "bad.yaml", "sinkType: [unclosed"), xpipeline.ErrParseFailed},
		{"invalid value", writeFile(t, dir, "zero.yaml", "maxBatchSize: 0"), xpipeline.ErrInvalidConfig},
		{"unknown sink", writeFile(t, dir, "sink.json", `{"sinkType":"fax"}`), xpipeline.ErrUnknownSink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xpipeline.LoadConfig(tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigBytes_UnsupportedFormat(t *testing.T) {
	_, err := xpipeline.LoadConfigBytes([]byte("a=b"), xpipeline.Format("ini"))
	assert.ErrorIs(t, err, xpipeline.ErrUnsupportedFormat)
}

func TestLoadConfigBytes_Empty(t *testing.T) {
	cfg, err := xpipeline.LoadConfigBytes(nil, xpipeline.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, xpipeline.DefaultConfig(), cfg)
}

func TestLoadDomainConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dev-metering.json", `{"sinkType": "stdout"}`)
	writeFile(t, dir, "prod-metering.yaml", "sinkType: direct\napiKey: prod-key\nendpoint: https://ingest.example.com\n")

	if !xdomain.IsInitialized() {
		// 未初始化时为 Dev
		cfg, err := xpipeline.LoadDomainConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, xpipeline.SinkStdout, cfg.SinkType)

		require.NoError(t, xdomain.InitWith(xdomain.Prod))
	}
	require.True(t, xdomain.IsProd())

	cfg, err := xpipeline.LoadDomainConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, xpipeline.SinkDirect, cfg.SinkType)
	assert.Equal(t, "prod-key", cfg.APIKey)

	_, err = xpipeline.LoadDomainConfig(t.TempDir())
	assert.ErrorIs(t, err, xpipeline.ErrConfigNotFound)
}
