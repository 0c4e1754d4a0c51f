package xsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 默认值
const (
	DefaultS3Endpoint = "s3.amazonaws.com"
	DefaultS3Prefix   = "ingest/records"
)

// S3Config 对象存储兜底配置
type S3Config struct {
	// Bucket 目标桶（必需）
	Bucket string `koanf:"bucketName"`

	// AccessKey / SecretKey 静态凭证
	AccessKey string `koanf:"accessKey"`
	SecretKey string `koanf:"secretKey"`

	// Endpoint S3 兼容端点，默认 DefaultS3Endpoint
	Endpoint string `koanf:"endpoint"`

	// Region 桶所在区域，可空
	Region string `koanf:"region"`

	// Prefix 对象键前缀，默认 DefaultS3Prefix
	Prefix string `koanf:"prefix"`

	// Insecure 为 true 时使用 http
	Insecure bool `koanf:"insecure"`
}

// objectPutter *minio.Client 满足此接口
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3 每个批次写一个 JSON 对象
//
// 对象键：<prefix>/year=YYYY/month=MM/day=DD/hour=HH/<batchID>.json（UTC）。
type S3 struct {
	cfg    S3Config
	client objectPutter
	closed atomic.Bool
}

// NewS3 创建 S3 Sink
func NewS3(cfg S3Config) (*S3, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("xsink: create s3 client: %w", err)
	}
	return &S3{cfg: cfg, client: client}, nil
}

func newS3WithClient(cfg S3Config, client objectPutter) (*S3, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &S3{cfg: cfg, client: client}, nil
}

func (c S3Config) withDefaults() (S3Config, error) {
	if c.Bucket == "" {
		return c, fmt.Errorf("%w: s3.bucketName", ErrMissingConfig)
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultS3Endpoint
	}
	if c.Prefix == "" {
		c.Prefix = DefaultS3Prefix
	}
	return c, nil
}

// ObjectName 返回批次对应的对象键
func (s *S3) ObjectName(batch Batch) string {
	t := batch.CreatedAt.UTC()
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return path.Join(s.cfg.Prefix,
		fmt.Sprintf("year=%04d", t.Year()),
		fmt.Sprintf("month=%02d", int(t.Month())),
		fmt.Sprintf("day=%02d", t.Day()),
		fmt.Sprintf("hour=%02d", t.Hour()),
		batch.ID+".json")
}

// Send 上传批次
func (s *S3) Send(ctx context.Context, batch Batch) error {
	if s.closed.Load() {
		return Permanent(ErrClosed)
	}
	if batch.Len() == 0 {
		return nil
	}
	body, err := json.Marshal(batch.Events)
	if err != nil {
		return Permanent(fmt.Errorf("xsink: encode batch %s: %w", batch.ID, err))
	}
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, s.ObjectName(batch), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("xsink: put object: %w", err)
	}
	return nil
}

// Close 标记关闭
func (s *S3) Close() error {
	s.closed.Store(true)
	return nil
}
