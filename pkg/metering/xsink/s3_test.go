package xsink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket, name, contentType string
	body                      []byte
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64,
	opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{bucket: bucket, name: name, contentType: opts.ContentType, body: body})
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func TestS3Config_Validation(t *testing.T) {
	_, err := NewS3(S3Config{})
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestNewS3_BuildsClient(t *testing.T) {
	s, err := NewS3(S3Config{Bucket: "meters", AccessKey: "ak", SecretKey: "sk", Endpoint: "localhost:9000", Insecure: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestS3_Send(t *testing.T) {
	fp := &fakePutter{}
	s, err := newS3WithClient(S3Config{Bucket: "meters"}, fp)
	require.NoError(t, err)

	batch := newBatch(t, "42", 2)
	require.NoError(t, s.Send(context.Background(), batch))

	require.Len(t, fp.calls, 1)
	call := fp.calls[0]
	assert.Equal(t, "meters", call.bucket)
	assert.Equal(t, "ingest/records/year=2026/month=05/day=07/hour=09/42.json", call.name)
	assert.Equal(t, "application/json", call.contentType)

	var events []map[string]any
	require.NoError(t, json.Unmarshal(call.body, &events))
	assert.Len(t, events, 2)
}

func TestS3_CustomPrefixAndErrors(t *testing.T) {
	fp := &fakePutter{err: errors.New("503 slow down")}
	s, err := newS3WithClient(S3Config{Bucket: "b", Prefix: "custom"}, fp)
	require.NoError(t, err)

	assert.Equal(t, "custom/year=2026/month=05/day=07/hour=09/x.json",
		s.ObjectName(Batch{ID: "x", CreatedAt: batchTime}))

	err = s.Send(context.Background(), newBatch(t, "b", 1))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))

	require.NoError(t, s.Send(context.Background(), Batch{}), "empty batch is a no-op")

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(context.Background(), newBatch(t, "b", 1)), ErrClosed)
}
