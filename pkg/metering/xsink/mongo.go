package xsink

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xmeter/pkg/metering/xevent"
)

// Mongo 默认值
const (
	DefaultMongoDatabase   = "xmeter"
	DefaultMongoCollection = "events"
	mongoDisconnectTimeout = 5 * time.Second
	duplicateKeyCode       = 11000
)

// MongoConfig Mongo Sink 配置
type MongoConfig struct {
	// URI 连接串（必需）
	URI string `koanf:"uri"`

	// Database / Collection 目标集合
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

// mongoInserter *mongo.Collection 满足此接口
type mongoInserter interface {
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
}

// Mongo 每个批次一次无序 InsertMany，_id 为事件唯一 ID
//
// 重试同一批次时已写入的文档以重复键失败，不会产生重复记录。
type Mongo struct {
	client *mongo.Client
	coll   mongoInserter
	closed atomic.Bool
}

// NewMongo 创建 Mongo Sink
func NewMongo(cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: mongo.uri", ErrMissingConfig)
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("xsink: connect mongo: %w", err)
	}
	return &Mongo{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

// Send 写入批次
func (m *Mongo) Send(ctx context.Context, batch Batch) error {
	if m.closed.Load() {
		return Permanent(ErrClosed)
	}
	if batch.Len() == 0 {
		return nil
	}
	docs := make([]any, 0, batch.Len())
	for _, ev := range batch.Events {
		docs = append(docs, eventDocument(batch.ID, ev))
	}
	_, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicateKeys(err) {
		return fmt.Errorf("xsink: mongo insert: %w", err)
	}
	return nil
}

// onlyDuplicateKeys 判断错误是否全部为重复键（重试已写入的批次）
func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

func eventDocument(batchID string, ev *xevent.Event) bson.D {
	doc := bson.D{
		{Key: "_id", Value: ev.UniqueID()},
		{Key: "batchId", Value: batchID},
		{Key: "meterApiName", Value: ev.Name()},
		{Key: "meterValue", Value: ev.Value()},
		{Key: "meterTime", Value: ev.Time()},
	}
	if id := ev.Identity(); !id.IsZero() {
		doc = append(doc,
			bson.E{Key: id.Kind.String() + "Id", Value: id.ID},
			bson.E{Key: id.Kind.String() + "Name", Value: id.Name})
	}
	if ev.ServiceName() != "" {
		doc = append(doc, bson.E{Key: "serviceName", Value: ev.ServiceName()})
	}
	if ev.ServiceCall() != "" {
		doc = append(doc, bson.E{Key: "serviceCall", Value: ev.ServiceCall()})
	}
	if ev.IsError() {
		doc = append(doc, bson.E{Key: "isError", Value: true}, bson.E{Key: "errorType", Value: ev.ErrorKind()})
	}
	if ev.MeterType() != "" {
		doc = append(doc, bson.E{Key: "meterType", Value: ev.MeterType()})
	}
	if d, ok := ev.Duration(); ok {
		doc = append(doc, bson.E{Key: "durationInMillis", Value: d.Milliseconds()})
	}
	if dims := ev.Dimensions(); len(dims) > 0 {
		doc = append(doc, bson.E{Key: "dimensions", Value: dims})
	}
	return doc
}

// Close 断开连接
func (m *Mongo) Close() error {
	if !m.closed.CompareAndSwap(false, true) || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
