package xsink

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// DefaultClickHouseTable 默认表名
const DefaultClickHouseTable = "xmeter_events"

// ClickHouseColumns 写入列，顺序与 Append 参数一致
//
// 建表参考：
//
//	CREATE TABLE xmeter_events (
//	    unique_id String, batch_id String, meter_name String, meter_value Float64,
//	    meter_time DateTime64(3), customer_id String, customer_name String,
//	    user_id String, user_name String, service_name String, service_call String,
//	    is_error Bool, error_type String, region String, domain String,
//	    meter_type String, duration_ms Int64, dimensions Map(String, String)
//	) ENGINE = ReplacingMergeTree ORDER BY (meter_name, meter_time, unique_id)
var ClickHouseColumns = []string{
	"unique_id", "batch_id", "meter_name", "meter_value", "meter_time",
	"customer_id", "customer_name", "user_id", "user_name",
	"service_name", "service_call", "is_error", "error_type",
	"region", "domain", "meter_type", "duration_ms", "dimensions",
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouseConfig ClickHouse Sink 配置
type ClickHouseConfig struct {
	// Addr 节点地址列表（必需）
	Addr []string `koanf:"addr"`

	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Table 目标表，可带库名前缀，默认 DefaultClickHouseTable
	Table string `koanf:"table"`
}

// batchPreparer driver.Conn 满足此接口
type batchPreparer interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Close() error
}

// ClickHouse 每个批次一次 prepared batch 写入
type ClickHouse struct {
	conn   batchPreparer
	query  string
	closed atomic.Bool
}

// NewClickHouse 创建 ClickHouse Sink
func NewClickHouse(cfg ClickHouseConfig) (*ClickHouse, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("%w: clickhouse.addr", ErrMissingConfig)
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xsink: open clickhouse: %w", err)
	}
	s, err := newClickHouseWithConn(conn, cfg.Table)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func newClickHouseWithConn(conn batchPreparer, table string) (*ClickHouse, error) {
	if table == "" {
		table = DefaultClickHouseTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("xsink: invalid clickhouse table name %q", table)
	}
	return &ClickHouse{
		conn:  conn,
		query: fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(ClickHouseColumns, ", ")),
	}, nil
}

// Send 追加全部事件后一次发送；任一行失败则中止整批
func (c *ClickHouse) Send(ctx context.Context, batch Batch) error {
	if c.closed.Load() {
		return Permanent(ErrClosed)
	}
	if batch.Len() == 0 {
		return nil
	}
	b, err := c.conn.PrepareBatch(ctx, c.query)
	if err != nil {
		return fmt.Errorf("xsink: clickhouse prepare: %w", err)
	}
	for _, ev := range batch.Events {
		var durMs int64
		if d, ok := ev.Duration(); ok {
			durMs = d.Milliseconds()
		}
		dims := ev.Dimensions()
		if dims == nil {
			dims = map[string]string{}
		}
		err := b.Append(
			ev.UniqueID(), batch.ID, ev.Name(), ev.Value(), ev.Time(),
			ev.CustomerID(), ev.CustomerName(), ev.UserID(), ev.UserName(),
			ev.ServiceName(), ev.ServiceCall(), ev.IsError(), ev.ErrorKind(),
			string(ev.Region()), string(ev.Domain()), ev.MeterType(), durMs, dims,
		)
		if err != nil {
			_ = b.Abort()
			return Permanent(fmt.Errorf("xsink: clickhouse append %s: %w", ev.UniqueID(), err))
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("xsink: clickhouse send: %w", err)
	}
	return nil
}

// Close 关闭连接
func (c *ClickHouse) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
