package xbatch

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/sonyflake/v2"
)

// machineIDBits sonyflake v2 默认机器位宽
const machineIDBits = 16

// idGenerator 生成进程内单调递增的批次 ID
type idGenerator struct {
	next func() (int64, error)
	seq  atomic.Int64
}

func newIDGenerator() (*idGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		MachineID: machineID,
	})
	if err != nil {
		return nil, fmt.Errorf("xbatch: create id generator: %w", err)
	}
	return &idGenerator{next: sf.NextID}, nil
}

// NewID 返回新批次 ID。sonyflake 超出时间范围时退化为本地序号。
func (g *idGenerator) NewID() string {
	if id, err := g.next(); err == nil {
		return strconv.FormatInt(id, 10)
	}
	return "local-" + strconv.FormatInt(g.seq.Add(1), 10)
}

// machineID 由 POD_NAME 或主机名哈希得到，避免依赖私有 IP
func machineID() (int, error) {
	name := os.Getenv("POD_NAME")
	if name == "" {
		h, err := os.Hostname()
		if err != nil {
			return 0, fmt.Errorf("xbatch: hostname: %w", err)
		}
		name = h
	}
	return int(xxhash.Sum64String(name) & (1<<machineIDBits - 1)), nil
}
