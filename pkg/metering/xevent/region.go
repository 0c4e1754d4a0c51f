package xevent

import "strings"

// Region 事件发生的区域
type Region string

// 已知区域
const (
	RegionUSWest    Region = "us-west"
	RegionUSEast    Region = "us-east"
	RegionEUCentral Region = "eu-central"
	RegionAPSouth   Region = "ap-south"
)

var knownRegions = map[Region]struct{}{
	RegionUSWest:    {},
	RegionUSEast:    {},
	RegionEUCentral: {},
	RegionAPSouth:   {},
}

// IsValid 判断区域是否已知
func (r Region) IsValid() bool {
	_, ok := knownRegions[r]
	return ok
}

// String 返回区域名
func (r Region) String() string {
	return string(r)
}

// ParseRegion 解析区域名，大小写与下划线不敏感（"US_West" -> RegionUSWest）
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !r.IsValid() {
		return "", ErrInvalidRegion
	}
	return r, nil
}
