package xevent

import (
	"encoding/json"
	"time"

	"github.com/omeyang/xmeter/internal/domain"
	"github.com/omeyang/xmeter/pkg/metering/xscope"
)

// wireEvent ingest 接口的 JSON 形态
type wireEvent struct {
	UniqueID          string            `json:"uniqueId"`
	MeterAPIName      string            `json:"meterApiName"`
	MeterValue        float64           `json:"meterValue"`
	MeterTimeInMillis int64             `json:"meterTimeInMillis"`
	CustomerID        string            `json:"customerId,omitempty"`
	CustomerName      string            `json:"customerName,omitempty"`
	UserID            string            `json:"userId,omitempty"`
	UserName          string            `json:"userName,omitempty"`
	ServiceName       string            `json:"serviceName,omitempty"`
	ServiceCall       string            `json:"serviceCall,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
	ErrorKind         string            `json:"errorType,omitempty"`
	Region            string            `json:"region,omitempty"`
	Domain            string            `json:"domain,omitempty"`
	MeterType         string            `json:"meterType,omitempty"`
	StartTimeInMillis int64             `json:"startTimeInMillis,omitempty"`
	EndTimeInMillis   int64             `json:"endTimeInMillis,omitempty"`
	DurationInMillis  *int64            `json:"durationInMillis,omitempty"`
	Dimensions        map[string]string `json:"dimensions,omitempty"`
}

// MarshalJSON 按 ingest 接口形态编码
func (e *Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		UniqueID:          e.uniqueID,
		MeterAPIName:      e.name,
		MeterValue:        e.value,
		MeterTimeInMillis: e.time.UnixMilli(),
		CustomerID:        e.CustomerID(),
		CustomerName:      e.CustomerName(),
		UserID:            e.UserID(),
		UserName:          e.UserName(),
		ServiceName:       e.serviceName,
		ServiceCall:       e.serviceCall,
		IsError:           e.isError,
		ErrorKind:         e.errorKind,
		Region:            string(e.region),
		Domain:            string(e.domain),
		MeterType:         e.meterType,
		Dimensions:        e.dimensions,
	}
	if !e.startTime.IsZero() {
		w.StartTimeInMillis = e.startTime.UnixMilli()
	}
	if !e.endTime.IsZero() {
		w.EndTimeInMillis = e.endTime.UnixMilli()
	}
	if e.hasDur {
		ms := e.duration.Milliseconds()
		w.DurationInMillis = &ms
	}
	return json.Marshal(w)
}

// UnmarshalJSON 解码 ingest 形态，时间精度为毫秒
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		uniqueID:    w.UniqueID,
		name:        w.MeterAPIName,
		value:       w.MeterValue,
		time:        time.UnixMilli(w.MeterTimeInMillis),
		serviceName: w.ServiceName,
		serviceCall: w.ServiceCall,
		isError:     w.IsError,
		errorKind:   w.ErrorKind,
		region:      Region(w.Region),
		domain:      domain.Type(w.Domain),
		meterType:   w.MeterType,
		dimensions:  w.Dimensions,
	}
	switch {
	case w.CustomerID != "" || w.CustomerName != "":
		e.identity = xscope.Identity{Kind: xscope.IdentityCustomer, ID: w.CustomerID, Name: w.CustomerName}
	case w.UserID != "" || w.UserName != "":
		e.identity = xscope.Identity{Kind: xscope.IdentityUser, ID: w.UserID, Name: w.UserName}
	}
	if w.StartTimeInMillis != 0 {
		e.startTime = time.UnixMilli(w.StartTimeInMillis)
	}
	if w.EndTimeInMillis != 0 {
		e.endTime = time.UnixMilli(w.EndTimeInMillis)
	}
	if w.DurationInMillis != nil {
		e.duration = time.Duration(*w.DurationInMillis) * time.Millisecond
		e.hasDur = true
	}
	return nil
}
