package source

import (
	"fmt"
	"strconv"

	"github.com/valyala/fastjson"

	"github.com/coffersTech/eventdeck/internal/model"
)

// decodeEvent converts one JSON object into an Event. Both camelCase and
// snake_case keys are accepted; numeric strings are accepted for timestamp
// and pid fields.
func decodeEvent(v *fastjson.Value) (model.Event, error) {
	if v.Type() != fastjson.TypeObject {
		return model.Event{}, fmt.Errorf("event must be an object, got %s", v.Type())
	}

	e := model.Event{
		Severity:           str(v, "severity", "severity_level", "level"),
		FormattedTimestamp: str(v, "timeStamp", "time_stamp"),
		SourceType:         str(v, "sourceType", "source_type"),
		HostName:           str(v, "hostName", "host_name", "host"),
		SourceHostname:     str(v, "sourceHostname", "source_hostname"),
		Message:            str(v, "message", "msg"),
		Timestamp:          num(v, "timestamp", "ts"),
		PID:                int64(num(v, "pid")),
		SourcePID:          int64(num(v, "sourcePid", "source_pid")),
	}

	if cf := first(v, "customFields", "custom_fields"); cf != nil && cf.Type() == fastjson.TypeObject {
		obj, _ := cf.Object()
		if obj.Len() > 0 {
			e.CustomFields = make(map[string]interface{}, obj.Len())
			obj.Visit(func(key []byte, val *fastjson.Value) {
				e.CustomFields[string(key)] = toInterface(val)
			})
		}
	}
	return e, nil
}

// decodeEvents accepts a single object or an array of objects. Records that
// are not objects are skipped and reported through skipped.
func decodeEvents(v *fastjson.Value) (events []model.Event, skipped int) {
	if v.Type() != fastjson.TypeArray {
		e, err := decodeEvent(v)
		if err != nil {
			return nil, 1
		}
		return []model.Event{e}, 0
	}
	arr, _ := v.Array()
	events = make([]model.Event, 0, len(arr))
	for _, item := range arr {
		e, err := decodeEvent(item)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped
}

func first(v *fastjson.Value, keys ...string) *fastjson.Value {
	for _, k := range keys {
		if f := v.Get(k); f != nil && f.Type() != fastjson.TypeNull {
			return f
		}
	}
	return nil
}

func str(v *fastjson.Value, keys ...string) string {
	f := first(v, keys...)
	if f == nil {
		return ""
	}
	switch f.Type() {
	case fastjson.TypeString:
		return string(f.GetStringBytes())
	case fastjson.TypeNumber:
		return f.String()
	}
	return ""
}

func num(v *fastjson.Value, keys ...string) float64 {
	f := first(v, keys...)
	if f == nil {
		return 0
	}
	switch f.Type() {
	case fastjson.TypeNumber:
		return f.GetFloat64()
	case fastjson.TypeString:
		n, err := strconv.ParseFloat(string(f.GetStringBytes()), 64)
		if err == nil {
			return n
		}
	}
	return 0
}

// toInterface mirrors what encoding/json produces for interface{} targets.
func toInterface(v *fastjson.Value) interface{} {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]interface{}, len(arr))
		for i, item := range arr {
			out[i] = toInterface(item)
		}
		return out
	case fastjson.TypeObject:
		obj, _ := v.Object()
		out := make(map[string]interface{}, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			out[string(key)] = toInterface(val)
		})
		return out
	}
	return nil
}
