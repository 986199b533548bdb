package vectorstore

import (
	"math"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// toPayload converts an attribute map into Qdrant payload values.
//
// JSON decoding delivers every number as float64; integral values are stored
// as integers so that DocId/ChunkId filters (integer matches) hit them.
func toPayload(attrs map[string]any) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(attrs))
	for k, v := range attrs {
		payload[k] = toValue(v)
	}
	return payload
}

func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case float32:
		return toValue(float64(val))
	case []any:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			values[i] = toValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	case map[string]any:
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: toPayload(val)}}}
	default:
		// Unknown types are dropped to null rather than failing the write.
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}
	}
}

// fromPayload converts Qdrant payload values back into a plain map.
// Fields with unknown kinds come back as nil rather than failing.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	attrs := make(map[string]any, len(payload))
	for k, v := range payload {
		attrs[k] = fromValue(v)
	}
	return attrs
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]any, len(val.ListValue.GetValues()))
		for i, item := range val.ListValue.GetValues() {
			items[i] = fromValue(item)
		}
		return items
	case *qdrant.Value_StructValue:
		return fromPayload(val.StructValue.GetFields())
	default:
		return nil
	}
}

// pointID renders a Qdrant point identifier as a string.
func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	default:
		return ""
	}
}
