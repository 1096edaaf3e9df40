// README: Record is the untyped document body; typed accessors tolerate driver-specific number types.
package docstore

import (
	"reflect"
	"time"
)

func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int64 accepts the integer and float encodings different backends return.
func (r Record) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (r Record) Float64(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func (r Record) Map(key string) Record {
	switch v := r[key].(type) {
	case Record:
		return v
	case map[string]any:
		return Record(v)
	}
	return nil
}

func (r Record) Time(key string) time.Time {
	t, _ := r[key].(time.Time)
	return t
}

// Clone returns a deep copy with values normalised to the encodings listed on Record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64, time.Time, Increment:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case Record:
		return x.Clone()
	case map[string]any:
		return Record(x).Clone()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	}
	return v
}

// plain converts a Record tree into map[string]interface{} for SDKs that reflect on values.
func plain(r Record) map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		switch x := v.(type) {
		case Record:
			out[k] = plain(x)
		case map[string]any:
			out[k] = plain(Record(x))
		default:
			out[k] = normalize(v)
		}
	}
	return out
}
