// Package jsondoc holds the representation of platform JSON objects
// (checkouts, payments, orders, refunds) that flow through the orchestrator
// without a fixed schema.
package jsondoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Doc is a decoded JSON object. Numbers are int64 when integral, float64 otherwise.
type Doc map[string]interface{}

// Decode parses raw into a Doc.
func Decode(raw []byte) (Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v map[string]interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	return Doc(normalize(v).(map[string]interface{})), nil
}

// UnmarshalJSON decodes with the same number handling as Decode.
func (d *Doc) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = nil
		return nil
	}
	v, err := Decode(b)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

// Has reports whether key is present with a non-nil value.
func (d Doc) Has(key string) bool {
	if d == nil {
		return false
	}
	v, ok := d[key]
	return ok && v != nil
}

// Empty reports whether key is absent, nil, "" or an empty list/object.
func (d Doc) Empty(key string) bool {
	if !d.Has(key) {
		return true
	}
	switch t := d[key].(type) {
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	case Doc:
		return len(t) == 0
	}
	return false
}

// Str returns the value of key rendered as a string; numbers and booleans are
// formatted, anything else yields "".
func (d Doc) Str(key string) string {
	if !d.Has(key) {
		return ""
	}
	return scalarString(d[key])
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Bool returns key as a bool; only a true boolean value yields true.
func (d Doc) Bool(key string) bool {
	b, ok := d[key].(bool)
	return ok && b
}

// Float returns key as a float64, parsing strings such as "10.00".
func (d Doc) Float(key string) (float64, bool) {
	switch t := d[key].(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

// Doc returns the nested object under key, or nil.
func (d Doc) Doc(key string) Doc {
	switch t := d[key].(type) {
	case Doc:
		return t
	case map[string]interface{}:
		return Doc(t)
	}
	return nil
}

// List returns the array under key, or nil.
func (d Doc) List(key string) []interface{} {
	switch t := d[key].(type) {
	case []interface{}:
		return t
	case []Doc:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	}
	return nil
}

// Clone returns a deep copy of d.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	return Doc(cloneValue(map[string]interface{}(d)).(map[string]interface{}))
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Doc:
		return cloneValue(map[string]interface{}(t))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge copies every key of src into d, overwriting existing keys.
func (d Doc) Merge(src Doc) Doc {
	if d == nil {
		d = Doc{}
	}
	for k, v := range src {
		d[k] = v
	}
	return d
}

// AsDoc converts an element of a List to a Doc.
func AsDoc(v interface{}) Doc {
	switch t := v.(type) {
	case Doc:
		return t
	case map[string]interface{}:
		return Doc(t)
	}
	return nil
}
