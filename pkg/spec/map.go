package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Map is a mapping whose keys keep the order in which they were
// first set. Job documents and overrides are decoded into Maps, so
// that merging (which is sensitive to key order, because of
// conditional overrides) is reproducible.
//
// A nil *Map behaves as an empty mapping for reading.
type Map struct {
	keys   []string
	values map[string]interface{}
}

func NewMap() *Map {
	return &Map{values: map[string]interface{}{}}
}

// MapOf builds a Map from alternating keys and values; it's mostly
// useful in tests.
func MapOf(kvs ...interface{}) *Map {
	if len(kvs)%2 != 0 {
		panic("MapOf needs an even number of arguments")
	}
	m := NewMap()
	for i := 0; i < len(kvs); i += 2 {
		m.Set(kvs[i].(string), kvs[i+1])
	}
	return m
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in order. The slice is the caller's to keep.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

func (m *Map) Get(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set assigns a value. A key already present keeps its position;
// a new key goes at the end.
func (m *Map) Set(key string, value interface{}) {
	if m.values == nil {
		m.values = map[string]interface{}{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// GetMap returns the value at key if it is a mapping.
func (m *Map) GetMap(key string) (*Map, bool) {
	v, _ := m.Get(key)
	sub, ok := v.(*Map)
	return sub, ok && sub != nil
}

// GetSlice returns the value at key if it is a sequence.
func (m *Map) GetSlice(key string) ([]interface{}, bool) {
	v, _ := m.Get(key)
	s, ok := v.([]interface{})
	return s, ok
}

// GetString returns the value at key if it is a string.
func (m *Map) GetString(key string) (string, bool) {
	v, _ := m.Get(key)
	s, ok := v.(string)
	return s, ok
}

// Copy returns a deep copy; nothing in the result is shared with m.
func (m *Map) Copy() *Map {
	if m == nil {
		return NewMap()
	}
	c := &Map{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]interface{}, len(m.values)),
	}
	copy(c.keys, m.keys)
	for k, v := range m.values {
		c.values[k] = Copy(v)
	}
	return c
}

// Copy deep copies a document value.
func Copy(v interface{}) interface{} {
	switch v := v.(type) {
	case *Map:
		if v == nil {
			return (*Map)(nil)
		}
		return v.Copy()
	case []interface{}:
		if v == nil {
			return []interface{}(nil)
		}
		c := make([]interface{}, len(v))
		for i := range v {
			c[i] = Copy(v[i])
		}
		return c
	case []byte:
		if v == nil {
			return []byte(nil)
		}
		return append([]byte{}, v...)
	default:
		return v
	}
}

func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, errors.Wrapf(err, "encoding value at %q", k)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("expected a JSON object, got %T", v)
	}
	*m = *decoded
	return nil
}

// UnmarshalYAML decodes a YAML mapping, keeping the order in which
// keys appear in the source.
func (m *Map) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var slice yaml.MapSlice
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*m = *fromMapSlice(slice)
	return nil
}

func fromMapSlice(slice yaml.MapSlice) *Map {
	m := NewMap()
	for _, item := range slice {
		m.Set(fmt.Sprint(item.Key), fromYAML(item.Value))
	}
	return m
}

func fromYAML(v interface{}) interface{} {
	switch v := v.(type) {
	case yaml.MapSlice:
		return fromMapSlice(v)
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(v))
		byKey := map[string]interface{}{}
		for k, val := range v {
			s := fmt.Sprint(k)
			keys = append(keys, s)
			byKey[s] = val
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, fromYAML(byKey[k]))
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = fromYAML(v[i])
		}
		return out
	case int:
		return int64(v)
	default:
		return v
	}
}
