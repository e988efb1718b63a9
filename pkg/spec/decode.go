package spec

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// Decimal is an arbitrary-precision number, as it arrives from JSON
// (decoded with UseNumber) or from a DynamoDB number attribute. It
// is converted to an int64 or float64 by Normalize.
type Decimal = json.Number

// DecodeJSON reads a single JSON value, keeping the key order of
// objects (as *Map) and numbers as Decimal.
func DecodeJSON(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return decodeValue(dec)
}

// DecodeJSONMap is DecodeJSON for documents that must be an object.
func DecodeJSONMap(r io.Reader) (*Map, error) {
	v, err := DecodeJSON(r)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return m, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "decoding JSON")
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	default:
		// string, bool, json.Number or nil
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*Map, error) {
	m := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "decoding JSON object key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "decoding end of JSON object")
	}
	return m, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	out := []interface{}{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "decoding end of JSON array")
	}
	return out, nil
}

// Normalize replaces every Decimal in a document with an int64 when
// it has no fractional part, and a float64 otherwise. Mappings and
// sequences are normalized in place; the (possibly new) value is
// returned.
func Normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case *Map:
		if v == nil {
			return v
		}
		for _, k := range v.keys {
			v.values[k] = Normalize(v.values[k])
		}
		return v
	case []interface{}:
		for i := range v {
			v[i] = Normalize(v[i])
		}
		return v
	case Decimal:
		return normalizeDecimal(v)
	default:
		return v
	}
}

func normalizeDecimal(d Decimal) interface{} {
	r, ok := new(big.Rat).SetString(string(d))
	if !ok {
		// not a number we can read; leave it for the type checks
		// further on to complain about
		return d
	}
	if r.IsInt() && r.Num().IsInt64() {
		return r.Num().Int64()
	}
	f, _ := r.Float64()
	return f
}
