// ABOUTME: Bidirectional conversion between bus values and JSON values
// ABOUTME: ToJSON is total and never fails; FromJSON infers the variant by JSON kind

package marshal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/harper/rbus-gateway/internal/rbus"
)

// ErrInvalidValue reports a JSON value with no bus representation.
var ErrInvalidValue = errors.New("invalid value")

// Object is an insertion-ordered JSON object. encoding/json maps do not
// preserve key order, and bus object properties are ordered.
type Object struct {
	keys []string
	vals []any
}

func NewObject() *Object {
	return &Object{}
}

func (o *Object) Set(key string, v any) {
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, v)
}

func (o *Object) Len() int {
	return len(o.keys)
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToJSON converts a bus value to a JSON-marshallable value. It is total:
// absent or unrepresentable values become JSON null (nil).
func ToJSON(v *rbus.Value) any {
	switch v.Type() {
	case rbus.TypeBoolean:
		return v.Bool()
	case rbus.TypeInt:
		return v.Int()
	case rbus.TypeUint:
		return v.Uint()
	case rbus.TypeFloat:
		return v.Float()
	case rbus.TypeString:
		return v.Str()
	case rbus.TypeDateTime:
		dt := v.Time()
		if dt == nil {
			return nil
		}
		return dt.Format()
	case rbus.TypeBytes:
		b := v.Bytes()
		if len(b) == 0 {
			return nil
		}
		out := make([]int, len(b))
		for i, c := range b {
			out[i] = int(c)
		}
		return out
	case rbus.TypeObject:
		obj := NewObject()
		for _, p := range v.Properties() {
			if p.Name == "" || p.Value == nil {
				continue
			}
			obj.Set(p.Name, ToJSON(p.Value))
		}
		return obj
	default:
		return nil
	}
}

// FromJSON converts a raw JSON document to a bus value. Inference is by
// JSON kind; an array becomes a byte sequence only when every element is
// an integer in [0,255]. Object entries whose values fail to convert are
// skipped rather than failing the whole object. JSON null has no bus
// representation.
func FromJSON(raw []byte) (*rbus.Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrInvalidValue
	}
	switch trimmed[0] {
	case '{':
		return objectFromJSON(trimmed)
	case '[':
		return bytesFromJSON(trimmed)
	default:
		return scalarFromJSON(trimmed)
	}
}

func scalarFromJSON(raw []byte) (*rbus.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	switch t := v.(type) {
	case bool:
		return rbus.NewBoolean(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return rbus.NewInt(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return rbus.NewFloat(f), nil
	case string:
		return rbus.NewString(t), nil
	default:
		// null or anything else
		return nil, ErrInvalidValue
	}
}

func bytesFromJSON(raw []byte) (*rbus.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // opening '['
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	var out []byte
	for dec.More() {
		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return nil, fmt.Errorf("%w: array element is not an integer", ErrInvalidValue)
		}
		n, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: array element %s outside byte range", ErrInvalidValue, num)
		}
		out = append(out, byte(n))
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return rbus.NewBytes(out), nil
}

func objectFromJSON(raw []byte) (*rbus.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // opening '{'
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	var props []rbus.Property
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, ErrInvalidValue
		}
		var member json.RawMessage
		if err := dec.Decode(&member); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		child, err := FromJSON(member)
		if err != nil {
			continue // unconvertible member, skip the entry
		}
		props = append(props, rbus.Property{Name: key, Value: child})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return rbus.NewObject(props...), nil
}
