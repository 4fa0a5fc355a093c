// ABOUTME: Tagged value type mirroring the rbus data-model type system
// ABOUTME: Exactly one variant is active; objects nest to arbitrary depth

package rbus

import "fmt"

type ValueType int

const (
	TypeNone ValueType = iota
	TypeBoolean
	TypeInt
	TypeUint
	TypeFloat
	TypeString
	TypeDateTime
	TypeBytes
	TypeObject
)

// DateTime carries calendar fields plus an explicit signed zone offset,
// matching the bus representation rather than a Unix instant.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	TZWest bool
	TZHour int
	TZMin  int
}

// Format renders YYYY-MM-DDThh:mm:ss±hh:mm.
func (dt DateTime) Format() string {
	sign := "+"
	if dt.TZWest {
		sign = "-"
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d%s%02d:%02d",
		dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second,
		sign, dt.TZHour, dt.TZMin)
}

// Property is one named member of an object value. Order is significant
// and names are unique within a single object.
type Property struct {
	Name  string
	Value *Value
}

// Value holds exactly one variant, selected by Type().
type Value struct {
	typ   ValueType
	b     bool
	i     int64
	u     uint64
	f     float64
	s     string
	dt    *DateTime
	bytes []byte
	props []Property
}

func NewBoolean(b bool) *Value { return &Value{typ: TypeBoolean, b: b} }

func NewInt(i int64) *Value { return &Value{typ: TypeInt, i: i} }

func NewUint(u uint64) *Value { return &Value{typ: TypeUint, u: u} }

func NewFloat(f float64) *Value { return &Value{typ: TypeFloat, f: f} }

func NewString(s string) *Value { return &Value{typ: TypeString, s: s} }

func NewDateTime(dt DateTime) *Value { return &Value{typ: TypeDateTime, dt: &dt} }

func NewBytes(b []byte) *Value { return &Value{typ: TypeBytes, bytes: b} }

func NewObject(props ...Property) *Value { return &Value{typ: TypeObject, props: props} }

func (v *Value) Type() ValueType {
	if v == nil {
		return TypeNone
	}
	return v.typ
}

func (v *Value) Bool() bool { return v.b }

func (v *Value) Int() int64 { return v.i }

func (v *Value) Uint() uint64 { return v.u }

func (v *Value) Float() float64 { return v.f }

func (v *Value) Str() string { return v.s }

func (v *Value) Time() *DateTime { return v.dt }

func (v *Value) Bytes() []byte { return v.bytes }

func (v *Value) Properties() []Property { return v.props }

// Get returns the named property of an object value, or nil.
func (v *Value) Get(name string) *Value {
	if v == nil || v.typ != TypeObject {
		return nil
	}
	for _, p := range v.props {
		if p.Name == name {
			return p.Value
		}
	}
	return nil
}
