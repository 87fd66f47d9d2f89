// Package ldvalue provides an abstraction of the general JSON value type used throughout flag
// evaluation: flag variations, clause values, and user attributes. It supports the standard
// JSON data types of null, boolean, number (float64), string, array, and object, and guarantees
// structural equality and immutability as long as callers stick to the exported constructors.
package ldvalue

import (
	"encoding/json"
	"sort"
)

// Value represents any of the data types supported by JSON.
type Value struct {
	valueType     ValueType
	boolValue     bool
	numberValue   float64
	stringValue   string
	valueInstance interface{}
}

// ValueType indicates which JSON type is contained in a Value.
type ValueType int

const (
	// NullType describes a null value. It is the zero value of ValueType, so the zero value of
	// Value is a null value.
	NullType ValueType = iota
	// BoolType describes a boolean value.
	BoolType
	// NumberType describes a numeric value.
	NumberType
	// StringType describes a string value.
	StringType
	// ArrayType describes an ordered sequence of Values.
	ArrayType
	// ObjectType describes a mapping from string to Value.
	ObjectType
)

func (t ValueType) String() string {
	switch t {
	case NullType:
		return "null"
	case BoolType:
		return "bool"
	case NumberType:
		return "number"
	case StringType:
		return "string"
	case ArrayType:
		return "array"
	case ObjectType:
		return "object"
	default:
		return "unknown"
	}
}

// ArrayBuilder builds an immutable array Value.
type ArrayBuilder interface {
	Add(value Value) ArrayBuilder
	Build() Value
}

type arrayBuilderImpl struct {
	output []Value
}

// ObjectBuilder builds an immutable object Value.
type ObjectBuilder interface {
	Set(key string, value Value) ObjectBuilder
	Build() Value
}

type objectBuilderImpl struct {
	output map[string]Value
}

// Null returns a null Value.
func Null() Value { return Value{valueType: NullType} }

// Bool creates a boolean Value.
func Bool(value bool) Value { return Value{valueType: BoolType, boolValue: value} }

// Int creates a numeric Value from an int.
func Int(value int) Value { return Float64(float64(value)) }

// Float64 creates a numeric Value from a float64.
func Float64(value float64) Value { return Value{valueType: NumberType, numberValue: value} }

// String creates a string Value.
func String(value string) Value { return Value{valueType: StringType, stringValue: value} }

// ArrayBuild creates a builder for an array Value. capacity is a hint, as with make([]T, 0, capacity).
func ArrayBuild(capacity int) ArrayBuilder {
	return &arrayBuilderImpl{output: make([]Value, 0, capacity)}
}

func (b *arrayBuilderImpl) Add(value Value) ArrayBuilder {
	b.output = append(b.output, value)
	return b
}

func (b *arrayBuilderImpl) Build() Value {
	out := make([]Value, len(b.output))
	copy(out, b.output)
	return Value{valueType: ArrayType, valueInstance: out}
}

// ObjectBuild creates a builder for an object Value. capacity is a hint, as with make(map[K]V, capacity).
func ObjectBuild(capacity int) ObjectBuilder {
	return &objectBuilderImpl{output: make(map[string]Value, capacity)}
}

func (b *objectBuilderImpl) Set(key string, value Value) ObjectBuilder {
	b.output[key] = value
	return b
}

func (b *objectBuilderImpl) Build() Value {
	out := make(map[string]Value, len(b.output))
	for k, v := range b.output {
		out[k] = v
	}
	return Value{valueType: ObjectType, valueInstance: out}
}

// CopyArbitrary converts an arbitrary Go value (as produced by encoding/json unmarshalling into
// interface{}) into a Value, recursively. Unrecognized types become Null().
func CopyArbitrary(v interface{}) Value {
	switch o := v.(type) {
	case nil:
		return Null()
	case Value:
		return o
	case bool:
		return Bool(o)
	case string:
		return String(o)
	case float64:
		return Float64(o)
	case float32:
		return Float64(float64(o))
	case int:
		return Float64(float64(o))
	case int64:
		return Float64(float64(o))
	case []interface{}:
		b := ArrayBuild(len(o))
		for _, e := range o {
			b.Add(CopyArbitrary(e))
		}
		return b.Build()
	case []Value:
		b := ArrayBuild(len(o))
		for _, e := range o {
			b.Add(e)
		}
		return b.Build()
	case map[string]interface{}:
		b := ObjectBuild(len(o))
		for k, e := range o {
			b.Set(k, CopyArbitrary(e))
		}
		return b.Build()
	case map[string]Value:
		b := ObjectBuild(len(o))
		for k, e := range o {
			b.Set(k, e)
		}
		return b.Build()
	default:
		return Null()
	}
}

// Type returns the ValueType of the Value.
func (v Value) Type() ValueType { return v.valueType }

// IsNull returns true if the Value is null.
func (v Value) IsNull() bool { return v.valueType == NullType }

// IsNumber returns true if the Value is numeric.
func (v Value) IsNumber() bool { return v.valueType == NumberType }

// IsString returns true if the Value is a string.
func (v Value) IsString() bool { return v.valueType == StringType }

// BoolValue returns the Value as a bool; false if the Value is not a bool.
func (v Value) BoolValue() bool { return v.valueType == BoolType && v.boolValue }

// Float64Value returns the Value as a float64; zero if the Value is not numeric.
func (v Value) Float64Value() float64 {
	if v.valueType == NumberType {
		return v.numberValue
	}
	return 0
}

// IntValue returns the Value truncated to an int; zero if the Value is not numeric.
func (v Value) IntValue() int { return int(v.Float64Value()) }

// StringValue returns the Value as a string; empty string if the Value is not a string.
func (v Value) StringValue() string {
	if v.valueType == StringType {
		return v.stringValue
	}
	return ""
}

// Count returns the number of elements in an array or object; zero for any other type.
func (v Value) Count() int {
	switch o := v.valueInstance.(type) {
	case []Value:
		return len(o)
	case map[string]Value:
		return len(o)
	}
	return 0
}

// AsSlice returns the Value's elements if it is an array, or nil otherwise. The result is a copy.
func (v Value) AsSlice() []Value {
	if o, ok := v.valueInstance.([]Value); ok {
		out := make([]Value, len(o))
		copy(out, o)
		return out
	}
	return nil
}

// Keys returns the sorted keys of an object Value, or nil for any other type.
func (v Value) Keys() []string {
	if o, ok := v.valueInstance.(map[string]Value); ok {
		out := make([]string, 0, len(o))
		for k := range o {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	return nil
}

// GetByKey looks up a key in an object Value, returning Null() if absent or not an object.
func (v Value) GetByKey(key string) Value {
	if o, ok := v.valueInstance.(map[string]Value); ok {
		if inner, ok := o[key]; ok {
			return inner
		}
	}
	return Null()
}

// Equal reports structural equality: same type and same contents, recursively for arrays/objects.
func (v Value) Equal(other Value) bool {
	if v.valueType != other.valueType {
		return false
	}
	switch v.valueType {
	case NullType:
		return true
	case BoolType:
		return v.boolValue == other.boolValue
	case NumberType:
		return v.numberValue == other.numberValue
	case StringType:
		return v.stringValue == other.stringValue
	case ArrayType:
		a, _ := v.valueInstance.([]Value)
		b, _ := other.valueInstance.([]Value)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case ObjectType:
		a, _ := v.valueInstance.(map[string]Value)
		b, _ := other.valueInstance.(map[string]Value)
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.valueType {
	case NullType:
		return []byte("null"), nil
	case BoolType:
		return json.Marshal(v.boolValue)
	case NumberType:
		return json.Marshal(v.numberValue)
	case StringType:
		return json.Marshal(v.stringValue)
	case ArrayType:
		arr, _ := v.valueInstance.([]Value)
		return json.Marshal(arr)
	case ObjectType:
		obj, _ := v.valueInstance.(map[string]Value)
		return json.Marshal(obj)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = CopyArbitrary(raw)
	return nil
}

// OptionalInt represents an int that may or may not have a value, used for fields where zero
// and "absent" must be distinguishable (such as EvaluationDetail.VariationIndex).
type OptionalInt struct {
	value   int
	defined bool
}

// NewOptionalInt constructs an OptionalInt that has a value.
func NewOptionalInt(value int) OptionalInt { return OptionalInt{value: value, defined: true} }

// IsDefined returns true if the OptionalInt contains a value.
func (o OptionalInt) IsDefined() bool { return o.defined }

// IntValue returns the OptionalInt's value, or zero if it has no value.
func (o OptionalInt) IntValue() int { return o.value }

// OrElse returns the OptionalInt's value if it has one, or else the given fallback.
func (o OptionalInt) OrElse(valueIfEmpty int) int {
	if o.defined {
		return o.value
	}
	return valueIfEmpty
}

// MarshalJSON implements json.Marshaler: an undefined OptionalInt marshals as null.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.defined {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler: null or a missing field leaves the value undefined.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalInt{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = OptionalInt{value: v, defined: true}
	return nil
}

// OptionalString represents a string that may or may not have a value, used for fields where
// an empty string and "absent" must be distinguishable (such as diagnostic config data store
// names, or flag metadata that round-trips through JSON as an optional field).
type OptionalString struct {
	value   string
	defined bool
}

// NewOptionalString constructs an OptionalString that has a value.
func NewOptionalString(value string) OptionalString { return OptionalString{value: value, defined: true} }

// IsDefined returns true if the OptionalString contains a value.
func (o OptionalString) IsDefined() bool { return o.defined }

// StringValue returns the OptionalString's value, or "" if it has no value.
func (o OptionalString) StringValue() string { return o.value }

// OrElse returns the OptionalString's value if it has one, or else the given fallback.
func (o OptionalString) OrElse(valueIfEmpty string) string {
	if o.defined {
		return o.value
	}
	return valueIfEmpty
}

// AsPointer returns a pointer to the string value, or nil if the OptionalString is undefined.
// This is convenient for populating `omitempty`-style JSON struct fields.
func (o OptionalString) AsPointer() *string {
	if !o.defined {
		return nil
	}
	v := o.value
	return &v
}

// MarshalJSON implements json.Marshaler: an undefined OptionalString marshals as null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.defined {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler: null or a missing field leaves the value undefined.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalString{}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = OptionalString{value: v, defined: true}
	return nil
}
