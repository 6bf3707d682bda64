package document

import (
	"encoding/json"
	"fmt"
)

// Metadata maps string keys to scalar values. Only strings, numbers and
// booleans are representable; nested structures are rejected at decode
// time so serialization and comparison stay well-defined.
type Metadata map[string]Value

// ValueKind discriminates the scalar types a metadata Value can hold.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a closed scalar union: string, number or boolean.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String wraps a string metadata value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric metadata value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a boolean metadata value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the scalar type held by the value.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string form; zero value for non-string kinds.
func (v Value) Str() string { return v.str }

// Num returns the numeric form; zero value for non-number kinds.
func (v Value) Num() float64 { return v.num }

// Boolean returns the boolean form; false for non-bool kinds.
func (v Value) Boolean() bool { return v.b }

// Equal reports whether two values hold the same kind and scalar.
func (v Value) Equal(other Value) bool {
	return v == other
}

// MarshalJSON encodes the value as its bare scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("unknown metadata value kind %d", v.kind)
	}
}

// UnmarshalJSON decodes a bare scalar, rejecting nulls, arrays and objects.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = String(val)
	case float64:
		*v = Number(val)
	case bool:
		*v = Bool(val)
	default:
		return fmt.Errorf("metadata value must be a string, number or boolean, got %T", raw)
	}
	return nil
}

// Merge returns a copy of m overlaid with the entries of other. Neither
// input is modified. A nil result is returned only when both inputs are
// empty.
func (m Metadata) Merge(other Metadata) Metadata {
	if len(m) == 0 && len(other) == 0 {
		return nil
	}
	merged := make(Metadata, len(m)+len(other))
	for k, val := range m {
		merged[k] = val
	}
	for k, val := range other {
		merged[k] = val
	}
	return merged
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	clone := make(Metadata, len(m))
	for k, val := range m {
		clone[k] = val
	}
	return clone
}
