package airquality

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number is the set of types an optional reading value can hold.
type Number interface {
	~int | ~float64
}

// Value is a reading that the upstream API may not report.
// The zero Value is "not reported".
type Value[T Number] struct {
	v  T
	ok bool
}

// Some returns a reported value.
func Some[T Number](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

// None returns a value that was not reported.
func None[T Number]() Value[T] {
	return Value[T]{}
}

// FromPtr converts a nullable pointer into a Value.
func FromPtr[T Number](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the value and whether it was reported.
func (v Value[T]) Get() (T, bool) {
	return v.v, v.ok
}

// Reported reports whether the value is present.
func (v Value[T]) Reported() bool {
	return v.ok
}

// OrElse returns the value, or def when not reported.
func (v Value[T]) OrElse(def T) T {
	if !v.ok {
		return def
	}
	return v.v
}

// Ptr returns a pointer to a copy of the value, or nil when not reported.
func (v Value[T]) Ptr() *T {
	if !v.ok {
		return nil
	}
	out := v.v
	return &out
}

// String formats the value as a decimal, or "" when not reported.
func (v Value[T]) String() string {
	if !v.ok {
		return ""
	}
	return strconv.FormatFloat(float64(v.v), 'f', -1, 64)
}

// MarshalJSON encodes the value as a number, or null when not reported.
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON decodes a number or null.
func (v *Value[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = None[T]()
		return nil
	}
	var n T
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = Some(n)
	return nil
}

// ParseValue parses the text form produced by String. Empty text is "not reported".
func ParseValue[T Number](s string) (Value[T], error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None[T](), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return None[T](), fmt.Errorf("parse value %q: %w", s, err)
	}
	return Some(T(f)), nil
}
