package indicators

import (
	"bytes"
	"encoding/json"
)

// Optional holds an indicator value that may be missing because the bar
// history was too short. A missing value is never reported as zero.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a computed value
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None reports insufficient history
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Valid reports whether the value is present
func (o Optional[T]) Valid() bool {
	return o.ok
}

// OrElse returns the value or the fallback when missing
func (o Optional[T]) OrElse(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}

// MarshalJSON encodes a missing value as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as a missing value
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Map applies fn to a present value
func Map[T, U any](o Optional[T], fn func(T) U) Optional[U] {
	if v, ok := o.Get(); ok {
		return Some(fn(v))
	}
	return None[U]()
}
