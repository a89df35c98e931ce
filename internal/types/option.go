package types

import (
	"fmt"
	"reflect"
)

// Option is a constrained subset of https://github.com/moznion/go-optional
// with TOML decoding support. BurntSushi/toml hands UnmarshalTOML a single
// untyped value, so only scalar types are supported.
type OptionTomlTypes interface {
	~int | ~bool | ~string
}

// Option must be Some (i.e. having a value) or None (i.e. doesn't have a
// value).
type Option[T OptionTomlTypes] []T

const (
	value = iota
)

// Some is a function to make an Option type value with the actual value.
func Some[T OptionTomlTypes](v T) Option[T] {
	return Option[T]{
		value: v,
	}
}

// None is a function to make an Option type value that doesn't have a value.
func None[T OptionTomlTypes]() Option[T] {
	return nil
}

// IsNone returns True if the Option *doesn't* have a value
func (o Option[T]) IsNone() bool {
	return o == nil
}

// IsSome returns whether the Option has a value or not.
func (o Option[T]) IsSome() bool {
	return o != nil
}

// Unwrap returns the value regardless of Some/None status. None yields the
// zero value of the type.
func (o Option[T]) Unwrap() T {
	if o.IsNone() {
		var defaultValue T
		return defaultValue
	}
	return o[value]
}

// TakeOr returns the actual value if the Option has a value.
// On the other hand, this returns fallbackValue.
func (o Option[T]) TakeOr(fallbackValue T) T {
	if o.IsNone() {
		return fallbackValue
	}
	return o[value]
}

func (o Option[T]) String() string {
	if o.IsNone() {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o[value])
}

// TOML integers always arrive as int64.
func (o *Option[T]) UnmarshalTOML(data any) error {
	var v T
	if i, ok := data.(int64); ok {
		rv := reflect.ValueOf(&v).Elem()
		if rv.Kind() == reflect.Int {
			if rv.OverflowInt(i) {
				return fmt.Errorf("value %d overflows %T", i, v)
			}
			rv.SetInt(i)
			*o = Some(v)
			return nil
		}
	}
	b, ok := data.(T)
	if !ok {
		return fmt.Errorf("cannot use %[1]v (%[1]T) as %[2]T", data, v)
	}
	*o = Some(b)
	return nil
}
