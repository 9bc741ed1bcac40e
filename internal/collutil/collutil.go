// Package collutil collects small generic helpers for working with
// slices and maps. No other package in this module imports it.
package collutil

import "golang.org/x/exp/constraints"

// Pair is a simple two-value tuple, used where returning a named struct
// would be overkill.
type Pair[First any, Second any] struct {
	First  First
	Second Second
}

func MakePair[First any, Second any](first First, second Second) Pair[First, Second] {
	return Pair[First, Second]{First: first, Second: second}
}

// Map applies mapFunc to every element of input, preserving order.
func Map[T any, U any](input []T, mapFunc func(T) U) []U {
	output := make([]U, len(input))
	for i := range input {
		output[i] = mapFunc(input[i])
	}
	return output
}

// Filter returns the elements of input for which keep returns true,
// preserving order.
func Filter[T any](input []T, keep func(T) bool) []T {
	output := make([]T, 0, len(input))
	for _, v := range input {
		if keep(v) {
			output = append(output, v)
		}
	}
	return output
}

// Keys returns the keys of a map in unspecified order.
func Keys[K comparable, V any](input map[K]V) []K {
	keys := make([]K, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	return keys
}

// Values returns the values of a map in unspecified order.
func Values[K comparable, V any](input map[K]V) []V {
	values := make([]V, 0, len(input))
	for _, v := range input {
		values = append(values, v)
	}
	return values
}

// Min returns the smallest element of input. Panics if input is empty.
func Min[T constraints.Ordered](input []T) T {
	m := input[0]
	for _, v := range input[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest element of input. Panics if input is empty.
func Max[T constraints.Ordered](input []T) T {
	m := input[0]
	for _, v := range input[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Contains reports whether value is present in input.
func Contains[T comparable](input []T, value T) bool {
	for _, v := range input {
		if v == value {
			return true
		}
	}
	return false
}

// RoundUp rounds x up to the next multiple of align, which must be a
// power of two.
func RoundUp(x, align uint32) uint32 {
	if align == 0 {
		return x
	}
	return (x + align - 1) &^ (align - 1)
}
