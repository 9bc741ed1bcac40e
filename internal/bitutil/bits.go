// Package bitutil provides small helpers for packing and unpacking fixed
// width bit fields, the kind of manipulation the instruction codec needs
// when it lays operand values into one or two 16-bit code words.
package bitutil

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

const BitsPerByte = 8

// Sizeof returns the size in bytes of values of type T.
func Sizeof[T any]() int {
	var val T
	return int(unsafe.Sizeof(val))
}

// SizeofBits returns the size in bits of values of type T.
func SizeofBits[T any]() int {
	return Sizeof[T]() * BitsPerByte
}

// AllOnes returns an all-ones bitmask of the given width.
func AllOnes[T constraints.Unsigned](width int) T {
	if width <= 0 {
		return 0
	}
	return (T(1) << uint(width)) - T(1)
}

// FitsUnsigned reports whether value can be represented in width bits
// without truncation.
func FitsUnsigned[T constraints.Unsigned](value T, width int) bool {
	return value <= AllOnes[T](width)
}

// FitsSigned reports whether value fits in a two's complement field of
// the given width.
func FitsSigned(value int64, width int) bool {
	if width <= 0 || width > 63 {
		return width > 63
	}
	lo := -(int64(1) << uint(width-1))
	hi := (int64(1) << uint(width-1)) - 1
	return value >= lo && value <= hi
}

// BitView is a read/write view over an unsigned integer, allowing
// manipulation of individual bit fields.
type BitView[T constraints.Unsigned] struct {
	Bits *T
}

// CreateBitView creates a bit view over the given unsigned integer.
func CreateBitView[T constraints.Unsigned](value *T) BitView[T] {
	return BitView[T]{Bits: value}
}

// Value returns the viewed value.
func (v BitView[T]) Value() T {
	return *v.Bits
}

// Read extracts a field of width bits starting at bit.
func (v BitView[T]) Read(bit, width int) T {
	return (v.Value() >> uint(bit)) & AllOnes[T](width)
}

// Put clears and overwrites a field of width bits starting at bit with
// value, truncated to width bits. Unlike Write, it does not OR into the
// existing bits, which is what the codec wants when re-laying a field.
func (v BitView[T]) Put(value T, bit, width int) {
	mask := AllOnes[T](width) << uint(bit)
	*v.Bits = (*v.Bits) &^ mask
	*v.Bits |= (value & AllOnes[T](width)) << uint(bit)
}

// Write ORs value into a field of width bits starting at bit.
func (v BitView[T]) Write(value T, bit, width int) {
	cleared := value & AllOnes[T](width)
	*v.Bits = (*v.Bits) | (cleared << uint(bit))
}

// SetBits sets a field of width bits starting at bit to all ones.
func (v BitView[T]) SetBits(bit, width int) {
	v.Write(AllOnes[T](width), bit, width)
}

// ClearBits sets a field of width bits starting at bit to zero.
func (v BitView[T]) ClearBits(bit, width int) {
	v.Put(0, bit, width)
}
