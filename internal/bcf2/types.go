// Package bcf2 reads and writes the BCF2 binary variant format.
package bcf2

import (
	"fmt"
	"math"

	"github.com/inodb/vibe-vcf/internal/variant"
)

// Magic starts every BCF2 stream: "BCF", major version 2, minor version 2.
const Magic = "BCF\x02\x02"

// Type is the 4-bit type tag of a typed value.
type Type uint8

// Type tags. Integer widths are ordered, so a wider integer type compares
// greater than a narrower one.
const (
	Missing Type = 0
	Int8    Type = 1
	Int16   Type = 2
	Int32   Type = 3
	Float   Type = 5
	Char    Type = 7
)

// overflowCount marks a type descriptor whose element count follows as a
// typed integer.
const overflowCount = 15

func (t Type) String() string {
	switch t {
	case Missing:
		return "MISSING"
	case Int8:
		return "INT8"
	case Int16:
		return "INT16"
	case Int32:
		return "INT32"
	case Float:
		return "FLOAT"
	case Char:
		return "CHAR"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// IsInteger reports whether t is one of the integer widths.
func (t Type) IsInteger() bool { return t == Int8 || t == Int16 || t == Int32 }

// Size is the number of bytes of one value of type t.
func (t Type) Size() int {
	switch t {
	case Int8, Char:
		return 1
	case Int16:
		return 2
	case Int32, Float:
		return 4
	}
	return 0
}

// Missing and end-of-vector sentinels, as raw bit patterns.
const (
	missingInt8  = -0x80
	eovInt8      = -0x7f
	missingInt16 = -0x8000
	eovInt16     = -0x7fff
	missingInt32 = math.MinInt32
	eovInt32     = math.MinInt32 + 1

	missingFloatBits uint32 = 0x7F800001
	eovFloatBits     uint32 = 0x7F800002
)

// Smallest and largest values representable by each integer width. The
// lowest eight values of each width are reserved for sentinels.
const (
	minInt8  = -120
	maxInt8  = math.MaxInt8
	minInt16 = -32760
	maxInt16 = math.MaxInt16
	minInt32 = math.MinInt32 + 8
	maxInt32 = math.MaxInt32
)

// MissingValue returns the raw missing sentinel of an integer type.
func (t Type) MissingValue() int {
	switch t {
	case Int8:
		return missingInt8
	case Int16:
		return missingInt16
	}
	return missingInt32
}

// EOVValue returns the raw end-of-vector sentinel of an integer type.
func (t Type) EOVValue() int {
	switch t {
	case Int8:
		return eovInt8
	case Int16:
		return eovInt16
	}
	return eovInt32
}

// integerTypeOf returns the narrowest integer type holding v.
func integerTypeOf(v int) (Type, error) {
	switch {
	case v >= minInt8 && v <= maxInt8:
		return Int8, nil
	case v >= minInt16 && v <= maxInt16:
		return Int16, nil
	case v >= minInt32 && v <= maxInt32:
		return Int32, nil
	}
	return 0, fmt.Errorf("integer %d does not fit in 32 bits", v)
}

// DetermineIntegerType returns the narrowest integer type holding every
// value. variant.MissingInt values are ignored; an empty or all-missing
// list is INT8.
func DetermineIntegerType(vs ...int) (Type, error) {
	t := Int8
	for _, v := range vs {
		if v == variant.MissingInt {
			continue
		}
		vt, err := integerTypeOf(v)
		if err != nil {
			return 0, err
		}
		t = max(t, vt)
	}
	return t, nil
}

// FormatError reports a malformed BCF2 stream.
type FormatError struct {
	Offset  int64
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bcf2 format error at offset %d: %s", e.Offset, e.Message)
}
