package bcf2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/inodb/vibe-vcf/internal/variant"
)

// Decoder reads BCF2 values from one record block.
type Decoder struct {
	block []byte
	off   int
	base  int64 // stream offset of the block, for errors
}

// SetBlock starts decoding b, which begins at stream offset base.
func (d *Decoder) SetBlock(b []byte, base int64) {
	d.block = b
	d.off = 0
	d.base = base
}

// Remaining returns the number of undecoded bytes in the block.
func (d *Decoder) Remaining() int { return len(d.block) - d.off }

func (d *Decoder) fail(format string, args ...any) error {
	return &FormatError{Offset: d.base + int64(d.off), Message: fmt.Sprintf(format, args...)}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.block) {
		return nil, d.fail("need %d bytes, %d remain in the block", n, d.Remaining())
	}
	b := d.block[d.off : d.off+n]
	d.off += n
	return b, nil
}

// DecodeInt32 reads a bare int32.
func (d *Decoder) DecodeInt32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// DecodeUint32 reads a bare uint32.
func (d *Decoder) DecodeUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// DecodeFloat32 reads a bare float. The BCF2 missing float decodes to
// variant.MissingFloat.
func (d *Decoder) DecodeFloat32() (float64, error) {
	bits, err := d.DecodeUint32()
	if err != nil {
		return 0, err
	}
	if bits == missingFloatBits {
		return variant.MissingFloat, nil
	}
	return float64(math.Float32frombits(bits)), nil
}

// DecodeTypeDescriptor reads a type descriptor and resolves an overflow
// count.
func (d *Decoder) DecodeTypeDescriptor() (count int, t Type, err error) {
	b, err := d.take(1)
	if err != nil {
		return 0, 0, err
	}
	count, t = int(b[0]>>4), Type(b[0]&0x0f)
	switch t {
	case Missing, Int8, Int16, Int32, Float, Char:
	default:
		return 0, 0, d.fail("unknown type tag %d", uint8(t))
	}
	if count == overflowCount {
		v, err := d.DecodeTypedInt()
		if err != nil {
			return 0, 0, err
		}
		if v < 0 {
			return 0, 0, d.fail("negative element count %d", v)
		}
		count = v
	}
	return count, t, nil
}

// rawInt reads one integer of type t. Missing and end-of-vector values
// both decode to variant.MissingInt; eov tells them apart.
func (d *Decoder) rawInt(t Type) (v int, eov bool, err error) {
	b, err := d.take(t.Size())
	if err != nil {
		return 0, false, err
	}
	switch t {
	case Int8:
		v = int(int8(b[0]))
	case Int16:
		v = int(int16(binary.LittleEndian.Uint16(b)))
	case Int32:
		v = int(int32(binary.LittleEndian.Uint32(b)))
	default:
		return 0, false, d.fail("%s is not an integer type", t)
	}
	switch v {
	case t.MissingValue():
		return variant.MissingInt, false, nil
	case t.EOVValue():
		return variant.MissingInt, true, nil
	}
	return v, false, nil
}

// DecodeTypedInt reads a typed value holding one integer.
func (d *Decoder) DecodeTypedInt() (int, error) {
	count, t, err := d.DecodeTypeDescriptor()
	if err != nil {
		return 0, err
	}
	if count != 1 || !t.IsInteger() {
		return 0, d.fail("expected one integer, found %d %s values", count, t)
	}
	v, _, err := d.rawInt(t)
	return v, err
}

// DecodeInts reads count integers of type t, stopping the result at the
// first end-of-vector value.
func (d *Decoder) DecodeInts(count int, t Type) ([]int, error) {
	out := make([]int, 0, count)
	done := false
	for range count {
		v, eov, err := d.rawInt(t)
		if err != nil {
			return nil, err
		}
		if eov {
			done = true
		}
		if !done {
			out = append(out, v)
		}
	}
	return out, nil
}

// DecodeFloats reads count floats, stopping the result at the first
// end-of-vector value.
func (d *Decoder) DecodeFloats(count int) ([]float64, error) {
	out := make([]float64, 0, count)
	done := false
	for range count {
		bits, err := d.DecodeUint32()
		if err != nil {
			return nil, err
		}
		switch {
		case bits == eovFloatBits:
			done = true
		case done:
		case bits == missingFloatBits:
			out = append(out, variant.MissingFloat)
		default:
			out = append(out, float64(math.Float32frombits(bits)))
		}
	}
	return out, nil
}

// DecodeString reads count characters, dropping NUL padding.
func (d *Decoder) DecodeString(count int) (string, error) {
	b, err := d.take(count)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// DecodeTypedString reads a typed character vector.
func (d *Decoder) DecodeTypedString() (string, error) {
	count, t, err := d.DecodeTypeDescriptor()
	if err != nil {
		return "", err
	}
	if t != Char && count > 0 {
		return "", d.fail("expected a character vector, found %s", t)
	}
	return d.DecodeString(count)
}

// DecodeTypedValue reads one typed value: nil for an empty or missing
// value, int or []int, float64 or []float64, or string.
func (d *Decoder) DecodeTypedValue() (any, error) {
	count, t, err := d.DecodeTypeDescriptor()
	if err != nil {
		return nil, err
	}
	return d.decodeValues(count, t)
}

func (d *Decoder) decodeValues(count int, t Type) (any, error) {
	if count == 0 || t == Missing {
		return nil, nil
	}
	switch {
	case t.IsInteger():
		vs, err := d.DecodeInts(count, t)
		if err != nil || len(vs) == 0 {
			return nil, err
		}
		if len(vs) == 1 {
			if vs[0] == variant.MissingInt {
				return nil, nil
			}
			return vs[0], nil
		}
		return vs, nil
	case t == Float:
		fs, err := d.DecodeFloats(count)
		if err != nil || len(fs) == 0 {
			return nil, err
		}
		if len(fs) == 1 {
			if variant.IsMissingFloat(fs[0]) {
				return nil, nil
			}
			return fs[0], nil
		}
		return fs, nil
	}
	s, err := d.DecodeString(count)
	if err != nil || s == "" {
		return nil, err
	}
	return s, nil
}
