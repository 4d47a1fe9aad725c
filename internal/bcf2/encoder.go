package bcf2

import (
	"encoding/binary"
	"math"

	"github.com/inodb/vibe-vcf/internal/variant"
)

// Encoder appends little-endian BCF2 values to a byte buffer.
type Encoder struct {
	buf     []byte
	scratch [4]byte
}

// Reset empties the buffer, keeping its storage.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Bytes returns the encoded bytes, valid until the next Reset.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int { return len(e.buf) }

// Write appends raw bytes.
func (e *Encoder) Write(p []byte) { e.buf = append(e.buf, p...) }

func (e *Encoder) writeUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) writeUint16(v uint16) {
	binary.LittleEndian.PutUint16(e.scratch[:2], v)
	e.buf = append(e.buf, e.scratch[:2]...)
}

func (e *Encoder) writeUint32(v uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], v)
	e.buf = append(e.buf, e.scratch[:4]...)
}

// EncodeInt32 appends a bare int32, as used by the fixed site fields.
func (e *Encoder) EncodeInt32(v int32) { e.writeUint32(uint32(v)) }

// EncodeUint32 appends a bare uint32.
func (e *Encoder) EncodeUint32(v uint32) { e.writeUint32(v) }

// EncodeFloat32 appends a bare float. variant.MissingFloat becomes the
// BCF2 missing float.
func (e *Encoder) EncodeFloat32(f float64) {
	if variant.IsMissingFloat(f) {
		e.writeUint32(missingFloatBits)
		return
	}
	e.writeUint32(math.Float32bits(float32(f)))
}

// EncodeTypeDescriptor appends the descriptor of count values of type t.
// Counts of 15 or more follow the descriptor as a typed integer.
func (e *Encoder) EncodeTypeDescriptor(count int, t Type) {
	if count < overflowCount {
		e.writeUint8(uint8(count)<<4 | uint8(t))
		return
	}
	e.writeUint8(overflowCount<<4 | uint8(t))
	e.EncodeTypedInt(count)
}

// EncodeRawInt appends v as a value of integer type t. variant.MissingInt
// becomes the missing sentinel of t.
func (e *Encoder) EncodeRawInt(v int, t Type) {
	if v == variant.MissingInt {
		v = t.MissingValue()
	}
	switch t {
	case Int8:
		e.writeUint8(uint8(int8(v)))
	case Int16:
		e.writeUint16(uint16(int16(v)))
	default:
		e.writeUint32(uint32(int32(v)))
	}
}

// EncodeRawMissing appends the missing sentinel of t.
func (e *Encoder) EncodeRawMissing(t Type) {
	switch t {
	case Float:
		e.writeUint32(missingFloatBits)
	case Char:
		e.writeUint8(0)
	default:
		e.EncodeRawInt(t.MissingValue(), t)
	}
}

// EncodeRawEOV appends the end-of-vector sentinel of t, which pads a
// vector shorter than its declared count.
func (e *Encoder) EncodeRawEOV(t Type) {
	switch t {
	case Float:
		e.writeUint32(eovFloatBits)
	case Char:
		e.writeUint8(0)
	default:
		e.EncodeRawInt(t.EOVValue(), t)
	}
}

// EncodeRawString appends s padded with NUL bytes to size bytes.
func (e *Encoder) EncodeRawString(s string, size int) {
	e.buf = append(e.buf, s...)
	for range size - len(s) {
		e.buf = append(e.buf, 0)
	}
}

// EncodeTypedMissing appends a typed value with no elements.
func (e *Encoder) EncodeTypedMissing(t Type) {
	e.EncodeTypeDescriptor(0, t)
}

// EncodeTypedInt appends v as one value of its narrowest integer type.
func (e *Encoder) EncodeTypedInt(v int) error {
	t, err := DetermineIntegerType(v)
	if err != nil {
		return err
	}
	e.EncodeTypeDescriptor(1, t)
	e.EncodeRawInt(v, t)
	return nil
}

// EncodeTypedInts appends vs as a vector of the narrowest integer type
// holding every element.
func (e *Encoder) EncodeTypedInts(vs []int) error {
	t, err := DetermineIntegerType(vs...)
	if err != nil {
		return err
	}
	e.EncodeTypeDescriptor(len(vs), t)
	for _, v := range vs {
		e.EncodeRawInt(v, t)
	}
	return nil
}

// EncodeTypedFloats appends a float vector.
func (e *Encoder) EncodeTypedFloats(fs []float64) {
	e.EncodeTypeDescriptor(len(fs), Float)
	for _, f := range fs {
		e.EncodeFloat32(f)
	}
}

// EncodeTypedString appends s as a character vector. The empty string
// is a typed missing value.
func (e *Encoder) EncodeTypedString(s string) {
	e.EncodeTypeDescriptor(len(s), Char)
	e.buf = append(e.buf, s...)
}
