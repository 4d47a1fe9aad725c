package bcf2

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// infoField encodes the value of one INFO key. One is chosen per
// declaration when the writer sees a header.
type infoField interface {
	encode(e *Encoder, v any) error
}

func newInfoField(l *header.CompoundLine) infoField {
	switch l.Type() {
	case header.Flag:
		return flagField{}
	case header.Integer:
		if l.Number() == header.FixedNumber(1) {
			return atomicIntField{}
		}
		return intArrayField{}
	case header.Float:
		return floatField{}
	}
	return stringField{t: l.Type()}
}

type atomicIntField struct{}

func (atomicIntField) encode(e *Encoder, v any) error {
	v, err := variant.DecodeValue(header.Integer, v)
	if err != nil {
		return err
	}
	if n, ok := v.(int); ok {
		return e.EncodeTypedInt(n)
	}
	return intArrayField{}.encode(e, v)
}

type intArrayField struct{}

func (intArrayField) encode(e *Encoder, v any) error {
	v, err := variant.DecodeValue(header.Integer, v)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case int:
		return e.EncodeTypedInts([]int{v})
	case []int:
		return e.EncodeTypedInts(v)
	}
	return fmt.Errorf("unexpected integer value %v", v)
}

type floatField struct{}

func (floatField) encode(e *Encoder, v any) error {
	fs, err := floatsOf(v)
	if err != nil {
		return err
	}
	e.EncodeTypedFloats(fs)
	return nil
}

func floatsOf(v any) ([]float64, error) {
	v, err := variant.DecodeValue(header.Float, v)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case float64:
		return []float64{v}, nil
	case []float64:
		return v, nil
	case int:
		return []float64{float64(v)}, nil
	case []int:
		fs := make([]float64, len(v))
		for i, n := range v {
			fs[i] = float64(n)
			if n == variant.MissingInt {
				fs[i] = variant.MissingFloat
			}
		}
		return fs, nil
	}
	return nil, fmt.Errorf("unexpected float value %v", v)
}

type flagField struct{}

func (flagField) encode(e *Encoder, _ any) error {
	e.EncodeTypeDescriptor(1, Int8)
	e.EncodeRawInt(1, Int8)
	return nil
}

type stringField struct {
	t header.Type
}

func (f stringField) encode(e *Encoder, v any) error {
	s, err := stringOf(f.t, v)
	if err != nil {
		return err
	}
	if s == variant.MissingValue {
		e.EncodeTypedMissing(Char)
		return nil
	}
	e.EncodeTypedString(s)
	return nil
}

func stringOf(t header.Type, v any) (string, error) {
	v, err := variant.DecodeValue(t, v)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case []string:
		return strings.Join(v, ","), nil
	}
	return fmt.Sprint(v), nil
}

// formatField encodes one FORMAT key for every sample. gs holds one
// genotype per header sample, in header order.
type formatField interface {
	encode(e *Encoder, vc *variant.VariantContext, gs []*variant.Genotype) error
}

// newFormatField picks the writer of a FORMAT key: the inlined genotype
// fields get their own, the rest go by declared type.
func newFormatField(l *header.CompoundLine) formatField {
	switch l.ID() {
	case header.GenotypeKey:
		return gtField{}
	case header.GenotypeFilterKey:
		return ftField{}
	case header.GenotypeQualityKey:
		return intsField(func(g *variant.Genotype) []int {
			if !g.HasGQ() {
				return nil
			}
			return []int{g.GQ()}
		})
	case header.DepthKey:
		return intsField(func(g *variant.Genotype) []int {
			if !g.HasDP() {
				return nil
			}
			return []int{g.DP()}
		})
	case header.AlleleDepthsKey:
		return intsField(func(g *variant.Genotype) []int { return g.AD() })
	case header.PhredLikelihoodsKey:
		return intsField(func(g *variant.Genotype) []int { return g.PL() })
	}
	switch l.Type() {
	case header.Integer:
		return genericIntField{key: l.ID()}
	case header.Float:
		return genericFloatField{key: l.ID()}
	}
	return genericStringField{key: l.ID(), t: l.Type()}
}

// encodeIntRows writes one integer vector per sample. Vectors shorter
// than the longest are padded with end-of-vector values; a nil vector is
// a missing value.
func encodeIntRows(e *Encoder, rows [][]int) error {
	width := 1
	var all []int
	for _, r := range rows {
		width = max(width, len(r))
		all = append(all, r...)
	}
	t, err := DetermineIntegerType(all...)
	if err != nil {
		return err
	}
	e.EncodeTypeDescriptor(width, t)
	for _, r := range rows {
		i := 0
		if len(r) == 0 {
			e.EncodeRawMissing(t)
			i = 1
		}
		for _, v := range r {
			e.EncodeRawInt(v, t)
			i++
		}
		for ; i < width; i++ {
			e.EncodeRawEOV(t)
		}
	}
	return nil
}

func encodeFloatRows(e *Encoder, rows [][]float64) {
	width := 1
	for _, r := range rows {
		width = max(width, len(r))
	}
	e.EncodeTypeDescriptor(width, Float)
	for _, r := range rows {
		i := 0
		if len(r) == 0 {
			e.EncodeRawMissing(Float)
			i = 1
		}
		for _, f := range r {
			e.EncodeFloat32(f)
			i++
		}
		for ; i < width; i++ {
			e.EncodeRawEOV(Float)
		}
	}
}

// encodeStringColumn writes one string per sample, NUL-padded to the
// longest.
func encodeStringColumn(e *Encoder, ss []string) {
	width := 1
	for _, s := range ss {
		width = max(width, len(s))
	}
	e.EncodeTypeDescriptor(width, Char)
	for _, s := range ss {
		e.EncodeRawString(s, width)
	}
}

type gtField struct{}

// encode packs each allele as (index+1)<<1, setting the low bit on every
// allele after the first of a phased genotype. No-calls are index -1.
func (gtField) encode(e *Encoder, vc *variant.VariantContext, gs []*variant.Genotype) error {
	rows := make([][]int, len(gs))
	for i, g := range gs {
		if g.Ploidy() == 0 {
			continue
		}
		row := make([]int, g.Ploidy())
		for j := range row {
			idx := -1
			if a := g.Allele(j); !a.IsNoCall() {
				if idx = vc.AlleleIndex(a); idx < 0 {
					return fmt.Errorf("allele %s of sample %s is not an allele of the record", a, g.SampleName())
				}
			}
			row[j] = (idx + 1) << 1
			if j > 0 && g.IsPhased() {
				row[j] |= 1
			}
		}
		rows[i] = row
	}
	return encodeIntRows(e, rows)
}

type ftField struct{}

func (ftField) encode(e *Encoder, _ *variant.VariantContext, gs []*variant.Genotype) error {
	ss := make([]string, len(gs))
	for i, g := range gs {
		ss[i] = header.PassFilter
		if g.IsFiltered() {
			ss[i] = g.Filter()
		}
	}
	encodeStringColumn(e, ss)
	return nil
}

// intsField writes an inlined integer genotype field.
type intsField func(g *variant.Genotype) []int

func (f intsField) encode(e *Encoder, _ *variant.VariantContext, gs []*variant.Genotype) error {
	rows := make([][]int, len(gs))
	for i, g := range gs {
		rows[i] = f(g)
	}
	return encodeIntRows(e, rows)
}

type genericIntField struct {
	key string
}

func (f genericIntField) encode(e *Encoder, _ *variant.VariantContext, gs []*variant.Genotype) error {
	rows := make([][]int, len(gs))
	for i, g := range gs {
		raw, ok := g.ExtendedAttribute(f.key)
		if !ok {
			continue
		}
		v, err := variant.DecodeValue(header.Integer, raw)
		if err != nil {
			return fmt.Errorf("%s of sample %s: %w", f.key, g.SampleName(), err)
		}
		switch v := v.(type) {
		case int:
			if v != variant.MissingInt {
				rows[i] = []int{v}
			}
		case []int:
			rows[i] = v
		}
	}
	return encodeIntRows(e, rows)
}

type genericFloatField struct {
	key string
}

func (f genericFloatField) encode(e *Encoder, _ *variant.VariantContext, gs []*variant.Genotype) error {
	rows := make([][]float64, len(gs))
	for i, g := range gs {
		raw, ok := g.ExtendedAttribute(f.key)
		if !ok {
			continue
		}
		fs, err := floatsOf(raw)
		if err != nil {
			return fmt.Errorf("%s of sample %s: %w", f.key, g.SampleName(), err)
		}
		if len(fs) == 1 && variant.IsMissingFloat(fs[0]) {
			continue
		}
		rows[i] = fs
	}
	encodeFloatRows(e, rows)
	return nil
}

type genericStringField struct {
	key string
	t   header.Type
}

func (f genericStringField) encode(e *Encoder, _ *variant.VariantContext, gs []*variant.Genotype) error {
	ss := make([]string, len(gs))
	for i, g := range gs {
		raw, ok := g.ExtendedAttribute(f.key)
		if !ok {
			continue
		}
		s, err := stringOf(f.t, raw)
		if err != nil {
			return fmt.Errorf("%s of sample %s: %w", f.key, g.SampleName(), err)
		}
		if s != variant.MissingValue {
			ss[i] = s
		}
	}
	encodeStringColumn(e, ss)
	return nil
}
