package bcf2

import (
	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// bcfGenotypes is the undecoded genotype block of a BCF2 record.
type bcfGenotypes struct {
	raw     []byte
	header  *header.Header
	strs    *Dictionary
	alleles []*variant.Allele
	nFormat int
	base    int64
}

// Decode reads every FORMAT field for all samples.
func (p *bcfGenotypes) Decode() ([]*variant.Genotype, error) {
	var d Decoder
	d.SetBlock(p.raw, p.base)

	samples := p.header.SampleNames()
	builders := make([]*variant.GenotypeBuilder, len(samples))
	for i, s := range samples {
		builders[i] = variant.NewGenotypeBuilder(s)
	}

	for range p.nFormat {
		offset, err := d.DecodeTypedInt()
		if err != nil {
			return nil, err
		}
		key, ok := p.strs.String(offset)
		if !ok {
			return nil, d.fail("FORMAT offset %d is not in the dictionary", offset)
		}
		count, t, err := d.DecodeTypeDescriptor()
		if err != nil {
			return nil, err
		}
		for _, gb := range builders {
			if err := p.decodeValue(&d, gb, key, count, t); err != nil {
				return nil, err
			}
		}
	}
	if d.Remaining() != 0 {
		return nil, d.fail("%d bytes left over in the genotype block", d.Remaining())
	}

	out := make([]*variant.Genotype, len(builders))
	for i, gb := range builders {
		g, err := gb.Make()
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

// decodeValue reads one sample's value of key. Missing values leave the
// genotype untouched.
func (p *bcfGenotypes) decodeValue(d *Decoder, gb *variant.GenotypeBuilder, key string, count int, t Type) error {
	switch key {
	case header.GenotypeKey:
		return p.decodeGT(d, gb, count, t)
	case header.GenotypeFilterKey:
		s, err := d.DecodeString(count * t.Size())
		if err != nil {
			return err
		}
		if s != "" {
			gb.Filter(s)
		}
		return nil
	case header.GenotypeQualityKey, header.DepthKey, header.AlleleDepthsKey, header.PhredLikelihoodsKey:
		if !t.IsInteger() {
			return d.fail("FORMAT %s has type %s", key, t)
		}
		vs, err := d.DecodeInts(count, t)
		if err != nil || len(vs) == 0 || (len(vs) == 1 && vs[0] == variant.MissingInt) {
			return err
		}
		switch key {
		case header.GenotypeQualityKey:
			gb.GQ(vs[0])
		case header.DepthKey:
			gb.DP(vs[0])
		case header.AlleleDepthsKey:
			gb.AD(vs)
		default:
			gb.PL(vs)
		}
		return nil
	}

	v, err := d.decodeValues(count, t)
	if err != nil || v == nil {
		return err
	}
	if line := p.header.Format(key); line != nil {
		if s, ok := v.(string); ok {
			if v, err = variant.DecodeValue(line.Type(), s); err != nil {
				return d.fail("FORMAT %s: %v", key, err)
			}
		}
	}
	gb.Attribute(key, v)
	return nil
}

// decodeGT unpacks (index+1)<<1|phased values. A leading missing value
// means the sample has no GT.
func (p *bcfGenotypes) decodeGT(d *Decoder, gb *variant.GenotypeBuilder, count int, t Type) error {
	if !t.IsInteger() {
		return d.fail("GT has type %s", t)
	}
	vs, err := d.DecodeInts(count, t)
	if err != nil || len(vs) == 0 || vs[0] == variant.MissingInt {
		return err
	}
	alleles := make([]*variant.Allele, len(vs))
	phased := false
	for i, v := range vs {
		idx := -1
		if v != variant.MissingInt {
			idx = v>>1 - 1
			if i > 0 && v&1 == 1 {
				phased = true
			}
		}
		switch {
		case idx < 0:
			alleles[i] = variant.NoCall
		case idx >= len(p.alleles):
			return d.fail("GT allele index %d is out of range for %d alleles", idx, len(p.alleles))
		default:
			alleles[i] = p.alleles[idx]
		}
	}
	gb.Alleles(alleles...).Phased(phased)
	return nil
}
