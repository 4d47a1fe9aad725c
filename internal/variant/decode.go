package variant

import (
	"fmt"
	"maps"
	"slices"

	"github.com/inodb/vibe-vcf/internal/header"
)

// FullyDecode returns a copy of vc whose INFO and genotype attributes are
// converted to the types declared in h, checking each value count against
// the declared Number. Undeclared keys are an error unless lenient, in
// which case they decode as unbounded strings. A record that is already
// fully decoded is returned as is.
func (vc *VariantContext) FullyDecode(h *header.Header, lenient bool) (*VariantContext, error) {
	if vc.fullyDecoded {
		return vc, nil
	}
	if err := vc.genotypes.Force(); err != nil {
		return nil, fmt.Errorf("decode genotypes at %s: %w", vc.Locus(), err)
	}

	attrs := make(map[string]any, len(vc.attributes))
	for key, raw := range vc.attributes {
		line := h.Info(key)
		if line == nil {
			if !lenient {
				return nil, &DecodeError{Field: key, Value: rawString(raw), Locus: vc.Locus(),
					Err: &header.MissingDeclarationError{Kind: header.KeyInfo, Key: key, Locus: vc.Locus()}}
			}
			attrs[key] = cloneValue(raw)
			continue
		}
		v, err := decodeChecked(line, raw, line.Count(vc))
		if err != nil {
			return nil, &DecodeError{Field: key, Value: rawString(raw), Locus: vc.Locus(), Err: err}
		}
		attrs[key] = v
	}

	var gs []*Genotype
	if !vc.genotypes.IsEmpty() {
		gs = make([]*Genotype, 0, vc.genotypes.Len())
		for _, g := range vc.genotypes.genotypes {
			dg, err := vc.decodeGenotype(g, h, lenient)
			if err != nil {
				return nil, err
			}
			gs = append(gs, dg)
		}
	}

	b := BuilderFrom(vc).FullyDecoded(true)
	b.attributes = attrs
	if gs != nil {
		b.GenotypesNoValidation(NewGenotypes(gs...).Immutable())
	}
	return b.Make()
}

func (vc *VariantContext) decodeGenotype(g *Genotype, h *header.Header, lenient bool) (*Genotype, error) {
	if len(g.extended) == 0 {
		return g, nil
	}
	ploidy := g.Ploidy()
	if ploidy == 0 {
		ploidy = header.DefaultPloidy
	}
	ctx := sampleCountContext{nAlleles: len(vc.alleles), ploidy: ploidy}

	decoded := *g
	decoded.extended = make(map[string]any, len(g.extended))
	for key, raw := range g.extended {
		line := h.Format(key)
		if line == nil {
			if !lenient {
				return nil, &DecodeError{Field: key, Value: rawString(raw), Locus: vc.Locus() + " sample " + g.sample,
					Err: &header.MissingDeclarationError{Kind: header.KeyFormat, Key: key, Locus: vc.Locus()}}
			}
			decoded.extended[key] = cloneValue(raw)
			continue
		}
		v, err := decodeChecked(line, raw, line.Count(ctx))
		if err != nil {
			return nil, &DecodeError{Field: key, Value: rawString(raw), Locus: vc.Locus() + " sample " + g.sample, Err: err}
		}
		decoded.extended[key] = v
	}
	return &decoded, nil
}

func decodeChecked(line *header.CompoundLine, raw any, count int) (any, error) {
	v, err := DecodeValue(line.Type(), raw)
	if err != nil {
		return nil, err
	}
	if err := checkCount(v, count); err != nil {
		return nil, err
	}
	return v, nil
}

// sampleCountContext resolves G counts against one sample's ploidy.
type sampleCountContext struct {
	nAlleles int
	ploidy   int
}

func (c sampleCountContext) NumAlleles() int   { return c.nAlleles }
func (c sampleCountContext) MaxPloidy(int) int { return c.ploidy }

// GenotypeKeys returns the FORMAT keys needed to write the genotypes of
// vc: GT first if any genotype is available, then the sorted union of the
// inlined keys some genotype carries and all extended attribute keys. A
// header with samples always gets at least GT.
func GenotypeKeys(vc *VariantContext, h *header.Header) ([]string, error) {
	if err := vc.genotypes.Force(); err != nil {
		return nil, err
	}
	var (
		keys   = make(map[string]struct{})
		sawGT  bool
		inline = [...]string{
			header.GenotypeQualityKey, header.DepthKey, header.AlleleDepthsKey,
			header.PhredLikelihoodsKey, header.GenotypeFilterKey,
		}
	)
	for _, g := range vc.genotypes.genotypes {
		for k := range g.extended {
			keys[k] = struct{}{}
		}
		if g.IsAvailable() {
			sawGT = true
		}
		for _, k := range inline {
			if g.HasAttribute(k) {
				keys[k] = struct{}{}
			}
		}
	}

	sorted := slices.Sorted(maps.Keys(keys))
	if sawGT {
		sorted = append([]string{header.GenotypeKey}, sorted...)
	}
	if len(sorted) == 0 && h.HasGenotypingData() {
		return []string{header.GenotypeKey}, nil
	}
	return sorted, nil
}
