package vcf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/intern"
	"github.com/inodb/vibe-vcf/internal/split"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// filterCache maps raw FILTER and FT strings to shared sets. Lazy
// genotype decoding may run on another goroutine than the codec, so
// the cache is synchronized.
type filterCache struct {
	m sync.Map
}

// parse returns nil for ".", the pass set for "PASS" and otherwise one
// cached set per distinct string.
func (fc *filterCache) parse(s string) (*variant.FilterSet, error) {
	switch s {
	case variant.MissingValue:
		return nil, nil
	case header.PassFilter:
		return variant.PassFilters(), nil
	case legacyPassToken:
		return nil, fmt.Errorf("%s is an invalid filter name in VCF4", legacyPassToken)
	case "":
		return nil, fmt.Errorf("the FILTER field cannot be empty, use . or PASS")
	}
	if v, ok := fc.m.Load(s); ok {
		return v.(*variant.FilterSet), nil
	}
	names := split.Split(s, ';')
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("empty filter name in %q", s)
		}
	}
	v, _ := fc.m.LoadOrStore(s, variant.NewFilterSet(names...))
	return v.(*variant.FilterSet), nil
}

// gtIndices is a parsed GT string: allele indices, -1 for a no-call.
type gtIndices struct {
	indices []int
	phased  bool
}

// gtCache maps raw GT strings to their parsed indices across records.
type gtCache struct {
	m sync.Map
}

func (gc *gtCache) parse(s string) (*gtIndices, error) {
	if v, ok := gc.m.Load(s); ok {
		return v.(*gtIndices), nil
	}
	gt := &gtIndices{phased: strings.IndexByte(s, '|') >= 0}
	if s != "" {
		start := 0
		for i := 0; i <= len(s); i++ {
			if i < len(s) && s[i] != '/' && s[i] != '|' {
				continue
			}
			tok := s[start:i]
			start = i + 1
			if tok == variant.NoCallString {
				gt.indices = append(gt.indices, -1)
				continue
			}
			n, err := strconv.Atoi(tok)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid GT value %q", s)
			}
			gt.indices = append(gt.indices, n)
		}
	}
	v, _ := gc.m.LoadOrStore(s, gt)
	return v.(*gtIndices), nil
}

// textGenotypes holds the undecoded FORMAT and sample columns of a
// record.
type textGenotypes struct {
	raw       string
	header    *header.Header
	alleles   []*variant.Allele
	line      int
	requireGT bool

	filters  *filterCache
	gts      *gtCache
	interner *intern.Pool
}

func (p *textGenotypes) fail(msg string) error {
	return &ParseError{Line: p.line, Message: msg}
}

// reusableUnder reports whether the raw text can be written verbatim for
// vc under h: the samples and FORMAT declarations match, there is one
// column per sample and the allele list the GT indices refer to is
// unchanged.
func (p *textGenotypes) reusableUnder(h *header.Header, vc *variant.VariantContext) bool {
	if h != p.header && !h.FormatKeysCompatible(p.header) {
		return false
	}
	if strings.Count(p.raw, "\t") != h.NumSamples() {
		return false
	}
	if vc.NumAlleles() != len(p.alleles) {
		return false
	}
	for i, a := range p.alleles {
		if !vc.Allele(i).Equals(a, false) {
			return false
		}
	}
	return true
}

// formatColumn returns the raw FORMAT column.
func (p *textGenotypes) formatColumn() string {
	format, _, _ := strings.Cut(p.raw, "\t")
	return format
}

// Decode parses every sample column.
func (p *textGenotypes) Decode() ([]*variant.Genotype, error) {
	samples := p.header.SampleNames()
	cols := split.Split(p.raw, '\t')
	if len(cols) != len(samples)+1 {
		return nil, p.fail(fmt.Sprintf("there are %d genotypes while the header declares %d samples", len(cols)-1, len(samples)))
	}

	keys := split.Split(cols[0], ':')
	gtIndex := -1
	for i, k := range keys {
		keys[i] = p.interner.Intern(k)
		if k == header.GenotypeKey && gtIndex < 0 {
			gtIndex = i
		}
	}
	if gtIndex > 0 {
		return nil, p.fail(fmt.Sprintf("GT must be the first FORMAT key, found at position %d", gtIndex+1))
	}
	if gtIndex < 0 && p.requireGT {
		return nil, p.fail("the GT field is required before VCFv4.1")
	}

	byGT := make(map[string]*gtAlleles, 4)
	values := split.NewSplitter(len(keys))
	out := make([]*variant.Genotype, len(samples))
	for i, sample := range samples {
		col := cols[i+1]
		if gtIndex == 0 && (col == "." || col == "./.") {
			out[i] = variant.NewMissingGenotype(sample, (len(col)+1)/2)
			continue
		}
		vals := values.Split(col, ':')
		if len(vals) > len(keys) {
			return nil, p.fail(fmt.Sprintf("sample %s has %d values for %d FORMAT keys", sample, len(vals), len(keys)))
		}
		g, err := p.decodeSample(sample, keys, vals, byGT)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

type gtAlleles struct {
	alleles []*variant.Allele
	phased  bool
}

func (p *textGenotypes) genotypeAlleles(s string, byGT map[string]*gtAlleles) (*gtAlleles, error) {
	if a, ok := byGT[s]; ok {
		return a, nil
	}
	gt, err := p.gts.parse(s)
	if err != nil {
		return nil, p.fail(err.Error())
	}
	a := &gtAlleles{alleles: make([]*variant.Allele, len(gt.indices)), phased: gt.phased}
	for i, idx := range gt.indices {
		switch {
		case idx < 0:
			a.alleles[i] = variant.NoCall
		case idx >= len(p.alleles):
			return nil, p.fail(fmt.Sprintf("the allele with index %d is not defined in the REF/ALT columns", idx))
		default:
			a.alleles[i] = p.alleles[idx]
		}
	}
	byGT[s] = a
	return a, nil
}

func (p *textGenotypes) decodeSample(sample string, keys, vals []string, byGT map[string]*gtAlleles) (*variant.Genotype, error) {
	gb := variant.NewGenotypeBuilder(sample)
	for j, v := range vals {
		key := keys[j]
		switch key {
		case header.GenotypeKey:
			a, err := p.genotypeAlleles(v, byGT)
			if err != nil {
				return nil, err
			}
			gb.Alleles(a.alleles...).Phased(a.phased)
			continue
		case header.GenotypeFilterKey:
			fs, err := p.filters.parse(v)
			if err != nil {
				return nil, p.fail(err.Error())
			}
			if fs != nil {
				gb.Filters(fs.Names()...)
			}
			continue
		}
		if v == variant.MissingValue {
			continue
		}

		var err error
		switch key {
		case header.GenotypeQualityKey:
			if v == "-1" {
				gb.GQ(-1)
				break
			}
			var f float64
			if f, err = strconv.ParseFloat(v, 64); err == nil {
				gb.GQ(int(math.Round(f)))
			}
		case header.DepthKey:
			var dp int
			if dp, err = strconv.Atoi(v); err == nil {
				gb.DP(dp)
			}
		case header.AlleleDepthsKey:
			var ad []int
			if ad, err = parseInts(v); err == nil {
				gb.AD(ad)
			}
		case header.PhredLikelihoodsKey:
			var pl []int
			if pl, err = parseInts(v); err == nil {
				gb.PL(pl)
			}
		case header.GenotypeLikelihoodsKey:
			var gls []float64
			if gls, err = parseFloats(v); err == nil {
				gb.PLFromGLs(gls)
			}
		default:
			gb.Attribute(key, v)
		}
		if err != nil {
			return nil, p.fail(fmt.Sprintf("invalid %s value %q for sample %s", key, v, sample))
		}
	}
	g, err := gb.Make()
	if err != nil {
		return nil, &ParseError{Line: p.line, Message: err.Error(), Err: err}
	}
	return g, nil
}

// parseInts parses a comma-separated integer list. Missing elements
// become variant.MissingInt.
func parseInts(s string) ([]int, error) {
	parts := split.Split(s, ',')
	out := make([]int, len(parts))
	for i, part := range parts {
		if part == variant.MissingValue {
			out[i] = variant.MissingInt
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := split.Split(s, ',')
	out := make([]float64, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
