package variant

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
)

// GenotypeType classifies a genotype by its alleles.
type GenotypeType uint8

const (
	GenotypeNoCall GenotypeType = iota
	GenotypeHomRef
	GenotypeHet
	GenotypeHomVar
	GenotypeMixed
	GenotypeUnavailable
)

func (t GenotypeType) String() string {
	switch t {
	case GenotypeNoCall:
		return "NO_CALL"
	case GenotypeHomRef:
		return "HOM_REF"
	case GenotypeHet:
		return "HET"
	case GenotypeHomVar:
		return "HOM_VAR"
	case GenotypeMixed:
		return "MIXED"
	case GenotypeUnavailable:
		return "UNAVAILABLE"
	}
	return fmt.Sprintf("GenotypeType(%d)", uint8(t))
}

// numGenotypeTypes sizes per-type count arrays.
const numGenotypeTypes = int(GenotypeUnavailable) + 1

// Genotype is an immutable per-sample call. GQ and DP are -1 when unset;
// AD and PL are nil when unset; an empty filter means unfiltered.
type Genotype struct {
	sample   string
	alleles  []*Allele
	phased   bool
	gq       int
	dp       int
	ad       []int
	pl       []int
	filter   string
	extended map[string]any
	typ      GenotypeType
}

func (g *Genotype) SampleName() string { return g.sample }

// Alleles returns a copy of the called alleles; the length is the ploidy.
func (g *Genotype) Alleles() []*Allele { return slices.Clone(g.alleles) }

// Allele returns the i-th allele.
func (g *Genotype) Allele(i int) *Allele { return g.alleles[i] }

func (g *Genotype) Ploidy() int    { return len(g.alleles) }
func (g *Genotype) IsPhased() bool { return g.phased }
func (g *Genotype) HasGQ() bool    { return g.gq != -1 }
func (g *Genotype) GQ() int        { return g.gq }
func (g *Genotype) HasDP() bool    { return g.dp != -1 }
func (g *Genotype) DP() int        { return g.dp }
func (g *Genotype) HasAD() bool    { return g.ad != nil }
func (g *Genotype) AD() []int      { return slices.Clone(g.ad) }
func (g *Genotype) HasPL() bool    { return g.pl != nil }
func (g *Genotype) PL() []int      { return slices.Clone(g.pl) }
func (g *Genotype) Filter() string { return g.filter }

// IsFiltered reports whether the genotype carries a failing FT value.
func (g *Genotype) IsFiltered() bool { return g.filter != "" }

// Type classifies the genotype; it is computed once at construction.
func (g *Genotype) Type() GenotypeType { return g.typ }

func (g *Genotype) IsNoCall() bool    { return g.typ == GenotypeNoCall }
func (g *Genotype) IsHomRef() bool    { return g.typ == GenotypeHomRef }
func (g *Genotype) IsHet() bool       { return g.typ == GenotypeHet }
func (g *Genotype) IsHomVar() bool    { return g.typ == GenotypeHomVar }
func (g *Genotype) IsMixed() bool     { return g.typ == GenotypeMixed }
func (g *Genotype) IsAvailable() bool { return g.typ != GenotypeUnavailable }

// IsCalled reports whether every allele is called.
func (g *Genotype) IsCalled() bool {
	return g.typ != GenotypeNoCall && g.typ != GenotypeUnavailable && g.typ != GenotypeMixed
}

// ExtendedAttributes returns a copy of the attributes other than GT, GQ,
// DP, AD, PL and FT.
func (g *Genotype) ExtendedAttributes() map[string]any { return maps.Clone(g.extended) }

// ExtendedAttribute returns one extended attribute.
func (g *Genotype) ExtendedAttribute(key string) (any, bool) {
	v, ok := g.extended[key]
	return v, ok
}

// HasAttribute reports whether key is set, inlined keys included.
func (g *Genotype) HasAttribute(key string) bool {
	switch key {
	case header.GenotypeKey:
		return g.IsAvailable()
	case header.GenotypeQualityKey:
		return g.HasGQ()
	case header.DepthKey:
		return g.HasDP()
	case header.AlleleDepthsKey:
		return g.HasAD()
	case header.PhredLikelihoodsKey:
		return g.HasPL()
	case header.GenotypeFilterKey:
		return g.IsFiltered()
	}
	_, ok := g.extended[key]
	return ok
}

// CountAllele counts how many of the genotype's alleles equal a.
func (g *Genotype) CountAllele(a *Allele) int {
	n := 0
	for _, ga := range g.alleles {
		if ga.Equals(a, false) {
			n++
		}
	}
	return n
}

func (g *Genotype) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(g.sample)
	b.WriteByte(' ')
	sep := "/"
	if g.phased {
		sep = "|"
	}
	for i, a := range g.alleles {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(a.String())
	}
	if g.HasGQ() {
		fmt.Fprintf(&b, " GQ %d", g.gq)
	}
	if g.HasDP() {
		fmt.Fprintf(&b, " DP %d", g.dp)
	}
	if g.HasAD() {
		fmt.Fprintf(&b, " AD %v", g.ad)
	}
	if g.HasPL() {
		fmt.Fprintf(&b, " PL %v", g.pl)
	}
	if g.IsFiltered() {
		fmt.Fprintf(&b, " FT %s", g.filter)
	}
	for _, k := range slices.Sorted(maps.Keys(g.extended)) {
		fmt.Fprintf(&b, " %s %v", k, g.extended[k])
	}
	b.WriteString("]")
	return b.String()
}

func classifyGenotype(alleles []*Allele) GenotypeType {
	if len(alleles) == 0 {
		return GenotypeUnavailable
	}
	var (
		sawNoCall   bool
		sawMultiple bool
		observed    *Allele
	)
	for _, a := range alleles {
		switch {
		case a.IsNoCall():
			sawNoCall = true
		case observed == nil:
			observed = a
		case !a.Equals(observed, true):
			sawMultiple = true
		}
	}
	switch {
	case sawNoCall && observed == nil:
		return GenotypeNoCall
	case sawNoCall:
		return GenotypeMixed
	case sawMultiple:
		return GenotypeHet
	case observed.IsReference():
		return GenotypeHomRef
	}
	return GenotypeHomVar
}

// NewMissingGenotype returns a no-call genotype of the given ploidy.
func NewMissingGenotype(sample string, ploidy int) *Genotype {
	alleles := make([]*Allele, ploidy)
	for i := range alleles {
		alleles[i] = NoCall
	}
	return &Genotype{sample: sample, alleles: alleles, gq: -1, dp: -1, typ: classifyGenotype(alleles)}
}

// GLsToPLs converts log10-scaled genotype likelihoods to normalized
// phred-scaled likelihoods: round(-10 * (gl - max(gl))).
func GLsToPLs(gls []float64) []int {
	if len(gls) == 0 {
		return nil
	}
	best := math.Inf(-1)
	for _, gl := range gls {
		if gl > best {
			best = gl
		}
	}
	pls := make([]int, len(gls))
	for i, gl := range gls {
		pls[i] = int(math.Round(math.Min(-10*(gl-best), math.MaxInt32)))
	}
	return pls
}

// GenotypeBuilder assembles a Genotype. It can be reused: Make copies
// everything it holds.
type GenotypeBuilder struct {
	sample   string
	alleles  []*Allele
	phased   bool
	gq       int
	dp       int
	ad       []int
	pl       []int
	filter   string
	extended map[string]any
}

// NewGenotypeBuilder starts a genotype for sample with the given alleles.
func NewGenotypeBuilder(sample string, alleles ...*Allele) *GenotypeBuilder {
	return &GenotypeBuilder{sample: sample, alleles: alleles, gq: -1, dp: -1}
}

// GenotypeBuilderFrom starts a builder holding a copy of g.
func GenotypeBuilderFrom(g *Genotype) *GenotypeBuilder {
	return &GenotypeBuilder{
		sample:   g.sample,
		alleles:  g.alleles,
		phased:   g.phased,
		gq:       g.gq,
		dp:       g.dp,
		ad:       g.ad,
		pl:       g.pl,
		filter:   g.filter,
		extended: maps.Clone(g.extended),
	}
}

func (b *GenotypeBuilder) Name(sample string) *GenotypeBuilder {
	b.sample = sample
	return b
}

func (b *GenotypeBuilder) Alleles(alleles ...*Allele) *GenotypeBuilder {
	b.alleles = alleles
	return b
}

func (b *GenotypeBuilder) Phased(phased bool) *GenotypeBuilder {
	b.phased = phased
	return b
}

// GQ sets the genotype quality; -1 unsets it.
func (b *GenotypeBuilder) GQ(gq int) *GenotypeBuilder {
	b.gq = gq
	return b
}

// DP sets the read depth; -1 unsets it.
func (b *GenotypeBuilder) DP(dp int) *GenotypeBuilder {
	b.dp = dp
	return b
}

// AD sets the allele depths; nil unsets them.
func (b *GenotypeBuilder) AD(ad []int) *GenotypeBuilder {
	b.ad = ad
	return b
}

// PL sets the phred-scaled likelihoods; nil unsets them.
func (b *GenotypeBuilder) PL(pl []int) *GenotypeBuilder {
	b.pl = pl
	return b
}

// PLFromGLs sets PL from log10-scaled likelihoods.
func (b *GenotypeBuilder) PLFromGLs(gls []float64) *GenotypeBuilder {
	b.pl = GLsToPLs(gls)
	return b
}

// Filter sets the genotype filter; "" or PASS mean unfiltered.
func (b *GenotypeBuilder) Filter(filter string) *GenotypeBuilder {
	if filter == header.PassFilter {
		filter = ""
	}
	b.filter = filter
	return b
}

// Filters sets the genotype filter from individual filter names.
func (b *GenotypeBuilder) Filters(names ...string) *GenotypeBuilder {
	return b.Filter(strings.Join(names, ";"))
}

// Attribute sets an extended attribute.
func (b *GenotypeBuilder) Attribute(key string, value any) *GenotypeBuilder {
	if b.extended == nil {
		b.extended = make(map[string]any)
	}
	b.extended[key] = value
	return b
}

// Attributes replaces the extended attributes with a copy of attrs.
func (b *GenotypeBuilder) Attributes(attrs map[string]any) *GenotypeBuilder {
	b.extended = maps.Clone(attrs)
	return b
}

// Make builds the genotype. Extended attributes may not use the inlined
// keys GT, GQ, DP, AD, PL or FT.
func (b *GenotypeBuilder) Make() (*Genotype, error) {
	for k := range b.extended {
		switch k {
		case header.GenotypeKey, header.GenotypeQualityKey, header.DepthKey,
			header.AlleleDepthsKey, header.PhredLikelihoodsKey, header.GenotypeFilterKey:
			return nil, &ValidationError{Message: fmt.Sprintf("genotype %s: %s cannot be an extended attribute", b.sample, k)}
		}
	}
	alleles := slices.Clone(b.alleles)
	for _, a := range alleles {
		if a == nil {
			return nil, &ValidationError{Message: fmt.Sprintf("genotype %s: nil allele", b.sample)}
		}
	}
	var extended map[string]any
	if len(b.extended) > 0 {
		extended = cloneAttributes(b.extended)
	}
	return &Genotype{
		sample:   b.sample,
		alleles:  alleles,
		phased:   b.phased,
		gq:       b.gq,
		dp:       b.dp,
		ad:       slices.Clone(b.ad),
		pl:       slices.Clone(b.pl),
		filter:   b.filter,
		extended: extended,
		typ:      classifyGenotype(alleles),
	}, nil
}

// MustMake is like Make but panics on error.
func (b *GenotypeBuilder) MustMake() *Genotype {
	g, err := b.Make()
	if err != nil {
		panic(err)
	}
	return g
}
