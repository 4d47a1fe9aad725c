package variant

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/inodb/vibe-vcf/internal/header"
)

// Builder assembles a VariantContext. Setters never fail; Make validates.
// The stop position is checked on every Make, alleles and genotypes only
// after they were set. Builders own their attribute map: constructors and
// Make copy it. A Builder is not safe for concurrent use.
type Builder struct {
	contig       string
	start        int
	stop         int
	id           string
	alleles      []*Allele
	genotypes    *GenotypesContext
	log10PError  float64
	filters      *FilterSet
	attributes   map[string]any
	fullyDecoded bool

	validateAlleles   bool
	validateGenotypes bool
}

// NewBuilder starts a record at contig:start-stop with the given alleles.
func NewBuilder(contig string, start, stop int, alleles ...*Allele) *Builder {
	return &Builder{
		contig:          contig,
		start:           start,
		stop:            stop,
		id:              MissingID,
		alleles:         alleles,
		genotypes:       NoGenotypes(),
		log10PError:     NoLog10PError,
		validateAlleles: true,
	}
}

// BuilderFrom starts a builder holding the fields of vc.
func BuilderFrom(vc *VariantContext) *Builder {
	return &Builder{
		contig:       vc.contig,
		start:        vc.start,
		stop:         vc.stop,
		id:           vc.id,
		alleles:      vc.alleles,
		genotypes:    vc.genotypes,
		log10PError:  vc.log10PError,
		filters:      vc.filters,
		attributes:   cloneAttributes(vc.attributes),
		fullyDecoded: vc.fullyDecoded,
	}
}

// Copy returns an independent builder with the same fields.
func (b *Builder) Copy() *Builder {
	c := *b
	c.alleles = slices.Clone(b.alleles)
	c.attributes = cloneAttributes(b.attributes)
	return &c
}

func (b *Builder) Contig(contig string) *Builder {
	b.contig = contig
	return b
}

func (b *Builder) Start(start int) *Builder {
	b.start = start
	return b
}

func (b *Builder) Stop(stop int) *Builder {
	b.stop = stop
	return b
}

// Loc sets contig, start and stop.
func (b *Builder) Loc(contig string, start, stop int) *Builder {
	b.contig, b.start, b.stop = contig, start, stop
	return b
}

// ComputeStop sets stop from the END attribute when present, otherwise
// from the reference allele length.
func (b *Builder) ComputeStop() *Builder {
	if end, ok := b.endAttribute(); ok {
		b.stop = end
		return b
	}
	for _, a := range b.alleles {
		if a.IsReference() {
			b.stop = b.start + a.Len() - 1
			break
		}
	}
	return b
}

// ID sets the identifier; "" resets it to MissingID.
func (b *Builder) ID(id string) *Builder {
	if id == "" {
		id = MissingID
	}
	b.id = id
	return b
}

func (b *Builder) NoID() *Builder { return b.ID(MissingID) }

// Alleles replaces the alleles. The reference need not come first.
func (b *Builder) Alleles(alleles ...*Allele) *Builder {
	b.alleles = alleles
	b.validateAlleles = true
	return b
}

// Genotypes replaces the genotypes; Make checks them against the alleles.
func (b *Builder) Genotypes(gc *GenotypesContext) *Builder {
	b.genotypes = gc
	b.validateGenotypes = true
	return b
}

// GenotypesNoValidation replaces the genotypes without checking them.
// Decoders use it to keep lazy genotypes undecoded.
func (b *Builder) GenotypesNoValidation(gc *GenotypesContext) *Builder {
	b.genotypes = gc
	b.validateGenotypes = false
	return b
}

// GenotypeList replaces the genotypes with gs.
func (b *Builder) GenotypeList(gs ...*Genotype) *Builder {
	return b.Genotypes(NewGenotypes(gs...))
}

func (b *Builder) NoGenotypes() *Builder {
	return b.GenotypesNoValidation(NoGenotypes())
}

// Log10PError sets the quality as log10 of the error probability.
func (b *Builder) Log10PError(v float64) *Builder {
	b.log10PError = v
	return b
}

// PhredQual sets the quality from a QUAL value; NaN clears it.
func (b *Builder) PhredQual(qual float64) *Builder {
	b.log10PError = phredToLog10PError(qual)
	return b
}

func (b *Builder) NoQual() *Builder { return b.Log10PError(NoLog10PError) }

// Filters sets the filter set; nil means filters were not applied.
func (b *Builder) Filters(f *FilterSet) *Builder {
	b.filters = f
	return b
}

// FilterNames sets failing filters by name.
func (b *Builder) FilterNames(names ...string) *Builder {
	return b.Filters(NewFilterSet(names...))
}

// Passed marks the record as passing all filters.
func (b *Builder) Passed() *Builder { return b.Filters(PassFilters()) }

// Unfiltered marks filters as not applied.
func (b *Builder) Unfiltered() *Builder { return b.Filters(nil) }

// Attributes replaces the INFO attributes with a copy of attrs.
func (b *Builder) Attributes(attrs map[string]any) *Builder {
	b.attributes = cloneAttributes(attrs)
	return b
}

// Attribute sets one INFO attribute.
func (b *Builder) Attribute(key string, value any) *Builder {
	if b.attributes == nil {
		b.attributes = make(map[string]any)
	}
	b.attributes[key] = value
	return b
}

func (b *Builder) RemoveAttribute(key string) *Builder {
	delete(b.attributes, key)
	return b
}

// FullyDecoded sets whether attribute values are typed.
func (b *Builder) FullyDecoded(v bool) *Builder {
	b.fullyDecoded = v
	return b
}

func (b *Builder) endAttribute() (int, bool) {
	v, ok := b.attributes[header.EndKey]
	if !ok {
		return 0, false
	}
	switch v := v.(type) {
	case int:
		return v, true
	case string:
		if end, err := strconv.Atoi(v); err == nil {
			return end, true
		}
	}
	return -1, true
}

// Make validates the fields and returns a new VariantContext. It can be
// called repeatedly.
func (b *Builder) Make() (*VariantContext, error) {
	fail := func(format string, args ...any) error {
		return &ValidationError{Locus: locus(b.contig, b.start), Message: fmt.Sprintf(format, args...)}
	}

	if b.contig == "" {
		return nil, fail("contig cannot be empty")
	}

	alleles := b.alleles
	if b.validateAlleles {
		var err error
		if alleles, err = orderAlleles(b.alleles); err != nil {
			return nil, fail("%v", err)
		}
	}

	typ, err := determineType(alleles)
	if err != nil {
		return nil, fail("%v", err)
	}

	vc := &VariantContext{
		contig:       b.contig,
		start:        b.start,
		stop:         b.stop,
		id:           b.id,
		alleles:      slices.Clip(alleles),
		genotypes:    b.genotypes,
		log10PError:  b.log10PError,
		filters:      b.filters,
		attributes:   cloneAttributes(b.attributes),
		fullyDecoded: b.fullyDecoded,
		typ:          typ,
	}
	if vc.genotypes == nil {
		vc.genotypes = NoGenotypes()
	}
	if vc.attributes == nil {
		vc.attributes = map[string]any{}
	}

	if err := b.validateStop(vc); err != nil {
		return nil, fail("%v", err)
	}
	if b.validateGenotypes {
		if err := validateGenotypes(vc); err != nil {
			return nil, fail("%v", err)
		}
		vc.genotypes.Immutable()
	}
	return vc, nil
}

// MustMake is like Make but panics on error.
func (b *Builder) MustMake() *VariantContext {
	vc, err := b.Make()
	if err != nil {
		panic(err)
	}
	return vc
}

// orderAlleles returns the alleles with the single reference allele
// first, rejecting duplicates and no-calls.
func orderAlleles(in []*Allele) ([]*Allele, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("alleles cannot be empty")
	}
	out := make([]*Allele, 1, len(in))
	for _, a := range in {
		if a == nil {
			return nil, fmt.Errorf("nil allele")
		}
		if a.IsNoCall() {
			return nil, fmt.Errorf("cannot add a no-call allele to the site alleles")
		}
		for _, o := range out {
			if o != nil && o.Equals(a, true) {
				return nil, fmt.Errorf("duplicate allele %s", a.DisplayString())
			}
		}
		if a.IsReference() {
			if out[0] != nil {
				return nil, fmt.Errorf("alleles %s and %s are both reference", out[0].DisplayString(), a.DisplayString())
			}
			out[0] = a
			continue
		}
		out = append(out, a)
	}
	if out[0] == nil {
		return nil, fmt.Errorf("no reference allele among %d alleles", len(in))
	}
	return out, nil
}

func (b *Builder) validateStop(vc *VariantContext) error {
	if end, ok := b.endAttribute(); ok {
		if end != vc.stop {
			return fmt.Errorf("END attribute %v does not match stop %d", b.attributes[header.EndKey], vc.stop)
		}
	} else if !vc.hasSymbolicAlleles() {
		if n := vc.stop - vc.start + 1; n != vc.Reference().Len() {
			return fmt.Errorf("length %d from start %d and stop %d does not match reference allele %s",
				n, vc.start, vc.stop, vc.Reference().DisplayString())
		}
	}
	if vc.stop < vc.start-1 {
		return fmt.Errorf("stop %d precedes start %d", vc.stop, vc.start)
	}
	return nil
}

func validateGenotypes(vc *VariantContext) error {
	if err := vc.genotypes.Force(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, vc.genotypes.Len())
	for _, g := range vc.genotypes.genotypes {
		if _, dup := seen[g.sample]; dup {
			return fmt.Errorf("duplicate genotype for sample %s", g.sample)
		}
		seen[g.sample] = struct{}{}
		for _, a := range g.alleles {
			if a.IsCalled() && !vc.HasAllele(a) {
				return fmt.Errorf("allele %s of sample %s is not among the site alleles", a, g.sample)
			}
		}
	}
	return nil
}

// Equal reports whether two records agree on locus, ID, alleles, quality,
// filters, attributes and genotypes. Genotypes are decoded.
func Equal(a, b *VariantContext) bool {
	if a.contig != b.contig || a.start != b.start || a.stop != b.stop || a.id != b.id ||
		a.log10PError != b.log10PError || !a.filters.Equal(b.filters) ||
		len(a.alleles) != len(b.alleles) {
		return false
	}
	for i := range a.alleles {
		if !a.alleles[i].Equals(b.alleles[i], false) {
			return false
		}
	}
	if !maps.EqualFunc(a.attributes, b.attributes, valuesEqual) {
		return false
	}
	ga, gb := a.genotypes.decoded(), b.genotypes.decoded()
	if len(ga) != len(gb) {
		return false
	}
	for i := range ga {
		if !GenotypesEqual(ga[i], gb[i]) {
			return false
		}
	}
	return true
}

// GenotypesEqual compares two genotypes field by field.
func GenotypesEqual(a, b *Genotype) bool {
	if a.sample != b.sample || a.phased != b.phased || a.gq != b.gq || a.dp != b.dp ||
		a.filter != b.filter || len(a.alleles) != len(b.alleles) ||
		!slices.Equal(a.ad, b.ad) || !slices.Equal(a.pl, b.pl) {
		return false
	}
	for i := range a.alleles {
		if !a.alleles[i].Equals(b.alleles[i], false) {
			return false
		}
	}
	return maps.EqualFunc(a.extended, b.extended, valuesEqual)
}

func valuesEqual(a, b any) bool {
	switch a := a.(type) {
	case []int:
		bv, ok := b.([]int)
		return ok && slices.Equal(a, bv)
	case []float64:
		bv, ok := b.([]float64)
		return ok && slices.EqualFunc(a, bv, floatsEqual)
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(a, bv)
	case float64:
		bv, ok := b.(float64)
		return ok && floatsEqual(a, bv)
	}
	return a == b
}

func floatsEqual(a, b float64) bool {
	return a == b || (IsMissingFloat(a) && IsMissingFloat(b))
}
