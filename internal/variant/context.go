package variant

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
)

const (
	// MissingID is the ID of a record without identifiers.
	MissingID = "."
	// NoLog10PError marks an absent QUAL.
	NoLog10PError = 1.0
)

// VariantType classifies a record by comparing each alternate allele to
// the reference.
type VariantType uint8

const (
	NoVariation VariantType = iota
	SNP
	MNP
	Indel
	Symbolic
	Mixed
)

func (t VariantType) String() string {
	switch t {
	case NoVariation:
		return "NO_VARIATION"
	case SNP:
		return "SNP"
	case MNP:
		return "MNP"
	case Indel:
		return "INDEL"
	case Symbolic:
		return "SYMBOLIC"
	case Mixed:
		return "MIXED"
	}
	return fmt.Sprintf("VariantType(%d)", uint8(t))
}

// VariantContext is one record: a locus, its alleles and genotypes,
// quality, filters and INFO attributes. It is built by a Builder and never
// mutated afterwards, except that its genotypes may be decoded lazily and
// genotype-derived statistics are cached on first use. Neither is safe
// for concurrent use until the genotypes have been forced.
type VariantContext struct {
	contig       string
	start        int
	stop         int
	id           string
	alleles      []*Allele // reference first
	genotypes    *GenotypesContext
	log10PError  float64
	filters      *FilterSet
	attributes   map[string]any
	fullyDecoded bool
	typ          VariantType

	typeCounts *[numGenotypeTypes]int
}

func (vc *VariantContext) Contig() string { return vc.contig }

// Start is the 1-based position of the first reference base.
func (vc *VariantContext) Start() int { return vc.start }

// End is the 1-based inclusive stop position.
func (vc *VariantContext) End() int { return vc.stop }

// Locus renders contig:start for messages.
func (vc *VariantContext) Locus() string { return locus(vc.contig, vc.start) }

func locus(contig string, start int) string {
	return contig + ":" + strconv.Itoa(start)
}

func (vc *VariantContext) ID() string        { return vc.id }
func (vc *VariantContext) HasID() bool       { return vc.id != MissingID }
func (vc *VariantContext) Type() VariantType { return vc.typ }

// Alleles returns the alleles, reference first.
func (vc *VariantContext) Alleles() []*Allele { return slices.Clone(vc.alleles) }

// NumAlleles counts the reference and alternate alleles.
func (vc *VariantContext) NumAlleles() int { return len(vc.alleles) }

// Allele returns the i-th allele; 0 is the reference.
func (vc *VariantContext) Allele(i int) *Allele { return vc.alleles[i] }

// Reference returns the reference allele.
func (vc *VariantContext) Reference() *Allele { return vc.alleles[0] }

// AlternateAlleles returns the non-reference alleles in order.
func (vc *VariantContext) AlternateAlleles() []*Allele { return slices.Clone(vc.alleles[1:]) }

// AlleleIndex returns the position of a in the allele list, or -1.
func (vc *VariantContext) AlleleIndex(a *Allele) int {
	for i, o := range vc.alleles {
		if o.Equals(a, false) {
			return i
		}
	}
	return -1
}

// HasAllele reports whether a is one of the record's alleles.
func (vc *VariantContext) HasAllele(a *Allele) bool { return vc.AlleleIndex(a) >= 0 }

func (vc *VariantContext) IsBiallelic() bool { return len(vc.alleles) == 2 }

func (vc *VariantContext) hasSymbolicAlleles() bool {
	for _, a := range vc.alleles {
		if a.IsSymbolic() {
			return true
		}
	}
	return false
}

func (vc *VariantContext) IsVariant() bool  { return vc.typ != NoVariation }
func (vc *VariantContext) IsSNP() bool      { return vc.typ == SNP }
func (vc *VariantContext) IsMNP() bool      { return vc.typ == MNP }
func (vc *VariantContext) IsIndel() bool    { return vc.typ == Indel }
func (vc *VariantContext) IsSymbolic() bool { return vc.typ == Symbolic }
func (vc *VariantContext) IsMixed() bool    { return vc.typ == Mixed }

// Genotypes returns the genotypes context, possibly undecoded.
func (vc *VariantContext) Genotypes() *GenotypesContext { return vc.genotypes }

// Genotype returns the genotype of sample.
func (vc *VariantContext) Genotype(sample string) (*Genotype, bool) {
	return vc.genotypes.GetByName(sample)
}

func (vc *VariantContext) HasGenotypes() bool { return !vc.genotypes.IsEmpty() }
func (vc *VariantContext) NumSamples() int    { return vc.genotypes.Len() }

// SampleNames returns the sample names in genotype order.
func (vc *VariantContext) SampleNames() []string { return vc.genotypes.SampleNames() }

// MaxPloidy returns the largest genotype ploidy, or def without genotypes.
func (vc *VariantContext) MaxPloidy(def int) int { return vc.genotypes.MaxPloidy(def) }

// Log10PError is QUAL/-10, or NoLog10PError when QUAL is absent.
func (vc *VariantContext) Log10PError() float64 { return vc.log10PError }

func (vc *VariantContext) HasLog10PError() bool { return vc.log10PError != NoLog10PError }

// PhredScaledQual returns QUAL.
func (vc *VariantContext) PhredScaledQual() float64 { return -10 * vc.log10PError }

// Filters returns the filter set; nil means filters were not applied.
func (vc *VariantContext) Filters() *FilterSet { return vc.filters }

func (vc *VariantContext) FiltersWereApplied() bool { return vc.filters.IsEvaluated() }
func (vc *VariantContext) IsFiltered() bool         { return vc.filters.IsFiltered() }
func (vc *VariantContext) IsNotFiltered() bool      { return !vc.filters.IsFiltered() }

// Attributes returns a copy of the INFO attributes.
func (vc *VariantContext) Attributes() map[string]any { return cloneAttributes(vc.attributes) }

// AttributeKeys returns the INFO keys in sorted order.
func (vc *VariantContext) AttributeKeys() []string {
	return slices.Sorted(maps.Keys(vc.attributes))
}

// Attribute returns the raw or decoded value of an INFO key.
func (vc *VariantContext) Attribute(key string) (any, bool) {
	v, ok := vc.attributes[key]
	return v, ok
}

func (vc *VariantContext) HasAttribute(key string) bool {
	_, ok := vc.attributes[key]
	return ok
}

// AttributeAsInt returns an INFO value as an int, or def when the key is
// absent or missing.
func (vc *VariantContext) AttributeAsInt(key string, def int) (int, error) {
	v, ok := vc.attributes[key]
	if !ok {
		return def, nil
	}
	switch v := v.(type) {
	case int:
		if v == MissingInt {
			return def, nil
		}
		return v, nil
	case float64:
		return int(v), nil
	case string:
		if v == MissingValue {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return def, &DecodeError{Field: key, Value: v, Locus: vc.Locus(), Err: err}
		}
		return n, nil
	}
	return def, &DecodeError{Field: key, Value: rawString(v), Locus: vc.Locus(), Err: fmt.Errorf("not a single integer")}
}

// AttributeAsFloat returns an INFO value as a float64, or def when the key
// is absent or missing.
func (vc *VariantContext) AttributeAsFloat(key string, def float64) (float64, error) {
	v, ok := vc.attributes[key]
	if !ok {
		return def, nil
	}
	switch v := v.(type) {
	case float64:
		if IsMissingFloat(v) {
			return def, nil
		}
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if v == MissingValue {
			return def, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def, &DecodeError{Field: key, Value: v, Locus: vc.Locus(), Err: err}
		}
		return f, nil
	}
	return def, &DecodeError{Field: key, Value: rawString(v), Locus: vc.Locus(), Err: fmt.Errorf("not a single float")}
}

// AttributeAsString renders an INFO value, joining lists with commas.
func (vc *VariantContext) AttributeAsString(key, def string) string {
	v, ok := vc.attributes[key]
	if !ok {
		return def
	}
	switch v := v.(type) {
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ",")
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	}
	return rawString(v)
}

// AttributeAsBool reports whether a flag is set.
func (vc *VariantContext) AttributeAsBool(key string) bool {
	v, ok := vc.attributes[key]
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	return !isBool || b
}

// IsFullyDecoded reports whether attribute and genotype values have been
// converted to their declared types.
func (vc *VariantContext) IsFullyDecoded() bool { return vc.fullyDecoded }

// GenotypeTypeCount returns how many genotypes have type t.
func (vc *VariantContext) GenotypeTypeCount(t GenotypeType) int {
	if vc.typeCounts == nil {
		var counts [numGenotypeTypes]int
		for _, g := range vc.genotypes.decoded() {
			counts[g.Type()]++
		}
		vc.typeCounts = &counts
	}
	return vc.typeCounts[t]
}

// IsMonomorphicInSamples reports whether the record has genotypes and
// no sample carries an alternate allele.
func (vc *VariantContext) IsMonomorphicInSamples() bool {
	return vc.HasGenotypes() &&
		vc.GenotypeTypeCount(GenotypeHet) == 0 &&
		vc.GenotypeTypeCount(GenotypeHomVar) == 0 &&
		vc.CalledChrCount()-vc.CalledChrCountOf(vc.Reference()) == 0
}

// CalledChrCount counts called alleles across all genotypes.
func (vc *VariantContext) CalledChrCount() int {
	n := 0
	for _, g := range vc.genotypes.decoded() {
		for _, a := range g.alleles {
			if a.IsCalled() {
				n++
			}
		}
	}
	return n
}

// CalledChrCountOf counts occurrences of a across all genotypes.
func (vc *VariantContext) CalledChrCountOf(a *Allele) int {
	n := 0
	for _, g := range vc.genotypes.decoded() {
		n += g.CountAllele(a)
	}
	return n
}

func (vc *VariantContext) String() string {
	alleles := make([]string, len(vc.alleles))
	for i, a := range vc.alleles {
		alleles[i] = a.String()
	}
	qual := MissingValue
	if vc.HasLog10PError() {
		qual = strconv.FormatFloat(vc.PhredScaledQual(), 'f', 2, 64)
	}
	return fmt.Sprintf("[VC %s:%d-%d %s %s Q%s filters=%s attrs=%v samples=%d]",
		vc.contig, vc.start, vc.stop, vc.typ, strings.Join(alleles, ","), qual,
		vc.filters, vc.attributes, vc.genotypes.Len())
}

func determineType(alleles []*Allele) (VariantType, error) {
	switch len(alleles) {
	case 0:
		return NoVariation, fmt.Errorf("no alleles")
	case 1:
		return NoVariation, nil
	}
	ref := alleles[0]
	if ref.IsSymbolic() {
		return NoVariation, fmt.Errorf("unexpected symbolic reference allele %s", ref.DisplayString())
	}
	var typ VariantType
	for i, alt := range alleles[1:] {
		t := biallelicType(ref, alt)
		switch {
		case i == 0:
			typ = t
		case t != typ:
			return Mixed, nil
		}
	}
	return typ, nil
}

func biallelicType(ref, alt *Allele) VariantType {
	switch {
	case alt.IsSymbolic(), alt.IsSpanningDeletion():
		return Symbolic
	case ref.Len() != alt.Len():
		return Indel
	case ref.Len() == 1:
		return SNP
	}
	return MNP
}

// NumLikelihoods is the number of genotype likelihoods of a record with
// the given ploidy.
func (vc *VariantContext) NumLikelihoods(ploidy int) int {
	return header.NumLikelihoods(len(vc.alleles), ploidy)
}

var _ header.CountContext = (*VariantContext)(nil)

// phredToLog10PError converts a QUAL value.
func phredToLog10PError(qual float64) float64 {
	if math.IsNaN(qual) {
		return NoLog10PError
	}
	return qual / -10
}
