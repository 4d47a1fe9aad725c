package header

import "sort"

// Reserved genotype and INFO keys.
const (
	GenotypeKey            = "GT"
	GenotypeQualityKey     = "GQ"
	DepthKey               = "DP"
	AlleleDepthsKey        = "AD"
	PhredLikelihoodsKey    = "PL"
	GenotypeLikelihoodsKey = "GL"
	GenotypeFilterKey      = "FT"
	EndKey                 = "END"
	AlleleCountKey         = "AC"
	AlleleFrequencyKey     = "AF"
	AlleleNumberKey        = "AN"
	DBSNPKey               = "DB"
)

// PassFilter is the FILTER value of a record that passed all filters.
const PassFilter = "PASS"

var standardFormatLines = map[string]*CompoundLine{
	GenotypeKey:            mustStandard(Format, GenotypeKey, FixedNumber(1), String, "Genotype"),
	GenotypeQualityKey:     mustStandard(Format, GenotypeQualityKey, FixedNumber(1), Integer, "Genotype Quality"),
	DepthKey:               mustStandard(Format, DepthKey, FixedNumber(1), Integer, "Approximate read depth (reads with MQ=255 or with bad mates are filtered)"),
	AlleleDepthsKey:        mustStandard(Format, AlleleDepthsKey, NumberR, Integer, "Allelic depths for the ref and alt alleles in the order listed"),
	PhredLikelihoodsKey:    mustStandard(Format, PhredLikelihoodsKey, NumberG, Integer, "Normalized, Phred-scaled likelihoods for genotypes as defined in the VCF specification"),
	GenotypeLikelihoodsKey: mustStandard(Format, GenotypeLikelihoodsKey, NumberG, Float, "Genotype likelihoods"),
	GenotypeFilterKey:      mustStandard(Format, GenotypeFilterKey, FixedNumber(1), String, "Genotype-level filter"),
}

var standardInfoLines = map[string]*CompoundLine{
	EndKey:             mustStandard(Info, EndKey, FixedNumber(1), Integer, "Stop position of the interval"),
	AlleleCountKey:     mustStandard(Info, AlleleCountKey, NumberA, Integer, "Allele count in genotypes, for each ALT allele, in the same order as listed"),
	AlleleFrequencyKey: mustStandard(Info, AlleleFrequencyKey, NumberA, Float, "Allele Frequency, for each ALT allele, in the same order as listed"),
	AlleleNumberKey:    mustStandard(Info, AlleleNumberKey, FixedNumber(1), Integer, "Total number of alleles in called genotypes"),
	DepthKey:           mustStandard(Info, DepthKey, FixedNumber(1), Integer, "Approximate read depth; some reads may have been filtered"),
	DBSNPKey:           mustStandard(Info, DBSNPKey, FixedNumber(0), Flag, "dbSNP Membership"),
}

func mustStandard(kind CompoundKind, id string, n Number, t Type, desc string) *CompoundLine {
	l, err := newCompoundLine(kind, id, n, t, desc, nil)
	if err != nil {
		panic(err)
	}
	return l
}

// StandardFormatLine returns the standard declaration of a reserved
// FORMAT key, or nil.
func StandardFormatLine(id string) *CompoundLine { return standardFormatLines[id] }

// StandardInfoLine returns the standard declaration of a reserved INFO
// key, or nil.
func StandardInfoLine(id string) *CompoundLine { return standardInfoLines[id] }

// Repair rewrites reserved INFO/FORMAT declarations whose Number or Type
// disagree with the standard, and adds the standard PL declaration when
// only the legacy GL likelihood key is declared (decoders convert GL
// values to PL). It returns the repaired lines, rendered, sorted.
func Repair(h *Header) []string {
	var repaired []string
	for _, l := range h.FormatLines() {
		if std := standardFormatLines[l.id]; std != nil && !sameDeclaration(l, std) {
			h.replaceCompound(l, std)
			repaired = append(repaired, std.String())
		}
	}
	for _, l := range h.InfoLines() {
		if std := standardInfoLines[l.id]; std != nil && !sameDeclaration(l, std) {
			h.replaceCompound(l, std)
			repaired = append(repaired, std.String())
		}
	}
	if h.HasFormat(GenotypeLikelihoodsKey) && !h.HasFormat(PhredLikelihoodsKey) {
		pl := standardFormatLines[PhredLikelihoodsKey]
		h.AddLine(pl)
		repaired = append(repaired, pl.String())
	}
	sort.Strings(repaired)
	return repaired
}
